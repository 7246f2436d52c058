/*
Package handler provides the HTTP handlers and routing setup for the collaboration hub.

This file contains the REST handlers around rooms: allocating a fresh room id for a
business subject, and reading back the recent activity feed of a room.
*/
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"collabhub/internal/pkg/auth/jwt"
	"collabhub/internal/pkg/errs"
	"collabhub/internal/pkg/randx"
	"collabhub/internal/pkg/req"
	"collabhub/internal/pkg/resp"
)

const (
	// DefaultActivityLimit is used when the activities query names no limit.
	DefaultActivityLimit = 50

	// MaxActivityLimit caps a single activity feed read.
	MaxActivityLimit = 200
)

// AllocateRoomInput is the request body for POST /api/rooms.
type AllocateRoomInput struct {
	// SubjectID names the business entity the session will collaborate on.
	SubjectID string `json:"subjectId"`
}

// HandleAllocateRoom mints a fresh room id for a subject. This is pure id
// generation: no Room exists until the first join arrives over the socket.
func HandleAllocateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input AllocateRoomInput

		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.SubjectID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrSubjectRequired))
			return
		}

		// Anonymous allocation is allowed in development only.
		if deps.Config.Environment != "development" && jwt.GetPayloadFromContext(r) == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		roomID, err := randx.RoomID()
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"roomId":    roomID,
			"subjectId": input.SubjectID,
		})
	}
}

// HandleRoomActivities serves GET /api/rooms/{roomID}/activities?limit=N,
// returning the persisted activity feed of a room, newest first.
func HandleRoomActivities(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Room ids are not restricted to allocated ones: clients may join under
		// any id they agree on, and the feed must serve whatever the hub wrote.
		roomID := chi.URLParam(r, "roomID")
		if roomID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		limit := DefaultActivityLimit
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil || parsed < 1 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = min(parsed, MaxActivityLimit)
		}

		activities, err := deps.Activities.GetRecent(r.Context(), roomID, limit)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"roomId":     roomID,
			"activities": activities,
		})
	}
}
