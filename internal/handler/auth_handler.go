/*
Package handler provides the HTTP handlers and routing setup for the collaboration hub.

This file contains the development-only token endpoint. In production, identity
tokens are minted by the platform's authentication layer; locally this endpoint
stands in for it so a client can connect without the full platform running.
*/
package handler

import (
	"net/http"

	"collabhub/internal/pkg/auth/jwt"
	"collabhub/internal/pkg/errs"
	"collabhub/internal/pkg/randx"
	"collabhub/internal/pkg/req"
	"collabhub/internal/pkg/resp"
)

// DevTokenInput is the request body for POST /api/dev/token.
type DevTokenInput struct {
	UserID      string `json:"userId,omitempty"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// HandleDevToken mints an identity token for local development. The route is
// only mounted when Environment == "development".
func HandleDevToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input DevTokenInput

		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.DisplayName == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if input.UserID == "" {
			input.UserID = randx.EventID()
		}

		payload := &jwt.Payload{
			UserID:      input.UserID,
			DisplayName: input.DisplayName,
			Email:       input.Email,
		}

		tokenString, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.SessionAccessExpiration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token":  tokenString,
			"userId": input.UserID,
		})
	}
}
