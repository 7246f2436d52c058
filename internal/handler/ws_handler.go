/*
Package handler provides the HTTP handlers and routing setup for the collaboration hub.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
verifying the caller's identity token, upgrading the HTTP connection to WebSocket, and
initiating the client lifecycle. Room membership is negotiated afterwards over the
socket itself via join-room events.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"collabhub/internal/app/collab"
	"collabhub/internal/app/user"
	"collabhub/internal/pkg/auth/jwt"
	"collabhub/internal/pkg/errs"
	"collabhub/internal/pkg/limiter"
	"collabhub/internal/pkg/logx"
	"collabhub/internal/pkg/randx"
	"collabhub/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		identity, ok := resolveIdentity(r, deps)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := collab.NewClient(deps.Directory, conn, identity)

		go client.WritePump()

		logx.Info("WebSocket connection established", "user_id", identity.ID)

		client.ReadPump()
	}
}

// resolveIdentity extracts the caller's identity from the token query parameter.
// The platform's authentication layer mints the token before the client connects;
// this hub only verifies it. In development an anonymous guest identity is
// synthesized when no token is present.
func resolveIdentity(r *http.Request, deps *AppDeps) (user.User, bool) {
	tokenString := r.URL.Query().Get("token")

	if tokenString == "" {
		if deps.Config.Environment != "development" {
			logx.Warn("WebSocket request rejected: Missing identity token")
			return user.User{}, false
		}

		guestID := randx.EventID()
		return user.User{
			ID:          guestID,
			DisplayName: "Guest " + guestID[:8],
		}, true
	}

	payload, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
	if err != nil {
		logx.Warn("WebSocket request rejected: Invalid identity token", "error", err)
		return user.User{}, false
	}

	return user.User{
		ID:          payload.UserID,
		DisplayName: payload.DisplayName,
		Email:       payload.Email,
	}, true
}
