package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims for the collaboration hub.
// Tokens are minted by the surrounding platform once a caller is authenticated; the hub only
// verifies them before admitting a WebSocket connection or serving protected REST routes.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the unified identifier for the participant across the platform.
	UserID string `json:"user_id"`

	// DisplayName is the name shown to other participants in a session.
	DisplayName string `json:"display_name"`

	// Email is the participant's account email.
	Email string `json:"email"`
}
