package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload is what tooling supplies when minting a token.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Role     string
	JTI      string
	Audience string
}

// AccessTokenClaims are the claims a bookkeeping client presents. UserID
// becomes the actor stamped on history entries and transactions.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}
