package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims is the payload minted by the identity service. This
// module only parses it; issuance lives outside the ordering core.
type AccessTokenClaims struct {
	CustomerID   uuid.UUID `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	jwt.RegisteredClaims
}
