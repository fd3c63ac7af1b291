package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

// MintAccessToken signs an HS256 token for a customer. Used by dev tooling
// and tests; production tokens come from the identity service.
func MintAccessToken(cfg config.JWTConfig, customerID uuid.UUID, customerName string, now time.Time) (string, error) {
	claims := AccessTokenClaims{
		CustomerID:   customerID,
		CustomerName: customerName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   customerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer, and expiry, returning the claims.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnauthorized, err, "invalid access token")
	}
	if !token.Valid {
		return nil, errors.New(errors.CodeUnauthorized, "invalid access token")
	}
	if claims.CustomerID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "token missing customer identity")
	}

	return claims, nil
}
