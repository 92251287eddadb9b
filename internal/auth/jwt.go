package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ViewerClaims represents the claims in a view token
type ViewerClaims struct {
	ViewerID string `json:"viewer_id"`
	View     string `json:"view"` // "history" or "options"
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates the short-lived tokens views use to
// open a relay connection.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer with the given signing secret.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// GenerateViewerToken generates a JWT token for a view connection
func (i *TokenIssuer) GenerateViewerToken(viewerID string, view string) (string, error) {
	claims := &ViewerClaims{
		ViewerID: viewerID,
		View:     view,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (i *TokenIssuer) ValidateToken(tokenString string) (*ViewerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ViewerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*ViewerClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
