package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gramsetu/scheme-portal/pkg/model"
)

var (
	// ErrAuthenticationFailed covers missing/invalid/expired credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrAuthorizationFailed covers valid credentials whose role is not
	// permitted to use messaging.
	ErrAuthorizationFailed = errors.New("authorization failed")
)

func signingKey() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("portal_dev_secret")
}

// Claims carry the identity issued by the auth service. Messaging treats
// them as immutable for the lifetime of a connection.
type Claims struct {
	UserID string     `json:"user_id"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() model.Identity {
	return model.Identity{ID: c.UserID, Name: c.Name, Role: c.Role}
}

type contextKey string

// UserKey is the request-context key under which middleware stores *Claims.
const UserKey contextKey = "user"

// GenerateToken issues a signed credential for the given identity.
func GenerateToken(userID, name string, role model.Role) (string, error) {
	claims := &Claims{
		UserID: userID,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey())
}

// ValidateToken parses and validates a credential.
func ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return signingKey(), nil
	})
	if err != nil {
		return nil, errors.Join(ErrAuthenticationFailed, err)
	}
	if !token.Valid {
		return nil, ErrAuthenticationFailed
	}
	return claims, nil
}

// StripBearer removes an optional "Bearer " prefix from an Authorization
// header value.
func StripBearer(tokenString string) string {
	if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
		return tokenString[7:]
	}
	return tokenString
}
