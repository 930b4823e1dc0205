package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal bearer-token claim set this deployment accepts:
// a session id and an optional user id.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// VerifyBearer validates token against secret and returns the Identity
// it encodes. Matches the verifyBearer function shape Service.ResolveIdentity
// expects.
func VerifyBearer(secret string) func(token string) (Identity, error) {
	return func(tokenString string) (Identity, error) {
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return Identity{}, ErrUnauthorized
		}
		if claims.SessionID == "" {
			return Identity{}, ErrUnauthorized
		}
		return Identity{SessionID: claims.SessionID, UserID: claims.UserID}, nil
	}
}
