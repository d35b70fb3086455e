package util

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ParseJWT validates the token and extracts the organization ID.
// Tokens are issued by the CRM's auth service; this side only verifies.
func ParseJWT(tokenStr, secret string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenMalformed
	}

	orgID, ok := claims["org_id"].(string)
	if !ok || orgID == "" {
		return "", jwt.ErrTokenMalformed
	}

	return orgID, nil
}

func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
