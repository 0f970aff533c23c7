package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"papertrade/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDHeader = "X-User-ID"
	userIDKey    = "userID"
)

var errMissingIdentity = errors.New("missing user identity")

// authMiddleware resolves the caller's user id. With a JWT secret configured
// the id is the token's subject; otherwise the upstream proxy's X-User-ID
// header is trusted.
func authMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			userID string
			err    error
		)
		if cfg.JWTSecret != "" {
			userID, err = subjectFromBearer(c.GetHeader("Authorization"), []byte(cfg.JWTSecret))
		} else {
			userID = strings.TrimSpace(c.GetHeader(userIDHeader))
			if userID == "" {
				err = errMissingIdentity
			}
		}

		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("unauthorized", err.Error()))
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func subjectFromBearer(header string, secret []byte) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingIdentity
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return "", errMissingIdentity
	}
	return claims.Subject, nil
}

// authorize returns the authenticated user, rejecting a differing explicit userId.
func authorize(c *gin.Context, requested string) (string, bool) {
	userID := c.GetString(userIDKey)
	if requested != "" && requested != userID {
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody("forbidden", "userId does not match the authenticated user"))
		return "", false
	}
	return userID, true
}
