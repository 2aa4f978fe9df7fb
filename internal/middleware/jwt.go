package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notesrag/internal/pkg/jwt"
	"github.com/xxxsen/notesrag/internal/pkg/response"
)

// ContextUserIDKey holds the student ID taken from the token. Every note
// query downstream is scoped by it.
const ContextUserIDKey = "user_id"

// JWTAuth admits requests bearing a valid student token.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, reason := bearerToken(c.GetHeader("Authorization"))
		if reason != "" {
			response.Unauthorized(c, reason)
			return
		}
		claims, err := jwt.ParseToken(token, secret)
		if err != nil || claims.UserID == "" {
			response.Unauthorized(c, "invalid token")
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// bearerToken returns the token or the reason the header was rejected.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "missing authorization"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "invalid authorization"
	}
	return token, ""
}
