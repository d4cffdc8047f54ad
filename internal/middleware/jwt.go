package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/callroom/broker/internal/auth"
	"github.com/callroom/broker/pkg/response"
)

// ContextSubject is the gin context key of the authenticated user id.
const ContextSubject = "auth_subject"

// Auth validates the bearer token and stores its subject in the context. A nil verifier
// disables authentication and every request passes through.
func Auth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			response.AbortFail(c, http.StatusUnauthorized, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.AbortFail(c, http.StatusUnauthorized, "invalid authorization header")
			return
		}
		claims, err := verifier.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.Set(ContextSubject, claims.Subject)
		c.Next()
	}
}

// ActsAs reports whether the request may act as userID. Without authentication any user id
// is accepted.
func ActsAs(c *gin.Context, userID string) bool {
	subject, ok := c.Get(ContextSubject)
	if !ok {
		return true
	}
	return subject.(string) == userID
}
