package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/neuropharmdb-server/internal/domain"
)

// SessionResolver looks up the session behind a bearer token
type SessionResolver interface {
	Session(token string) (domain.Session, error)
}

// Abort stops the chain with a coded error body
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, domain.NewDomainError(code, message, "", c.GetString(CorrelationIDKey)))
}

// RequireSession authenticates requests carrying "Authorization: Bearer <token>".
// Websocket clients may pass the token as the access_token query parameter.
func RequireSession(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			Abort(c, http.StatusUnauthorized, domain.ErrCodeUnauthenticated, "missing bearer token")
			return
		}

		sess, err := sessions.Session(token)
		if err != nil {
			Abort(c, http.StatusUnauthorized, domain.ErrCodeUnauthenticated, "invalid or expired session")
			return
		}

		c.Set(SessionKey, sess)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// RequireRole lets only the listed roles through
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		if !ok {
			Abort(c, http.StatusUnauthorized, domain.ErrCodeUnauthenticated, "no session")
			return
		}
		for _, r := range roles {
			if sess.Role == r {
				c.Next()
				return
			}
		}
		Abort(c, http.StatusForbidden, domain.ErrCodePermissionDenied, "role "+string(sess.Role)+" may not perform this action")
	}
}

// SessionFrom returns the session stored by RequireSession
func SessionFrom(c *gin.Context) (domain.Session, bool) {
	return sessionFromKeys(c.Keys)
}

func sessionFromKeys(keys map[string]any) (domain.Session, bool) {
	v, ok := keys[SessionKey]
	if !ok {
		return domain.Session{}, false
	}
	sess, ok := v.(domain.Session)
	return sess, ok
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
