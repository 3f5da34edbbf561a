package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-context-relay/internal/utils"
)

// userIDKey is the Gin context key holding the parsed path user id.
const userIDKey = "userID"

// UserID parses the ":id" route parameter of user-scoped routes and stores it
// in the Gin context. Requests on other routes, or with a malformed id, pass
// through untouched; handlers validate the id themselves.
func UserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.Param("id"); raw != "" {
			if id, ok := utils.ParseUserID(raw); ok {
				c.Set(userIDKey, id)
			}
		}
		c.Next()
	}
}

// UserIDFrom returns the user id stored by UserID.
func UserIDFrom(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
