package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinLoadSession adapts the net/http SessionLoader to Gin.
func GinLoadSession(loader *SessionLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		})

		loader.LoadSession(next).ServeHTTP(c.Writer, c.Request)

		// If the loader already answered, stop the Gin chain
		if c.Writer.Written() {
			c.Abort()
		}
	}
}
