package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"

	"github.com/sharath018/tenant-access-backend/middleware"
)

func TestRateLimiter(t *testing.T) {
	c := qt.New(t)
	r := gin.New()
	c.Assert(r.SetTrustedProxies(nil), qt.IsNil)
	r.Use(middleware.RateLimiter(2, nil))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	send := func(host, remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Host = host
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	c.Assert(send("acme.localhost:3000", "198.51.100.4:1000", ""), qt.Equals, http.StatusOK)
	c.Assert(send("acme.localhost:3000", "198.51.100.4:1001", ""), qt.Equals, http.StatusOK)
	c.Assert(send("ACME.localhost:3000", "198.51.100.4:1002", ""), qt.Equals, http.StatusTooManyRequests)

	// a rotated forwarding header does not open a new budget
	c.Assert(send("acme.localhost:3000", "198.51.100.4:1003", "203.0.113.99"), qt.Equals, http.StatusTooManyRequests)

	// other tenants and other clients keep their own budget
	c.Assert(send("beta.localhost:3000", "198.51.100.4:1004", ""), qt.Equals, http.StatusOK)
	c.Assert(send("acme.localhost:3000", "198.51.100.5:1000", ""), qt.Equals, http.StatusOK)
}
