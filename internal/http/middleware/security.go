// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, a small hardening middleware for the
// JSON API. Responses carry conversation text, so they are marked
// non-cacheable.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets baseline API hardening headers on every response:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//	Cache-Control: no-store
//
// and exposes X-Request-ID to browser clients.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")

		const expose = "Access-Control-Expose-Headers"
		if h.Get(requestIDHeader) != "" {
			switch cur := h.Get(expose); {
			case cur == "":
				h.Set(expose, requestIDHeader)
			case !strings.Contains(cur, requestIDHeader):
				h.Set(expose, cur+", "+requestIDHeader)
			}
		}

		c.Next()
	}
}
