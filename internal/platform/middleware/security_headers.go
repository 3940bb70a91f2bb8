package middleware

import (
	"github.com/labstack/echo/v4"
)

// APIContentSecurityPolicy applies to JSON and PDF responses.
const APIContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// DocumentContentSecurityPolicy applies to the HTML prescription preview. It
// allows the page's inline stylesheet, images from this origin or inlined as
// data URIs, and nothing else. Scripts stay blocked.
const DocumentContentSecurityPolicy = "default-src 'none'; style-src 'unsafe-inline'; img-src 'self' data:; frame-ancestors 'self'"

// SecurityHeaders sets security response headers on every request. hsts
// should be enabled only when the service is reached over TLS.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Content-Security-Policy", APIContentSecurityPolicy)
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// Prescriptions are PHI.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}

// AllowDocument relaxes the response policy for a handler that serves the
// HTML preview. Call it before writing the body.
func AllowDocument(c echo.Context) {
	h := c.Response().Header()
	h.Set("Content-Security-Policy", DocumentContentSecurityPolicy)
	h.Set("X-Frame-Options", "SAMEORIGIN")
}
