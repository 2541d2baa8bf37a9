package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderSessionID carries the shopper session for clients that cannot keep
// the session cookie.
const HeaderSessionID = "X-Checkout-Session"

var (
	corsAllowHeaders = strings.Join([]string{
		"Content-Type", "Accept", "Authorization", "Origin", "Cache-Control",
		RequestIDHeader, HeaderAPIVersion, HeaderSessionID,
	}, ", ")
	corsExposeHeaders = strings.Join([]string{
		RequestIDHeader, HeaderAPIVersion, HeaderSessionID, HeaderRateLimitLimit, HeaderRateLimitRemaining, "Retry-After",
	}, ", ")
)

// CORS lets the merchant storefront call the checkout API. Allowed origins
// are exact, "*", or a wildcard subdomain such as "https://*.shop.example".
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(origin, allowedOrigins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Expose-Headers", corsExposeHeaders)
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, pattern := range allowed {
		if pattern == "*" || pattern == origin {
			return true
		}
		if matchWildcardOrigin(pattern, origin) {
			return true
		}
	}
	return false
}

func matchWildcardOrigin(pattern, origin string) bool {
	scheme, host, ok := strings.Cut(pattern, "://*.")
	if !ok {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != scheme {
		return false
	}
	return strings.HasSuffix(u.Host, "."+host)
}

// SecurityHeaders sets the headers of JSON endpoints. The challenge page is
// served without them since it frames the issuer's ACS.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}
