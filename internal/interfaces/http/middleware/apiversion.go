package middleware

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/checkout/internal/shared/utils"
)

const (
	// HeaderAPIVersion carries the negotiated version of the checkout API.
	HeaderAPIVersion = "X-API-Version"

	ContextKeyAPIVersion = "api_version"

	CurrentAPIVersion = 1
	MinAPIVersion     = 1
)

// acceptVersionRegex matches "application/vnd.checkout.v1+json".
var acceptVersionRegex = regexp.MustCompile(`application/vnd\.checkout\.v(\d+)\+json`)

// APIVersion resolves the requested API version from X-API-Version, then the
// Accept header, defaulting to the current version. An explicit X-API-Version
// outside the supported range is rejected with 406. The resolved version is
// echoed in the response.
func APIVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		version, ok := resolveAPIVersion(c)
		if !ok {
			utils.ErrorResponse(c, http.StatusNotAcceptable, "unsupported API version")
			c.Abort()
			return
		}
		c.Set(ContextKeyAPIVersion, version)
		c.Header(HeaderAPIVersion, strconv.Itoa(version))
		c.Next()
	}
}

// GetAPIVersion returns the version resolved by APIVersion, or the current one.
func GetAPIVersion(c *gin.Context) int {
	if v, exists := c.Get(ContextKeyAPIVersion); exists {
		if ver, ok := v.(int); ok {
			return ver
		}
	}
	return CurrentAPIVersion
}

func supported(v int) bool {
	return v >= MinAPIVersion && v <= CurrentAPIVersion
}

func resolveAPIVersion(c *gin.Context) (int, bool) {
	if h := c.GetHeader(HeaderAPIVersion); h != "" {
		v, err := strconv.Atoi(h)
		if err != nil || !supported(v) {
			return 0, false
		}
		return v, true
	}

	if matches := acceptVersionRegex.FindStringSubmatch(c.GetHeader("Accept")); len(matches) == 2 {
		if v, err := strconv.Atoi(matches[1]); err == nil && supported(v) {
			return v, true
		}
	}

	return CurrentAPIVersion, true
}
