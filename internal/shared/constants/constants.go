package constants

const (
	// Environment constants
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// Checkout environments
	CheckoutEnvSandbox    = "sandbox"
	CheckoutEnvProduction = "production"

	// HTTP Headers
	HeaderContentType    = "Content-Type"
	HeaderAuthorization  = "Authorization"
	HeaderXRequestID     = "X-Request-ID"
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderUserAgent      = "User-Agent"

	// Content Types
	ContentTypeJSON = "application/json"

	// AuthSchemeToken prefixes public API keys and telemetry tokens.
	AuthSchemeToken = "Token"
	// AuthSchemeBearer prefixes secure tokens used by card operations.
	AuthSchemeBearer = "Bearer"

	// Context keys
	ContextKeyRequestID = "request_id"
)
