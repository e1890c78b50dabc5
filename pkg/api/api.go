// Package api defines the endpoints and headers of the stub host
// application. Suites driving a real host reuse these constants.
package api

// API version
const Version = "0.1.0"

// Endpoints
const (
	EndpointRoot   = "/"
	EndpointLogin  = "/login/"
	EndpointLogout = "/logout/"
	EndpointHealth = "/health"
	EndpointFlags  = "/api/v1/flags"
	EndpointMe     = "/api/v1/me"
)

// HTTP headers
const (
	HeaderContentType = "Content-Type"
	HeaderRequestID   = "X-Request-ID"
)

// Content types
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// SessionCookie is the cookie carrying the session identifier.
const SessionCookie = "session"

// Form fields accepted by the login endpoint.
const (
	FormUsername = "username"
	FormPassword = "password"
)
