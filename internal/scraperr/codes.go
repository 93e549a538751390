// Package scraperr defines the closed error taxonomy returned by the
// extraction engine. Codes are a stable contract with consumers; a fixed
// subset is marked retryable, and credential-related codes additionally feed
// the cookie pool's health state machine.
package scraperr

// Code identifies one member of the error taxonomy.
type Code string

// Error codes.
const (
	CodeInvalidURL          Code = "INVALID_URL"
	CodeUnsupportedPlatform Code = "UNSUPPORTED_PLATFORM"
	CodeCookieRequired      Code = "COOKIE_REQUIRED"
	CodeCookieExpired       Code = "COOKIE_EXPIRED"
	CodeCookieBanned        Code = "COOKIE_BANNED"
	CodeNotFound            Code = "NOT_FOUND"
	CodePrivateContent      Code = "PRIVATE_CONTENT"
	CodeAgeRestricted       Code = "AGE_RESTRICTED"
	CodeNoMedia             Code = "NO_MEDIA"
	CodeContentRemoved      Code = "CONTENT_REMOVED"
	CodeGeoBlocked          Code = "GEO_BLOCKED"
	CodeTimeout             Code = "TIMEOUT"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeBlocked             Code = "BLOCKED"
	CodeNetworkError        Code = "NETWORK_ERROR"
	CodeAPIError            Code = "API_ERROR"
	CodeParseError          Code = "PARSE_ERROR"
	CodeCheckpointRequired  Code = "CHECKPOINT_REQUIRED"
	CodeUnknown             Code = "UNKNOWN"
)

// defaultMessages maps each code to its human-readable default message.
var defaultMessages = map[Code]string{
	CodeInvalidURL:          "The URL is not a valid HTTP(S) address",
	CodeUnsupportedPlatform: "This platform is not supported",
	CodeCookieRequired:      "This content requires an authenticated cookie",
	CodeCookieExpired:       "The authentication cookie has expired",
	CodeCookieBanned:        "The authentication cookie has been banned",
	CodeNotFound:            "Content not found",
	CodePrivateContent:      "This content is private",
	CodeAgeRestricted:       "This content is age-restricted",
	CodeNoMedia:             "No downloadable media found",
	CodeContentRemoved:      "This content has been removed",
	CodeGeoBlocked:          "This content is not available in this region",
	CodeTimeout:             "The request timed out",
	CodeRateLimited:         "Rate limited by the platform",
	CodeBlocked:             "Request blocked by the platform",
	CodeNetworkError:        "Network error while contacting the platform",
	CodeAPIError:            "The platform API returned an error",
	CodeParseError:          "Failed to parse the platform response",
	CodeCheckpointRequired:  "The account requires identity verification",
	CodeUnknown:             "An unexpected error occurred",
}

// retryable is the fixed subset of codes callers may retry once without
// risk of masking a permanent failure.
var retryable = map[Code]bool{
	CodeTimeout:      true,
	CodeNetworkError: true,
	CodeAPIError:     true,
}

// credentialCodes are codes that also act as side-effecting signals to the
// cookie pool.
var credentialCodes = map[Code]bool{
	CodeCookieExpired:      true,
	CodeCookieBanned:       true,
	CodeCheckpointRequired: true,
}

// DefaultMessage returns the default message for a code, falling back to the
// UNKNOWN message for codes outside the taxonomy.
func DefaultMessage(code Code) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return defaultMessages[CodeUnknown]
}

// Retryable reports whether callers may re-invoke once on this code.
func Retryable(code Code) bool {
	return retryable[code]
}

// IsCredentialCode reports whether the code must be fed back to the cookie
// pool's health state machine.
func IsCredentialCode(code Code) bool {
	return credentialCodes[code]
}
