package obs

import (
	"github.com/rs/zerolog"
)

// Audit category names. Each category maps to an independently toggleable sink
// so operators can enable full request/response logging for support cases
// without drowning the main log.
const (
	CategoryAPIRequest = "api_request"
	CategoryCallback   = "callback"
	CategoryDebug      = "debug"
	CategoryError      = "flip_error"
)

// Audit routes audit events to per-category sinks. Writes never fail the
// primary request flow; a disabled category drops the event.
type Audit struct {
	Logger zerolog.Logger

	APIRequests bool
	Callbacks   bool
	Debug       bool
	Errors      bool
}

// APIRequest records a full outbound API request/response pair.
func (a Audit) APIRequest(method, url string, requestBody, responseBody []byte, httpStatus int) {
	if !a.APIRequests {
		return
	}
	a.Logger.Info().
		Str("category", CategoryAPIRequest).
		Str("method", method).
		Str("url", url).
		Str("request_body", string(requestBody)).
		Str("response_body", string(responseBody)).
		Int("http_status", httpStatus).
		Msg("flip_api_request")
}

// CallbackReceived records the raw inbound webhook before any validation. The
// token is logged as a digest only; the raw value is a shared secret.
func (a Audit) CallbackReceived(path, clientIP, tokenDigest, data string) {
	if !a.Callbacks {
		return
	}
	a.Logger.Info().
		Str("category", CategoryCallback).
		Str("path", path).
		Str("client_ip", clientIP).
		Str("token_sha256", tokenDigest).
		Str("data", data).
		Msg("flip_callback_received")
}

// CallbackResponded records the body returned to the provider, and the error
// when the callback was rejected.
func (a Audit) CallbackResponded(statusCode int, status, message string, err error) {
	if !a.Callbacks {
		return
	}
	evt := a.Logger.Info().
		Str("category", CategoryCallback).
		Int("status_code", statusCode).
		Str("status", status).
		Str("message", message)
	if err != nil {
		evt = evt.Str("error", err.Error())
	}
	evt.Msg("flip_callback_responded")
}

// Debugf records a debug event when the debug category is enabled.
func (a Audit) Debugf(msg string, fields map[string]any) {
	if !a.Debug {
		return
	}
	a.Logger.Debug().Str("category", CategoryDebug).Fields(fields).Msg(msg)
}

// Error records a handled error with its originating context.
func (a Audit) Error(where string, err error) {
	if !a.Errors || err == nil {
		return
	}
	a.Logger.Error().Str("category", CategoryError).Str("where", where).Err(err).Msg("flip_error")
}
