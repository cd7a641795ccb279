package common

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response body shape shared by the payment endpoints. The
// status_code field carries the business-level outcome; the transport status
// is chosen separately by the handler (the callback endpoint always answers
// HTTP 200 because the provider's retry policy keys off the real HTTP status).
type Envelope struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	PaymentURL string `json:"payment_url,omitempty"`
}

// SuccessEnvelope builds a success body with the given business code and message.
func SuccessEnvelope(code int, message string) Envelope {
	return Envelope{StatusCode: code, Status: "success", Message: message}
}

// ErrorEnvelope builds an error body with the given business code and message.
func ErrorEnvelope(code int, message string) Envelope {
	return Envelope{StatusCode: code, Status: "error", Message: message}
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
