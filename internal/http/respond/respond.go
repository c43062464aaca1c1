package respond

import (
	"encoding/json"
	"log"
	"net/http"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Envelope is the standard API response wrapper used across handlers.
// Error repeats Message on failures; Token and User are set on session responses.
type Envelope struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Error   string       `json:"error,omitempty"`
	Token   string       `json:"token,omitempty"`
	User    any          `json:"user,omitempty"`
	Data    any          `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Details string       `json:"details,omitempty"`
}

// JSON writes a success or informational response using the common envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Code: status, Message: message, Data: data})
}

// Session writes an auth response with token and user at the top level and
// data as the envelope payload. An empty token is omitted.
func Session(w http.ResponseWriter, status int, message, token string, user, data any) {
	write(w, status, Envelope{Code: status, Message: message, Token: token, User: user, Data: data})
}

// Error writes an error response with the shared envelope structure.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Code: status, Message: message, Error: message})
}

// ErrorDetails writes an error response carrying diagnostic detail.
func ErrorDetails(w http.ResponseWriter, status int, message, details string) {
	write(w, status, Envelope{Code: status, Message: message, Error: message, Details: details})
}

// Validation writes a 400 listing every rejected field.
func Validation(w http.ResponseWriter, errs []FieldError) {
	const msg = "validation failed"
	write(w, http.StatusBadRequest, Envelope{Code: http.StatusBadRequest, Message: msg, Error: msg, Errors: errs})
}

// Bare writes payload as JSON without the envelope, for relays whose clients
// expect the upstream shape.
func Bare(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("respond: encode payload failed: %v", err)
	}
}

// Raw writes an already-encoded JSON body unchanged.
func Raw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Printf("respond: write raw body failed: %v", err)
	}
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("respond: encode payload failed: %v", err)
	}
}
