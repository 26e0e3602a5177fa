package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope is the stable error response shape.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

func writeEnvelope(w http.ResponseWriter, apiErr *Error) {
	env := ErrorEnvelope{Error: apiErr.Code, Message: apiErr.Message}
	if apiErr.Details != nil {
		env.Details = apiErr.Details
		if apiErr.Code == CodeValidation {
			env.Errors = apiErr.Details
		}
	}
	JSON(w, apiErr.Status, env)
}
