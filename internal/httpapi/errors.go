package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"cmdgen/internal/generator"
	"cmdgen/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps an error onto an HTTP status. Generator kinds decide unless
// the error carries its own status.
func statusFor(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	switch generator.KindOf(err) {
	case generator.KindInvalidRequest:
		return http.StatusBadRequest
	case generator.KindUnavailable, generator.KindModelLoad:
		return http.StatusServiceUnavailable
	case generator.KindTimeout:
		return http.StatusGatewayTimeout
	case generator.KindGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeErrorResponse(w, types.ErrorResponse{Error: msg, Code: status})
}

// writeGeneratorError writes err with its kind and suggestion and returns the status used.
func writeGeneratorError(w http.ResponseWriter, err error) int {
	resp := types.ErrorResponse{Error: err.Error(), Code: statusFor(err)}
	var ge *generator.Error
	if errors.As(err, &ge) {
		resp.Kind = ge.Kind.String()
		resp.Suggestion = ge.Suggestion()
	}
	writeErrorResponse(w, resp)
	return resp.Code
}

func writeErrorResponse(w http.ResponseWriter, resp types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	_ = json.NewEncoder(w).Encode(resp)
}
