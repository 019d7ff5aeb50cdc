package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/roach88/pensionledger/internal/ir"
)

// codeInternal is reported for errors outside the ir taxonomy.
const codeInternal = "Internal"

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a ledger error code to an HTTP status.
func statusFor(code ir.Code) int {
	switch code {
	case ir.CodeNotFound:
		return http.StatusNotFound
	case ir.CodeAlreadyExists, ir.CodeInvalidState:
		return http.StatusConflict
	case ir.CodeInvalidAmount, ir.CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the JSON error envelope. Errors outside the taxonomy
// are reported without their text.
func writeError(w http.ResponseWriter, err error) {
	code := ir.CodeOf(err)
	body := errorBody{Error: string(code), Message: err.Error()}
	if code == "" {
		body = errorBody{Error: codeInternal, Message: "internal error"}
	}
	writeJSON(w, statusFor(code), body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: string(ir.CodeInvalidArgument), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
