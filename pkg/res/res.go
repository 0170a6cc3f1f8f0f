package res

import (
	"encoding/json"
	"net/http"

	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// ErrorResponse is the JSON shape for error replies.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// JsonResponse sends a JSON reply with the given status.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// JsonErrorResponse sends an error reply and logs it.
func JsonErrorResponse(w http.ResponseWriter, errResponse ErrorResponse, status int, log *logger.Logger) {
	JsonResponse(w, errResponse, status)
	log.Warnw("Request failed", "status", status, "error", errResponse.Error)
}
