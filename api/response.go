package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"order-display/models"
	"order-display/services"
)

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// envelope is the body of every API response. Order is always present, null
// when there is no active order.
type envelope struct {
	Success bool                 `json:"success"`
	Order   *models.Order        `json:"order"`
	Record  *models.Order        `json:"record,omitempty"`
	Status  *models.StatusUpdate `json:"status,omitempty"`
	Error   *apiError            `json:"error,omitempty"`
}

type historyEnvelope struct {
	Success bool            `json:"success"`
	History []*models.Order `json:"history"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOrder(w http.ResponseWriter, o *models.Order) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Order: o})
}

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps an order error to its HTTP status. Internal causes are
// logged, never echoed to the caller.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, envelope{
			Success: false,
			Error:   &apiError{Type: services.KindValidation.String(), Message: err.Error()},
		})
		return
	}
	kind := services.KindOf(err)
	msg := "internal error"
	var oe *services.OrderError
	if errors.As(err, &oe) {
		msg = oe.Message
	}
	if kind == services.KindInternal {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, statusFor(kind), envelope{
		Success: false,
		Error:   &apiError{Type: kind.String(), Message: msg},
	})
}

var errBodyTooLarge = errors.New("request body too large")

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return services.NewValidationError("invalid JSON body")
}
