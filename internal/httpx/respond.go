package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/orders"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/validation"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

const msgBadBody = "Invalid request body"

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// decodeJSON reads a single JSON object. Unknown fields are ignored, so clients may keep sending
// prices or user ids; they are never read.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errBadBody
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errBadBody
	}
	return nil
}

// statusFor maps an order error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrValidation), errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrConcurrency):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeOrderError answers with the client-safe message of err. Internal causes are logged here
// and never reach the response; internalMsg, when set, replaces the default 500 message.
func writeOrderError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error, internalMsg string) {
	var ve *validation.Error
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	}
	oe := orders.AsError(err)
	code := statusFor(oe)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
		if internalMsg != "" {
			writeError(w, code, internalMsg)
			return
		}
	}
	writeError(w, code, oe.Message)
}
