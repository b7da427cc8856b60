package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/qianshe/snowflake"
	"github.com/qianshe/snowflake/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// generationFailed maps generator errors onto responses. Clock and spin
// failures are transient, so they surface as 503 with a retry hint.
func (s *Server) generationFailed(w http.ResponseWriter, r *http.Request, err error) {
	if clockErr, ok := snowflake.GetClockError(err); ok {
		s.logger.Error("clock moved backwards",
			slog.String("path", r.URL.Path),
			slog.Int64("drift_ms", clockErr.DriftMilliseconds),
			slog.Int64("tolerance_ms", clockErr.ToleranceMilliseconds),
			slog.Int64("datacenter", clockErr.DatacenterID),
			slog.Int64("worker", clockErr.WorkerID))
		retry := clockErr.DriftDuration().Seconds()
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(retry)))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	switch {
	case errors.Is(err, snowflake.ErrSpinTimeout):
		s.logger.Warn("sequence exhausted", slog.String("path", r.URL.Path), slog.Any("err", err))
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, snowflake.ErrContextCanceled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, snowflake.ErrTimestampOverflow):
		s.logger.Error("clock outside id range", slog.Any("err", err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("id generation failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) storeFailed(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "post not found")
	case errors.Is(err, store.ErrInvalidPost):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	case snowflake.IsClockError(err), errors.Is(err, snowflake.ErrSpinTimeout), errors.Is(err, snowflake.ErrContextCanceled):
		s.generationFailed(w, r, err)
	default:
		s.logger.Error("store operation failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
