package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"sat-telemetry/internal/auth"
	"sat-telemetry/internal/telemetry"
	"sat-telemetry/internal/validation"
)

type TelemetryHandler struct {
	auth         Authenticator
	repo         TelemetryRepository
	logger       *slog.Logger
	maxBodyBytes int64
}

type Authenticator interface {
	Authenticate(provided string) error
}

type TelemetryRepository interface {
	Insert(ctx context.Context, f telemetry.Flat) (uint64, error)
}

type createdResponse struct {
	ID uint64 `json:"id"`
}

type validationResponse struct {
	Errors validation.FieldErrors `json:"errors"`
}

func NewTelemetryHandler(a Authenticator, repo TelemetryRepository, logger *slog.Logger, maxBodyBytes int64) *TelemetryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelemetryHandler{auth: a, repo: repo, logger: logger, maxBodyBytes: maxBodyBytes}
}

// HandleTelemetry authenticates, validates and stores one telemetry report.
// Each step rejects before the next runs; the store is only touched for a
// fully valid report.
func (h *TelemetryHandler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := h.auth.Authenticate(r.Header.Get(auth.HeaderName)); err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	if !isJSON(r.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, msgJSONRequired)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.logger.Debug("read telemetry body", "err", err)
		writeError(w, http.StatusBadRequest, msgJSONRequired)
		return
	}

	raw, err := validation.DecodeObject(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgJSONRequired)
		return
	}

	flat, err := validation.Validate(raw)
	if err != nil {
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, validationResponse{Errors: verr.Fields})
			return
		}
		writeError(w, http.StatusBadRequest, msgJSONRequired)
		return
	}

	id, err := h.repo.Insert(r.Context(), flat)
	if err != nil {
		h.logger.Error("store telemetry", "sat_id", flat.SatID, "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	h.logger.Debug("telemetry stored", "id", id, "sat_id", flat.SatID)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

// isJSON reports whether contentType is application/json or application/*+json.
func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if mt == "application/json" {
		return true
	}
	return strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json")
}
