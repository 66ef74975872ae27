package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

type HealthHandler struct {
	store  Pinger
	logger *slog.Logger
}

// Pinger checks the storage connection without querying data.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is the result of a reachability check.
type Health struct {
	StorageReachable bool
}

type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{store: store, logger: logger}
}

// Check pings the store. It never returns an error; an unreachable or
// missing store reports StorageReachable=false.
func (h *HealthHandler) Check(ctx context.Context) Health {
	if h.store == nil {
		return Health{}
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("storage ping failed", "err", err)
		return Health{}
	}
	return Health{StorageReachable: true}
}

// HandleHealth always answers 200; storage reachability is reported in the body.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	resp := healthResponse{Status: "ok", DB: "unknown"}
	if h.Check(r.Context()).StorageReachable {
		resp.DB = "ok"
	}
	writeJSON(w, http.StatusOK, resp)
}
