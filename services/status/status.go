// Package status serves the port table over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartport-go/errcode"
	"smartport-go/services/vdml/locker"
	"smartport-go/types"
	"smartport-go/x/logx"
)

// Ports is the read side of the controller.
type Ports interface {
	Snapshot() []types.PortState
	Port(port int) (types.PortState, error)
	Holder(ctx context.Context, port int) (locker.Owner, bool, error)
}

// portView is one port plus, when redis claims are on, its lock holder.
type portView struct {
	types.PortState
	Holder *locker.Owner `json:"holder,omitempty"`
}

type handler struct {
	ports  Ports
	logger *slog.Logger
}

// NewHandler builds the router. A nil gatherer leaves /metrics out.
func NewHandler(ports Ports, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logx.NewNop()
	}
	h := &handler{ports: ports, logger: logx.Component(logger, "status")}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	r.Get("/ports", h.listPorts)
	r.Get("/ports/{port}", h.getPort)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (h *handler) listPorts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ports.Snapshot())
}

func (h *handler) getPort(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil {
		http.Error(w, "port must be a number", http.StatusBadRequest)
		return
	}
	st, err := h.ports.Port(n)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errcode.InvalidPort) {
			status = http.StatusNotFound
		}
		h.writeJSON(w, status, map[string]string{"error": string(errcode.Of(err)), "detail": err.Error()})
		return
	}
	view := portView{PortState: st}
	owner, ok, err := h.ports.Holder(r.Context(), n)
	switch {
	case err != nil:
		h.logger.Warn("lock holder lookup failed", "port", n, "err", err)
	case ok:
		view.Holder = &owner
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "err", err)
	}
}

// Serve runs the handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = logx.NewNop()
	}
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("status server listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
