package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/florianilch/tunestats/internal/handshake"
	"github.com/florianilch/tunestats/internal/stats"
)

type relayRequest struct {
	Location string `json:"location"`
}

type loginRequest struct {
	ClientID string `json:"client_id"`
}

type clientIDRequest struct {
	ClientID string `json:"client_id"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// handleRelay runs the page-load decision for the location the page was loaded at.
func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req relayRequest
	if err := readJSON(r, &req, false); err != nil {
		writeJSONError(ctx, w, err.Error(), http.StatusBadRequest)
		return
	}
	loc, err := url.Parse(req.Location)
	if err != nil || req.Location == "" {
		writeJSONError(ctx, w, "invalid location", http.StatusBadRequest)
		return
	}

	result, err := s.relayer.Handle(ctx, loc)
	if err != nil {
		slog.ErrorContext(ctx, "failed to handle redirect", "error", err)
		writeJSONError(ctx, w, "failed to store credential", http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, result, http.StatusOK)
}

func (s *Server) handlePopupClosed(w http.ResponseWriter, r *http.Request) {
	if s.popups != nil {
		s.popups.ReportClosed()
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogin blocks until the login attempt resolves.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := readJSON(r, &req, true); err != nil {
		writeJSONError(ctx, w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.session.Login(ctx, strings.TrimSpace(req.ClientID)); err != nil {
		if ctx.Err() != nil {
			// client went away
			return
		}
		writeJSON(ctx, w, ErrorResponse{Error: err.Error(), Kind: handshake.Kind(err)}, loginStatus(err))
		return
	}

	s.writeStatus(ctx, w)
}

// loginStatus maps a login failure onto an HTTP status.
func loginStatus(err error) int {
	switch handshake.Kind(err) {
	case "missing_client_id":
		return http.StatusBadRequest
	case "popup_blocked":
		return http.StatusBadGateway
	case "cancelled", "in_progress":
		return http.StatusConflict
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.session.Logout(ctx); err != nil {
		slog.ErrorContext(ctx, "logout failed", "error", err)
		writeJSONError(ctx, w, "failed to clear credential", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(r.Context(), w)
}

func (s *Server) writeStatus(ctx context.Context, w http.ResponseWriter) {
	st, err := s.session.Status(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read session", "error", err)
		writeJSONError(ctx, w, "failed to read session", http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, st, http.StatusOK)
}

func (s *Server) handleClientID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req clientIDRequest
	if err := readJSON(r, &req, false); err != nil {
		writeJSONError(ctx, w, err.Error(), http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(req.ClientID)
	if id == "" {
		writeJSON(ctx, w, ErrorResponse{Error: handshake.ErrMissingClientID.Error(), Kind: "missing_client_id"}, http.StatusBadRequest)
		return
	}

	if err := s.session.SetClientID(ctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to store client id", "error", err)
		writeJSONError(ctx, w, "failed to store client id", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	timeRange, err := stats.ParseTimeRange(query.Get("time_range"))
	if err != nil {
		writeJSONError(ctx, w, err.Error(), http.StatusBadRequest)
		return
	}

	demo := false
	if raw := query.Get("demo"); raw != "" {
		if demo, err = strconv.ParseBool(raw); err != nil {
			writeJSONError(ctx, w, "invalid demo flag", http.StatusBadRequest)
			return
		}
	}

	if demo {
		writeJSON(ctx, w, s.dashboards.Demo(timeRange), http.StatusOK)
		return
	}

	d, err := s.dashboards.Dashboard(ctx, timeRange)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.ErrorContext(ctx, "failed to load dashboard", "error", err)
		writeJSONError(ctx, w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, d, http.StatusOK)
}

// handleEvents streams a "logout" event whenever the credential is cleared.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sse, err := NewSSEWriter(w)
	if err != nil {
		writeJSONError(ctx, w, err.Error(), http.StatusInternalServerError)
		return
	}

	logouts := make(chan struct{}, 1)
	cancel := s.session.Subscribe(func() {
		select {
		case logouts <- struct{}{}:
		default:
		}
	})
	defer cancel()

	heartbeat := s.clock.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	if err := sse.WriteComment("connected"); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-logouts:
			if err := sse.WriteEvent("logout", struct{}{}); err != nil {
				slog.DebugContext(ctx, "event stream closed", "error", err)
				return
			}
		case <-heartbeat.Chan():
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		}
	}
}
