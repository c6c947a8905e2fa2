package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"realtopia/internal/config"
	"realtopia/internal/game"
	"realtopia/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg      config.EngineConfig
	log      *slog.Logger
	game     *game.Service
	limiter  *RateLimiter
	upgrader websocket.Upgrader
	mux      *chi.Mux
}

func New(cfg config.EngineConfig, logger *slog.Logger, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		game:    gameSvc,
		limiter: NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		mux: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/state", s.handleState)
			r.Get("/market", s.handleMarket)
			r.Get("/properties", s.handlePropertiesList)
			r.Get("/properties/{id}", s.handlePropertyDetail)
			r.Get("/events", s.handleEventsList)
			r.Get("/achievements", s.handleAchievementsList)

			r.Group(func(r chi.Router) {
				r.Use(RateLimitMiddleware(s.limiter))
				r.Post("/properties/{id}/buy", s.handleBuy)
				r.Post("/properties/{id}/sell", s.handleSell)
				r.Post("/events", s.handleStartEvent)
				r.Post("/game/pause", s.handlePause)
				r.Post("/game/reset", s.handleReset)
			})
		})
	})
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st := s.game.State()
	next, hasNext := st.NextUnlockableType()
	out := map[string]any{
		"state":            st,
		"net_worth_micros": st.NetWorthMicros(),
	}
	if hasNext {
		spec, _ := next.Spec()
		out["next_unlock"] = map[string]any{
			"type":             next,
			"net_worth_micros": spec.UnlockNetWorthMicros,
			"remaining_micros": max(spec.UnlockNetWorthMicros-st.NetWorthMicros(), 0),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.game.Market())
}

func (s *Server) handlePropertiesList(w http.ResponseWriter, r *http.Request) {
	filter := game.PropertyFilter(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("filter"))))
	switch filter {
	case "":
		filter = game.FilterAll
	case game.FilterAll, game.FilterOwned, game.FilterAvailable:
	default:
		writeError(w, http.StatusBadRequest, "filter must be all, owned or available")
		return
	}
	props := s.game.Properties(filter)
	if raw := r.URL.Query().Get("type"); raw != "" {
		typ, err := game.ParsePropertyType(raw)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		matched := make([]game.Property, 0, len(props))
		for _, p := range props {
			if p.Type == typ {
				matched = append(matched, p)
			}
		}
		props = matched
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": props})
}

func (s *Server) handlePropertyDetail(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Property(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.game.BuyProperty(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.game.SellProperty(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEventsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.game.ActiveEvents()})
}

func (s *Server) handleStartEvent(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := s.game.StartEvent(r.Context(), strings.TrimSpace(in.Code))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleAchievementsList(w http.ResponseWriter, r *http.Request) {
	unlockedOnly := r.URL.Query().Get("unlocked") == "1"
	writeJSON(w, http.StatusOK, map[string]any{"achievements": s.game.Achievements(unlockedOnly)})
}

// handlePause sets the paused flag from the body, or toggles it when the
// body is empty.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Paused *bool `json:"paused"`
	}
	if err := decodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var st game.GameState
	if in.Paused == nil {
		st = s.game.TogglePause(r.Context())
	} else {
		st = s.game.SetPaused(r.Context(), *in.Paused)
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.game.Reset(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.game.State())
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrPropertyNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrAlreadyOwned), errors.Is(err, game.ErrNotOwned), errors.Is(err, game.ErrEventActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInsufficientBalance), errors.Is(err, game.ErrUnknownEvent),
		errors.Is(err, game.ErrUnknownPropertyType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
