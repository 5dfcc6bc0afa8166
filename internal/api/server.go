// Package api serves the entity graph over read-only HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/entity"
	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Reader store.Reader
	Logger *zap.Logger
	// Position reports the indexer head for /healthz. Optional.
	Position     func() event.Position
	DefaultLimit int
	MaxLimit     int
}

// Server encapsulates dependencies for the HTTP API.
type Server struct {
	reader       store.Reader
	logger       *zap.Logger
	position     func() event.Position
	defaultLimit int
	maxLimit     int
	started      time.Time

	router http.Handler
}

// New constructs the router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 100
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 1000
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	s := &Server{
		reader:       cfg.Reader,
		logger:       cfg.Logger.Named("api"),
		position:     cfg.Position,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		started:      time.Now(),
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/entities/{kind}", func(er chi.Router) {
		er.Get("/", s.ListEntities)
		er.Get("/{id}", s.GetEntity)
	})
	r.Get("/assets/{id}/balances", s.AssetBalances)
	r.Get("/accounts/{id}/balances", s.AccountBalances)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("read api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

// Health reports liveness and the indexer head.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.position != nil {
		resp["position"] = s.position()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEntity returns one entity by id. Address-keyed entities may also be
// addressed by checksummed address.
func (s *Server) GetEntity(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if !entity.IsKind(kind) {
		writeError(w, http.StatusNotFound, "unknown entity kind %q", kind)
		return
	}
	id := normalizeID(chi.URLParam(r, "id"))
	body, ok, err := s.reader.Get(r.Context(), kind, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "%s %s not found", kind, id)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ListEntities lists a kind, filtered by the query string.
func (s *Server) ListEntities(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if !entity.IsKind(kind) {
		writeError(w, http.StatusNotFound, "unknown entity kind %q", kind)
		return
	}
	q, err := s.parseQuery(r, "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	s.list(w, r, kind, q)
}

// AssetBalances lists the holders of one asset.
func (s *Server) AssetBalances(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r, entity.ChildPrefix(normalizeID(chi.URLParam(r, "id"))))
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	s.list(w, r, entity.KindBalance, q)
}

// AccountBalances lists every balance held by one account.
func (s *Server) AccountBalances(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	addr, ok := entity.AddressFromID(normalizeID(id))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account %q", id)
		return
	}
	q, err := s.parseQuery(r, "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	q.filters = append(q.filters, filter{field: "holder", op: opEq, value: addr.Hex()})
	s.list(w, r, entity.KindBalance, q)
}

type listResponse struct {
	Kind  string            `json:"kind"`
	Count int               `json:"count"`
	Items []json.RawMessage `json:"items"`
	// Next is the id to pass as after= for the following page.
	Next string `json:"next,omitempty"`
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, kind string, q query) {
	resp := listResponse{Kind: kind, Items: []json.RawMessage{}}
	var last string
	err := s.reader.Scan(r.Context(), kind, q.prefix, func(id string, body []byte) error {
		if q.after != "" && id <= q.after {
			return nil
		}
		if !q.match(body) {
			return nil
		}
		if len(resp.Items) == q.limit {
			resp.Next = last
			return store.ErrStopScan
		}
		resp.Items = append(resp.Items, body)
		last = id
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrStopScan) {
		s.storeError(w, err)
		return
	}
	resp.Count = len(resp.Items)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) parseQuery(r *http.Request, prefix string) (query, error) {
	q := query{prefix: prefix, limit: s.defaultLimit}
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		v := values[len(values)-1]
		switch key {
		case "limit":
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return q, fmt.Errorf("invalid limit %q", v)
			}
			if n > s.maxLimit {
				n = s.maxLimit
			}
			q.limit = n
		case "after":
			q.after = normalizeID(v)
		case "prefix":
			if q.prefix == "" {
				q.prefix = strings.ToLower(v)
			}
		default:
			f, err := parseFilter(key, v)
			if err != nil {
				return q, err
			}
			q.filters = append(q.filters, f)
		}
	}
	return q, nil
}

// normalizeID maps a checksummed address to its entity id and lowercases
// hex ids.
func normalizeID(id string) string {
	if common.IsHexAddress(id) {
		return entity.AddressID(common.HexToAddress(id))
	}
	return strings.ToLower(id)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	s.logger.Error("store read failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "store unavailable")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
