// Package server exposes the read-only edition API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/YuqingLong18/aidaily/pkg/domain"
	"github.com/YuqingLong18/aidaily/pkg/edition"
	"github.com/YuqingLong18/aidaily/pkg/repository"
)

// default number of recent editions listed and items shown per section
const (
	defaultEditionsLimit = 30
	sectionItemsLimit    = 10
)

// Server represents the HTTP API instance
type Server struct {
	config   ConfigProvider
	store    Store
	timezone string
	version  string
	debug    bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Store is the storage interface the API reads from
type Store interface {
	ListEdition(ctx context.Context, editionDateLocal, tz string, opts repository.ListOptions) ([]*domain.Item, error)
	ListEditionDates(ctx context.Context, tz string, limit int) ([]string, error)
	CountEdition(ctx context.Context, editionDateLocal, tz string) (int, error)
	Ping(ctx context.Context) error
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, store Store, timezone, version string, debug bool) *Server {
	s := &Server{
		config:   cfg,
		store:    store,
		timezone: timezone,
		version:  version,
		debug:    debug,
		router:   routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("aidaily", "YuqingLong18", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /health", s.healthHandler)
		r.HandleFunc("GET /editions", s.editionsHandler)
		r.HandleFunc("GET /editions/{date}", s.editionHandler)
	})
}

// healthHandler reports server and storage health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		RenderError(w, r, fmt.Errorf("storage unavailable: %w", err), http.StatusServiceUnavailable)
		return
	}
	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	})
}

// editionJSON is one entry of the editions listing
type editionJSON struct {
	EditionDateLocal string    `json:"edition_date_local"`
	UTCDate          string    `json:"utc_date"`
	UTCStart         time.Time `json:"utc_start"`
	UTCEnd           time.Time `json:"utc_end"`
	Items            int       `json:"items"`
}

// editionsHandler lists recent editions with their UTC windows and item
// counts
func (s *Server) editionsHandler(w http.ResponseWriter, r *http.Request) {
	tz := s.requestTimezone(r)
	dates, err := s.store.ListEditionDates(r.Context(), tz, defaultEditionsLimit)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	editions := make([]editionJSON, 0, len(dates))
	for _, date := range dates {
		win, werr := edition.WindowFor(date, tz)
		if werr != nil {
			RenderError(w, r, werr, http.StatusBadRequest)
			return
		}
		count, cerr := s.store.CountEdition(r.Context(), date, tz)
		if cerr != nil {
			RenderError(w, r, cerr, http.StatusInternalServerError)
			return
		}
		editions = append(editions, editionJSON{
			EditionDateLocal: date,
			UTCDate:          win.UTCDate,
			UTCStart:         win.UTCStart,
			UTCEnd:           win.UTCEnd,
			Items:            count,
		})
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"timezone": tz,
		"editions": editions,
	})
}

// sectionJSON is one section of the edition response
type sectionJSON struct {
	Section string         `json:"section"`
	Items   []*domain.Item `json:"items"`
}

// editionHandler returns one edition grouped by section, each section
// truncated to its display size
func (s *Server) editionHandler(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.Parse(edition.DateFormat, date); err != nil {
		RenderError(w, r, fmt.Errorf("invalid edition date %q, expected YYYY-MM-DD", date), http.StatusBadRequest)
		return
	}
	tz := s.requestTimezone(r)

	items, err := s.store.ListEdition(r.Context(), date, tz, repository.ListOptions{})
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	grouped := make(map[domain.Section][]*domain.Item)
	for _, item := range items {
		grouped[item.Section] = append(grouped[item.Section], item)
	}

	sections := make([]sectionJSON, 0, len(domain.Sections()))
	for _, section := range domain.Sections() {
		sectionItems := grouped[section]
		if len(sectionItems) > sectionItemsLimit {
			sectionItems = sectionItems[:sectionItemsLimit]
		}
		if sectionItems == nil {
			sectionItems = []*domain.Item{}
		}
		sections = append(sections, sectionJSON{Section: string(section), Items: sectionItems})
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"edition_date_local": date,
		"timezone":           tz,
		"total_items":        len(items),
		"sections":           sections,
	})
}

// requestTimezone picks the tz query override or the configured default
func (s *Server) requestTimezone(r *http.Request) string {
	if tz := r.URL.Query().Get("tz"); tz != "" {
		return tz
	}
	return s.timezone
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
