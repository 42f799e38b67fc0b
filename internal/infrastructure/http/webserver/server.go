// Package webserver provides the web frontend HTTP server implementation
package webserver

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/enchantedleftovers/web/internal/infrastructure/config"
	"github.com/enchantedleftovers/web/internal/infrastructure/leftoverapi"
	"github.com/enchantedleftovers/web/internal/infrastructure/monitoring"
	"github.com/enchantedleftovers/web/internal/infrastructure/security"
	"github.com/enchantedleftovers/web/internal/infrastructure/spoonacular"
	"github.com/enchantedleftovers/web/pkg/healthcheck"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

type contextKey string

const sessionContextKey contextKey = "session"

// WebServer represents the web frontend HTTP server
type WebServer struct {
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
	router      *chi.Mux
	api         *leftoverapi.Client
	spoonacular *spoonacular.Client
	sessions    SessionStore
	sanitizer   *security.Sanitizer
	templates   *template.Template
	healthCheck *healthcheck.HealthCheck
	metrics     *monitoring.MetricsCollector

	limiters   map[string]*ipLimiter
	limitersMu sync.Mutex
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewWebServer creates a new web frontend server instance
func NewWebServer(
	cfg *config.Config,
	log *zap.Logger,
	api *leftoverapi.Client,
	spoon *spoonacular.Client,
	sessions SessionStore,
	sanitizer *security.Sanitizer,
	healthCheck *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
) (*WebServer, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	server := &WebServer{
		config:      cfg,
		logger:      log,
		api:         api,
		spoonacular: spoon,
		sessions:    sessions,
		sanitizer:   sanitizer,
		templates:   templates,
		healthCheck: healthCheck,
		metrics:     metrics,
		limiters:    make(map[string]*ipLimiter),
	}

	server.router = server.setupRoutes()
	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.RateLimit.Enable {
		go server.cleanupLimiters()
	}

	return server, nil
}

// setupRoutes configures the web frontend routes
func (s *WebServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if s.config.Monitoring.EnableMetrics {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.securityHeadersMiddleware)
	if s.config.RateLimit.Enable {
		r.Use(s.rateLimitMiddleware)
	}
	r.Use(s.sessionMiddleware)

	// Static assets
	staticRoot, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticRoot))))

	// Health check endpoints
	r.Get("/health", s.healthCheck.Handler())
	r.Get("/ready", s.handleReadinessCheck)
	r.Get("/live", s.healthCheck.LivenessHandler())

	if s.config.Monitoring.EnableMetrics {
		r.Handle("/metrics", s.metrics.Handler())
	}

	// Auth pages
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)
	r.Post("/logout", s.handleLogout)

	// Recipe detail stays reachable without a token: detail pages only need
	// the public recipe API, not the backend
	r.Get("/recipe/{id}", s.handleRecipeDetail)

	// Authenticated pages
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/", s.handleHome)
		r.Post("/search", s.handleSearch)
		r.Post("/recipes/save", s.handleSave)
		r.Post("/recipes/delete/{id}", s.handleDelete)
	})

	return r
}

// Router exposes the configured router, used by tests
func (s *WebServer) Router() http.Handler {
	return s.router
}

// Start starts the web frontend HTTP server
func (s *WebServer) Start() error {
	s.logger.Info("Starting web frontend server",
		zap.String("address", s.server.Addr),
		zap.String("backend", s.config.Backend.BaseURL),
	)

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the web server
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web frontend server...")
	return s.server.Shutdown(ctx)
}

// handleReadinessCheck reports ready only when checks pass and the backend
// API is reachable
func (s *WebServer) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !s.api.VerifyConnection(r.Context()) {
		http.Error(w, `{"status":"not_ready","reason":"backend API not accessible"}`, http.StatusServiceUnavailable)
		return
	}
	s.healthCheck.ReadinessHandler()(w, r)
}

// parseTemplates parses all HTML templates from the embedded filesystem
func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"truncate": func(s string, n int) string {
			if len(s) <= n {
				return s
			}
			return s[:n] + "..."
		},
		"hasImage": func(s string) bool {
			return strings.TrimSpace(s) != ""
		},
	}

	tmpl := template.New("").Funcs(funcMap)

	err := fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := templatesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		name := strings.TrimPrefix(path, "templates/")
		name = strings.TrimSuffix(name, ".html")

		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk templates: %w", err)
	}

	return tmpl, nil
}

// renderTemplate executes a named page template
func (s *WebServer) renderTemplate(w http.ResponseWriter, name string, data map[string]interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if data == nil {
		data = make(map[string]interface{})
	}
	if data["Title"] == nil {
		data["Title"] = s.config.App.Name
	}
	if data["AppName"] == nil {
		data["AppName"] = s.config.App.Name
	}

	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to execute template",
			zap.String("template", name),
			zap.Error(err),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Middleware

// requestLogger logs each request with its status and duration
func (s *WebServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// sessionMiddleware loads the browser session from the cookie, creating a
// fresh one when none exists, and stores it on the request context
func (s *WebServer) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var session *Session

		if cookie, err := r.Cookie(s.config.Session.CookieName); err == nil {
			session, _ = s.sessions.Get(r.Context(), cookie.Value)
		}

		if session == nil {
			created, err := s.sessions.New(r.Context())
			if err != nil {
				s.logger.Error("Failed to create session", zap.Error(err))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			session = created
			writeSessionCookie(w, s.config, session)
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFromContext returns the request's session, set by sessionMiddleware
func sessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionContextKey).(*Session)
	return session
}

// securityHeadersMiddleware adds security headers to all responses
func (s *WebServer) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		csp := "default-src 'self'; " +
			"img-src 'self' data: https:; " +
			"style-src 'self' 'unsafe-inline'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'none'"
		w.Header().Set("Content-Security-Policy", csp)

		if s.config.IsProduction() {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware applies a per-IP token bucket
func (s *WebServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if !s.limiterFor(ip).Allow() {
			s.logger.Warn("Rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *WebServer) limiterFor(ip string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	entry, exists := s.limiters[ip]
	if !exists {
		perSecond := rate.Limit(float64(s.config.RateLimit.RequestsPerMin) / 60.0)
		entry = &ipLimiter{limiter: rate.NewLimiter(perSecond, s.config.RateLimit.BurstSize)}
		s.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

// cleanupLimiters drops limiters for IPs not seen recently
func (s *WebServer) cleanupLimiters() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.limitersMu.Lock()
		for ip, entry := range s.limiters {
			if time.Since(entry.lastSeen) > 15*time.Minute {
				delete(s.limiters, ip)
			}
		}
		s.limitersMu.Unlock()
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
