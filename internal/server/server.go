package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyderes/newsarticle-sync/internal/config"
	"github.com/cyderes/newsarticle-sync/internal/ingestion"
	"github.com/cyderes/newsarticle-sync/internal/metrics"
	"github.com/cyderes/newsarticle-sync/internal/storage"
)

// Importer runs imports and purges on demand
type Importer interface {
	Run(ctx context.Context) (*ingestion.ImportSummary, error)
	Purge(ctx context.Context) (int64, error)
}

// Server handles HTTP requests
type Server struct {
	config   config.ServerConfig
	storage  storage.Storage
	importer Importer
	server   *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, store storage.Storage, importer Importer) *Server {
	s := &Server{
		config:   cfg,
		storage:  store,
		importer: importer,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/articles", s.handleArticles)
	mux.HandleFunc("/articles/", s.handleArticleByID)
	mux.HandleFunc("/articles/purge", s.handlePurge)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/import", s.handleImport)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth reports whether storage is reachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := s.storage.Ping(r.Context()); err != nil {
		log.Printf("[WARN] health check failed, %v", err)
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleArticles handles GET requests for articles
func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := queryInt(r, "limit", 10, 1)
	offset := queryInt(r, "offset", 0, 0)

	articles, err := s.storage.GetArticles(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve articles: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"articles": articles,
		"count":    len(articles),
		"limit":    limit,
		"offset":   offset,
	})
}

// handleArticleByID handles GET requests for a specific article
func (s *Server) handleArticleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/articles/"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid article ID", http.StatusBadRequest)
		return
	}

	article, err := s.storage.GetArticleByID(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve article: %v", err), http.StatusInternalServerError)
		return
	}

	if article == nil {
		http.Error(w, "Article not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(article)
}

// handleStatus handles GET requests for the import status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := s.storage.GetImportStatus(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve status: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleImport runs an import and renders the result as an HTML fragment.
// Run failures are part of the fragment, the response status stays 200.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := s.importer.Run(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		fmt.Fprintf(w, "No action.<br><b>Error:</b><br><code>%s</code>", html.EscapeString(err.Error()))
		return
	}
	fmt.Fprintf(w, "Total Newsarticle: %d<br>Inserted: %d<br>Updated: %d", summary.Total, summary.Inserted, summary.Updated)
}

// handlePurge deletes all articles
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deleted, err := s.importer.Purge(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to purge articles: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"deleted": deleted})
}

// queryInt reads an integer query parameter, values below min fall back to def
func queryInt(r *http.Request, key string, def, min int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < min {
		return def
	}
	return v
}
