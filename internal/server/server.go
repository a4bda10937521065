// Package server provides the HTTP REST API for stories, dialogs and profiles.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/story-manager/internal/db"
	"github.com/jonathan/story-manager/internal/media"
	"github.com/jonathan/story-manager/internal/story"
	"github.com/jonathan/story-manager/internal/types"
)

// StoryService is the story graph as seen by the handlers
type StoryService interface {
	ListStories(ctx context.Context) ([]story.Story, error)
	GetStory(ctx context.Context, storyID int64) (*story.Story, error)
	ListFormats(ctx context.Context) ([]story.Format, error)
	CreateStory(ctx context.Context, req *types.CreateStoryRequest) (*story.Story, error)
	UpdateStory(ctx context.Context, storyID int64, req *types.UpdateStoryRequest) (*story.Story, error)
	AddLanguageContent(ctx context.Context, storyID int64, req *types.AddLanguageRequest) (*story.Story, error)
	DeleteLanguage(ctx context.Context, storyID int64, languageCode string) ([]story.Content, error)
	DeleteLanguageFormat(ctx context.Context, storyID int64, languageCode string, formatID int64) (*story.Story, *story.Content, error)
	DeleteStory(ctx context.Context, storyID int64) ([]story.Content, error)
}

// DialogStore persists openers and their continue options
type DialogStore interface {
	ListOpeners(ctx context.Context) ([]db.Opener, error)
	GetOpener(ctx context.Context, id int64) (*db.Opener, error)
	CreateOpener(ctx context.Context, req *types.CreateOpenerRequest) (*db.Opener, error)
	UpdateOpener(ctx context.Context, id int64, req *types.UpdateOpenerRequest) (*db.Opener, error)
	DeleteOpener(ctx context.Context, id int64) error
	AddOption(ctx context.Context, openerID int64, req *types.CreateOptionRequest) (*db.ContinueOption, error)
	UpdateOption(ctx context.Context, openerID, optionID int64, req *types.UpdateOptionRequest) (*db.ContinueOption, error)
	DeleteOption(ctx context.Context, openerID, optionID int64) error
}

// ProfileStore persists profiles, their hobbies, notes and progress
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]db.Profile, error)
	GetProfile(ctx context.Context, id int64) (*db.Profile, error)
	CreateProfile(ctx context.Context, req *types.CreateProfileRequest) (*db.Profile, error)
	UpdateProfile(ctx context.Context, id int64, req *types.UpdateProfileRequest) (*db.Profile, error)
	SetAvatar(ctx context.Context, id int64, path string) (*db.Profile, *string, error)
	DeleteProfile(ctx context.Context, id int64) error
	AddHobby(ctx context.Context, profileID int64, req *types.HobbyRequest) (*db.Hobby, error)
	DeleteHobby(ctx context.Context, profileID, hobbyID int64) error
	AddNote(ctx context.Context, profileID int64, req *types.NoteRequest) (*db.Note, error)
	UpdateNote(ctx context.Context, profileID, noteID int64, req *types.NoteRequest) (*db.Note, error)
	DeleteNote(ctx context.Context, profileID, noteID int64) error
	ListProgress(ctx context.Context, profileID int64) ([]db.Progress, error)
	UpsertProgress(ctx context.Context, profileID int64, req *types.ProgressRequest) (*db.Progress, error)
	DeleteProgress(ctx context.Context, profileID, progressID int64) error
}

// MediaStore saves uploads and serves them back
type MediaStore interface {
	Save(kind media.Kind, filename string, r io.Reader) (string, error)
	Remove(publicPath string) error
	Handler() http.Handler
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Addr               string
	APIPrefix          string
	ProjectName        string
	Version            string
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
}

// Deps are the services the handlers call into. Health may be nil.
type Deps struct {
	Stories  StoryService
	Dialogs  DialogStore
	Profiles ProfileStore
	Media    MediaStore
	Health   Pinger
	Logger   *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	cfg        Config
	prefix     string
	stories    StoryService
	dialogs    DialogStore
	profiles   ProfileStore
	media      MediaStore
	health     Pinger
	logger     *zap.Logger
	metrics    *metrics
}

const defaultMaxUploadBytes = 10 << 20

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		cfg:      cfg,
		prefix:   strings.TrimSuffix(cfg.APIPrefix, "/"),
		stories:  deps.Stories,
		dialogs:  deps.Dialogs,
		profiles: deps.Profiles,
		media:    deps.Media,
		health:   deps.Health,
		logger:   logger.Named("http"),
		metrics:  newMetrics(),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withLogging(s.withCORS(s.withMetrics(s.routes()))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	p := s.prefix

	// Stories
	mux.HandleFunc("GET "+p+"/stories", s.handleListStories)
	mux.HandleFunc("POST "+p+"/stories", s.handleCreateStory)
	mux.HandleFunc("GET "+p+"/stories/{id}", s.handleGetStory)
	mux.HandleFunc("PUT "+p+"/stories/{id}", s.handleUpdateStory)
	mux.HandleFunc("DELETE "+p+"/stories/{id}", s.handleDeleteStory)
	mux.HandleFunc("POST "+p+"/stories/{id}/languages", s.handleAddLanguage)
	mux.HandleFunc("DELETE "+p+"/stories/{id}/languages/{code}", s.handleDeleteLanguage)
	mux.HandleFunc("DELETE "+p+"/stories/{id}/languages/{code}/formats/{format_id}", s.handleDeleteLanguageFormat)
	mux.HandleFunc("GET "+p+"/formats", s.handleListFormats)

	// Dialogs
	mux.HandleFunc("GET "+p+"/dialogs/openers", s.handleListOpeners)
	mux.HandleFunc("POST "+p+"/dialogs/openers", s.handleCreateOpener)
	mux.HandleFunc("GET "+p+"/dialogs/openers/{id}", s.handleGetOpener)
	mux.HandleFunc("PUT "+p+"/dialogs/openers/{id}", s.handleUpdateOpener)
	mux.HandleFunc("DELETE "+p+"/dialogs/openers/{id}", s.handleDeleteOpener)
	mux.HandleFunc("POST "+p+"/dialogs/openers/{id}/options", s.handleAddOption)
	mux.HandleFunc("PUT "+p+"/dialogs/openers/{id}/options/{option_id}", s.handleUpdateOption)
	mux.HandleFunc("DELETE "+p+"/dialogs/openers/{id}/options/{option_id}", s.handleDeleteOption)

	// Profiles
	mux.HandleFunc("GET "+p+"/profiles", s.handleListProfiles)
	mux.HandleFunc("POST "+p+"/profiles", s.handleCreateProfile)
	mux.HandleFunc("GET "+p+"/profiles/{id}", s.handleGetProfile)
	mux.HandleFunc("PUT "+p+"/profiles/{id}", s.handleUpdateProfile)
	mux.HandleFunc("DELETE "+p+"/profiles/{id}", s.handleDeleteProfile)
	mux.HandleFunc("POST "+p+"/profiles/{id}/avatar", s.handleUploadAvatar)
	mux.HandleFunc("POST "+p+"/profiles/{id}/hobbies", s.handleAddHobby)
	mux.HandleFunc("DELETE "+p+"/profiles/{id}/hobbies/{hobby_id}", s.handleDeleteHobby)
	mux.HandleFunc("POST "+p+"/profiles/{id}/notes", s.handleAddNote)
	mux.HandleFunc("PUT "+p+"/profiles/{id}/notes/{note_id}", s.handleUpdateNote)
	mux.HandleFunc("DELETE "+p+"/profiles/{id}/notes/{note_id}", s.handleDeleteNote)
	mux.HandleFunc("GET "+p+"/profiles/{id}/progress", s.handleListProgress)
	mux.HandleFunc("PUT "+p+"/profiles/{id}/progress", s.handleUpsertProgress)
	mux.HandleFunc("DELETE "+p+"/profiles/{id}/progress/{progress_id}", s.handleDeleteProgress)

	// Unprefixed
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())
	if s.media != nil {
		mux.Handle("GET "+media.URLPrefix, s.media.Handler())
	}

	return mux
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}

// Start serves until SIGINT or SIGTERM
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// withCORS adds CORS headers for the configured origins
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowAll := slices.Contains(s.cfg.CORSAllowedOrigins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(s.cfg.CORSAllowedOrigins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging logs one line per request and tags it with a request id
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("request_id", requestID),
		}
		switch {
		case rec.status >= 500:
			s.logger.Error("request completed", fields...)
		case rec.status >= 400:
			s.logger.Warn("request completed", fields...)
		default:
			s.logger.Info("request completed", fields...)
		}
	})
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// handleRoot returns the welcome document
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"message":  "Welcome to " + s.cfg.ProjectName,
		"version":  s.cfg.Version,
		"docs_url": "/docs",
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// okResponse acknowledges a delete
func (s *Server) okResponse(w http.ResponseWriter) {
	s.jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}
