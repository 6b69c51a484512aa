package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheManchineel/titilda-music/cache"
	"github.com/TheManchineel/titilda-music/config"
	"github.com/TheManchineel/titilda-music/core/auth"
	"github.com/TheManchineel/titilda-music/core/ingest"
	"github.com/TheManchineel/titilda-music/core/media"
	"github.com/TheManchineel/titilda-music/core/playlist"
	"github.com/TheManchineel/titilda-music/db"
	"github.com/TheManchineel/titilda-music/logger"
	"github.com/TheManchineel/titilda-music/model"
	"github.com/TheManchineel/titilda-music/repository"
	"github.com/TheManchineel/titilda-music/storage"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("[HTTP] request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("duration", time.Since(start)))
	})
}

// NewRouter registers every route of h.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware, loggingMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/signup", h.SignupHandler).Methods(http.MethodPost)
	api.HandleFunc("/login", h.LoginHandler).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.LogoutHandler).Methods(http.MethodPost)
	api.HandleFunc("/me", h.AuthMiddleware(h.MeHandler)).Methods(http.MethodGet)
	api.HandleFunc("/sessions", h.AuthMiddleware(h.RevokeSessionsHandler)).Methods(http.MethodDelete)

	api.HandleFunc("/genres", h.GenresHandler).Methods(http.MethodGet)

	api.HandleFunc("/songs", h.AuthMiddleware(h.ListSongsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/songs", h.AuthMiddleware(h.UploadSongHandler)).Methods(http.MethodPost)
	api.HandleFunc("/songs/{id}", h.AuthMiddleware(h.GetSongHandler)).Methods(http.MethodGet)

	api.HandleFunc("/playlists", h.AuthMiddleware(h.ListPlaylistsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/playlists", h.AuthMiddleware(h.CreatePlaylistHandler)).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}", h.AuthMiddleware(h.GetPlaylistHandler)).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}/songs", h.AuthMiddleware(h.PlaylistSongsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}/songs", h.AuthMiddleware(h.AddSongsHandler)).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}/song-order", h.AuthMiddleware(h.ReorderHandler)).Methods(http.MethodPut)

	router.HandleFunc("/static/{key}", h.AuthMiddleware(h.StaticHandler)).Methods(http.MethodGet, http.MethodHead)

	return router
}

// Start connects every backend, serves HTTP on cfg.HTTPAddr and shuts
// down gracefully on SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := context.Background()

	conn, err := db.ConnectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.InitSchema(ctx, conn); err != nil {
		return err
	}

	gormDB, err := db.ConnectGormDB(conn)
	if err != nil {
		return err
	}
	genreRepo := repository.NewGormGenreRepository(gormDB)
	if err := genreRepo.SeedGenres(ctx, model.DefaultGenres); err != nil {
		return err
	}

	blobs, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.RedisHost != "" {
		redisClient, err = cache.ConnectRedis(ctx, cfg)
		if err != nil {
			// The genre cache is optional.
			logger.Warn("[Server] Redis unavailable, genre cache disabled", logger.ErrorField(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}
	genres := cache.NewGenreCache(redisClient, genreRepo, cfg.GenreCacheTTL)

	userRepo := repository.NewMySQLUserRepository(conn)
	songRepo := repository.NewMySQLSongRepository(conn)
	playlistRepo := repository.NewMySQLPlaylistRepository(conn)

	processor := media.NewFFmpegProcessor(cfg.FFmpegPath)
	ingestion := ingest.NewService(conn, songRepo, blobs, processor, cfg.ArtworkMaxDim)
	if cfg.ProbeAudio {
		ingestion.WithAudioChecker(processor)
	}

	handler := NewAPIHandler(
		auth.NewAuthority(userRepo, cfg.AuthSecret, cfg.TokenTTL),
		playlist.NewEngine(conn, playlistRepo, songRepo),
		ingestion,
		songRepo,
		genres,
		cfg.SecureCookies,
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewRouter(handler),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Server] listening", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-stop:
	}

	logger.Info("[Server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("[Server] stopped")
	return nil
}
