package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/workforce-pulse/insights-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the query API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/query", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Query    string `json:"query"`
				ThreadID string `json:"threadId"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.Query == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
				return
			}
			if body.ThreadID == "" {
				body.ThreadID = uuid.NewString()
			}

			ans, err := env.Pipeline.Run(req.Context(), pipeline.Request{
				Query:    body.Query,
				ThreadID: body.ThreadID,
			})
			if err != nil {
				zap.L().Error("query failed",
					zap.String("thread_id", body.ThreadID),
					zap.Error(err),
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
				return
			}
			writeJSON(w, http.StatusOK, ans)
		})

		r.Get("/threads/{id}/scope", func(w http.ResponseWriter, req *http.Request) {
			threadID := chi.URLParam(req, "id")
			writeJSON(w, http.StatusOK, map[string]any{
				"threadId": threadID,
				"scope":    env.Cache.CachedScope(req.Context(), threadID),
				"meta":     env.Cache.Meta(req.Context(), threadID),
			})
		})

		r.Delete("/threads/{id}/cache", func(w http.ResponseWriter, req *http.Request) {
			threadID := chi.URLParam(req, "id")
			if err := env.Cache.ClearThreadCache(req.Context(), threadID); err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "clear failed"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "threadId": threadID})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
