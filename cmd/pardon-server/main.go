// Command pardon-server hosts a proxy exposing collection endpoints
// over HTTP, spec.md §6's CLI surface: "pardon-server hosts a proxy."
//
// Grounded on the teacher's runtime/app.go App.Start: initialize ->
// load assets -> gin router -> signal-driven graceful shutdown,
// generalized from "one flow per registered gin route" to a single
// `/ask` endpoint that matches any ask against the whole collection.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/pardon-http/pardon/internal/collection"
	"github.com/pardon-http/pardon/internal/config"
	"github.com/pardon-http/pardon/internal/configspace"
	"github.com/pardon-http/pardon/internal/history"
	"github.com/pardon-http/pardon/internal/pipeline"
	"github.com/pardon-http/pardon/internal/tracker"
	"github.com/pardon-http/pardon/internal/transport"
)

var (
	layers     []string
	port       string
	historyDSN string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "pardon-server",
	Short: "Host a proxy that matches and executes asks against a Pardon endpoint collection",
	RunE:  runServer,
}

func init() {
	rootCmd.Flags().StringSliceVarP(&layers, "layer", "l", []string{"."}, "collection layer directory (repeatable, ordered)")
	rootCmd.Flags().StringVarP(&port, "port", "p", ":8080", "listen address")
	rootCmd.Flags().StringVar(&historyDSN, "history", "pardon-history.db", "SQLite history store DSN")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML settings file (layers, http, history, server)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// askRequest is the JSON body accepted at POST /ask.
type askRequest struct {
	Method string         `json:"method"`
	URL    string         `json:"url"`
	Values map[string]any `json:"values"`
}

func runServer(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	override := map[string]any{}
	if cmd.Flags().Changed("layer") {
		override["layers"] = layers
	}
	if cmd.Flags().Changed("history") {
		override["history"] = map[string]any{"dsn": historyDSN}
	}
	if cmd.Flags().Changed("port") {
		override["server"] = map[string]any{"port": port}
	}
	settings, err := config.Load(configPath, override)
	if err != nil {
		return fmt.Errorf("pardon-server: load config: %w", err)
	}

	col, err := collection.Build(settings.Layers...)
	if err != nil {
		return fmt.Errorf("pardon-server: build collection: %w", err)
	}
	for _, loadErr := range col.Errors {
		logger.WarnContext(ctx, "collection: asset failed to load", "error", loadErr)
	}
	logger.InfoContext(ctx, "collection loaded", "endpoints", len(col.Endpoints))

	store, err := history.Open(ctx, history.Config{DSN: settings.History.DSN, MaxOpenConns: settings.History.MaxOpenConns}, logger)
	if err != nil {
		return fmt.Errorf("pardon-server: open history: %w", err)
	}
	defer store.Shutdown(ctx)

	space := configspace.New(map[string]any{})
	fetcher := transport.New(transport.Config{
		Timeout:     time.Duration(settings.HTTP.TimeoutSeconds) * time.Second,
		MaxRetries:  settings.HTTP.MaxRetries,
		RetryWaitMS: settings.HTTP.RetryWaitMS,
		Debug:       settings.HTTP.Debug,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.POST("/ask", handleAsk(col, space, store, fetcher, logger))

	server := &http.Server{Addr: settings.Server.Port, Handler: router}

	shutdownChan := make(chan error, 1)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.InfoContext(ctx, "pardon-server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shutdownChan <- server.Shutdown(shutdownCtx)
	}()

	logger.InfoContext(ctx, "pardon-server: listening", "addr", settings.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("pardon-server: %w", err)
	}
	return <-shutdownChan
}

func handleAsk(col *collection.Collection, space *configspace.Space, store *history.Store, fetcher *transport.Transport, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req askRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		env := pipeline.NewEnvironment(space)
		tr := tracker.New()
		ask := pipeline.Ask{Method: req.Method, URL: req.URL, Values: req.Values}
		exec := pipeline.Init(ask, col.Candidates(), *env, tr, fetcher, nil)

		result, err := exec.Process(c.Request.Context())
		if err != nil {
			logger.ErrorContext(c.Request.Context(), "ask failed", "url", req.URL, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		askJSON, _ := json.Marshal(ask)
		outputJSON, _ := json.Marshal(result.Output)
		if _, err := store.Append(c.Request.Context(), history.Record{Ask: string(askJSON), Req: string(askJSON), Res: string(outputJSON)}); err != nil {
			logger.WarnContext(c.Request.Context(), "history: failed to append record", "error", err)
		}

		c.JSON(http.StatusOK, gin.H{"outcome": result.Outcome, "output": result.Output})
	}
}
