package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/surfacegen/internal/archive"
	"github.com/MeKo-Tech/surfacegen/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generation API with websocket progress",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("archive", "sets.db", "SQLite archive for generated sets")
	serveCmd.Flags().Duration("generation-timeout", 10*time.Minute, "Timeout per generation")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for served maps")
	serveCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	serveCmd.Flags().Int("job-history", 100, "Number of jobs kept queryable")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.archive", "archive")
	mustBind("serve.generation_timeout", "generation-timeout")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.png_compression", "png-compression")
	mustBind("serve.job_history", "job-history")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	archivePath := viper.GetString("serve.archive")

	opts, err := newGeneratorOptions()
	if err != nil {
		return err
	}

	store, err := archive.New(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer store.Close()

	svc, err := server.NewService(server.Config{
		Archive:           store,
		Resampler:         opts.Resampler,
		MemoryBudget:      opts.MemoryBudget,
		PNGCompression:    viper.GetString("serve.png_compression"),
		CacheControl:      viper.GetString("serve.cache_control"),
		GenerationTimeout: viper.GetDuration("serve.generation_timeout"),
		JobHistory:        viper.GetInt("serve.job_history"),
	}, logger)
	if err != nil {
		return err
	}
	defer svc.Stop()

	logger.Info("server listening",
		"addr", addr,
		"archive", archivePath,
		"resampler", opts.Resampler.Name(),
	)

	srv := &http.Server{Addr: addr, Handler: svc.Handler(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("Received interrupt signal, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
