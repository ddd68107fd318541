package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/config"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/database"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/game"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/logger"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/server"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/utils"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/websocket"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "stop-server",
	Short: "Realtime server for the Stop word game",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		logger.Init(cfg.LogLevel, cfg.LogPretty)
		return run(cmd.Context(), cfg)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().Int("port", 8080, "HTTP listen port")
	rootCmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().Bool("log-pretty", false, "human readable console logs")
	rootCmd.Flags().String("database-url", "", "postgres connection string, empty disables the match archive")
	rootCmd.Flags().String("categories-file", "", "csv file with the default categories")

	_ = v.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))
	_ = v.BindPFlag("log_pretty", rootCmd.Flags().Lookup("log-pretty"))
	_ = v.BindPFlag("database_url", rootCmd.Flags().Lookup("database-url"))
	_ = v.BindPFlag("categories_file", rootCmd.Flags().Lookup("categories-file"))
}

func run(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db database.Service = database.Noop{}
	if cfg.DatabaseURL != "" {
		svc, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		db = svc
	} else {
		log.Warn().Msg("DATABASE_URL not set, finished matches will not be archived")
	}
	defer db.Close()

	categories := internal.DefaultCategories()
	if cfg.CategoriesFile != "" {
		loaded, err := utils.ReadCategoriesCsv(cfg.CategoriesFile)
		if err != nil {
			return err
		}
		categories = loaded
	}

	hub := websocket.NewHub()
	engine := game.NewEngine(game.NewRegistry(), hub, game.Options{
		RevealDelay: cfg.RevealDelay,
		Categories:  categories,
		Scheduler:   game.NewTimerScheduler(),
		Archive:     db,
	})
	go engine.RunSweeper(ctx, cfg.SweepInterval)

	srv := server.New(engine, hub, db, server.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}).HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	stop()
	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}
	log.Info().Msg("server exiting")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}
