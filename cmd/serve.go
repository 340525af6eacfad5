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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/pathwise/internal/content"
	"github.com/abhisek/pathwise/internal/httpapi"
	"github.com/abhisek/pathwise/internal/logger"
	"github.com/abhisek/pathwise/internal/metrics"
	"github.com/abhisek/pathwise/internal/service"
	"github.com/abhisek/pathwise/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		if cmd.Flags().Changed("watch") {
			cfg.Content.Watch, _ = cmd.Flags().GetBool("watch")
		}

		log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
		if err != nil {
			return err
		}
		defer log.Sync()

		reg, err := loadRegistry(cfg, log)
		if err != nil {
			return err
		}
		dbPath, err := resolveDBPath(cfg)
		if err != nil {
			return fmt.Errorf("resolve DB path: %w", err)
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		m := metrics.NewCollector(cfg.Metrics.Namespace)
		m.CoursesLoaded.Set(float64(reg.Len()))
		svc := service.New(reg, st.ProgressRepo(), st.EventRepo(),
			service.WithLogger(log),
			service.WithMetrics(m),
			service.WithDefaultLimit(cfg.Recommend.DefaultLimit),
		)
		api := httpapi.New(svc,
			httpapi.WithLogger(log),
			httpapi.WithMetrics(m),
			httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins),
		)
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			log.Info("listening",
				zap.String("addr", cfg.HTTP.Addr),
				zap.String("db", dbPath),
				zap.Int("courses", reg.Len()),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if cfg.Content.Watch && cfg.Content.Dir != "" {
			w := content.NewWatcher(cfg.Content.Dir, func(c *content.Course) {
				_ = svc.ApplyCourse(c)
			}, content.WithWatcherLogger(log))
			g.Go(func() error { return w.Run(ctx) })
		}

		err = g.Wait()
		log.Info("stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	serveCmd.Flags().Bool("watch", false, "Reload course files in the content directory when they change")
}
