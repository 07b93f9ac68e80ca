package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"moodle-sync/core/loader"
	"moodle-sync/core/logger"
	"moodle-sync/core/middleware/auth"
	"moodle-sync/core/middleware/rayid"
	"moodle-sync/feature/trigger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server that triggers sync runs",
	Long: `Starts the HTTP server. Schedulers trigger runs with POST /sync/:kind and the
X-API-Key header; /health and /metrics are public.`,
	RunE: runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	logg := a.logger
	zap.ReplaceGlobals(logg)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// RayID must be first to trace everything
	app.Use(rayid.New())

	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(logg, c)
		l.Info("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	public := []string{"/health"}
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if a.metrics != nil {
		public = append(public, "/metrics")
		app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))
	}

	app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey, Skip: public}))
	if a.cfg.Server.ApiKey == "" {
		logg.Warn("No server.api_key configured, every sync trigger will be rejected")
	}

	var reports trigger.Reports
	if a.archive != nil {
		reports = a.archive
	}
	h := trigger.NewHandler(a.runner, reports, logg)

	mgr := loader.NewManager(logg)
	mgr.Register(trigger.NewFeature(h))
	mgr.Register(trigger.NewReportFeature(h))
	if err := mgr.LoadAll(app); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info("Starting server", zap.String("addr", a.cfg.Server.Addr()), zap.Strings("features", mgr.Enabled()))
		errCh <- app.Listen(a.cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("Shutting down server...")
	return app.ShutdownWithTimeout(a.cfg.Server.ShutdownTimeout())
}
