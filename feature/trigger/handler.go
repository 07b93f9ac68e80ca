package trigger

import (
	"context"
	"errors"
	"strconv"

	"moodle-sync/core/logger"
	"moodle-sync/core/reconcile"
	"moodle-sync/core/report"
	"moodle-sync/core/runner"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// KindAll runs every kind in order.
const KindAll = "all"

// Runner executes sync runs.
type Runner interface {
	Request(kind reconcile.Kind) runner.Request
	Run(ctx context.Context, req runner.Request) (*reconcile.Report, error)
	RunAll(ctx context.Context, req runner.Request) ([]*reconcile.Report, error)
}

// Reports browses archived reports.
type Reports interface {
	List(ctx context.Context, kind reconcile.Kind) ([]report.Entry, error)
	Get(ctx context.Context, key string) (*reconcile.Report, error)
}

// Handler handles HTTP requests that trigger and inspect sync runs.
type Handler struct {
	runner  Runner
	reports Reports
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler. reports may be nil.
func NewHandler(r Runner, reports Reports, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: r, reports: reports, logger: logger}
}

// RegisterSyncRoutes registers the run trigger.
func (h *Handler) RegisterSyncRoutes(app fiber.Router) {
	app.Post("/sync/:kind", h.HandleSync)
}

// RegisterReportRoutes registers the report browser.
func (h *Handler) RegisterReportRoutes(app fiber.Router) {
	group := app.Group("/reports")
	group.Get("/", h.HandleListReports)
	group.Get("/*", h.HandleGetReport)
}

// HandleSync runs one kind, or every kind for "all", and returns the reports.
// Query parameters dry_run and fetch override the configured defaults.
// The status is 200 on success, 207 when records failed and 500 when a run aborted.
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	name := c.Params("kind")

	kind := reconcile.Kind(name)
	if name != KindAll {
		if _, ok := reconcile.ParseKind(name); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown sync kind " + strconv.Quote(name)})
		}
	} else {
		kind = ""
	}

	req := h.runner.Request(kind)
	if v := c.Query("dry_run"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid dry_run " + strconv.Quote(v)})
		}
		req.DryRun = dryRun
	}
	if v := c.Query("fetch"); v != "" {
		req.Fetch = v
	}

	l.Info("Sync triggered", zap.String("kind", name), zap.Bool("dry_run", req.DryRun))

	var reports []*reconcile.Report
	var err error
	if name == KindAll {
		reports, err = h.runner.RunAll(c.UserContext(), req)
	} else {
		var r *reconcile.Report
		r, err = h.runner.Run(c.UserContext(), req)
		if r != nil {
			reports = append(reports, r)
		}
	}

	status := fiber.StatusOK
	body := fiber.Map{"reports": reports}
	switch {
	case errors.Is(err, runner.ErrRecordFailures):
		status = fiber.StatusMultiStatus
	case err != nil:
		l.Error("Sync failed", zap.String("kind", name), zap.Error(err))
		status = fiber.StatusInternalServerError
		body["error"] = err.Error()
	}
	if reports == nil {
		body["reports"] = []*reconcile.Report{}
	}
	return c.Status(status).JSON(body)
}

// HandleListReports lists archived reports, optionally filtered by ?kind=.
func (h *Handler) HandleListReports(c *fiber.Ctx) error {
	kind := reconcile.Kind(c.Query("kind"))
	if kind != "" {
		if _, ok := reconcile.ParseKind(string(kind)); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown sync kind " + strconv.Quote(string(kind))})
		}
	}
	entries, err := h.reports.List(c.UserContext(), kind)
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Report listing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if entries == nil {
		entries = []report.Entry{}
	}
	return c.JSON(fiber.Map{"reports": entries})
}

// HandleGetReport returns one archived report by object key.
func (h *Handler) HandleGetReport(c *fiber.Ctx) error {
	key := c.Params("*")
	r, err := h.reports.Get(c.UserContext(), key)
	if err != nil {
		logger.WithRayID(h.logger, c).Warn("Report download failed", zap.String("key", key), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(r)
}
