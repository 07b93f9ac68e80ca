package trigger

import (
	"github.com/gofiber/fiber/v2"
)

// Feature implements the loader.Feature interface for the run trigger.
type Feature struct {
	handler *Handler
}

// NewFeature creates the sync trigger feature.
func NewFeature(h *Handler) *Feature {
	return &Feature{handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "sync"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.handler.runner != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterSyncRoutes(app)
	return nil
}

// ReportFeature implements the loader.Feature interface for the report browser.
type ReportFeature struct {
	handler *Handler
}

// NewReportFeature creates the report browser feature. It is enabled only with an archive.
func NewReportFeature(h *Handler) *ReportFeature {
	return &ReportFeature{handler: h}
}

// Name returns the name of the feature.
func (f *ReportFeature) Name() string {
	return "reports"
}

// IsEnabled checks if the feature is enabled.
func (f *ReportFeature) IsEnabled() bool {
	return f.handler.reports != nil
}

// Load registers the feature's routes.
func (f *ReportFeature) Load(app fiber.Router) error {
	f.handler.RegisterReportRoutes(app)
	return nil
}
