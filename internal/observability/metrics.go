package observability

import "github.com/prometheus/client_golang/prometheus"

// Render outcomes used as the "result" label of RendersTotal.
const (
	RenderOK       = "ok"
	RenderNotFound = "not_found"
	RenderError    = "error"
)

var (
	// VersionsCreated counts committed template versions (replays excluded).
	VersionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "template_versions_created_total",
		Help: "Total number of template versions created.",
	})

	// VersionConflicts counts create attempts that hit a write conflict and were retried or given up.
	VersionConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "template_version_conflicts_total",
		Help: "Total number of version-create write conflicts.",
	})

	// RendersTotal counts render requests by outcome.
	RendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_renders_total",
			Help: "Total number of template renders by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(VersionsCreated, VersionConflicts, RendersTotal)
}
