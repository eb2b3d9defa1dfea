package obs

import "github.com/prometheus/client_golang/prometheus"

// Set at link time: -ldflags "-X ffb.ae/internal/obs.Version=... -X ffb.ae/internal/obs.Commit=...".
var (
	Version = "dev"
	Commit  = "unknown"
)

// build_info is a constant 1 gauge labelled with version and commit.
func newBuildInfo() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Site build information.",
		},
		[]string{"version", "commit"},
	)
}
