package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source labels used by SourceFetchDuration and SourceFetchErrors
const (
	SourceKubeNodes    = "kube_nodes"
	SourceKubePods     = "kube_pods"
	SourceKubeWorkload = "kube_workload"
	SourceCephTree     = "ceph_osd_tree"
	SourceCephHosts    = "ceph_hosts"
	SourceConfigRecord = "config_record"
)

var (
	// Topology metrics
	ZonesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rackmon_zones_total",
			Help: "Number of zones seen by authority on the last fetch",
		},
		[]string{"authority"},
	)

	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rackmon_nodes_total",
			Help: "Number of classified nodes by role and status on the last fetch",
		},
		[]string{"role", "status"},
	)

	// Upstream metrics
	SourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rackmon_source_fetch_duration_seconds",
			Help:    "Duration of upstream fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	SourceFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rackmon_source_fetch_errors_total",
			Help: "Total number of failed upstream fetches",
		},
		[]string{"source"},
	)

	// Registry metrics
	RegistryUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rackmon_registry_updates_total",
			Help: "Critical service registry update requests by result",
		},
		[]string{"result"},
	)

	RegistryWriteConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rackmon_registry_write_conflicts_total",
			Help: "Conditional registry writes rejected because the record changed",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rackmon_api_requests_total",
			Help: "Total number of API requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rackmon_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(ZonesTotal)
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(SourceFetchDuration)
	prometheus.MustRegister(SourceFetchErrors)
	prometheus.MustRegister(RegistryUpdatesTotal)
	prometheus.MustRegister(RegistryWriteConflicts)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// ObserveFetch records the outcome of one upstream call
func ObserveFetch(source string, timer *Timer, err error) {
	timer.ObserveDurationVec(SourceFetchDuration, source)
	if err != nil {
		SourceFetchErrors.WithLabelValues(source).Inc()
	}
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
