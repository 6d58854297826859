/*
Package metrics holds the Prometheus collectors and the component health
checker used by the rackmon server.

All collectors are registered with the default registry at init and exposed
through Handler on /metrics:

	rackmon_zones_total{authority}                   zones reported per authority
	rackmon_nodes_total{role,status}                 management nodes by role and readiness
	rackmon_source_fetch_duration_seconds{source}    latency of upstream calls
	rackmon_source_fetch_errors_total{source}        failed upstream calls
	rackmon_registry_updates_total{result}           update requests by outcome
	rackmon_registry_write_conflicts_total           stale writes to a record
	rackmon_api_requests_total{route,method,status}  HTTP requests
	rackmon_api_request_duration_seconds{route}      HTTP latency

Upstream calls are timed with a Timer and reported through ObserveFetch:

	timer := metrics.NewTimer()
	tree, err := source.OSDTree(ctx)
	metrics.ObserveFetch(metrics.SourceCephTree, timer, err)

# Health

HealthChecker tracks the last known state of each component. Sources report
through ReportSource after every fetch; a failing source makes /health
answer "degraded" but only critical components (the API server itself by
default) make /ready fail. Nothing polls in the background: the state is as
fresh as the last request that touched the source.
*/
package metrics
