/*
Package api serves the rack resiliency views over HTTP.

Routes:

	GET   /zones                    zone summary
	GET   /zones/{zone}             zone description
	GET   /criticalservices         critical services by namespace
	GET   /criticalservices/status  service status by namespace
	GET   /criticalservices/{name}  service with live instances
	PATCH /criticalservices         add services ({"from_file": "..."}, ?dry_run=true)
	GET   /health, /ready, /metrics

Errors are answered as {"error": message}: invalid input is 400, unknown
zones and services are 404, a registry write that kept conflicting is 409 and
any upstream failure is 500. A topology with no zones at all is not an error
and is answered with 200, an empty zone list and an Information message.

When server.grpc_address is set, the standard grpc.health.v1 service is also
exposed; its status follows the same checker as /health.
*/
package api
