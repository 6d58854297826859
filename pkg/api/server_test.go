package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/rackmon/pkg/config"
	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/log"
	"github.com/cuemby/rackmon/pkg/metrics"
	"github.com/cuemby/rackmon/pkg/registry"
	"github.com/cuemby/rackmon/pkg/zones"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type stubZones struct {
	summary *zones.Summary
	desc    *zones.Description
	err     error
	gotName string
}

func (s *stubZones) Summary(context.Context) (*zones.Summary, error) { return s.summary, s.err }

func (s *stubZones) Describe(_ context.Context, name string) (*zones.Description, error) {
	s.gotName = name
	return s.desc, s.err
}

type stubRegistry struct {
	list       *registry.ServiceList
	status     *registry.StatusList
	desc       *registry.ServiceDescription
	update     *registry.UpdateResult
	err        error
	gotName    string
	gotPayload string
	gotOpts    registry.UpdateOptions
}

func (s *stubRegistry) List(context.Context) (*registry.ServiceList, error) { return s.list, s.err }

func (s *stubRegistry) StatusList(context.Context) (*registry.StatusList, error) {
	return s.status, s.err
}

func (s *stubRegistry) Describe(_ context.Context, name string) (*registry.ServiceDescription, error) {
	s.gotName = name
	return s.desc, s.err
}

func (s *stubRegistry) Update(_ context.Context, payload []byte, opts registry.UpdateOptions) (*registry.UpdateResult, error) {
	s.gotPayload = string(payload)
	s.gotOpts = opts
	return s.update, s.err
}

func testServerConfig() config.ServerConfig {
	cfg := config.DefaultConfig().Server
	cfg.UpdateRate = 0
	return cfg
}

func newTestServer(z *stubZones, r *stubRegistry) *Server {
	return NewServer(testServerConfig(), z, r, metrics.NewHealthChecker(metrics.ComponentAPI))
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestListZones(t *testing.T) {
	z := &stubZones{summary: &zones.Summary{Zones: []zones.ZoneEntry{
		{Name: "x3000", Kube: &zones.KubeSection{Masters: []string{"ncn-m001"}}},
	}}}

	w := do(t, newTestServer(z, &stubRegistry{}), http.MethodGet, "/zones", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"Zones":[{"Zone Name":"x3000","Kubernetes Topology Zone":{"Management Master Nodes":["ncn-m001"]}}]}`, w.Body.String())
}

func TestDescribeZone(t *testing.T) {
	z := &stubZones{desc: &zones.Description{Name: "x3001", WorkerCount: 1}}

	w := do(t, newTestServer(z, &stubRegistry{}), http.MethodGet, "/zones/x3001", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "x3001", z.gotName)
	assert.Equal(t, "x3001", decode(t, w)["Zone Name"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "not found", err: errdefs.NotFound("Zone not found"), wantCode: http.StatusNotFound, wantBody: `{"error":"Zone not found"}`},
		{name: "invalid", err: errdefs.InvalidInput("Invalid request format"), wantCode: http.StatusBadRequest, wantBody: `{"error":"Invalid request format"}`},
		{name: "conflict", err: errdefs.Conflict("record changed", nil), wantCode: http.StatusConflict, wantBody: `{"error":"record changed"}`},
		{name: "source failure", err: errdefs.SourceFailure("fetch osd tree", errors.New("exit status 255")), wantCode: http.StatusInternalServerError, wantBody: `{"error":"fetch osd tree: exit status 255"}`},
		{name: "unclassified", err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantBody: `{"error":"boom"}`},
		{name: "unconfigured", err: errdefs.Unconfigured(zones.InfoNoZones), wantCode: http.StatusOK, wantBody: `{"Zones":[],"Information":"No zones (K8s topology and Ceph) configured"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestServer(&stubZones{err: tt.err}, &stubRegistry{}), http.MethodGet, "/zones/x3000", "")

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestReadableErrors(t *testing.T) {
	err := errdefs.SourceFailure("failed to fetch ConfigMap", errors.New(`Reason: Forbidden\nHTTP response body: denied`))

	w := do(t, newTestServer(&stubZones{}, &stubRegistry{err: err}), http.MethodGet, "/criticalservices", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to fetch ConfigMap: Reason: Forbidden\nHTTP response body: denied", decode(t, w)["error"])
}

func TestServiceRoutes(t *testing.T) {
	r := &stubRegistry{
		list:   &registry.ServiceList{CriticalServices: registry.ByNamespace[registry.ServiceSummary]{Namespace: map[string][]registry.ServiceSummary{"services": {{Name: "cray-dns", Type: "Deployment"}}}}},
		status: &registry.StatusList{CriticalServices: registry.ByNamespace[registry.StatusSummary]{Namespace: map[string][]registry.StatusSummary{}}},
		desc:   &registry.ServiceDescription{Service: registry.ServiceDetail{Name: "cray-dns", Configured: 2}},
	}
	s := newTestServer(&stubZones{}, r)

	w := do(t, s, http.MethodGet, "/criticalservices", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"critical-services":{"namespace":{"services":[{"name":"cray-dns","type":"Deployment"}]}}}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/criticalservices/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"critical-services":{"namespace":{}}}`, w.Body.String())
	assert.Empty(t, r.gotName, "status must not be routed to describe")

	w = do(t, s, http.MethodGet, "/criticalservices/cray-dns", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cray-dns", r.gotName)
	svc := decode(t, w)["Critical Service"].(map[string]interface{})
	assert.Equal(t, float64(2), svc["Configured Instances"])
}

func TestUpdateServices(t *testing.T) {
	r := &stubRegistry{update: &registry.UpdateResult{Update: registry.UpdateSuccessful, Added: []string{"spire-server"}}}
	s := newTestServer(&stubZones{}, r)
	body := `{"from_file": "{\"critical-services\": {}}"}`

	w := do(t, s, http.MethodPatch, "/criticalservices", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, r.gotPayload)
	assert.False(t, r.gotOpts.DryRun)
	assert.JSONEq(t, `{"Update":"Successful","Successfully Added Services":["spire-server"]}`, w.Body.String())

	w = do(t, s, http.MethodPatch, "/criticalservices?dry_run=true", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, r.gotOpts.DryRun)

	w = do(t, s, http.MethodPatch, "/criticalservices?dry_run=maybe", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateRateLimited(t *testing.T) {
	cfg := testServerConfig()
	cfg.UpdateRate = 0.001
	cfg.UpdateBurst = 1
	r := &stubRegistry{update: &registry.UpdateResult{Update: registry.UpdateSuccessful}}
	s := NewServer(cfg, &stubZones{}, r, metrics.NewHealthChecker(metrics.ComponentAPI))

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPatch, "/criticalservices", "{}").Code)

	w := do(t, s, http.MethodPatch, "/criticalservices", "{}")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// reads are not limited
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/zones/x", "").Code)
}

func TestRequestID(t *testing.T) {
	s := newTestServer(&stubZones{summary: &zones.Summary{Zones: []zones.ZoneEntry{}}}, &stubRegistry{})

	w := do(t, s, http.MethodGet, "/zones", "")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/zones", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestUnknownRoutes(t *testing.T) {
	s := newTestServer(&stubZones{}, &stubRegistry{})

	w := do(t, s, http.MethodGet, "/racks", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"endpoint not found"}`, w.Body.String())

	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = do(t, s, http.MethodDelete, "/zones", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestHealthEndpoints(t *testing.T) {
	checker := metrics.NewHealthChecker(metrics.ComponentAPI)
	s := NewServer(testServerConfig(), &stubZones{}, &stubRegistry{}, checker)

	w := do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	checker.UpdateComponent(metrics.ComponentAPI, true, "serving")
	checker.UpdateComponent(metrics.ComponentCeph, false, "exit status 255")

	w = do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])

	w = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rackmon_api_requests_total")
}

func TestPanicRecovery(t *testing.T) {
	var logs bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&logs)
	defer func() { log.Logger = prev }()

	s := newTestServer(nil, &stubRegistry{})

	// a nil zone service panics inside the handler
	req := httptest.NewRequest(http.MethodGet, "/zones", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	assert.Equal(t, "req-7", w.Header().Get(RequestIDHeader))
	assert.Contains(t, logs.String(), `"request_id":"req-7"`)
}

func TestHealthSyncInterceptor(t *testing.T) {
	checker := metrics.NewHealthChecker(metrics.ComponentAPI)
	hs := health.NewServer()
	intercept := HealthSyncInterceptor(checker, hs)
	info := &grpc.UnaryServerInfo{FullMethod: healthCheckMethod}
	check := func(ctx context.Context, req interface{}) (interface{}, error) {
		return hs.Check(ctx, req.(*healthpb.HealthCheckRequest))
	}

	checker.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	resp, err := intercept(context.Background(), &healthpb.HealthCheckRequest{}, info, check)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.(*healthpb.HealthCheckResponse).Status)

	checker.UpdateComponent(metrics.ComponentAPI, true, "serving")
	resp, err = intercept(context.Background(), &healthpb.HealthCheckRequest{}, info, check)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.(*healthpb.HealthCheckResponse).Status)
}

func TestStartStop(t *testing.T) {
	cfg := testServerConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.GRPCAddress = "127.0.0.1:0"
	checker := metrics.NewHealthChecker(metrics.ComponentAPI)
	s := NewServer(cfg, &stubZones{}, &stubRegistry{}, checker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return checker.GetReadiness().Status == "ready"
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, "not_ready", checker.GetReadiness().Status)
}
