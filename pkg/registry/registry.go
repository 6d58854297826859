package registry

import (
	"context"
	"fmt"

	"github.com/cuemby/rackmon/pkg/correlator"
	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/log"
	"github.com/cuemby/rackmon/pkg/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Default record locations
const (
	DefaultNamespace   = "rack-resiliency"
	DefaultStaticName  = "rrs-mon-static"
	DefaultDynamicName = "rrs-mon-dynamic"
	DefaultKey         = "critical-service-config.json"
)

// ConfigStore reads and conditionally writes config records
type ConfigStore interface {
	Read(ctx context.Context, ref types.RecordRef) (*types.Record, error)
	Write(ctx context.Context, ref types.RecordRef, value []byte, version string) error
}

// InstanceResolver looks up the live instances of a service
type InstanceResolver interface {
	Instances(ctx context.Context, name string, svc types.CriticalService) (*correlator.Result, error)
}

// Config locates the static and dynamic records
type Config struct {
	Namespace   string
	StaticName  string
	DynamicName string
	Key         string
}

// DefaultConfig returns the standard record locations
func DefaultConfig() Config {
	return Config{
		Namespace:   DefaultNamespace,
		StaticName:  DefaultStaticName,
		DynamicName: DefaultDynamicName,
		Key:         DefaultKey,
	}
}

// Static returns the reference of the editable service definitions
func (c Config) Static() types.RecordRef {
	return types.RecordRef{Name: c.StaticName, Namespace: c.Namespace, Key: c.Key}
}

// Dynamic returns the reference of the externally maintained status record
func (c Config) Dynamic() types.RecordRef {
	return types.RecordRef{Name: c.DynamicName, Namespace: c.Namespace, Key: c.Key}
}

// Registry manages the critical service definitions
type Registry struct {
	store    ConfigStore
	resolver InstanceResolver
	cfg      Config
	logger   zerolog.Logger
}

// New creates a registry
func New(store ConfigStore, resolver InstanceResolver, cfg Config) *Registry {
	return &Registry{
		store:    store,
		resolver: resolver,
		cfg:      cfg,
		logger:   log.WithComponent("registry"),
	}
}

// ServiceSummary is a registry entry in a namespace listing
type ServiceSummary struct {
	Name string             `json:"name"`
	Type types.ResourceKind `json:"type"`
}

// StatusSummary is a status record entry in a namespace listing
type StatusSummary struct {
	Name     string             `json:"name"`
	Type     types.ResourceKind `json:"type"`
	Status   string             `json:"status"`
	Balanced types.Flag         `json:"balanced"`
}

// ByNamespace groups entries under their namespace
type ByNamespace[T any] struct {
	Namespace map[string][]T `json:"namespace"`
}

// ServiceList is the List output
type ServiceList struct {
	CriticalServices ByNamespace[ServiceSummary] `json:"critical-services"`
}

// StatusList is the StatusList output
type StatusList struct {
	CriticalServices ByNamespace[StatusSummary] `json:"critical-services"`
}

// ServiceDetail is a registry entry enriched with live instances
type ServiceDetail struct {
	Name       string                  `json:"Name"`
	Namespace  string                  `json:"Namespace"`
	Type       types.ResourceKind      `json:"Type"`
	Configured int                     `json:"Configured Instances"`
	Running    int                     `json:"Currently Running Instances"`
	PerZone    map[string]int          `json:"Zone Instances"`
	Pods       []types.ServiceInstance `json:"Pods"`
}

// ServiceDescription is the Describe output
type ServiceDescription struct {
	Service ServiceDetail `json:"Critical Service"`
}

// load reads the static record. A missing key is an empty registry.
func (r *Registry) load(ctx context.Context) (*types.Registry, string, error) {
	ref := r.cfg.Static()
	rec, err := r.store.Read(ctx, ref)
	if err != nil {
		return nil, "", err
	}

	reg := &types.Registry{}
	if rec.Value != nil {
		if err := json.Unmarshal(rec.Value, reg); err != nil {
			return nil, "", errdefs.SourceFailure(fmt.Sprintf("failed to parse record %s", ref), err)
		}
	}
	if reg.CriticalServices == nil {
		reg.CriticalServices = make(map[string]types.CriticalService)
	}
	return reg, rec.Version, nil
}

// List groups the registered services by namespace
func (r *Registry) List(ctx context.Context) (*ServiceList, error) {
	reg, _, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	out := &ServiceList{CriticalServices: ByNamespace[ServiceSummary]{Namespace: map[string][]ServiceSummary{}}}
	for _, name := range types.SortedKeys(reg.CriticalServices) {
		svc := reg.CriticalServices[name]
		group := out.CriticalServices.Namespace
		group[svc.Namespace] = append(group[svc.Namespace], ServiceSummary{Name: name, Type: svc.Type})
	}
	return out, nil
}

// Describe returns one service and its live instances
func (r *Registry) Describe(ctx context.Context, name string) (*ServiceDescription, error) {
	reg, _, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	svc, ok := reg.CriticalServices[name]
	if !ok {
		return nil, errdefs.NotFound("Service not found")
	}

	res, err := r.resolver.Instances(ctx, name, svc)
	if err != nil {
		return nil, err
	}
	return &ServiceDescription{Service: ServiceDetail{
		Name:       name,
		Namespace:  svc.Namespace,
		Type:       svc.Type,
		Configured: res.Configured,
		Running:    res.Running,
		PerZone:    res.PerZone,
		Pods:       res.Instances,
	}}, nil
}

// StatusList groups the status record by namespace
func (r *Registry) StatusList(ctx context.Context) (*StatusList, error) {
	ref := r.cfg.Dynamic()
	rec, err := r.store.Read(ctx, ref)
	if err != nil {
		return nil, err
	}

	status := &types.StatusRegistry{}
	if rec.Value != nil {
		if err := json.Unmarshal(rec.Value, status); err != nil {
			return nil, errdefs.SourceFailure(fmt.Sprintf("failed to parse record %s", ref), err)
		}
	}

	out := &StatusList{CriticalServices: ByNamespace[StatusSummary]{Namespace: map[string][]StatusSummary{}}}
	for _, name := range types.SortedKeys(status.CriticalServices) {
		s := status.CriticalServices[name]
		group := out.CriticalServices.Namespace
		group[s.Namespace] = append(group[s.Namespace], StatusSummary{
			Name:     name,
			Type:     s.Type,
			Status:   s.Status,
			Balanced: s.Balanced,
		})
	}
	return out, nil
}
