package registry

import (
	"context"
	"fmt"

	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/metrics"
	"github.com/cuemby/rackmon/pkg/types"
	jsoniter "github.com/json-iterator/go"
	"k8s.io/client-go/util/retry"
)

// Update outcomes
const (
	UpdateSuccessful    = "Successful"
	UpdateAlreadyExists = "Services Already Exist"
)

// Rejection messages
const (
	msgInvalidRequest = "Invalid request format"
	msgInvalidJSON    = "Invalid JSON format in services"
	msgMissingKey     = "Missing 'critical-services' in payload"
)

// UpdateOptions tunes a single Update call
type UpdateOptions struct {
	// DryRun merges and reports without persisting
	DryRun bool
}

// UpdateResult reports which services were added and which already existed
type UpdateResult struct {
	Update   string   `json:"Update"`
	Added    []string `json:"Successfully Added Services,omitempty"`
	Existing []string `json:"Already Existing Services,omitempty"`
}

type updateRequest struct {
	FromFile *string `json:"from_file"`
}

// ParseUpdate validates an update payload of the form
// {"from_file": "<json document>"} and returns the services it declares.
func ParseUpdate(payload []byte) (map[string]types.CriticalService, error) {
	var req updateRequest
	if len(payload) == 0 || json.Unmarshal(payload, &req) != nil || req.FromFile == nil || *req.FromFile == "" {
		return nil, errdefs.InvalidInput(msgInvalidRequest)
	}

	var doc map[string]jsoniter.RawMessage
	if err := json.Unmarshal([]byte(*req.FromFile), &doc); err != nil {
		return nil, errdefs.InvalidInput(msgInvalidJSON)
	}
	raw, ok := doc["critical-services"]
	if !ok {
		return nil, errdefs.InvalidInput(msgMissingKey)
	}

	var services map[string]types.CriticalService
	if err := json.Unmarshal(raw, &services); err != nil {
		return nil, errdefs.InvalidInput(msgInvalidJSON)
	}
	for _, name := range types.SortedKeys(services) {
		svc := services[name]
		if svc.Namespace == "" {
			return nil, errdefs.InvalidInput(fmt.Sprintf("Service %s has no namespace", name))
		}
		if !svc.Type.Valid() {
			return nil, errdefs.InvalidInput(fmt.Sprintf("Service %s has invalid type %q", name, svc.Type))
		}
	}
	return services, nil
}

// Merge adds services absent from reg and reports the rest as existing.
// Existing entries are never modified. Names are processed in sorted order.
func Merge(reg *types.Registry, services map[string]types.CriticalService) (added, existing []string) {
	for _, name := range types.SortedKeys(services) {
		if _, ok := reg.CriticalServices[name]; ok {
			existing = append(existing, name)
			continue
		}
		reg.CriticalServices[name] = services[name]
		added = append(added, name)
	}
	return added, existing
}

// Update merges the services in payload into the static record. The record
// is written back with the version it was read at; when another writer got
// there first the whole read-merge-write is repeated.
func (r *Registry) Update(ctx context.Context, payload []byte, opts UpdateOptions) (*UpdateResult, error) {
	services, err := ParseUpdate(payload)
	if err != nil {
		metrics.RegistryUpdatesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var result *UpdateResult
	err = retry.OnError(retry.DefaultRetry, errdefs.IsConflict, func() error {
		reg, version, err := r.load(ctx)
		if err != nil {
			return err
		}

		added, existing := Merge(reg, services)
		result = &UpdateResult{Update: UpdateSuccessful, Added: added, Existing: existing}
		if len(added) == 0 && len(existing) > 0 {
			result.Update = UpdateAlreadyExists
		}

		if opts.DryRun || len(added)+len(existing) == 0 {
			return nil
		}

		data, err := json.MarshalIndent(reg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode registry: %w", err)
		}
		err = r.store.Write(ctx, r.cfg.Static(), data, version)
		if errdefs.IsConflict(err) {
			metrics.RegistryWriteConflicts.Inc()
			r.logger.Warn().Err(err).Msg("Registry changed during update, retrying")
		}
		return err
	})
	if err != nil {
		metrics.RegistryUpdatesTotal.WithLabelValues("error").Inc()
		r.logger.Error().Err(err).Msg("Failed to update critical services")
		return nil, err
	}

	switch {
	case opts.DryRun:
		metrics.RegistryUpdatesTotal.WithLabelValues("dry_run").Inc()
	case len(result.Added) > 0:
		metrics.RegistryUpdatesTotal.WithLabelValues("added").Inc()
	default:
		metrics.RegistryUpdatesTotal.WithLabelValues("unchanged").Inc()
	}

	r.logger.Info().
		Strs("added", result.Added).
		Strs("existing", result.Existing).
		Bool("dry_run", opts.DryRun).
		Msg("Critical services updated")
	return result, nil
}
