package zones

import (
	"context"

	"github.com/cuemby/rackmon/pkg/log"
	"github.com/cuemby/rackmon/pkg/types"
	"github.com/rs/zerolog"
)

// KubeTopology produces the compute-node zone view
type KubeTopology interface {
	Zones(ctx context.Context) types.KubeSnapshot
}

// StorageTopology produces the storage-node zone view
type StorageTopology interface {
	Zones(ctx context.Context) types.StorageSnapshot
}

// Service fetches both authorities on every call and fuses them
type Service struct {
	kube    KubeTopology
	storage StorageTopology
	logger  zerolog.Logger
}

// NewService creates a zone service
func NewService(kube KubeTopology, storage StorageTopology) *Service {
	return &Service{
		kube:    kube,
		storage: storage,
		logger:  log.WithComponent("zones"),
	}
}

// Summary lists all zones
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	summary, err := Summarize(s.kube.Zones(ctx), s.storage.Zones(ctx))
	if err != nil {
		s.logger.Error().Err(err).Msg("Zone summary failed")
		return nil, err
	}
	s.logger.Debug().Int("zones", len(summary.Zones)).Msg("Zone summary")
	return summary, nil
}

// Describe returns the detail of one zone
func (s *Service) Describe(ctx context.Context, name string) (*Description, error) {
	desc, err := Describe(name, s.kube.Zones(ctx), s.storage.Zones(ctx))
	if err != nil {
		logger := log.WithZone(name)
		logger.Debug().Err(err).Msg("Zone describe failed")
		return nil, err
	}
	return desc, nil
}
