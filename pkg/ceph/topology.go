package ceph

import (
	"context"
	"strings"

	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/log"
	"github.com/cuemby/rackmon/pkg/metrics"
	"github.com/cuemby/rackmon/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultStoragePrefix selects the storage hosts of the management rack
const DefaultStoragePrefix = "ncn-s"

// HostReadiness normalizes an orchestrator host status. Hosts absent from the
// list get "No Status"; an empty or "online" status is Ready; anything else is
// reported as-is.
func HostReadiness(status string, known bool) string {
	if !known {
		return types.StorageStatusNoStatus
	}
	if status == "" || status == "online" {
		return types.StorageStatusReady
	}
	return status
}

// MapStorage turns the placement tree into racks of storage nodes. Every rack
// is a zone, including racks without storage hosts.
func MapStorage(tree *OSDTree, hosts []HostStatus, storagePrefix string) types.StorageSnapshot {
	if tree == nil {
		return types.Unconfigured[[]types.StorageNode]()
	}

	byID := make(map[int]*TreeNode, len(tree.Nodes))
	for i := range tree.Nodes {
		byID[tree.Nodes[i].ID] = &tree.Nodes[i]
	}
	statuses := make(map[string]string, len(hosts))
	for _, h := range hosts {
		statuses[h.Hostname] = h.Status
	}

	zones := make(map[string][]types.StorageNode)
	for _, item := range tree.Nodes {
		if item.Type != TypeRack {
			continue
		}

		nodes := []types.StorageNode{}
		for _, childID := range item.Children {
			host, ok := byID[childID]
			if !ok || host.Type != TypeHost || !strings.HasPrefix(host.Name, storagePrefix) {
				continue
			}
			status, known := statuses[host.Name]
			nodes = append(nodes, types.StorageNode{
				Name:   host.Name,
				Status: HostReadiness(status, known),
				OSDs:   hostOSDs(host, byID),
			})
		}
		zones[item.Name] = nodes
	}

	if len(zones) == 0 {
		return types.Unconfigured[[]types.StorageNode]()
	}
	return types.Configured(zones)
}

func hostOSDs(host *TreeNode, byID map[int]*TreeNode) []types.OSD {
	osds := []types.OSD{}
	for _, id := range host.Children {
		dev, ok := byID[id]
		if !ok || dev.Type != TypeOSD {
			continue
		}
		status := dev.Status
		if status == "" {
			status = types.OSDStatusUnknown
		}
		osds = append(osds, types.OSD{Name: dev.Name, Status: status})
	}
	return osds
}

// TopologyMapper builds the per-zone storage view from the live cluster
type TopologyMapper struct {
	source        Source
	storagePrefix string
	logger        zerolog.Logger
}

// NewTopologyMapper creates a mapper reading from source
func NewTopologyMapper(source Source, storagePrefix string) *TopologyMapper {
	if storagePrefix == "" {
		storagePrefix = DefaultStoragePrefix
	}
	return &TopologyMapper{
		source:        source,
		storagePrefix: storagePrefix,
		logger:        log.WithComponent("ceph"),
	}
}

// Zones fetches the placement tree and the host list concurrently. A failure
// of either fetch cancels the other and fails the whole operation.
func (m *TopologyMapper) Zones(ctx context.Context) types.StorageSnapshot {
	var (
		tree  *OSDTree
		hosts []HostStatus
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		timer := metrics.NewTimer()
		t, err := m.source.OSDTree(gctx)
		metrics.ObserveFetch(metrics.SourceCephTree, timer, err)
		if err != nil {
			return errdefs.SourceFailure("fetch osd tree", err)
		}
		tree = t
		return nil
	})
	g.Go(func() error {
		timer := metrics.NewTimer()
		h, err := m.source.Hosts(gctx)
		metrics.ObserveFetch(metrics.SourceCephHosts, timer, err)
		if err != nil {
			return errdefs.SourceFailure("fetch host list", err)
		}
		hosts = h
		return nil
	})

	err := g.Wait()
	metrics.ReportSource(metrics.ComponentCeph, err)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to fetch ceph topology")
		return types.Failed[[]types.StorageNode](err)
	}

	snapshot := MapStorage(tree, hosts, m.storagePrefix)
	metrics.ZonesTotal.WithLabelValues("ceph").Set(float64(len(snapshot.Zones)))

	m.logger.Debug().
		Int("tree_nodes", len(tree.Nodes)).
		Int("hosts", len(hosts)).
		Int("zones", len(snapshot.Zones)).
		Str("state", snapshot.State.String()).
		Msg("Mapped ceph topology")
	return snapshot
}
