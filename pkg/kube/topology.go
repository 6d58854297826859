package kube

import (
	"context"
	"strings"
	"sync"

	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/log"
	"github.com/cuemby/rackmon/pkg/metrics"
	"github.com/cuemby/rackmon/pkg/types"
	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Defaults for the node naming convention of the management rack
const (
	DefaultZoneLabel    = "topology.kubernetes.io/zone"
	DefaultMasterPrefix = "ncn-m"
	DefaultWorkerPrefix = "ncn-w"
)

// NodeClassifier decides zone and role for Kubernetes nodes
type NodeClassifier struct {
	ZoneLabel    string
	MasterPrefix string
	WorkerPrefix string
}

// DefaultClassifier returns the classifier for the standard rack layout
func DefaultClassifier() NodeClassifier {
	return NodeClassifier{
		ZoneLabel:    DefaultZoneLabel,
		MasterPrefix: DefaultMasterPrefix,
		WorkerPrefix: DefaultWorkerPrefix,
	}
}

// Role returns the role implied by the node name, or false for nodes that
// are neither masters nor workers
func (c NodeClassifier) Role(name string) (types.NodeRole, bool) {
	switch {
	case strings.HasPrefix(name, c.MasterPrefix):
		return types.NodeRoleMaster, true
	case strings.HasPrefix(name, c.WorkerPrefix):
		return types.NodeRoleWorker, true
	}
	return "", false
}

// Readiness maps the latest node condition to a node status
func Readiness(node *corev1.Node) types.NodeStatus {
	conds := node.Status.Conditions
	if len(conds) == 0 {
		return types.NodeStatusUnknown
	}
	if conds[len(conds)-1].Status == corev1.ConditionTrue {
		return types.NodeStatusReady
	}
	return types.NodeStatusNotReady
}

// MapNodes groups nodes by zone label. Every distinct zone label becomes a key,
// even if none of its nodes is a master or worker.
func MapNodes(nodes []corev1.Node, c NodeClassifier) types.KubeSnapshot {
	zones := make(map[string]types.KubeZone)

	for i := range nodes {
		node := &nodes[i]
		zone := node.Labels[c.ZoneLabel]
		if zone == "" {
			continue
		}

		entry := zones[zone]
		role, ok := c.Role(node.Name)
		if ok {
			n := types.Node{
				Name:   node.Name,
				Role:   role,
				Zone:   zone,
				Status: Readiness(node),
			}
			if role == types.NodeRoleMaster {
				entry.Masters = append(entry.Masters, n)
			} else {
				entry.Workers = append(entry.Workers, n)
			}
		}
		zones[zone] = entry
	}

	if len(zones) == 0 {
		return types.Unconfigured[types.KubeZone]()
	}
	return types.Configured(zones)
}

// NodeZoneIndex maps every master and worker node name to its zone.
// Non-configured snapshots yield an empty index.
func NodeZoneIndex(s types.KubeSnapshot) map[string]string {
	index := make(map[string]string)
	if s.State != types.SnapshotConfigured {
		return index
	}
	for zone, z := range s.Zones {
		for _, n := range z.Masters {
			index[n.Name] = zone
		}
		for _, n := range z.Workers {
			index[n.Name] = zone
		}
	}
	return index
}

// TopologyMapper builds the per-zone node view from the live cluster
type TopologyMapper struct {
	client     kubernetes.Interface
	classifier NodeClassifier
	logger     zerolog.Logger
}

// NewTopologyMapper creates a mapper over the given client
func NewTopologyMapper(client kubernetes.Interface, c NodeClassifier) *TopologyMapper {
	return &TopologyMapper{
		client:     client,
		classifier: c,
		logger:     log.WithComponent("kube"),
	}
}

// Zones lists the nodes and maps them. It never returns a partial mapping.
func (m *TopologyMapper) Zones(ctx context.Context) types.KubeSnapshot {
	timer := metrics.NewTimer()
	list, err := m.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	metrics.ObserveFetch(metrics.SourceKubeNodes, timer, err)
	metrics.ReportSource(metrics.ComponentKubernetes, err)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to list nodes")
		return types.Failed[types.KubeZone](errdefs.SourceFailure("failed to list kubernetes nodes", err))
	}

	snapshot := MapNodes(list.Items, m.classifier)
	recordNodeMetrics(snapshot)

	m.logger.Debug().
		Int("nodes", len(list.Items)).
		Int("zones", len(snapshot.Zones)).
		Str("state", snapshot.State.String()).
		Msg("Mapped kubernetes topology")
	return snapshot
}

// nodeMetricsMu serializes gauge rewrites from concurrent requests
var nodeMetricsMu sync.Mutex

type nodeLabels struct {
	role   types.NodeRole
	status types.NodeStatus
}

func recordNodeMetrics(s types.KubeSnapshot) {
	counts := make(map[nodeLabels]int)
	for _, z := range s.Zones {
		for _, n := range z.Masters {
			counts[nodeLabels{n.Role, n.Status}]++
		}
		for _, n := range z.Workers {
			counts[nodeLabels{n.Role, n.Status}]++
		}
	}

	nodeMetricsMu.Lock()
	defer nodeMetricsMu.Unlock()
	metrics.ZonesTotal.WithLabelValues("kubernetes").Set(float64(len(s.Zones)))
	metrics.NodesTotal.Reset()
	for l, n := range counts {
		metrics.NodesTotal.WithLabelValues(string(l.role), string(l.status)).Set(float64(n))
	}
}
