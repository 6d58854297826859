package correlator

import (
	"context"
	"strings"

	"github.com/cuemby/rackmon/pkg/kube"
	"github.com/cuemby/rackmon/pkg/log"
	"github.com/cuemby/rackmon/pkg/types"
	corev1 "k8s.io/api/core/v1"
)

// Result is the live view of one critical service
type Result struct {
	Configured int
	Running    int
	PerZone    map[string]int
	Instances  []types.ServiceInstance
}

// Owns reports whether pod belongs to the service. A pod belongs when one of
// its owners has the kind expected for the resource and a name starting with
// the service name. The prefix test also matches unrelated services sharing a
// prefix (e.g. "cray-dns" and "cray-dns-unbound").
func Owns(pod *corev1.Pod, name string, kind types.ResourceKind) bool {
	ownerKind := kind.OwnerKind()
	for _, ref := range pod.OwnerReferences {
		if ref.Kind == ownerKind && strings.HasPrefix(ref.Name, name) {
			return true
		}
	}
	return false
}

// Correlate filters pods down to the service's instances and attributes each
// to the zone of its host node. Hosts missing from index land in the
// "unknown" zone.
func Correlate(pods []corev1.Pod, name string, svc types.CriticalService, index map[string]string) *Result {
	res := &Result{
		PerZone:   make(map[string]int),
		Instances: []types.ServiceInstance{},
	}
	for i := range pods {
		pod := &pods[i]
		if !Owns(pod, name, svc.Type) {
			continue
		}

		zone, ok := index[pod.Spec.NodeName]
		if !ok {
			zone = types.ZoneUnknown
		}
		if pod.Status.Phase == corev1.PodRunning {
			res.Running++
		}
		res.PerZone[zone]++
		res.Instances = append(res.Instances, types.ServiceInstance{
			Name:   pod.Name,
			Status: string(pod.Status.Phase),
			Node:   pod.Spec.NodeName,
			Zone:   zone,
		})
	}
	return res
}

// NodeTopology produces the compute-node zone view
type NodeTopology interface {
	Zones(ctx context.Context) types.KubeSnapshot
}

// Correlator resolves live instances of critical services
type Correlator struct {
	topology  NodeTopology
	workloads *kube.Workloads
}

// New creates a correlator
func New(topology NodeTopology, workloads *kube.Workloads) *Correlator {
	return &Correlator{
		topology:  topology,
		workloads: workloads,
	}
}

// Instances re-reads topology, pods and the controller spec on every call
func (c *Correlator) Instances(ctx context.Context, name string, svc types.CriticalService) (*Result, error) {
	snapshot := c.topology.Zones(ctx)
	if snapshot.State == types.SnapshotFailed {
		return nil, snapshot.Err
	}
	index := kube.NodeZoneIndex(snapshot)

	pods, err := c.workloads.ListPods(ctx, svc.Namespace)
	if err != nil {
		return nil, err
	}
	res := Correlate(pods, name, svc, index)

	configured, err := c.workloads.ConfiguredInstances(ctx, svc.Type, svc.Namespace, name)
	if err != nil {
		return nil, err
	}
	res.Configured = configured

	logger := log.WithService(name, svc.Namespace)
	logger.Debug().
		Int("configured", res.Configured).
		Int("running", res.Running).
		Int("instances", len(res.Instances)).
		Msg("Correlated service instances")
	return res, nil
}
