package zones

import (
	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/types"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Information messages for partially or fully unconfigured authorities
const (
	InfoNoZones        = "No zones (K8s topology and Ceph) configured"
	InfoNoKubeZones    = "No K8s topology zones configured"
	InfoNoStorageZones = "No CEPH zones configured"
)

// Section type labels used by Describe
const (
	TypeKubeZone    = "Kubernetes Topology Zone"
	TypeStorageZone = "CEPH Zone"
)

// KubeSection lists the topology node names of a zone
type KubeSection struct {
	Masters []string `json:"Management Master Nodes,omitempty"`
	Workers []string `json:"Management Worker Nodes,omitempty"`
}

// StorageSection lists the storage node names of a zone
type StorageSection struct {
	Nodes []string `json:"Management Storage Nodes"`
}

// ZoneEntry is one element of a zone summary
type ZoneEntry struct {
	Name    string          `json:"Zone Name"`
	Kube    *KubeSection    `json:"Kubernetes Topology Zone,omitempty"`
	Storage *StorageSection `json:"CEPH Zone,omitempty"`
}

// Summary is the zone listing
type Summary struct {
	Zones       []ZoneEntry `json:"Zones"`
	Information string      `json:"Information,omitempty"`
}

// NodeDetail is a topology node in a zone description
type NodeDetail struct {
	Name   string           `json:"Name"`
	Status types.NodeStatus `json:"Status"`
}

// StorageDetail is a storage node in a zone description
type StorageDetail struct {
	Name   string              `json:"Name"`
	Status string              `json:"Status"`
	OSDs   map[string][]string `json:"OSDs"`
}

// NodeGroup is one non-empty node category of a zone description
type NodeGroup[T any] struct {
	Type  string `json:"Type"`
	Nodes []T    `json:"Nodes"`
}

// Description is the per-zone detail view
type Description struct {
	Name         string                    `json:"Zone Name"`
	MasterCount  int                       `json:"Management Masters"`
	WorkerCount  int                       `json:"Management Workers"`
	StorageCount int                       `json:"Management Storages"`
	Masters      *NodeGroup[NodeDetail]    `json:"Management Master,omitempty"`
	Workers      *NodeGroup[NodeDetail]    `json:"Management Worker,omitempty"`
	Storage      *NodeGroup[StorageDetail] `json:"Management Storage,omitempty"`
	Information  string                    `json:"Information,omitempty"`
}

// information inspects both snapshots. It returns the first authority fault,
// or the note to attach when one or both sides define no zones.
func information(kube types.KubeSnapshot, storage types.StorageSnapshot) (string, error) {
	if kube.State == types.SnapshotFailed {
		return "", kube.Err
	}
	if storage.State == types.SnapshotFailed {
		return "", storage.Err
	}

	kubeNone := kube.State == types.SnapshotUnconfigured
	storageNone := storage.State == types.SnapshotUnconfigured
	switch {
	case kubeNone && storageNone:
		return InfoNoZones, nil
	case kubeNone:
		return InfoNoKubeZones, nil
	case storageNone:
		return InfoNoStorageZones, nil
	}
	return "", nil
}

// Summarize lists every zone with any presence in either authority, sorted by
// zone name. Both authorities unconfigured yields an empty list and an
// informational note; a failed authority fails the whole summary.
func Summarize(kube types.KubeSnapshot, storage types.StorageSnapshot) (*Summary, error) {
	info, err := information(kube, storage)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Zones: []ZoneEntry{}, Information: info}
	names := sets.KeySet(kube.Zones).Union(sets.KeySet(storage.Zones))
	for _, name := range sets.List(names) {
		entry := ZoneEntry{Name: name}

		if kz, ok := kube.Zone(name); ok && !kz.Empty() {
			entry.Kube = &KubeSection{
				Masters: nonEmpty(types.NodeNames(kz.Masters)),
				Workers: nonEmpty(types.NodeNames(kz.Workers)),
			}
		}
		if sz, ok := storage.Zone(name); ok && len(sz) > 0 {
			entry.Storage = &StorageSection{Nodes: types.StorageNodeNames(sz)}
		}

		if entry.Kube == nil && entry.Storage == nil {
			continue
		}
		summary.Zones = append(summary.Zones, entry)
	}
	return summary, nil
}

// Describe reports node counts and details for a single zone. A zone with no
// presence in either authority is NotFound; both authorities unconfigured is
// reported as Unconfigured.
func Describe(name string, kube types.KubeSnapshot, storage types.StorageSnapshot) (*Description, error) {
	info, err := information(kube, storage)
	if err != nil {
		return nil, err
	}
	if info == InfoNoZones {
		return nil, errdefs.Unconfigured(info)
	}

	kz, _ := kube.Zone(name)
	sz, _ := storage.Zone(name)
	if kz.Empty() && len(sz) == 0 {
		return nil, errdefs.NotFound("Zone not found")
	}

	desc := &Description{
		Name:         name,
		MasterCount:  len(kz.Masters),
		WorkerCount:  len(kz.Workers),
		StorageCount: len(sz),
		Information:  info,
	}
	if len(kz.Masters) > 0 {
		desc.Masters = &NodeGroup[NodeDetail]{Type: TypeKubeZone, Nodes: nodeDetails(kz.Masters)}
	}
	if len(kz.Workers) > 0 {
		desc.Workers = &NodeGroup[NodeDetail]{Type: TypeKubeZone, Nodes: nodeDetails(kz.Workers)}
	}
	if len(sz) > 0 {
		group := &NodeGroup[StorageDetail]{Type: TypeStorageZone}
		for _, n := range sz {
			group.Nodes = append(group.Nodes, StorageDetail{Name: n.Name, Status: n.Status, OSDs: n.OSDsByStatus()})
		}
		desc.Storage = group
	}
	return desc, nil
}

func nodeDetails(nodes []types.Node) []NodeDetail {
	out := make([]NodeDetail, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NodeDetail{Name: n.Name, Status: n.Status})
	}
	return out
}

func nonEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
