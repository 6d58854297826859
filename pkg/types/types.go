package types

import "sort"

// NodeRole defines the role of a node in a rack
type NodeRole string

const (
	NodeRoleMaster  NodeRole = "master"
	NodeRoleWorker  NodeRole = "worker"
	NodeRoleStorage NodeRole = "storage"
)

// NodeStatus represents the normalized readiness of a Kubernetes node
type NodeStatus string

const (
	NodeStatusReady    NodeStatus = "Ready"
	NodeStatusNotReady NodeStatus = "NotReady"
	NodeStatusUnknown  NodeStatus = "Unknown"
)

// Storage host status values
const (
	StorageStatusReady    = "Ready"
	StorageStatusNoStatus = "No Status"
	OSDStatusUnknown      = "unknown"
)

// Node is a per-fetch snapshot of a compute node
type Node struct {
	Name   string     `json:"name"`
	Role   NodeRole   `json:"role"`
	Zone   string     `json:"zone,omitempty"`
	Status NodeStatus `json:"status"`
}

// KubeZone holds the master and worker nodes labelled with one zone
type KubeZone struct {
	Masters []Node `json:"masters"`
	Workers []Node `json:"workers"`
}

// Empty reports whether the zone holds no classified nodes
func (z KubeZone) Empty() bool {
	return len(z.Masters) == 0 && len(z.Workers) == 0
}

// OSD is a storage device hosted by a storage node
type OSD struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// StorageNode is a Ceph host placed under a rack
type StorageNode struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	OSDs   []OSD  `json:"osds"`
}

// OSDsByStatus groups device names by their status
func (n StorageNode) OSDsByStatus() map[string][]string {
	grouped := make(map[string][]string)
	for _, osd := range n.OSDs {
		grouped[osd.Status] = append(grouped[osd.Status], osd.Name)
	}
	return grouped
}

// NodeNames returns the names of the given nodes, in order
func NodeNames(nodes []Node) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}

// StorageNodeNames returns the names of the given storage nodes, in order
func StorageNodeNames(nodes []StorageNode) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}

// SortedKeys returns the keys of a zone mapping in lexical order
func SortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
