package types

import (
	"encoding/json"
	"strconv"
)

// ResourceKind is the controller type backing a critical service
type ResourceKind string

const (
	KindDeployment  ResourceKind = "Deployment"
	KindStatefulSet ResourceKind = "StatefulSet"
	KindDaemonSet   ResourceKind = "DaemonSet"
)

// Valid reports whether k is one of the supported controller kinds
func (k ResourceKind) Valid() bool {
	switch k {
	case KindDeployment, KindStatefulSet, KindDaemonSet:
		return true
	}
	return false
}

// OwnerKind returns the kind that directly owns pods of this resource.
// Deployments own pods through a ReplicaSet.
func (k ResourceKind) OwnerKind() string {
	if k == KindDeployment {
		return "ReplicaSet"
	}
	return string(k)
}

// CriticalService is a registry entry, keyed by service name
type CriticalService struct {
	Namespace string       `json:"namespace"`
	Type      ResourceKind `json:"type"`
}

// Registry is the static config record payload
type Registry struct {
	CriticalServices map[string]CriticalService `json:"critical-services"`
}

// ServiceStatus is a dynamic config record entry. Balanced is computed
// elsewhere; this module only reshapes it.
type ServiceStatus struct {
	Namespace string       `json:"namespace"`
	Type      ResourceKind `json:"type,omitempty"`
	Status    string       `json:"status"`
	Balanced  Flag         `json:"balanced"`
}

// Flag is a boolean-ish value that the status writer may emit either as a
// JSON bool or as a string.
type Flag string

// UnmarshalJSON accepts true, false, "true", "false" and any other string
func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(strconv.FormatBool(b))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = Flag(s)
	return nil
}

// StatusRegistry is the dynamic config record payload
type StatusRegistry struct {
	CriticalServices map[string]ServiceStatus `json:"critical-services"`
}

// ServiceInstance is a live pod attributed to a zone
type ServiceInstance struct {
	Name   string `json:"Name"`
	Status string `json:"Status"`
	Node   string `json:"Node"`
	Zone   string `json:"Zone"`
}

// ZoneUnknown is used for instances whose host is not in any zone
const ZoneUnknown = "unknown"

// RecordRef addresses one key of a config record
type RecordRef struct {
	Name      string
	Namespace string
	Key       string
}

func (r RecordRef) String() string {
	return r.Namespace + "/" + r.Name + "/" + r.Key
}

// Record is a config record value and the version it was read at.
// Value is nil when the record exists but the key does not.
type Record struct {
	Value   []byte
	Version string
}
