/*
Package types defines the data model shared by the topology mappers, the
zone aggregator and the critical service registry.

# Topology

Both topology sources produce a Snapshot keyed by zone name:

  - KubeSnapshot maps a zone label value to the master and worker nodes
    carrying it.
  - StorageSnapshot maps a Ceph rack bucket to its storage hosts and their
    OSDs.

A Snapshot is in exactly one of three states. Configured carries zones,
Unconfigured means the source answered but has no zoning set up, and Failed
carries the error that prevented the source from answering. Consumers must
not treat a failed source as an unconfigured one.

# Critical Services

Registry is the document stored in the static and dynamic configuration
records. CriticalService names the workload kind and namespace; the dynamic
record adds a status and a balanced flag per service (ServiceStatus).
ServiceInstance describes one running pod of a service and the zone its node
belongs to, or ZoneUnknown.
*/
package types
