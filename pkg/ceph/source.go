package ceph

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Commands used to query the cluster
const (
	OSDTreeCommand  = "ceph osd tree -f json-pretty"
	HostListCommand = "ceph orch host ls -f json-pretty"
)

// Placement tree node types
const (
	TypeRack = "rack"
	TypeHost = "host"
	TypeOSD  = "osd"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TreeNode is one entry of the placement tree
type TreeNode struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Children []int  `json:"children,omitempty"`
	Status   string `json:"status,omitempty"`
}

// OSDTree is the output of `ceph osd tree`
type OSDTree struct {
	Nodes []TreeNode `json:"nodes"`
}

// HostStatus is one entry of `ceph orch host ls`
type HostStatus struct {
	Hostname string `json:"hostname"`
	Status   string `json:"status"`
}

// Source provides the two raw views the storage mapper needs
type Source interface {
	OSDTree(ctx context.Context) (*OSDTree, error)
	Hosts(ctx context.Context) ([]HostStatus, error)
}

// CLISource queries the cluster through the ceph CLI
type CLISource struct {
	runner CommandRunner
}

// NewCLISource creates a Source running ceph commands with runner
func NewCLISource(runner CommandRunner) *CLISource {
	return &CLISource{runner: runner}
}

// OSDTree fetches and decodes the placement tree
func (s *CLISource) OSDTree(ctx context.Context) (*OSDTree, error) {
	out, err := s.runner.Run(ctx, OSDTreeCommand)
	if err != nil {
		return nil, err
	}
	var tree OSDTree
	if err := json.Unmarshal(out, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode osd tree: %w", err)
	}
	return &tree, nil
}

// Hosts fetches and decodes the host status list
func (s *CLISource) Hosts(ctx context.Context) ([]HostStatus, error) {
	out, err := s.runner.Run(ctx, HostListCommand)
	if err != nil {
		return nil, err
	}
	var hosts []HostStatus
	if err := json.Unmarshal(out, &hosts); err != nil {
		return nil, fmt.Errorf("failed to decode host list: %w", err)
	}
	return hosts, nil
}
