package kube

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/metrics"
	"github.com/cuemby/rackmon/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func newNode(name, zone string, conds ...corev1.ConditionStatus) corev1.Node {
	n := corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: name, Labels: map[string]string{}}}
	if zone != "" {
		n.Labels[DefaultZoneLabel] = zone
	}
	for _, c := range conds {
		n.Status.Conditions = append(n.Status.Conditions, corev1.NodeCondition{Type: corev1.NodeReady, Status: c})
	}
	return n
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name  string
		conds []corev1.ConditionStatus
		want  types.NodeStatus
	}{
		{name: "no conditions", want: types.NodeStatusUnknown},
		{name: "latest true", conds: []corev1.ConditionStatus{corev1.ConditionFalse, corev1.ConditionTrue}, want: types.NodeStatusReady},
		{name: "latest false", conds: []corev1.ConditionStatus{corev1.ConditionTrue, corev1.ConditionFalse}, want: types.NodeStatusNotReady},
		{name: "latest unknown", conds: []corev1.ConditionStatus{corev1.ConditionUnknown}, want: types.NodeStatusNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newNode("ncn-w001", "x3000", tt.conds...)
			assert.Equal(t, tt.want, Readiness(&n))
		})
	}
}

func TestMapNodes(t *testing.T) {
	nodes := []corev1.Node{
		newNode("ncn-m001", "x3000", corev1.ConditionTrue),
		newNode("ncn-w001", "x3000", corev1.ConditionFalse),
		newNode("ncn-w002", "x3001", corev1.ConditionTrue),
		newNode("ncn-s001", "x3002", corev1.ConditionTrue),
		newNode("uan01", "x3000", corev1.ConditionTrue),
		newNode("ncn-w003", ""),
	}

	s := MapNodes(nodes, DefaultClassifier())

	require.Equal(t, types.SnapshotConfigured, s.State)
	assert.ElementsMatch(t, []string{"x3000", "x3001", "x3002"}, types.SortedKeys(s.Zones))

	a := s.Zones["x3000"]
	assert.Equal(t, []types.Node{{Name: "ncn-m001", Role: types.NodeRoleMaster, Zone: "x3000", Status: types.NodeStatusReady}}, a.Masters)
	assert.Equal(t, []types.Node{{Name: "ncn-w001", Role: types.NodeRoleWorker, Zone: "x3000", Status: types.NodeStatusNotReady}}, a.Workers)

	// a zone label on unclassified nodes still yields the key, but no nodes
	assert.True(t, s.Zones["x3002"].Empty())

	for _, z := range s.Zones {
		for _, n := range append(z.Masters, z.Workers...) {
			assert.NotEqual(t, "uan01", n.Name)
			assert.NotEqual(t, "ncn-s001", n.Name)
		}
	}
}

func TestMapNodesUnconfigured(t *testing.T) {
	nodes := []corev1.Node{newNode("ncn-m001", ""), newNode("ncn-w001", "")}

	s := MapNodes(nodes, DefaultClassifier())

	assert.Equal(t, types.SnapshotUnconfigured, s.State)
	assert.Nil(t, s.Zones)
	_, ok := s.Zone("x3000")
	assert.False(t, ok)
}

func TestMapNodesCustomClassifier(t *testing.T) {
	c := NodeClassifier{ZoneLabel: "rack", MasterPrefix: "cp-", WorkerPrefix: "wk-"}
	nodes := []corev1.Node{
		{ObjectMeta: metav1.ObjectMeta{Name: "cp-1", Labels: map[string]string{"rack": "r1"}}},
		{ObjectMeta: metav1.ObjectMeta{Name: "wk-1", Labels: map[string]string{"rack": "r1"}}},
	}

	s := MapNodes(nodes, c)

	require.Equal(t, types.SnapshotConfigured, s.State)
	assert.Len(t, s.Zones["r1"].Masters, 1)
	assert.Len(t, s.Zones["r1"].Workers, 1)
	assert.Equal(t, types.NodeStatusUnknown, s.Zones["r1"].Masters[0].Status)
}

func TestNodeZoneIndex(t *testing.T) {
	s := MapNodes([]corev1.Node{
		newNode("ncn-m001", "x3000"),
		newNode("ncn-w001", "x3001"),
	}, DefaultClassifier())

	index := NodeZoneIndex(s)

	assert.Equal(t, map[string]string{"ncn-m001": "x3000", "ncn-w001": "x3001"}, index)
	assert.Empty(t, NodeZoneIndex(types.Unconfigured[types.KubeZone]()))
	assert.Empty(t, NodeZoneIndex(types.Failed[types.KubeZone](errors.New("x"))))
}

func TestTopologyMapperZones(t *testing.T) {
	m1 := newNode("ncn-m001", "x3000", corev1.ConditionTrue)
	w1 := newNode("ncn-w001", "x3000", corev1.ConditionFalse)
	client := fake.NewSimpleClientset(&m1, &w1)

	s := NewTopologyMapper(client, DefaultClassifier()).Zones(context.Background())

	require.Equal(t, types.SnapshotConfigured, s.State)
	assert.Equal(t, []string{"ncn-m001"}, types.NodeNames(s.Zones["x3000"].Masters))
	assert.Equal(t, []string{"ncn-w001"}, types.NodeNames(s.Zones["x3000"].Workers))
}

func TestTopologyMapperZonesFailure(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("list", "nodes", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("connection refused")
	})

	s := NewTopologyMapper(client, DefaultClassifier()).Zones(context.Background())

	require.Equal(t, types.SnapshotFailed, s.State)
	assert.Equal(t, errdefs.ClassSourceFailure, errdefs.ClassOf(s.Err))
	assert.Contains(t, s.Err.Error(), "connection refused")
	assert.Nil(t, s.Zones)
}

func TestRecordNodeMetricsConcurrent(t *testing.T) {
	snapshot := MapNodes([]corev1.Node{
		newNode("ncn-m001", "x3000", corev1.ConditionTrue),
		newNode("ncn-m002", "x3001", corev1.ConditionTrue),
		newNode("ncn-w001", "x3000", corev1.ConditionFalse),
	}, DefaultClassifier())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recordNodeMetrics(snapshot)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.NodesTotal.WithLabelValues("master", "Ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NodesTotal.WithLabelValues("worker", "NotReady")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ZonesTotal.WithLabelValues("kubernetes")))
}
