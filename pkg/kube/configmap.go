package kube

import (
	"context"
	"fmt"

	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/metrics"
	"github.com/cuemby/rackmon/pkg/types"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ConfigMapStore keeps config records in ConfigMaps
type ConfigMapStore struct {
	client kubernetes.Interface
}

// NewConfigMapStore creates a ConfigMap-backed record store
func NewConfigMapStore(client kubernetes.Interface) *ConfigMapStore {
	return &ConfigMapStore{client: client}
}

// Read returns the value stored under ref.Key together with the ConfigMap's
// resourceVersion
func (s *ConfigMapStore) Read(ctx context.Context, ref types.RecordRef) (*types.Record, error) {
	timer := metrics.NewTimer()
	cm, err := s.client.CoreV1().ConfigMaps(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
	metrics.ObserveFetch(metrics.SourceConfigRecord, timer, err)
	metrics.ReportSource(metrics.ComponentConfigRecord, err)
	if err != nil {
		return nil, errdefs.SourceFailure(fmt.Sprintf("failed to fetch ConfigMap %s/%s", ref.Namespace, ref.Name), err)
	}

	rec := &types.Record{Version: cm.ResourceVersion}
	if v, ok := cm.Data[ref.Key]; ok {
		rec.Value = []byte(v)
	}
	return rec, nil
}

// Write stores value under ref.Key. A non-empty version must match the
// ConfigMap's current resourceVersion, and is also sent to the API server so
// that a concurrent writer between Get and Update is detected there.
func (s *ConfigMapStore) Write(ctx context.Context, ref types.RecordRef, value []byte, version string) error {
	cms := s.client.CoreV1().ConfigMaps(ref.Namespace)

	cm, err := cms.Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return errdefs.SourceFailure(fmt.Sprintf("failed to fetch ConfigMap %s/%s", ref.Namespace, ref.Name), err)
	}
	if version != "" && cm.ResourceVersion != version {
		return errdefs.Conflict(
			fmt.Sprintf("ConfigMap %s/%s changed (read at %s, now %s)", ref.Namespace, ref.Name, version, cm.ResourceVersion), nil)
	}

	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	cm.Data[ref.Key] = string(value)

	if _, err := cms.Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		if apierrors.IsConflict(err) {
			return errdefs.Conflict(fmt.Sprintf("ConfigMap %s/%s changed", ref.Namespace, ref.Name), err)
		}
		return errdefs.SourceFailure(fmt.Sprintf("failed to update ConfigMap %s/%s", ref.Namespace, ref.Name), err)
	}
	return nil
}
