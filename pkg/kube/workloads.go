package kube

import (
	"context"
	"fmt"

	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/metrics"
	"github.com/cuemby/rackmon/pkg/types"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Workloads reads pods and controller specs
type Workloads struct {
	client kubernetes.Interface
}

// NewWorkloads creates a workload reader over the given client
func NewWorkloads(client kubernetes.Interface) *Workloads {
	return &Workloads{client: client}
}

// ListPods returns every pod in namespace
func (w *Workloads) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	timer := metrics.NewTimer()
	list, err := w.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	metrics.ObserveFetch(metrics.SourceKubePods, timer, err)
	if err != nil {
		return nil, errdefs.SourceFailure(fmt.Sprintf("failed to list pods in namespace %s", namespace), err)
	}
	return list.Items, nil
}

// ConfiguredInstances returns the declared replica count of a controller.
// DaemonSets report how many pods they are meant to schedule.
func (w *Workloads) ConfiguredInstances(ctx context.Context, kind types.ResourceKind, namespace, name string) (int, error) {
	timer := metrics.NewTimer()
	count, err := w.configured(ctx, kind, namespace, name)
	metrics.ObserveFetch(metrics.SourceKubeWorkload, timer, err)
	if err != nil {
		return 0, errdefs.SourceFailure(fmt.Sprintf("failed to read %s %s/%s", kind, namespace, name), err)
	}
	return count, nil
}

func (w *Workloads) configured(ctx context.Context, kind types.ResourceKind, namespace, name string) (int, error) {
	apps := w.client.AppsV1()
	switch kind {
	case types.KindDeployment:
		d, err := apps.Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return 0, err
		}
		return replicas(d.Spec.Replicas), nil
	case types.KindStatefulSet:
		s, err := apps.StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return 0, err
		}
		return replicas(s.Spec.Replicas), nil
	case types.KindDaemonSet:
		d, err := apps.DaemonSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return 0, err
		}
		return int(d.Status.DesiredNumberScheduled), nil
	default:
		return 0, fmt.Errorf("unsupported resource type %q", kind)
	}
}

// replicas applies the API server default of one replica to an unset field
func replicas(r *int32) int {
	if r == nil {
		return 1
	}
	return int(*r)
}
