package kube

import (
	"context"
	"fmt"
	"io"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	kwait "k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/3leaps/qpsrunner/pkg/cluster"
)

// readyPollInterval paces WaitUntilReady observations.
const readyPollInterval = 2 * time.Second

// Gateway implements cluster.Gateway against a Kubernetes API server.
type Gateway struct {
	client kubernetes.Interface
}

// Ensure Gateway implements the interface.
var _ cluster.Gateway = (*Gateway)(nil)

// New creates a gateway from the given configuration.
func New(cfg Config) (*Gateway, error) {
	restCfg, err := loadRESTConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes client: %w", err)
	}
	return &Gateway{client: client}, nil
}

// NewWithClient creates a gateway around an existing clientset.
// Used by tests with a fake clientset.
func NewWithClient(client kubernetes.Interface) *Gateway {
	return &Gateway{client: client}
}

func loadRESTConfig(cfg Config) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		rules.ExplicitPath = cfg.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{}
	if cfg.Context != "" {
		overrides.CurrentContext = cfg.Context
	}
	restCfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err == nil {
		return restCfg, nil
	}

	// Outside a kubeconfig, fall back to in-cluster credentials.
	if inCluster, icErr := rest.InClusterConfig(); icErr == nil {
		return inCluster, nil
	}
	return nil, fmt.Errorf("load kubeconfig: %w", err)
}

// CreateSecret creates an opaque secret with the given string data.
func (g *Gateway) CreateSecret(ctx context.Context, name, namespace string, data map[string]string) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Type:       corev1.SecretTypeOpaque,
		StringData: data,
	}
	_, err := g.client.CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{})
	if err != nil {
		return g.wrap("CreateSecret", cluster.ResourceRef{Kind: cluster.KindSecret, Name: name, Namespace: namespace}, err)
	}
	return nil
}

// ApplyJob submits a batch job to the cluster.
func (g *Gateway) ApplyJob(ctx context.Context, job *batchv1.Job) error {
	_, err := g.client.BatchV1().Jobs(job.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return g.wrap("ApplyJob", cluster.ResourceRef{Kind: cluster.KindJob, Name: job.Name, Namespace: job.Namespace}, err)
	}
	return nil
}

// FindJobPod resolves the pod created for the named job via the
// job-name label the job controller stamps on its pods.
func (g *Gateway) FindJobPod(ctx context.Context, jobName, namespace string) (cluster.ResourceRef, error) {
	pods, err := g.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "job-name=" + jobName,
	})
	if err != nil {
		return cluster.ResourceRef{}, g.wrap("FindJobPod", cluster.ResourceRef{Kind: cluster.KindJob, Name: jobName, Namespace: namespace}, err)
	}
	if len(pods.Items) == 0 {
		return cluster.ResourceRef{}, &cluster.GatewayError{
			Op:  "FindJobPod",
			Ref: cluster.ResourceRef{Kind: cluster.KindJob, Name: jobName, Namespace: namespace},
			Err: cluster.ErrNotFound,
		}
	}
	return cluster.ResourceRef{
		Kind:      cluster.KindPod,
		Name:      pods.Items[0].Name,
		Namespace: namespace,
	}, nil
}

// GetPhase observes one container of a pod. Lookup failures of any kind
// yield PhaseUnknown so the poller can retry without a phase regression.
func (g *Gateway) GetPhase(ctx context.Context, ref cluster.ResourceRef, container string) cluster.PhaseStatus {
	pod, err := g.client.CoreV1().Pods(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return cluster.PhaseStatus{Phase: cluster.PhaseUnknown}
	}

	status, ok := findContainerStatus(pod, container)
	if !ok {
		// Container not reported yet; the pod exists but has no status
		// for it, which means it has not started.
		return cluster.PhaseStatus{Phase: cluster.PhasePending}
	}

	switch {
	case status.State.Terminated != nil:
		return cluster.PhaseStatus{
			Phase:    cluster.PhaseTerminated,
			ExitCode: status.State.Terminated.ExitCode,
		}
	case status.State.Running != nil:
		return cluster.PhaseStatus{Phase: cluster.PhaseRunning}
	default:
		return cluster.PhaseStatus{Phase: cluster.PhasePending}
	}
}

func findContainerStatus(pod *corev1.Pod, container string) (corev1.ContainerStatus, bool) {
	for _, s := range pod.Status.InitContainerStatuses {
		if s.Name == container {
			return s, true
		}
	}
	for _, s := range pod.Status.ContainerStatuses {
		if s.Name == container {
			return s, true
		}
	}
	return corev1.ContainerStatus{}, false
}

// FetchLogs returns the currently available logs of a container.
func (g *Gateway) FetchLogs(ctx context.Context, ref cluster.ResourceRef, container string) ([]byte, error) {
	req := g.client.CoreV1().Pods(ref.Namespace).GetLogs(ref.Name, &corev1.PodLogOptions{
		Container: container,
	})
	data, err := req.DoRaw(ctx)
	if err != nil {
		return nil, g.wrap("FetchLogs", ref, err)
	}
	return data, nil
}

// StreamLogs opens a follow-mode log stream for a container.
func (g *Gateway) StreamLogs(ctx context.Context, ref cluster.ResourceRef, container string) (io.ReadCloser, error) {
	req := g.client.CoreV1().Pods(ref.Namespace).GetLogs(ref.Name, &corev1.PodLogOptions{
		Container: container,
		Follow:    true,
	})
	rc, err := req.Stream(ctx)
	if err != nil {
		return nil, g.wrap("StreamLogs", ref, err)
	}
	return rc, nil
}

// Delete removes a resource. A missing resource is success.
func (g *Gateway) Delete(ctx context.Context, ref cluster.ResourceRef) error {
	var err error
	switch ref.Kind {
	case cluster.KindSecret:
		err = g.client.CoreV1().Secrets(ref.Namespace).Delete(ctx, ref.Name, metav1.DeleteOptions{})
	case cluster.KindConfigMap:
		err = g.client.CoreV1().ConfigMaps(ref.Namespace).Delete(ctx, ref.Name, metav1.DeleteOptions{})
	case cluster.KindJob:
		// Foreground propagation so the job's pods go with it.
		policy := metav1.DeletePropagationForeground
		err = g.client.BatchV1().Jobs(ref.Namespace).Delete(ctx, ref.Name, metav1.DeleteOptions{
			PropagationPolicy: &policy,
		})
	case cluster.KindPod:
		err = g.client.CoreV1().Pods(ref.Namespace).Delete(ctx, ref.Name, metav1.DeleteOptions{})
	default:
		return &cluster.GatewayError{Op: "Delete", Ref: ref, Err: fmt.Errorf("unsupported kind %q", ref.Kind)}
	}
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return g.wrap("Delete", ref, err)
	}
	return nil
}

// WaitUntilReady blocks until the named container is running or
// terminated, up to timeout.
func (g *Gateway) WaitUntilReady(ctx context.Context, ref cluster.ResourceRef, container string, timeout time.Duration) error {
	err := kwait.PollUntilContextTimeout(ctx, readyPollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		status := g.GetPhase(ctx, ref, container)
		return status.Phase == cluster.PhaseRunning || status.Phase == cluster.PhaseTerminated, nil
	})
	if err != nil {
		return &cluster.GatewayError{Op: "WaitUntilReady", Ref: ref, Err: cluster.ErrWaitTimeout}
	}
	return nil
}

// wrap maps client-go errors onto the gateway sentinel set.
func (g *Gateway) wrap(op string, ref cluster.ResourceRef, err error) error {
	mapped := err
	switch {
	case apierrors.IsNotFound(err):
		mapped = fmt.Errorf("%w: %v", cluster.ErrNotFound, err)
	case apierrors.IsAlreadyExists(err):
		mapped = fmt.Errorf("%w: %v", cluster.ErrAlreadyExists, err)
	case apierrors.IsUnauthorized(err), apierrors.IsForbidden(err):
		mapped = fmt.Errorf("%w: %v", cluster.ErrUnauthorized, err)
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err):
		// BadRequest is also what the kubelet returns for logs of a
		// container that has not started.
		if op == "FetchLogs" || op == "StreamLogs" {
			mapped = fmt.Errorf("%w: %v", cluster.ErrNotReady, err)
		} else {
			mapped = fmt.Errorf("%w: %v", cluster.ErrInvalidManifest, err)
		}
	case apierrors.IsServiceUnavailable(err), apierrors.IsServerTimeout(err), apierrors.IsTimeout(err):
		mapped = fmt.Errorf("%w: %v", cluster.ErrUnavailable, err)
	}
	return &cluster.GatewayError{Op: op, Ref: ref, Err: mapped}
}
