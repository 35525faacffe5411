// Package manifest builds the benchmark job object submitted to the
// cluster.
//
// The job is constructed as typed Kubernetes fields rather than by text
// substitution into a YAML template. An empty toleration list simply
// omits the tolerations field, so no structurally invalid manifest can
// be produced.
//
// The job runs two containers in sequence:
//   - preflight (init): a connectivity and credential check against the
//     target bucket; the main workload only starts if it exits 0.
//   - bench (main): the qps-bench workload itself.
//
// Credentials are injected from a secret as environment variables, never
// written into the manifest.
package manifest

import (
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Container names inside the benchmark pod.
const (
	// InitContainerName is the connectivity pre-check container.
	InitContainerName = "preflight"

	// MainContainerName is the benchmark workload container.
	MainContainerName = "bench"
)

// Secret data keys expected by the generated job.
const (
	SecretKeyAccessKey    = "access_key"
	SecretKeySecretKey    = "secret_key"
	SecretKeySessionToken = "session_token"
)

// Workload defaults, matching the qps-bench binary's own defaults.
const (
	DefaultMode            = "stat"
	DefaultConcurrency     = 64
	DefaultDurationSeconds = 60
	DefaultObjects         = 10000
	DefaultObjectSizeBytes = 1024
)

// Params is the closed set of values substituted into the job.
//
// JobName, Namespace, SecretName, Image, InitImage, Endpoint, Bucket and
// Region are required. The workload knobs default to the qps-bench
// binary's defaults when zero.
type Params struct {
	// JobName names the batch job and its pod.
	JobName string

	// Namespace is the namespace everything is provisioned into.
	Namespace string

	// SecretName is the credential secret referenced by both containers.
	SecretName string

	// Image is the benchmark workload image.
	Image string

	// InitImage is the image for the connectivity pre-check container.
	InitImage string

	// Endpoint is the S3 endpoint URL the workload targets.
	Endpoint string

	// Bucket is the target bucket name.
	Bucket string

	// Region is the S3 region.
	Region string

	// Mode is the qps-bench mode (stat, read_small, write_small, delete,
	// list, read_write). Default: stat.
	Mode string

	// Concurrency caps the workload's parallel operations. Default: 64.
	Concurrency int

	// DurationSeconds bounds the workload run. Default: 60.
	DurationSeconds int

	// Objects is the dataset size in objects. Default: 10000.
	Objects int

	// ObjectSizeBytes is the per-object payload size. Default: 1024.
	ObjectSizeBytes int

	// ForcePathStyle enables path-style addressing for S3-compatible
	// endpoints.
	ForcePathStyle bool

	// Tolerations is an optional list of scheduling tolerations. When
	// empty, the pod spec carries no tolerations field at all.
	Tolerations []corev1.Toleration

	// InjectSessionToken binds AWS_SESSION_TOKEN in the workload
	// environment from the secret's optional session_token key. When the
	// key is absent the binding is marked optional, so the pod still
	// starts. Default: off.
	InjectSessionToken bool
}

// ParamError indicates a required parameter is missing or invalid.
type ParamError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ParamError) Error() string {
	return "manifest params: " + e.Field + ": " + e.Message
}

// validate checks required parameters and applies workload defaults.
func (p *Params) validate() error {
	required := []struct {
		name, value string
	}{
		{"JobName", p.JobName},
		{"Namespace", p.Namespace},
		{"SecretName", p.SecretName},
		{"Image", p.Image},
		{"InitImage", p.InitImage},
		{"Endpoint", p.Endpoint},
		{"Bucket", p.Bucket},
		{"Region", p.Region},
	}
	for _, r := range required {
		if r.value == "" {
			return &ParamError{Field: r.name, Message: "required value is empty"}
		}
	}
	if p.Mode == "" {
		p.Mode = DefaultMode
	}
	if p.Concurrency <= 0 {
		p.Concurrency = DefaultConcurrency
	}
	if p.DurationSeconds <= 0 {
		p.DurationSeconds = DefaultDurationSeconds
	}
	if p.Objects <= 0 {
		p.Objects = DefaultObjects
	}
	if p.ObjectSizeBytes <= 0 {
		p.ObjectSizeBytes = DefaultObjectSizeBytes
	}
	return nil
}

// Build constructs the benchmark job from the given parameters.
func Build(params Params) (*batchv1.Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	backoffLimit := int32(0)
	podSpec := corev1.PodSpec{
		RestartPolicy:  corev1.RestartPolicyNever,
		InitContainers: []corev1.Container{initContainer(params)},
		Containers:     []corev1.Container{mainContainer(params)},
	}
	if len(params.Tolerations) > 0 {
		podSpec.Tolerations = params.Tolerations
	}

	job := &batchv1.Job{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "batch/v1",
			Kind:       "Job",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      params.JobName,
			Namespace: params.Namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":       "qpsrunner",
				"app.kubernetes.io/managed-by": "qpsrunner",
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						"app.kubernetes.io/name": "qpsrunner",
					},
				},
				Spec: podSpec,
			},
		},
	}
	return job, nil
}
