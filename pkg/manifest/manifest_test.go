package manifest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/3leaps/qpsrunner/pkg/manifest"
)

func validParams() manifest.Params {
	return manifest.Params{
		JobName:    "qps-bench",
		Namespace:  "qps-bench",
		SecretName: "qps-bench-credentials",
		Image:      "qps-bench:test",
		InitImage:  "aws-cli:test",
		Endpoint:   "http://minio:9000",
		Bucket:     "bench-data",
		Region:     "us-east-1",
	}
}

func TestBuild_RequiredParams(t *testing.T) {
	tests := []struct {
		name  string
		mutup func(*manifest.Params)
		field string
	}{
		{"missing job name", func(p *manifest.Params) { p.JobName = "" }, "JobName"},
		{"missing namespace", func(p *manifest.Params) { p.Namespace = "" }, "Namespace"},
		{"missing secret name", func(p *manifest.Params) { p.SecretName = "" }, "SecretName"},
		{"missing image", func(p *manifest.Params) { p.Image = "" }, "Image"},
		{"missing init image", func(p *manifest.Params) { p.InitImage = "" }, "InitImage"},
		{"missing endpoint", func(p *manifest.Params) { p.Endpoint = "" }, "Endpoint"},
		{"missing bucket", func(p *manifest.Params) { p.Bucket = "" }, "Bucket"},
		{"missing region", func(p *manifest.Params) { p.Region = "" }, "Region"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutup(&params)

			_, err := manifest.Build(params)
			require.Error(t, err)

			var perr *manifest.ParamError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestBuild_Defaults(t *testing.T) {
	job, err := manifest.Build(validParams())
	require.NoError(t, err)

	main := job.Spec.Template.Spec.Containers[0]
	joined := strings.Join(main.Args, " ")
	assert.Contains(t, joined, "--mode stat")
	assert.Contains(t, joined, "--concurrency 64")
	assert.Contains(t, joined, "--duration-seconds 60")
	assert.Contains(t, joined, "--objects 10000")
	assert.Contains(t, joined, "--object-size-bytes 1024")
}

func TestBuild_OneShotJobShape(t *testing.T) {
	job, err := manifest.Build(validParams())
	require.NoError(t, err)

	assert.Equal(t, "qps-bench", job.Name)
	assert.Equal(t, "qps-bench", job.Namespace)
	require.NotNil(t, job.Spec.BackoffLimit)
	assert.Equal(t, int32(0), *job.Spec.BackoffLimit)
	assert.Equal(t, corev1.RestartPolicyNever, job.Spec.Template.Spec.RestartPolicy)

	require.Len(t, job.Spec.Template.Spec.InitContainers, 1)
	assert.Equal(t, manifest.InitContainerName, job.Spec.Template.Spec.InitContainers[0].Name)
	require.Len(t, job.Spec.Template.Spec.Containers, 1)
	assert.Equal(t, manifest.MainContainerName, job.Spec.Template.Spec.Containers[0].Name)
}

func TestBuild_EmptyTolerationsOmitsField(t *testing.T) {
	job, err := manifest.Build(validParams())
	require.NoError(t, err)
	assert.Nil(t, job.Spec.Template.Spec.Tolerations)
}

func TestBuild_TolerationsCarriedWhenSet(t *testing.T) {
	params := validParams()
	params.Tolerations = []corev1.Toleration{
		{Key: "dedicated", Operator: corev1.TolerationOpEqual, Value: "bench", Effect: corev1.TaintEffectNoSchedule},
	}

	job, err := manifest.Build(params)
	require.NoError(t, err)
	require.Len(t, job.Spec.Template.Spec.Tolerations, 1)
	assert.Equal(t, "dedicated", job.Spec.Template.Spec.Tolerations[0].Key)
}

func TestBuild_SessionTokenBinding(t *testing.T) {
	t.Run("off by default", func(t *testing.T) {
		job, err := manifest.Build(validParams())
		require.NoError(t, err)

		main := job.Spec.Template.Spec.Containers[0]
		for _, env := range main.Env {
			assert.NotEqual(t, "AWS_SESSION_TOKEN", env.Name)
		}
		assert.NotContains(t, strings.Join(main.Args, " "), "--session-token")
	})

	t.Run("bound when requested", func(t *testing.T) {
		params := validParams()
		params.InjectSessionToken = true

		job, err := manifest.Build(params)
		require.NoError(t, err)

		main := job.Spec.Template.Spec.Containers[0]
		var found *corev1.EnvVar
		for i, env := range main.Env {
			if env.Name == "AWS_SESSION_TOKEN" {
				found = &main.Env[i]
			}
		}
		require.NotNil(t, found)
		// The key is optional in the secret, so long-term-credential
		// runs still start.
		require.NotNil(t, found.ValueFrom.SecretKeyRef.Optional)
		assert.True(t, *found.ValueFrom.SecretKeyRef.Optional)
		assert.Contains(t, strings.Join(main.Args, " "), "--session-token")
	})

	t.Run("pre-check always gets the binding", func(t *testing.T) {
		job, err := manifest.Build(validParams())
		require.NoError(t, err)

		initC := job.Spec.Template.Spec.InitContainers[0]
		var names []string
		for _, env := range initC.Env {
			names = append(names, env.Name)
		}
		assert.Contains(t, names, "AWS_SESSION_TOKEN")
	})
}

func TestBuild_CredentialsComeFromSecretRefs(t *testing.T) {
	job, err := manifest.Build(validParams())
	require.NoError(t, err)

	for _, c := range append(job.Spec.Template.Spec.InitContainers, job.Spec.Template.Spec.Containers...) {
		for _, env := range c.Env {
			if env.Name == "AWS_ACCESS_KEY_ID" || env.Name == "AWS_SECRET_ACCESS_KEY" {
				require.NotNil(t, env.ValueFrom, "credential %s in %s must be a secret ref", env.Name, c.Name)
				assert.Empty(t, env.Value)
				assert.Equal(t, "qps-bench-credentials", env.ValueFrom.SecretKeyRef.Name)
			}
		}
	}
}

func TestRenderYAML(t *testing.T) {
	job, err := manifest.Build(validParams())
	require.NoError(t, err)

	doc, err := manifest.RenderYAML(job)
	require.NoError(t, err)

	text := string(doc)
	assert.Contains(t, text, "kind: Job")
	assert.Contains(t, text, "name: qps-bench")
	assert.Contains(t, text, "secretKeyRef")
}
