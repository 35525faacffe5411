package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/qpsrunner/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qpsrunner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultNamespace, cfg.Namespace)
	assert.Equal(t, config.DefaultImage, cfg.Image)
	assert.Equal(t, config.DefaultInitImage, cfg.InitImage)
	assert.Equal(t, config.DefaultRunLogDir, cfg.RunLogDir)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.InitDeadline)
	assert.Equal(t, 2*time.Minute, cfg.ReadyDeadline)
	assert.Equal(t, 15*time.Minute, cfg.OverallDeadline)
	assert.Equal(t, 2*time.Minute, cfg.CleanupTimeout)
	assert.False(t, cfg.InjectSessionToken)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Tolerations)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
namespace: perf-lab
image: registry.local/qps-bench:v3
run_log_dir: /var/log/qps
poll_interval: 5s
overall_deadline: 30m
inject_session_token: true
cluster:
  kubeconfig: /home/op/.kube/lab
  context: perf
logging:
  level: debug
tolerations:
  - key: dedicated
    operator: Equal
    value: bench
    effect: NoSchedule
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "perf-lab", cfg.Namespace)
	assert.Equal(t, "registry.local/qps-bench:v3", cfg.Image)
	assert.Equal(t, "/var/log/qps", cfg.RunLogDir)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.OverallDeadline)
	assert.True(t, cfg.InjectSessionToken)
	assert.Equal(t, "/home/op/.kube/lab", cfg.Cluster.Kubeconfig)
	assert.Equal(t, "perf", cfg.Cluster.Context)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Tolerations, 1)
	assert.Equal(t, "dedicated", cfg.Tolerations[0].Key)
	assert.Equal(t, "NoSchedule", cfg.Tolerations[0].Effect)

	// Unset fields keep their defaults.
	assert.Equal(t, config.DefaultInitImage, cfg.InitImage)
	assert.Equal(t, 60*time.Second, cfg.InitDeadline)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "namespace: from-file\n")
	t.Setenv("QPSRUNNER_NAMESPACE", "from-env")
	t.Setenv("QPSRUNNER_INIT_DEADLINE", "90s")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Namespace)
	assert.Equal(t, 90*time.Second, cfg.InitDeadline)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := writeConfig(t, "namespace: [unterminated\n")
	_, err := config.Load(path)
	require.Error(t, err)
}
