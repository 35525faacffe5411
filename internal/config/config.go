// Package config loads runner configuration from defaults, an optional
// YAML config file, and QPSRUNNER_* environment variables, in
// ascending precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// TolerationConfig is one scheduling toleration applied to the
// benchmark pod. Mirrors the Kubernetes toleration fields.
type TolerationConfig struct {
	Key      string `mapstructure:"key"`
	Operator string `mapstructure:"operator"`
	Value    string `mapstructure:"value"`
	Effect   string `mapstructure:"effect"`
}

// LoggingConfig controls the CLI logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ClusterConfig selects the target cluster.
type ClusterConfig struct {
	Kubeconfig string `mapstructure:"kubeconfig"`
	Context    string `mapstructure:"context"`
}

// Config is the full runner configuration.
type Config struct {
	// Namespace is where all run resources are provisioned.
	Namespace string `mapstructure:"namespace"`

	// Image is the benchmark workload image.
	Image string `mapstructure:"image"`

	// InitImage is the connectivity pre-check image.
	InitImage string `mapstructure:"init_image"`

	// RunLogDir is the directory for per-run log artifacts.
	RunLogDir string `mapstructure:"run_log_dir"`

	// PollInterval paces phase observations.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// InitDeadline bounds the pre-check phase.
	InitDeadline time.Duration `mapstructure:"init_deadline"`

	// ReadyDeadline bounds the main container startup wait.
	ReadyDeadline time.Duration `mapstructure:"ready_deadline"`

	// OverallDeadline bounds the workload phase.
	OverallDeadline time.Duration `mapstructure:"overall_deadline"`

	// CleanupTimeout bounds best-effort teardown.
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout"`

	// InjectSessionToken binds AWS_SESSION_TOKEN in the workload
	// environment. Off by default: runs with long-term credentials have
	// no session token and the workload should not see an empty one.
	InjectSessionToken bool `mapstructure:"inject_session_token"`

	Cluster     ClusterConfig      `mapstructure:"cluster"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Tolerations []TolerationConfig `mapstructure:"tolerations"`
}

// Default values.
const (
	DefaultNamespace   = "qps-bench"
	DefaultImage       = "ghcr.io/3leaps/qps-bench:latest"
	DefaultInitImage   = "amazon/aws-cli:2.17.0"
	DefaultRunLogDir   = "runs"
	DefaultEnvPrefix   = "QPSRUNNER"
	defaultPollEvery   = 2 * time.Second
	defaultInitWait    = 60 * time.Second
	defaultReadyWait   = 2 * time.Minute
	defaultOverallWait = 15 * time.Minute
	defaultCleanupWait = 2 * time.Minute
)

// Load reads configuration. path names an explicit config file; when
// empty, qpsrunner.yaml in the working directory is used if present.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("namespace", DefaultNamespace)
	v.SetDefault("image", DefaultImage)
	v.SetDefault("init_image", DefaultInitImage)
	v.SetDefault("run_log_dir", DefaultRunLogDir)
	v.SetDefault("poll_interval", defaultPollEvery)
	v.SetDefault("init_deadline", defaultInitWait)
	v.SetDefault("ready_deadline", defaultReadyWait)
	v.SetDefault("overall_deadline", defaultOverallWait)
	v.SetDefault("cleanup_timeout", defaultCleanupWait)
	v.SetDefault("inject_session_token", false)
	v.SetDefault("logging.level", "info")

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("qpsrunner")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
