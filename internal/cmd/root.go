// Package cmd wires the qpsrunner CLI.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/3leaps/qpsrunner/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "qpsrunner",
	Short: "Run one-shot S3 benchmark jobs on a Kubernetes cluster",
	Long: `qpsrunner provisions a single qps-bench workload on a Kubernetes
cluster, gates it on a connectivity pre-check, relays its output, and
tears down everything it created regardless of how the run ends.

Each invocation runs exactly one job: credentials secret, job object,
init-phase gate, log relay, cleanup. The only persisted state is a
timestamped log artifact per run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// versionInfo holds build metadata, set via SetVersionInfo from main.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	if version != "" {
		versionInfo.Version = version
	}
	if commit != "" {
		versionInfo.Commit = commit
	}
	if buildDate != "" {
		versionInfo.BuildDate = buildDate
	}
}

var (
	cfgFile  string
	logLevel string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default: ./qpsrunner.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
}

// Execute runs the CLI and exits the process with the run's exit code.
func Execute() {
	err := rootCmd.Execute()
	observability.Sync()
	if err == nil {
		return
	}

	var coded *exitCodeError
	if errors.As(err, &coded) {
		if coded.message != "" {
			fmt.Fprintln(os.Stderr, "Error:", coded.message)
		}
		os.Exit(coded.code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

// exitCodeError carries a specific process exit code up to Execute.
type exitCodeError struct {
	code    int
	message string
	err     error
}

// Error implements the error interface.
func (e *exitCodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *exitCodeError) Unwrap() error {
	return e.err
}

// exitError builds an exitCodeError.
func exitError(code int, message string, err error) error {
	return &exitCodeError{code: code, message: message, err: err}
}
