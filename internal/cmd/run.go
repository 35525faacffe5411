package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"

	"github.com/3leaps/qpsrunner/internal/config"
	"github.com/3leaps/qpsrunner/internal/observability"
	"github.com/3leaps/qpsrunner/pkg/cluster/kube"
	"github.com/3leaps/qpsrunner/pkg/manifest"
	"github.com/3leaps/qpsrunner/pkg/orchestrator"
	"github.com/3leaps/qpsrunner/pkg/preflight"
	"github.com/3leaps/qpsrunner/pkg/runlog"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision and run one benchmark job",
	Long: `Provision a credentials secret and a qps-bench job, gate execution on
the in-pod connectivity pre-check, relay the workload's output, and
delete everything that was provisioned when the run ends.

Values not given as flags are prompted for. Credentials are read from
the AWS_* environment variables when set, prompted for otherwise, and
only ever stored in the cluster secret.

Exit code: the workload's exit code on failure, the pre-check's exit
code when the pre-check fails, 124 on timeout, 130 on interrupt.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runEndpoint      string
	runBucket        string
	runRegion        string
	runMode          string
	runConcurrency   int
	runDuration      int
	runObjects       int
	runObjectSize    int
	runPathStyle     bool
	runNamespace     string
	runJobName       string
	runSkipPreflight bool
	runAssumeYes     bool
	runInjectSessTok bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runEndpoint, "endpoint", "", "S3 endpoint URL")
	runCmd.Flags().StringVar(&runBucket, "bucket", "", "Target bucket name")
	runCmd.Flags().StringVarP(&runRegion, "region", "r", "", "S3 region")
	runCmd.Flags().StringVar(&runMode, "mode", manifest.DefaultMode, "Benchmark mode (stat|read_small|write_small|delete|list|read_write)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", manifest.DefaultConcurrency, "Workload concurrency cap")
	runCmd.Flags().IntVar(&runDuration, "duration-seconds", manifest.DefaultDurationSeconds, "Benchmark duration in seconds")
	runCmd.Flags().IntVar(&runObjects, "objects", manifest.DefaultObjects, "Dataset size in objects")
	runCmd.Flags().IntVar(&runObjectSize, "object-size-bytes", manifest.DefaultObjectSizeBytes, "Object payload size in bytes")
	runCmd.Flags().BoolVar(&runPathStyle, "force-path-style", false, "Use path-style addressing (S3-compatible stores)")
	runCmd.Flags().StringVarP(&runNamespace, "namespace", "n", "", "Kubernetes namespace (default from config)")
	runCmd.Flags().StringVar(&runJobName, "job-name", "qps-bench", "Name for the job and its secret")
	runCmd.Flags().BoolVar(&runSkipPreflight, "skip-preflight", false, "Skip the local connectivity probe")
	runCmd.Flags().BoolVarP(&runAssumeYes, "yes", "y", false, "Proceed without the confirmation prompt")
	runCmd.Flags().BoolVar(&runInjectSessTok, "inject-session-token", false, "Bind AWS_SESSION_TOKEN in the workload environment")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return exitError(1, "Failed to load configuration", err)
	}
	if logLevel != "" {
		observability.SetLevel(logLevel)
	} else {
		observability.SetLevel(cfg.Logging.Level)
	}
	log := observability.CLILogger

	reader := bufio.NewReader(os.Stdin)

	endpoint := runEndpoint
	if endpoint == "" {
		endpoint = prompt(reader, "S3 endpoint URL", "")
	}
	bucket := runBucket
	if bucket == "" {
		bucket = prompt(reader, "Bucket", "")
	}
	region := runRegion
	if region == "" {
		region = prompt(reader, "Region", "us-east-1")
	}
	if endpoint == "" || bucket == "" {
		return exitError(1, "Endpoint and bucket are required", nil)
	}

	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	if accessKey == "" {
		accessKey = prompt(reader, "Access key ID", "")
	}
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if secretKey == "" {
		secretKey = prompt(reader, "Secret access key", "")
	}
	sessionToken := os.Getenv("AWS_SESSION_TOKEN")
	if sessionToken == "" {
		sessionToken = prompt(reader, "Session token (empty for long-term credentials)", "")
	}
	if accessKey == "" || secretKey == "" {
		return exitError(1, "Credentials are required", nil)
	}

	namespace := runNamespace
	if namespace == "" {
		namespace = cfg.Namespace
	}

	fmt.Println()
	fmt.Println("Run plan")
	fmt.Println("--------")
	fmt.Printf("  Endpoint:    %s\n", endpoint)
	fmt.Printf("  Bucket:      %s\n", bucket)
	fmt.Printf("  Region:      %s\n", region)
	fmt.Printf("  Mode:        %s\n", runMode)
	fmt.Printf("  Concurrency: %d\n", runConcurrency)
	fmt.Printf("  Duration:    %ds\n", runDuration)
	fmt.Printf("  Namespace:   %s\n", namespace)
	fmt.Printf("  Job:         %s\n", runJobName)
	fmt.Println()
	if !runAssumeYes && !confirm(reader, "Proceed") {
		return exitError(130, "Aborted by operator", nil)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !runSkipPreflight {
		client, err := preflight.NewClient(ctx, preflight.ClientConfig{
			Endpoint:        endpoint,
			Region:          region,
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
			SessionToken:    sessionToken,
			ForcePathStyle:  runPathStyle,
		})
		if err != nil {
			return exitError(1, "Failed to build preflight client", err)
		}
		rep, err := preflight.Run(ctx, client, bucket)
		for _, r := range rep.Results {
			if r.Allowed {
				log.Info("Preflight check passed", zap.String("capability", r.Capability))
			} else {
				log.Error("Preflight check failed",
					zap.String("capability", r.Capability),
					zap.String("error_code", r.ErrorCode),
					zap.String("detail", r.Detail))
			}
		}
		if err != nil {
			return exitError(1, "Local connectivity probe failed; nothing was provisioned", err)
		}
	}

	gateway, err := kube.New(kube.Config{
		Kubeconfig: cfg.Cluster.Kubeconfig,
		Context:    cfg.Cluster.Context,
	})
	if err != nil {
		return exitError(1, "Failed to connect to cluster", err)
	}

	runID := uuid.New().String()
	sink, err := runlog.New(cfg.RunLogDir, runID, os.Stdout)
	if err != nil {
		return exitError(1, "Failed to create run log", err)
	}
	defer func() { _ = sink.Close() }()

	params := manifest.Params{
		JobName:            runJobName,
		Namespace:          namespace,
		SecretName:         runJobName + "-credentials",
		Image:              cfg.Image,
		InitImage:          cfg.InitImage,
		Endpoint:           endpoint,
		Bucket:             bucket,
		Region:             region,
		Mode:               runMode,
		Concurrency:        runConcurrency,
		DurationSeconds:    runDuration,
		Objects:            runObjects,
		ObjectSizeBytes:    runObjectSize,
		ForcePathStyle:     runPathStyle,
		Tolerations:        tolerationsFromConfig(cfg.Tolerations),
		InjectSessionToken: runInjectSessTok || cfg.InjectSessionToken,
	}

	// The rendered manifest goes into the artifact before the run, so a
	// failed run still records exactly what was submitted.
	if job, err := manifest.Build(params); err == nil {
		if doc, rerr := manifest.RenderYAML(job); rerr == nil {
			sink.Section("manifest")
			_, _ = sink.Write(doc)
		}
	}

	secretData := map[string]string{
		manifest.SecretKeyAccessKey: accessKey,
		manifest.SecretKeySecretKey: secretKey,
	}
	if sessionToken != "" {
		secretData[manifest.SecretKeySessionToken] = sessionToken
	}

	req := orchestrator.Request{
		RunID:           runID,
		Manifest:        params,
		SecretData:      secretData,
		PollInterval:    cfg.PollInterval,
		InitDeadline:    cfg.InitDeadline,
		ReadyDeadline:   cfg.ReadyDeadline,
		OverallDeadline: cfg.OverallDeadline,
		CleanupTimeout:  cfg.CleanupTimeout,
	}

	log.Info("Starting run",
		zap.String("run_id", runID),
		zap.String("artifact", sink.Path()))
	sink.Section("run")

	orch := orchestrator.New(gateway, sink, orchestrator.WithLogger(log))
	result, runErr := orch.Run(ctx, req)

	sink.Section("summary")
	writeSummary(sink, result)

	for _, ref := range result.Leaked {
		log.Error("Resource leaked; delete it manually", zap.String("resource", ref.String()))
	}
	log.Info("Run finished",
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("duration", result.Duration),
		zap.String("artifact", sink.Path()))

	if runErr != nil {
		return exitError(result.ExitCode(), fmt.Sprintf("Run ended with outcome %s", result.Outcome), runErr)
	}
	return nil
}

func tolerationsFromConfig(in []config.TolerationConfig) []corev1.Toleration {
	out := make([]corev1.Toleration, 0, len(in))
	for _, t := range in {
		out = append(out, corev1.Toleration{
			Key:      t.Key,
			Operator: corev1.TolerationOperator(t.Operator),
			Value:    t.Value,
			Effect:   corev1.TaintEffect(t.Effect),
		})
	}
	return out
}

func writeSummary(sink *runlog.Writer, result *orchestrator.Result) {
	fmt.Fprintf(sink, "run_id:    %s\n", result.RunID)
	fmt.Fprintf(sink, "outcome:   %s\n", result.Outcome)
	if result.InitObserved {
		fmt.Fprintf(sink, "init_exit: %d\n", result.InitExitCode)
	} else {
		fmt.Fprintf(sink, "init_exit: not observed\n")
	}
	if result.MainExitCode != nil {
		fmt.Fprintf(sink, "main_exit: %d\n", *result.MainExitCode)
	} else {
		fmt.Fprintf(sink, "main_exit: not observed\n")
	}
	fmt.Fprintf(sink, "duration:  %s\n", result.Duration)
	fmt.Fprintf(sink, "leaked:    %d\n", len(result.Leaked))
}
