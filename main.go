package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/speedrun-hq/pairlauncher/pkg/batch"
	"github.com/speedrun-hq/pairlauncher/pkg/chainclient"
	"github.com/speedrun-hq/pairlauncher/pkg/config"
	"github.com/speedrun-hq/pairlauncher/pkg/fees"
	"github.com/speedrun-hq/pairlauncher/pkg/health"
	"github.com/speedrun-hq/pairlauncher/pkg/logger"
	"github.com/speedrun-hq/pairlauncher/pkg/models"
	"github.com/speedrun-hq/pairlauncher/pkg/pending"
	"github.com/speedrun-hq/pairlauncher/pkg/report"
	"github.com/speedrun-hq/pairlauncher/pkg/retry"
	"github.com/speedrun-hq/pairlauncher/pkg/saga"
	"github.com/speedrun-hq/pairlauncher/pkg/workitems"
)

// retryJitter randomises exponential backoff by up to 20%
const retryJitter = 0.2

type runFlags struct {
	itemsPath string
	outputDir string
	envFile   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &runFlags{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Create every trading pair listed in the work-item file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd.Context(), flags)
		},
	}

	root := &cobra.Command{
		Use:           "pairlauncher",
		Short:         "Create trading pairs on an EVM ledger in one resilient batch",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCmd.RunE,
	}

	for _, c := range []*cobra.Command{root, runCmd} {
		c.Flags().StringVar(&flags.itemsPath, "items", "", "work-item file (overrides WORK_ITEMS_PATH)")
		c.Flags().StringVar(&flags.outputDir, "output-dir", "", "artifact directory (overrides OUTPUT_DIR)")
		c.Flags().StringVar(&flags.envFile, "env-file", "", "env file to load instead of ./.env")
	}

	reportCmd := &cobra.Command{
		Use:   "report <artifact>",
		Short: "Print the summary of a persisted batch artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := report.Load(args[0])
			if err != nil {
				log.Printf("Failed to load artifact: %v", err)
				return err
			}
			report.Render(cmd.OutOrStdout(), result)
			return nil
		},
	}

	root.AddCommand(runCmd, reportCmd)
	return root
}

// runBatch performs setup, runs the batch and persists its artifact. Only
// setup errors are returned; per-item failures end up in the artifact.
func runBatch(parent context.Context, flags *runFlags) error {
	if parent == nil {
		parent = context.Background()
	}

	// Load configuration from environment variables
	cfg, err := config.LoadConfig(flags.envFile)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return err
	}
	if flags.itemsPath != "" {
		cfg.WorkItemsPath = flags.itemsPath
	}
	if flags.outputDir != "" {
		cfg.OutputDir = flags.outputDir
	}

	lg := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	items, err := workitems.Load(cfg.WorkItemsPath)
	if err != nil {
		lg.Error("Failed to load work items: %v", err)
		return err
	}
	if err := report.EnsureWritable(cfg.OutputDir); err != nil {
		lg.Error("Output directory is not usable: %v", err)
		return err
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	go func() {
		select {
		case <-signalCh:
			lg.Notice("Received termination signal, cancelling the remaining items...")
			cancel()
		case <-ctx.Done():
		}
	}()

	client, err := chainclient.Dial(ctx, cfg.RPCURL, cfg.PrivateKey, cfg.FactoryAddress, cfg.ConfirmationTimeout, lg.With("ledger"))
	if err != nil {
		lg.Error("Failed to connect to %s: %v", cfg.Network.Name, err)
		return err
	}
	defer client.Close()

	if chainID := client.ChainID().Uint64(); chainID != cfg.Network.ChainID {
		err := fmt.Errorf("RPC endpoint reports chain %d, network %s expects %d", chainID, cfg.Network.Name, cfg.Network.ChainID)
		lg.Error("%v", err)
		return err
	}

	estimator, err := fees.NewEstimator(client, fees.Config{
		BufferPercent:    cfg.Fees.BufferPercent,
		Floor:            cfg.Fees.Floor,
		MaxFee:           cfg.Fees.MaxFee,
		ApprovalGasLimit: cfg.Fees.ApprovalGasLimit,
		CreationGasLimit: cfg.Fees.CreationGasLimit,
	}, lg.With("fees"))
	if err != nil {
		lg.Error("Invalid fee configuration: %v", err)
		return err
	}

	executor := retry.New(cfg.Retry.MaxRetries,
		retry.WithBackoff(backoffFor(cfg.Retry)),
		retry.WithTransientKinds(cfg.Retry.TransientErrors...),
		retry.WithLogger(lg.With("retry")),
	)

	itemSaga := saga.New(client, estimator, executor, client.Factory(),
		saga.WithStepTimeout(cfg.StepTimeout),
		saga.WithLogger(lg),
	)

	progress := batch.NewProgress()
	orchestrator := batch.New(itemSaga, pending.NewDetector(client, lg.With("pending")),
		batch.WithObservers(batch.NewLoggingObserver(lg), batch.MetricsObserver{}, progress),
	)

	if cfg.MetricsPort != "" {
		srv := health.NewServer(cfg.MetricsPort, cfg.MetricsAPIKey, progress, client, client.Identity(), lg.With("health"))
		go srv.Start(ctx)
	}

	meta := models.RunMetadata{
		RunID:              uuid.NewString(),
		Network:            cfg.Network.Name,
		ChainID:            cfg.Network.ChainID,
		SubmittingIdentity: client.Identity(),
		Contracts:          map[string]common.Address{"factory": client.Factory()},
	}

	result := orchestrator.Run(ctx, meta, items)

	path, err := report.Persist(cfg.OutputDir, result)
	if err != nil {
		// Items were already submitted; print the summary anyway
		lg.Error("Failed to persist batch artifact: %v", err)
	} else {
		lg.Info("Batch artifact written to %s", path)
	}
	report.Render(os.Stdout, result)
	return nil
}

func backoffFor(cfg config.RetryConfig) retry.Backoff {
	if cfg.Backoff == config.BackoffExponential {
		return retry.Exponential{Base: cfg.Interval, Max: cfg.MaxInterval, Jitter: retryJitter}
	}
	return retry.Fixed(cfg.Interval)
}
