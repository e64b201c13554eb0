package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/raaihank/trace-sentinel/internal/app"
	"github.com/raaihank/trace-sentinel/internal/config"
	"github.com/raaihank/trace-sentinel/internal/etl"
	"github.com/raaihank/trace-sentinel/internal/logger"
	"github.com/raaihank/trace-sentinel/internal/privacy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile   string
	verbose   bool
	inputFile string
	output    string
	workers   int
	batchSize int
)

var rootCmd = &cobra.Command{
	Use:           "trace-scan",
	Short:         "Scan telemetry files for confidential data",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var spansCmd = &cobra.Command{
	Use:   "spans",
	Short: "Mask confidential data in a span file (JSON lines or Parquet)",
	RunE:  runSpans,
}

var jsonCmd = &cobra.Command{
	Use:   "json [file...]",
	Short: "Report the paths of confidential values in JSON documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocuments(cmd, args, func(c *app.Components, data []byte) privacy.Findings {
			return c.JSON.Scan(data)
		})
	},
}

var xmlCmd = &cobra.Command{
	Use:   "xml [file...]",
	Short: "Report the paths of confidential values in XML documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocuments(cmd, args, func(c *app.Components, data []byte) privacy.Findings {
			return c.XML.Scan(data)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	spansCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Span file to scan (.jsonl, .json or .parquet)")
	spansCmd.Flags().StringVarP(&output, "output", "o", "-", "Where to write masked spans, - for stdout")
	spansCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker goroutines (overrides batch.worker_count)")
	spansCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Spans per batch (overrides batch.batch_size)")
	spansCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(spansCmd, jsonCmd, xmlCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the components. Logs go to stderr
// so that stdout carries only results.
func setup(ctx context.Context) (*config.Config, *logger.Logger, *app.Components, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.Encoding = cfg.Logging.Format
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else if zcfg.Level, err = zap.ParseAtomicLevel(cfg.Logging.Level); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	zl, err := zcfg.Build()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Wrap(zl)

	components, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, components, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runSpans(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, log, components, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer components.Close()

	if workers > 0 {
		cfg.Batch.WorkerCount = workers
	}
	if batchSize > 0 {
		cfg.Batch.BatchSize = batchSize
	}

	out := io.Writer(os.Stdout)
	if output != "-" {
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	pipeline := etl.NewPipeline(components.Masker, cfg.Batch, log.WithComponent("etl").Logger)
	result, err := pipeline.ProcessFile(ctx, inputFile, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Scanned %d spans, masked %d, %d finding(s), %d failed in %s\n",
		result.TotalRecords, result.MaskedRecords, result.Findings, result.ProcessedFailed, result.Duration)
	return nil
}

// runDocuments scans each file (or stdin when none is given) and prints one
// JSON line per document
func runDocuments(cmd *cobra.Command, args []string, scan func(*app.Components, []byte) privacy.Findings) error {
	ctx, cancel := signalContext()
	defer cancel()

	_, log, components, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer components.Close()

	if len(args) == 0 {
		args = []string{"-"}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	for _, name := range args {
		data, err := readInput(name)
		if err != nil {
			return err
		}
		findings := scan(components, data)
		if err := encoder.Encode(map[string]any{"file": name, "findings": findings}); err != nil {
			return err
		}
	}
	return nil
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
