// Package main provides the born-gradcam CLI.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/gradcam/internal/logging"
)

const version = "v0.1.0-dev"

var (
	// Global flags
	debug bool
	stats bool

	// Logger, tagged with runID
	logger *zap.Logger
	runID  = uuid.NewString()
)

var rootCmd = &cobra.Command{
	Use:   "born-gradcam",
	Short: "Grad-CAM explanations for image classifiers",
	Long: `born-gradcam explains image classifier predictions with Grad-CAM.

For every image it predicts the classes, computes a heatmap of the regions
that drove the prediction and writes the heatmap overlaid on the image.

Run "born-gradcam demo" to try it on a generated cat and dog scene.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return nil
		}
		var err error
		logger, err = logging.New("info", "json", debug)
		if err != nil {
			return err
		}
		logger = withRunID(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			return
		}
		if stats {
			logProcessStats(logger)
		}
		_ = logger.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "born-gradcam %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&stats, "stats", false, "Log process memory and CPU usage on exit")

	rootCmd.AddCommand(explainCmd, demoCmd, versionCmd)
}

// withRunID tags every entry of l with the run id.
func withRunID(l *zap.Logger) *zap.Logger {
	return l.With(zap.String("run_id", runID))
}

func logProcessStats(l *zap.Logger) {
	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: pids fit in int32
	if err != nil {
		l.Warn("process stats unavailable", zap.Error(err))
		return
	}
	fields := make([]zap.Field, 0, 3)
	if mem, err := p.MemoryInfo(); err == nil {
		fields = append(fields, zap.Uint64("rss_bytes", mem.RSS), zap.Uint64("vms_bytes", mem.VMS))
	}
	if cpu, err := p.CPUPercent(); err == nil {
		fields = append(fields, zap.Float64("cpu_percent", cpu))
	}
	l.Info("process stats", fields...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
