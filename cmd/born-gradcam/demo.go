package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/gradcam/internal/config"
	"github.com/born-ml/gradcam/internal/fixture"
)

var demoOut string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Explain a generated cat and dog scene",
	Long: `Writes a small cat and dog classifier, its weights and a test image
into --out, then explains the dog (class 208) and the cat (class 282).`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVarP(&demoOut, "out", "o", "gradcam-demo", "Output directory")
}

func runDemo(cmd *cobra.Command, _ []string) error {
	if err := os.MkdirAll(demoOut, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	files, err := fixture.WriteFiles(demoOut)
	if err != nil {
		return err
	}
	logger.Info("demo files written",
		zap.String("image", files.Image),
		zap.String("model", files.Architecture),
		zap.String("weights", files.Weights),
	)

	cfg := config.DefaultConfig()
	cfg.Model = files.Architecture
	cfg.Weights = files.Weights
	cfg.Explain.Targets = []int{fixture.DogClass, fixture.CatClass}
	cfg.Output.Dir = demoOut
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(filepath.Join(demoOut, "gradcam.yaml")); err != nil {
		return err
	}
	return explainImages(cmd.Context(), cfg, []string{files.Image}, logger)
}
