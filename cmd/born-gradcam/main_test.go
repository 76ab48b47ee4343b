package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/born-ml/gradcam/internal/config"
	"github.com/born-ml/gradcam/internal/fixture"
)

func TestExplainImages(t *testing.T) {
	dir := t.TempDir()
	files, err := fixture.WriteFiles(dir)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Model = files.Architecture
	cfg.Weights = files.Weights
	cfg.Output.Dir = filepath.Join(dir, "out")

	err = explainImages(context.Background(), cfg, []string{files.Image}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "catdog_gradcam.png"))

	cfg.Explain.Targets = []int{fixture.DogClass, fixture.CatClass}
	err = explainImages(context.Background(), cfg, []string{files.Image}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "catdog_gradcam_208.png"))
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "catdog_gradcam_282.png"))
}

func TestExplainImagesErrors(t *testing.T) {
	dir := t.TempDir()
	files, err := fixture.WriteFiles(dir)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Model = files.Architecture
	cfg.Weights = files.Weights
	cfg.Output.Dir = dir
	log := zaptest.NewLogger(t)

	err = explainImages(context.Background(), cfg, []string{filepath.Join(dir, "missing.jpg")}, log)
	assert.Error(t, err)

	cfg.Output.Filter = "sinc"
	err = explainImages(context.Background(), cfg, []string{files.Image}, log)
	assert.Error(t, err)

	cfg.Output.Filter = "lanczos"
	cfg.Output.Colormap = "rainbow"
	err = explainImages(context.Background(), cfg, []string{files.Image}, log)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "born-gradcam "+version+"\n", out.String())
}

func TestLoadConfigFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gradcam.yaml")
	cfg := config.DefaultConfig()
	cfg.Model = "a.yaml"
	cfg.Weights = "a.safetensors"
	cfg.Output.Colormap = "jet"
	require.NoError(t, cfg.Save(path))

	configPath = path
	t.Cleanup(func() { configPath = "" })
	require.NoError(t, explainCmd.Flags().Set("weights", "b.safetensors"))
	require.NoError(t, explainCmd.Flags().Set("targets", "282,208"))
	t.Cleanup(func() {
		explainCmd.Flags().Lookup("weights").Changed = false
		explainCmd.Flags().Lookup("targets").Changed = false
		flagWeight = ""
		flagTarget = nil
	})

	got, err := loadConfig(explainCmd)
	require.NoError(t, err)
	assert.Equal(t, "a.yaml", got.Model)
	assert.Equal(t, "b.safetensors", got.Weights)
	assert.Equal(t, []int{282, 208}, got.Explain.Targets)
	assert.Equal(t, "jet", got.Output.Colormap)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestWithRunID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := withRunID(zap.New(core))

	l.Info("explained")
	l.With(zap.String("image", "cat.jpg")).Info("prediction")

	require.Equal(t, 2, logs.Len())
	for _, entry := range logs.All() {
		assert.Equal(t, runID, entry.ContextMap()["run_id"], entry.Message)
	}
	assert.NotEmpty(t, runID)
}
