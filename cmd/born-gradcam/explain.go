package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/gradcam/internal/config"
	"github.com/born-ml/gradcam/internal/format"
	"github.com/born-ml/gradcam/internal/gradcam"
	"github.com/born-ml/gradcam/internal/imaging"
	"github.com/born-ml/gradcam/internal/logging"
	"github.com/born-ml/gradcam/internal/model"
)

var (
	configPath string
	flagModel  string
	flagWeight string
	flagLayer  string
	flagCmap   string
	flagOut    string
	flagAlpha  float64
	flagTarget []int
)

var explainCmd = &cobra.Command{
	Use:   "explain [image...]",
	Short: "Explain predictions on one or more images",
	Long: `Predicts every image, computes Grad-CAM heatmaps and writes
<name>_gradcam.png overlays into the output directory.

Flags override the values of the --config file.

Example:
  born-gradcam explain --model mobilenet_v2.yaml --weights mobilenet_v2.safetensors \
    --targets 282 cat_dog.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExplain,
}

func init() {
	f := explainCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	f.StringVar(&flagModel, "model", "", "Architecture YAML")
	f.StringVar(&flagWeight, "weights", "", "SafeTensors weights")
	f.IntSliceVar(&flagTarget, "targets", nil, "Class indices to explain (default: top prediction)")
	f.StringVar(&flagLayer, "layer", "", "Layer to explain (default: last spatial layer)")
	f.StringVar(&flagCmap, "colormap", "", "Overlay colormap: "+strings.Join(format.Colormaps(), ", "))
	f.Float64Var(&flagAlpha, "alpha", 0, "Opacity of the hottest overlay pixels, in [0, 1]")
	f.StringVarP(&flagOut, "out", "o", "", "Output directory")
}

// loadConfig reads --config and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = flagModel
	}
	if flags.Changed("weights") {
		cfg.Weights = flagWeight
	}
	if flags.Changed("targets") {
		cfg.Explain.Targets = flagTarget
	}
	if flags.Changed("layer") {
		cfg.Explain.Layer = flagLayer
	}
	if flags.Changed("colormap") {
		cfg.Output.Colormap = flagCmap
	}
	if flags.Changed("alpha") {
		cfg.Output.AlphaLimit = flagAlpha
	}
	if flags.Changed("out") {
		cfg.Output.Dir = flagOut
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runExplain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The config file may ask for a different log level or encoding.
	if configPath != "" {
		l, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding, debug)
		if err != nil {
			return err
		}
		_ = logger.Sync()
		logger = withRunID(l)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return explainImages(ctx, cfg, args, logger)
}

// explainImages explains every image with cfg, at most cfg.Workers at a time.
func explainImages(ctx context.Context, cfg *config.Config, images []string, log *zap.Logger) error {
	filter, err := imaging.ParseFilter(cfg.Output.Filter)
	if err != nil {
		return err
	}
	if _, err := format.LookupColormap(cfg.Output.Colormap); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	clf, err := model.Load(cfg.Model, cfg.Weights, model.WithLogger(log))
	if err != nil {
		return err
	}
	explainer := gradcam.New(clf, gradcam.WithLogger(log))
	opts := gradcam.Options{
		Targets:        cfg.Explain.Targets,
		Layer:          cfg.Explain.Layer,
		NoReLU:         cfg.Explain.NoReLU,
		Counterfactual: cfg.Explain.Counterfactual,
	}
	formatOpts := []format.Option{
		format.WithFilter(filter),
		format.WithColormap(cfg.Output.Colormap),
		format.WithAlphaLimit(cfg.Output.AlphaLimit),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, path := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return explainImage(gctx, clf, explainer, path, cfg, opts, formatOpts, log)
		})
	}
	return g.Wait()
}

func explainImage(
	ctx context.Context,
	clf *model.Classifier,
	explainer *gradcam.Explainer,
	path string,
	cfg *config.Config,
	opts gradcam.Options,
	formatOpts []format.Option,
	log *zap.Logger,
) error {
	start := time.Now()
	log = log.With(zap.String("image", path))

	img, err := imaging.ImageFromPath(path, clf.InputSize())
	if err != nil {
		return err
	}

	x, err := clf.Preprocess(img)
	if err != nil {
		return err
	}
	pred, err := clf.Predict(x)
	if err != nil {
		return err
	}
	for rank, s := range pred.Top(cfg.Explain.TopK) {
		log.Info("prediction",
			zap.Int("rank", rank+1),
			zap.Int("class", s.Class),
			zap.String("label", clf.Label(s.Class)),
			zap.Float64("proba", s.Proba),
		)
	}

	expl, err := explainer.ExplainTensor(ctx, img, x, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	written := make([]string, 0, len(expl.Targets))
	for i, t := range expl.Targets {
		o := append([]format.Option{format.WithTarget(i)}, formatOpts...)
		overlay, err := format.FormatAsImage(expl, o...)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		name := base + cfg.Output.Suffix
		if len(expl.Targets) > 1 {
			name = fmt.Sprintf("%s_%d", name, t.Target)
		}
		out := filepath.Join(cfg.Output.Dir, name+".png")
		if err := format.SavePNG(out, overlay); err != nil {
			return err
		}
		written = append(written, out)
	}

	log.Info("explained",
		zap.String("layer", expl.Layer),
		zap.Strings("outputs", written),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
