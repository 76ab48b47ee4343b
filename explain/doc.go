// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package explain explains image classifier predictions with Grad-CAM.
//
// # Overview
//
// This package contains:
//   - LoadClassifier: build a classifier from a YAML architecture and SafeTensors weights
//   - ImageFromPath: decode and resize an image for the classifier
//   - ExplainPrediction: compute one Grad-CAM heatmap per target class
//   - FormatAsImage: overlay a heatmap on the image
//   - Concentration: share of heatmap intensity inside a region
//
// # Basic Usage
//
//	clf, err := explain.LoadClassifier("mobilenet_v2.yaml", "mobilenet_v2.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	img, err := explain.ImageFromPath("cat_dog.jpg", clf.InputSize())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	expl, err := explain.ExplainPrediction(ctx, clf, img, explain.Options{
//	    Targets: []int{282}, // tiger cat
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	overlay, err := explain.FormatAsImage(expl, explain.WithAlphaLimit(0.5))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = explain.SavePNG("cat_gradcam.png", overlay)
//
// # Models
//
// A classifier is a YAML list of layers (conv2d with groups for depthwise
// convolutions, batchnorm2d, relu6, add for residual shortcuts, ...) plus
// SafeTensors weights keyed "<layer>.<param>". A MobileNetV2 block ends with
// its shortcut:
//
//	layers:
//	  - {name: block_2_project_bn, type: batchnorm2d, channels: 24}
//	  - {name: block_2_add, type: add, from: block_1_project_bn}
//
// # Heatmaps
//
// Heatmaps have the resolution of the explained layer (7x7 for a 224x224
// MobileNet) and hold intensities in [0, 255]. FormatAsImage and
// Concentration resample them to the image size.
package explain
