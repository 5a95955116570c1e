// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// scalargrad trains a small multi-layer perceptron on a synthetic 2D binary classification dataset
// (moons, xor or blobs), using the scalar autodiff engine, and optionally plots the results.
//
// The model and training hyperparameters can be changed with -set, e.g.:
//
//	scalargrad -dataset=xor -set="mlp_layers=8,8,1;learning_rate=0.2;optimizer=adam"
//
// Use -help to list the flags, and the hyperparameters with their default values.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/context"
	"github.com/gomlx/scalargrad/pkg/ml/datasets"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
	"github.com/gomlx/scalargrad/pkg/ml/nn"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/ml/train/losses"
	"github.com/gomlx/scalargrad/pkg/ml/train/metrics"
	"github.com/gomlx/scalargrad/pkg/ml/train/optimizers"
	"github.com/gomlx/scalargrad/ui/commandline"
	"github.com/gomlx/scalargrad/ui/plots"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ParamLayers is the context hyperparameter with the size of each layer of the MLP, the last one being
// the number of outputs.
const ParamLayers = "mlp_layers"

var (
	flagDataset     = flag.String("dataset", "moons", "Synthetic dataset to train on: moons, xor or blobs.")
	flagNumExamples = flag.Int("num_examples", 100, "Number of examples generated for training, and again for evaluation.")
	flagNoise       = flag.Float64("noise", 0.1, "Noise (standard deviation) added to the generated examples.")
	flagDataSeed    = flag.Uint64("data_seed", 1, "Seed used to generate the synthetic data.")
	flagBatchSize   = flag.Int("batch_size", 0, "Batch size for training. If 0, the whole dataset is used at every step.")
	flagNumSteps    = flag.Int("steps", 100, "Number of gradient descent steps to perform.")
	flagPlot        = flag.String("plot", "", "If set, the decision boundary of the trained model is saved to this PNG file.")
	flagPlotMetrics = flag.String("plot_metrics", "", "If set, the evaluation metrics collected during training are saved to this PNG file.")
	flagPlotPoints  = flag.Int("plot_points", 20, "Number of times the metrics are collected during training, if -plot_metrics is set.")
	flagProgressBar = flag.Bool("progress_bar", true, "Display a progress bar while training.")
)

// createDefaultContext returns a context with the default hyperparameters of the model and its training.
func createDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		context.ParamInitSeed:             int64(42),
		ParamLayers:                       []int{16, 16, 1},
		activations.ParamActivation:       "relu",
		initializer.ParamInitializer:      "uniform",
		losses.ParamLoss:                  "hinge",
		losses.ParamL2Regularization:      1e-4,
		optimizers.ParamOptimizer:         "sgd",
		optimizers.ParamLearningRate:      0.5,
		optimizers.ParamLearningRateDecay: true,
		optimizers.ParamClipStepByValue:   0.0,
	})
	return ctx
}

// config holds the options of trainModel that are not model hyperparameters.
type config struct {
	dataset                string
	numExamples, batchSize int
	noise                  float64
	dataSeed               uint64
	numSteps               int
	plotPath, metricsPath  string
	plotPoints             int
	progressBar            bool
}

func configFromFlags() config {
	return config{
		dataset:     *flagDataset,
		numExamples: *flagNumExamples,
		batchSize:   *flagBatchSize,
		noise:       *flagNoise,
		dataSeed:    *flagDataSeed,
		numSteps:    *flagNumSteps,
		plotPath:    *flagPlot,
		metricsPath: *flagPlotMetrics,
		plotPoints:  *flagPlotPoints,
		progressBar: *flagProgressBar,
	}
}

func main() {
	ctx := createDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	paramsSet := must.M1(commandline.ParseContextSettings(ctx, *settings))
	if _, err := trainModel(ctx, configFromFlags(), paramsSet); err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}

// trainModel generates the datasets, trains the model and reports the results.
// It returns the evaluation metrics on the evaluation dataset.
func trainModel(ctx *context.Context, cfg config, paramsSet []string) (evalMetrics []float64, err error) {
	if len(paramsSet) > 0 {
		fmt.Printf("Hyperparameters set: %s\n", commandline.SprintModifiedContextSettings(ctx, paramsSet))
	}
	klog.V(1).Infof("All hyperparameters:\n%s", commandline.SprintContextSettings(ctx))
	generator := datasets.SyntheticByName(cfg.dataset)
	if generator == nil {
		return nil, errors.Errorf("unknown dataset %q: valid values are moons, xor or blobs", cfg.dataset)
	}

	var (
		trainDS, trainEvalDS, evalDS *datasets.InMemoryDataset
		model                        *nn.MLP
		trainer                      *train.Trainer
	)
	err = exceptions.TryCatch[error](func() {
		trainEvalDS = generator(cfg.numExamples, cfg.noise, rand.New(rand.NewPCG(cfg.dataSeed, 0)))
		trainEvalDS.SetName("train")
		evalDS = generator(cfg.numExamples, cfg.noise, rand.New(rand.NewPCG(cfg.dataSeed, 1)))
		evalDS.SetName("eval")

		layerSizes := context.GetParamOr(ctx, ParamLayers, []int{16, 16, 1})
		model = nn.NewMLP(ctx.In("mlp"), graph.NewGraph(cfg.dataset), 2, layerSizes...)
		trainer = train.NewTrainer(ctx, model, losses.FromContext(ctx), optimizers.FromContext(ctx),
			[]metrics.Interface{
				metrics.NewMovingAverageSignAccuracy("Moving Average Accuracy", "~acc", 0.05),
				metrics.NewMedianMetric("Median Batch Loss", "~med", metrics.LossMetricType, metrics.LossFn, nil).
					WithSampleSize(1_000).WithRand(rand.New(rand.NewPCG(cfg.dataSeed, 2))),
			},
			[]metrics.Interface{metrics.NewMeanSignAccuracy("Mean Accuracy", "#acc")})
	})
	if err != nil {
		return nil, err
	}
	fmt.Printf("Model: %s\n", model)
	fmt.Printf("Number of parameters: %d\n", len(model.Parameters()))

	batchSize := cfg.batchSize
	if batchSize <= 0 || batchSize > cfg.numExamples {
		batchSize = cfg.numExamples
	}
	trainDS = trainEvalDS.Copy().BatchSize(batchSize, true).Shuffle().Infinite(true)
	trainDS.SetName("batched train")
	trainEvalDS.BatchSize(cfg.numExamples, false)
	evalDS.BatchSize(cfg.numExamples, false)

	loop := train.NewLoop(trainer)
	if cfg.progressBar {
		commandline.AttachProgressBar(loop)
	}
	var collector *plots.Collector
	if cfg.metricsPath != "" {
		collector = plots.NewCollector()
		collector.Attach(loop, cfg.plotPoints, trainEvalDS, evalDS)
	}

	if _, err = loop.RunSteps(trainDS, cfg.numSteps); err != nil {
		return nil, errors.WithMessage(err, "while training")
	}
	fmt.Printf("\t[Step %d] median train step: %s\n", loop.LoopStep, commandline.FormatDuration(loop.MedianTrainStepDuration()))
	if err = commandline.ReportEval(trainer, trainEvalDS, evalDS); err != nil {
		return nil, err
	}

	if collector != nil {
		if err = collector.Save(cfg.metricsPath); err != nil {
			return nil, err
		}
		klog.V(1).Infof("Metrics collected during training:\n%s", collector.Points)
		fmt.Printf("Metrics plot saved to %q\n", cfg.metricsPath)
	}
	if cfg.plotPath != "" {
		if err = plots.SaveDecisionBoundary(model, evalDS, fmt.Sprintf("%s: decision boundary", cfg.dataset), cfg.plotPath); err != nil {
			return nil, err
		}
		fmt.Printf("Decision boundary plot saved to %q\n", cfg.plotPath)
	}
	return trainer.Eval(evalDS)
}
