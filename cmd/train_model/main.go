package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"irisapi/config"
	"irisapi/db"
	"irisapi/logging"
	"irisapi/ml"
)

type options struct {
	dataPath  string
	modelPath string
	dbPath    string
	maxDepth  int
	testRatio float64
	seed      int64
}

func main() {
	var opts options
	flag.StringVar(&opts.dataPath, "data", "data/iris.csv", "training CSV (four measurements and a species column)")
	flag.StringVar(&opts.modelPath, "model_path", "models/iris_tree.json", "model output path")
	flag.StringVar(&opts.dbPath, "db", "", "sqlite database to append the training log to (optional)")
	flag.IntVar(&opts.maxDepth, "max_depth", 4, "max tree depth")
	flag.Float64Var(&opts.testRatio, "test_ratio", 0.2, "test ratio")
	flag.Int64Var(&opts.seed, "seed", 42, "shuffle seed for the train/test split")
	logLevel := flag.String("log_level", "info", "log level")
	flag.Parse()

	logger, err := logging.New(config.LogConfig{Level: *logLevel, Development: true})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(context.Background(), opts, logger); err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}
	fmt.Printf("model saved to %s\n", opts.modelPath)
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	if opts.dataPath == "" {
		return errors.New("data path is required")
	}
	if opts.modelPath == "" {
		return errors.New("model path is required")
	}

	ds, err := ml.LoadCSV(opts.dataPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	ds, stats := ds.Clean()
	if stats.Rejected > 0 {
		logger.Warn("dropped unusable rows", zap.Int("rejected", stats.Rejected), zap.Any("issues", stats.Issues))
	}
	if ds.Len() == 0 {
		return errors.New("no usable rows left after cleaning")
	}
	train, test := ds.Split(opts.testRatio, opts.seed)
	logger.Info("dataset loaded",
		zap.Int("rows", ds.Len()),
		zap.Strings("classes", ds.Classes),
		zap.Int("train", train.Len()),
		zap.Int("test", test.Len()),
	)

	model := ml.NewDecisionTree(ml.FeatureNames(), ds.Classes, opts.maxDepth)
	model.SetVersion(time.Now().UTC().Format("20060102T150405Z"))
	if err := model.Train(train.Features, train.Labels); err != nil {
		return fmt.Errorf("train: %w", err)
	}

	eval := ml.Evaluation{}
	if test.Len() > 0 {
		if eval, err = ml.Evaluate(model, test); err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
	}
	logger.Info("model evaluated",
		zap.Float64("accuracy", eval.Accuracy),
		zap.Float64("precision", eval.Precision),
		zap.Float64("recall", eval.Recall),
		zap.Int("nodes", model.NodeCount()),
	)

	if err := os.MkdirAll(filepath.Dir(opts.modelPath), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if err := model.Save(opts.modelPath); err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	if opts.dbPath == "" {
		return nil
	}
	store, err := db.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveTrainingLog(ctx, db.TrainingLog{
		ModelName:    ml.ModelTypeDecisionTree,
		ModelVersion: model.Metadata().Version,
		Accuracy:     eval.Accuracy,
		Precision:    eval.Precision,
		Recall:       eval.Recall,
		TrainedAt:    time.Now(),
		DataPoints:   ds.Len(),
	})
}
