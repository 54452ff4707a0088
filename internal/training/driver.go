package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/charts"
	"github.com/Alias1177/LottoPredictor/internal/config"
	"github.com/Alias1177/LottoPredictor/internal/features"
	"github.com/Alias1177/LottoPredictor/internal/regressor"
	"github.com/Alias1177/LottoPredictor/internal/repair"
	"github.com/Alias1177/LottoPredictor/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// inspected is how many repaired test predictions get logged
const inspected = 5

// Options configures a training run
type Options struct {
	Limit         int
	DateUnit      features.DateUnit
	Hidden        []regressor.LayerSpec
	Fit           regressor.FitOptions
	TestSplit     float64
	Seed          int64
	ModelPath     string
	LossChartPath string // empty skips the chart
	Repair        repair.Options
	Denormalize   bool
}

// OptionsFromConfig maps the training settings of cfg
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	check, err := repair.ParseCheck(cfg.LeadingOneCheck)
	if err != nil {
		return Options{}, err
	}
	rep := repair.TrainingOptions()
	rep.Target = cfg.TrainDrawSize
	rep.Check = check

	return Options{
		Limit:    cfg.TrainLimit,
		DateUnit: features.Seconds,
		Hidden:   regressor.DefaultArchitecture(),
		Fit: regressor.FitOptions{
			Epochs:          cfg.Epochs,
			BatchSize:       cfg.BatchSize,
			LearningRate:    cfg.LearningRate,
			ValidationSplit: cfg.ValidationSplit,
			Patience:        cfg.Patience,
			Seed:            cfg.Seed,
		},
		TestSplit:     cfg.TestSplit,
		Seed:          cfg.Seed,
		ModelPath:     cfg.ModelPath,
		LossChartPath: cfg.LossChartPath,
		Repair:        rep,
		Denormalize:   cfg.DenormalizeOutput,
	}, nil
}

// Report is the outcome of one training run
type Report struct {
	Artifact    *regressor.Artifact
	TrainRows   int
	TestRows    int
	TestLoss    float64
	TestMAE     float64
	Predictions [][]int // repaired test predictions
}

// Driver fetches draws, fits the model and persists it
type Driver struct {
	source models.DrawSource
	opts   Options
	logger zerolog.Logger
}

func NewDriver(source models.DrawSource, opts Options) *Driver {
	return &Driver{
		source: source,
		opts:   opts,
		logger: log.With().Str("component", "training").Logger(),
	}
}

// Run trains on the most recent draws and overwrites the model artifact.
// Malformed numbers in the store fail the run.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	rows, err := d.source.RecentDraws(ctx, d.opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch draws: %w", err)
	}
	records, err := features.Records(features.OldestFirst(rows))
	if err != nil {
		return nil, fmt.Errorf("parse draws: %w", err)
	}

	report, err := d.Train(records)
	if err != nil {
		return nil, err
	}

	if err := regressor.Save(d.opts.ModelPath, report.Artifact); err != nil {
		return nil, err
	}
	d.logger.Info().Str("path", d.opts.ModelPath).Msg("Model saved")

	hist := report.Artifact.History
	if d.opts.LossChartPath != "" {
		chart := charts.DefaultChartConfig()
		chart.Title = "Loss during training"
		if err := charts.RenderLossCurve(hist.Loss, hist.ValLoss, chart, d.opts.LossChartPath); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to render loss chart")
		} else {
			d.logger.Info().Str("path", d.opts.LossChartPath).Msg("Loss chart written")
		}
	}

	return report, nil
}

// Train fits a fresh network on records ordered oldest first
func (d *Driver) Train(records []models.DrawRecord) (*Report, error) {
	enc := features.NewEncoder(d.opts.DateUnit)
	matrix, err := enc.Encode(records)
	if err != nil {
		return nil, err
	}
	pair, err := features.NewTrainingPair(matrix)
	if err != nil {
		return nil, err
	}

	xTrain, xTest, yTrain, yTest, err := trainTestSplit(pair.X, pair.Y, d.opts.TestSplit, d.opts.Seed)
	if err != nil {
		return nil, err
	}
	trainRows, width := xTrain.Dims()
	testRows, _ := xTest.Dims()
	d.logger.Info().
		Int("draws", len(records)).
		Str("x_train", fmt.Sprintf("(%d, %d)", trainRows, width)).
		Str("x_test", fmt.Sprintf("(%d, %d)", testRows, width)).
		Str("date_unit", enc.Unit().String()).
		Msg("Training data prepared")

	net, err := regressor.NewNetwork(width, width, d.opts.Hidden, rand.New(rand.NewSource(d.opts.Seed)))
	if err != nil {
		return nil, err
	}

	fitOpts := d.opts.Fit
	fitOpts.OnEpoch = func(epoch int, loss, valLoss float64) {
		d.logger.Info().Int("epoch", epoch+1).Float64("loss", loss).Float64("val_loss", valLoss).Msg("Epoch")
	}
	hist, err := regressor.Fit(net, xTrain, yTrain, fitOpts)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	d.logger.Info().
		Int("best_epoch", hist.BestEpoch+1).
		Int("stopped_epoch", hist.StoppedEpoch+1).
		Msg("Training finished")

	testLoss, testMAE, err := regressor.Evaluate(net, xTest, yTest)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	d.logger.Info().Float64("test_loss", testLoss).Float64("test_accuracy", testMAE).Msg("Test evaluation")

	predictions, err := d.repairTest(net, xTest, matrix)
	if err != nil {
		return nil, err
	}
	d.logger.Info().
		Interface("predictions", predictions[:min(inspected, len(predictions))]).
		Msgf("First %d processed predictions", inspected)

	return &Report{
		Artifact: &regressor.Artifact{
			TrainedAt:   time.Now().UTC(),
			NumberCount: matrix.NumberCount,
			DateUnit:    enc.Unit(),
			Columns:     matrix.Columns,
			Network:     net,
			Scaler:      matrix.Scaler,
			History:     hist,
		},
		TrainRows:   trainRows,
		TestRows:    testRows,
		TestLoss:    testLoss,
		TestMAE:     testMAE,
		Predictions: predictions,
	}, nil
}

func (d *Driver) repairTest(net *regressor.Network, xTest *mat.Dense, matrix *features.FeatureMatrix) ([][]int, error) {
	repairer, err := repair.New(d.opts.Repair, rand.New(rand.NewSource(d.opts.Seed)))
	if err != nil {
		return nil, err
	}
	out, err := net.PredictBatch(xTest)
	if err != nil {
		return nil, err
	}

	var scaler *features.Scaler
	if d.opts.Denormalize {
		scaler = matrix.Scaler
	}
	rows, _ := out.Dims()
	repaired := make([][]int, rows)
	for i := 0; i < rows; i++ {
		raw, err := features.OutputNumbers(out.RawRowView(i), matrix.NumberCount, scaler)
		if err != nil {
			return nil, err
		}
		repaired[i] = repairer.Repair(raw)
	}
	return repaired, nil
}

// trainTestSplit shuffles row indices with seed and holds out
// ceil(testFraction*n) rows for testing
func trainTestSplit(x, y *mat.Dense, testFraction float64, seed int64) (xTrain, xTest, yTrain, yTest *mat.Dense, err error) {
	n, xc := x.Dims()
	_, yc := y.Dims()
	nTest := int(math.Ceil(testFraction * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, nil, nil, fmt.Errorf("split %d rows with test fraction %g: %w",
			n, testFraction, features.ErrInsufficientRows)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	xTrain, yTrain = mat.NewDense(nTrain, xc, nil), mat.NewDense(nTrain, yc, nil)
	xTest, yTest = mat.NewDense(nTest, xc, nil), mat.NewDense(nTest, yc, nil)
	for i, r := range perm {
		if i < nTest {
			xTest.SetRow(i, x.RawRowView(r))
			yTest.SetRow(i, y.RawRowView(r))
			continue
		}
		xTrain.SetRow(i-nTest, x.RawRowView(r))
		yTrain.SetRow(i-nTest, y.RawRowView(r))
	}
	return xTrain, xTest, yTrain, yTest, nil
}
