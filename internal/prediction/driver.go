package prediction

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/config"
	"github.com/Alias1177/LottoPredictor/internal/features"
	"github.com/Alias1177/LottoPredictor/internal/regressor"
	"github.com/Alias1177/LottoPredictor/internal/repair"
	"github.com/Alias1177/LottoPredictor/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ArtifactProvider hands out the trained model. *regressor.Loader satisfies it.
type ArtifactProvider interface {
	Get() (*regressor.Artifact, error)
}

// Options configures next-draw prediction
type Options struct {
	Limit int
	// PersistedScaler scales the batch with the scaler saved at training
	// time instead of refitting one over the fetched draws.
	PersistedScaler bool
	Denormalize     bool
	Repair          repair.Options
}

// OptionsFromConfig maps the prediction settings of cfg
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	check, err := repair.ParseCheck(cfg.LeadingOneCheck)
	if err != nil {
		return Options{}, err
	}
	rep := repair.PredictionOptions()
	rep.Target = cfg.PredictDrawSize
	rep.Check = check

	return Options{
		Limit:           cfg.PredictLimit,
		PersistedScaler: cfg.ScalerMode == config.ScalerModePersisted,
		Denormalize:     cfg.DenormalizeOutput,
		Repair:          rep,
	}, nil
}

// Driver predicts the next draw from the most recent history
type Driver struct {
	source   models.DrawSource
	model    ArtifactProvider
	opts     Options
	repairer *repair.Repairer
	logger   zerolog.Logger
}

// NewDriver validates the repair configuration up front
func NewDriver(source models.DrawSource, model ArtifactProvider, opts Options, rng *rand.Rand) (*Driver, error) {
	repairer, err := repair.New(opts.Repair, rng)
	if err != nil {
		return nil, err
	}
	return &Driver{
		source:   source,
		model:    model,
		opts:     opts,
		repairer: repairer,
		logger:   log.With().Str("component", "prediction").Logger(),
	}, nil
}

// PredictNext returns the repaired next draw. Draws with missing or malformed
// numbers are reported and yield an empty result with a nil error.
func (d *Driver) PredictNext(ctx context.Context) (models.PredictedDraw, error) {
	empty := models.PredictedDraw{Source: models.SourceModel, GeneratedAt: time.Now().UTC()}

	rows, err := d.source.RecentDraws(ctx, d.opts.Limit)
	if err != nil {
		return empty, fmt.Errorf("fetch draws: %w", err)
	}
	if len(rows) > 0 && !features.HasNumbers(rows) {
		d.logger.Error().Int("draws", len(rows)).Msg("Column 'numbers' not found in the data")
		return empty, nil
	}

	records, err := features.Records(features.OldestFirst(rows))
	if err != nil {
		d.logger.Error().Err(err).Msg("Cannot parse draw numbers")
		return empty, nil
	}
	if len(records) < 2 {
		return empty, fmt.Errorf("predict from %d draws: %w", len(records), features.ErrInsufficientRows)
	}

	artifact, err := d.model.Get()
	if err != nil {
		return empty, fmt.Errorf("load model: %w", err)
	}

	enc := features.NewEncoder(artifact.DateUnit)
	_, k, err := enc.Raw(records)
	if err != nil {
		if features.IsDataError(err) {
			d.logger.Error().Err(err).Msg("Cannot encode draws")
			return empty, nil
		}
		return empty, err
	}
	// checked before scaling, a persisted scaler has the trained width
	if k != artifact.NumberCount {
		return empty, fmt.Errorf("%w: model trained on %d numbers per draw, store has %d",
			regressor.ErrDimensionMismatch, artifact.NumberCount, k)
	}

	var matrix *features.FeatureMatrix
	if d.opts.PersistedScaler {
		matrix, err = enc.EncodeWith(records, artifact.Scaler)
	} else {
		matrix, err = enc.Encode(records)
	}
	if err != nil {
		return empty, err
	}

	// last row of X, the newest draw is the target side
	input := matrix.Row(matrix.Rows() - 2)
	output, err := artifact.Network.Predict(input)
	if err != nil {
		return empty, fmt.Errorf("predict: %w", err)
	}

	var scaler *features.Scaler
	if d.opts.Denormalize {
		scaler = matrix.Scaler
	}
	raw, err := features.OutputNumbers(output, matrix.NumberCount, scaler)
	if err != nil {
		return empty, err
	}

	draw := empty
	draw.Numbers = d.repairer.Repair(raw)
	d.logger.Info().
		Int("draws", len(records)).
		Floats64("raw", raw).
		Ints("numbers", draw.Numbers).
		Msg("Prediction complete")
	return draw, nil
}
