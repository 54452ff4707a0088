package regressor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/features"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

// ArtifactVersion is bumped whenever the file layout changes
const ArtifactVersion = 1

// Artifact is everything prediction needs from a training run
type Artifact struct {
	Version     int
	TrainedAt   time.Time
	NumberCount int
	DateUnit    features.DateUnit
	Columns     []string
	Network     *Network
	Scaler      *features.Scaler
	History     *History
}

type layerWire struct {
	Rows       int        `msgpack:"rows"`
	Cols       int        `msgpack:"cols"`
	Weights    []float64  `msgpack:"weights"`
	Bias       []float64  `msgpack:"bias"`
	Activation Activation `msgpack:"activation"`
	Dropout    float64    `msgpack:"dropout"`
}

type artifactWire struct {
	Version     int              `msgpack:"version"`
	TrainedAt   time.Time        `msgpack:"trained_at"`
	InputDim    int              `msgpack:"input_dim"`
	NumberCount int              `msgpack:"number_count"`
	DateUnit    int              `msgpack:"date_unit"`
	Columns     []string         `msgpack:"columns"`
	Layers      []layerWire      `msgpack:"layers"`
	Scaler      *features.Scaler `msgpack:"scaler"`
	History     *History         `msgpack:"history"`
}

// Save writes the artifact to path, replacing any existing file wholesale
func Save(path string, a *Artifact) error {
	if a == nil || a.Network == nil || len(a.Network.Layers) == 0 {
		return errors.New("save artifact: no network")
	}

	w := artifactWire{
		Version:     ArtifactVersion,
		TrainedAt:   a.TrainedAt,
		InputDim:    a.Network.InputDim(),
		NumberCount: a.NumberCount,
		DateUnit:    int(a.DateUnit),
		Columns:     a.Columns,
		Scaler:      a.Scaler,
		History:     a.History,
	}
	for _, l := range a.Network.Layers {
		r, c := l.Weights.Dims()
		w.Layers = append(w.Layers, layerWire{
			Rows:       r,
			Cols:       c,
			Weights:    mat.DenseCopyOf(l.Weights).RawMatrix().Data,
			Bias:       l.Bias,
			Activation: l.Activation,
			Dropout:    l.Dropout,
		})
	}

	data, err := msgpack.Marshal(&w)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

// Load reads an artifact written by Save
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var w artifactWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if w.Version != ArtifactVersion {
		return nil, fmt.Errorf("artifact version %d, want %d", w.Version, ArtifactVersion)
	}
	if len(w.Layers) == 0 {
		return nil, errors.New("artifact has no layers")
	}

	net := &Network{Layers: make([]*Layer, len(w.Layers))}
	prev := w.InputDim
	for i, l := range w.Layers {
		if l.Rows != prev || l.Rows*l.Cols != len(l.Weights) || len(l.Bias) != l.Cols {
			return nil, fmt.Errorf("artifact layer %d: %w", i, ErrDimensionMismatch)
		}
		net.Layers[i] = &Layer{
			Weights:    mat.NewDense(l.Rows, l.Cols, l.Weights),
			Bias:       l.Bias,
			Activation: l.Activation,
			Dropout:    l.Dropout,
		}
		prev = l.Cols
	}

	return &Artifact{
		Version:     w.Version,
		TrainedAt:   w.TrainedAt,
		NumberCount: w.NumberCount,
		DateUnit:    features.DateUnit(w.DateUnit),
		Columns:     w.Columns,
		Network:     net,
		Scaler:      w.Scaler,
		History:     w.History,
	}, nil
}

// Loader loads the artifact on first use and keeps it for the process
// lifetime. Retraining while a Loader is in use is not observed.
type Loader struct {
	path string

	mu       sync.Mutex
	artifact *Artifact
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Get returns the cached artifact, loading it if needed. A failed load is
// not cached, so the next call retries.
func (l *Loader) Get() (*Artifact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.artifact != nil {
		return l.artifact, nil
	}
	a, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", l.path).Time("trained_at", a.TrainedAt).Int("layers", len(a.Network.Layers)).Msg("model loaded")
	l.artifact = a
	return a, nil
}
