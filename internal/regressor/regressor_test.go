package regressor

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Alias1177/LottoPredictor/internal/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newNet(t *testing.T, in, out int, hidden []LayerSpec) *Network {
	t.Helper()
	net, err := NewNetwork(in, out, hidden, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	return net
}

func TestNewNetworkDefaultShape(t *testing.T) {
	net := newNet(t, 8, 8, DefaultArchitecture())

	require.Len(t, net.Layers, 5)
	assert.Equal(t, 8, net.InputDim())
	assert.Equal(t, 8, net.OutputDim())

	wantUnits := []int{128, 128, 64, 49, 8}
	wantAct := []Activation{ReLU, ReLU, ReLU, Softmax, Linear}
	for i, l := range net.Layers {
		_, c := l.Weights.Dims()
		assert.Equal(t, wantUnits[i], c, "layer %d", i)
		assert.Equal(t, wantAct[i], l.Activation, "layer %d", i)
	}
	assert.Equal(t, 0.3, net.Layers[0].Dropout)
	assert.Equal(t, 0.3, net.Layers[1].Dropout)
	assert.Zero(t, net.Layers[2].Dropout)
}

func TestNewNetworkRejectsBadLayers(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tests := []struct {
		name   string
		in     int
		hidden []LayerSpec
	}{
		{name: "zero input", in: 0},
		{name: "zero units", in: 3, hidden: []LayerSpec{{Units: 0, Activation: ReLU}}},
		{name: "dropout one", in: 3, hidden: []LayerSpec{{Units: 4, Activation: ReLU, Dropout: 1}}},
		{name: "unknown activation", in: 3, hidden: []LayerSpec{{Units: 4, Activation: "tanh"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNetwork(tt.in, 2, tt.hidden, rng)
			assert.Error(t, err)
		})
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	net := newNet(t, 4, 4, nil)

	_, err := net.Predict([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = net.PredictBatch(mat.NewDense(2, 5, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	net := newNet(t, 3, 3, []LayerSpec{{Units: 49, Activation: Softmax}})
	tr := &trace{}
	net.forward(mat.NewDense(2, 3, []float64{0.1, 0.5, 0.9, 1, 0, 0.3}), nil, tr)

	act := tr.acts[0]
	for i := 0; i < 2; i++ {
		sum := 0.0
		for _, v := range act.RawRowView(i) {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
}

func TestBackwardMatchesNumericGradient(t *testing.T) {
	net := newNet(t, 3, 2, []LayerSpec{
		{Units: 5, Activation: ReLU},
		{Units: 4, Activation: Softmax},
	})
	x := mat.NewDense(2, 3, []float64{0.2, 0.7, 0.1, 0.9, 0.3, 0.5})
	y := mat.NewDense(2, 2, []float64{0.4, 0.6, 0.1, 0.8})

	loss := func() float64 {
		mse, _ := evaluate(net, x, y)
		return mse
	}

	tr := &trace{}
	out := net.forward(x, nil, tr)
	dW, dB := net.backward(tr, lossGrad(out, y))

	const h = 1e-6
	for li, l := range net.Layers {
		w := l.Weights.RawMatrix().Data
		for _, i := range []int{0, len(w) / 2, len(w) - 1} {
			orig := w[i]
			w[i] = orig + h
			up := loss()
			w[i] = orig - h
			down := loss()
			w[i] = orig
			assert.InDelta(t, (up-down)/(2*h), dW[li].RawMatrix().Data[i], 1e-5, "layer %d weight %d", li, i)
		}

		orig := l.Bias[0]
		l.Bias[0] = orig + h
		up := loss()
		l.Bias[0] = orig - h
		down := loss()
		l.Bias[0] = orig
		assert.InDelta(t, (up-down)/(2*h), dB[li][0], 1e-5, "layer %d bias", li)
	}
}

func TestEarlyStopping(t *testing.T) {
	es := &EarlyStopping{Patience: 2}

	steps := []struct {
		loss     float64
		improved bool
		stop     bool
	}{
		{loss: 1.0, improved: true},
		{loss: 0.8, improved: true},
		{loss: 0.9},
		{loss: 0.8, stop: true},
	}
	for i, s := range steps {
		improved, stop := es.Observe(s.loss)
		assert.Equal(t, s.improved, improved, "step %d", i)
		assert.Equal(t, s.stop, stop, "step %d", i)
	}
	assert.Equal(t, 0.8, es.Best())
}

func linearData(rows int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(3))
	x := mat.NewDense(rows, 2, nil)
	y := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		a, b := rng.Float64(), rng.Float64()
		x.SetRow(i, []float64{a, b})
		y.SetRow(i, []float64{0.5*a + 0.2, 0.3*b + 0.1})
	}
	return x, y
}

func TestFitReducesLoss(t *testing.T) {
	x, y := linearData(120)
	net := newNet(t, 2, 2, []LayerSpec{{Units: 16, Activation: ReLU}})

	before, _, err := Evaluate(net, x, y)
	require.NoError(t, err)

	opts := DefaultFitOptions()
	opts.Epochs = 60
	opts.BatchSize = 16
	opts.LearningRate = 0.01
	epochs := 0
	opts.OnEpoch = func(int, float64, float64) { epochs++ }

	hist, err := Fit(net, x, y, opts)
	require.NoError(t, err)

	after, mae, err := Evaluate(net, x, y)
	require.NoError(t, err)
	assert.Less(t, after, before)
	assert.Greater(t, mae, 0.0)

	assert.Equal(t, len(hist.Loss), epochs)
	assert.Len(t, hist.ValLoss, len(hist.Loss))
	assert.Len(t, hist.MAE, len(hist.Loss))
	assert.LessOrEqual(t, hist.BestEpoch, hist.StoppedEpoch)
}

func TestFitRestoresBestWeights(t *testing.T) {
	x, y := linearData(60)
	net := newNet(t, 2, 2, []LayerSpec{{Units: 8, Activation: ReLU}})

	opts := DefaultFitOptions()
	opts.Epochs = 40
	opts.Patience = 3
	opts.LearningRate = 0.05
	hist, err := Fit(net, x, y, opts)
	require.NoError(t, err)

	nTrain := 60 - int(60*opts.ValidationSplit)
	valLoss, _, err := Evaluate(net, mat.DenseCopyOf(x.Slice(nTrain, 60, 0, 2)), mat.DenseCopyOf(y.Slice(nTrain, 60, 0, 2)))
	require.NoError(t, err)
	assert.InDelta(t, hist.ValLoss[hist.BestEpoch], valLoss, 1e-12)
}

func TestFitValidatesInput(t *testing.T) {
	net := newNet(t, 2, 2, nil)

	_, err := Fit(net, mat.NewDense(4, 2, nil), mat.NewDense(3, 2, nil), DefaultFitOptions())
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Fit(net, mat.NewDense(4, 3, nil), mat.NewDense(4, 2, nil), DefaultFitOptions())
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	// one row cannot be split into train and validation
	_, err = Fit(net, mat.NewDense(1, 2, nil), mat.NewDense(1, 2, nil), DefaultFitOptions())
	assert.ErrorIs(t, err, ErrTooFewSamples)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	net := newNet(t, 4, 4, DefaultArchitecture())
	scaler := features.FitScaler(mat.NewDense(2, 4, []float64{0, 1, 2, 3, 4, 5, 6, 7}))
	trained := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	path := filepath.Join(t.TempDir(), "nested", "model.msgpack")
	err := Save(path, &Artifact{
		TrainedAt:   trained,
		NumberCount: 2,
		DateUnit:    features.Milliseconds,
		Columns:     features.Columns(2),
		Network:     net,
		Scaler:      scaler,
		History:     &History{Loss: []float64{0.5, 0.4}, BestEpoch: 1, StoppedEpoch: 1},
	})
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ArtifactVersion, got.Version)
	assert.True(t, trained.Equal(got.TrainedAt))
	assert.Equal(t, features.Milliseconds, got.DateUnit)
	assert.Equal(t, 2, got.NumberCount)
	assert.Equal(t, features.Columns(2), got.Columns)
	assert.Equal(t, scaler, got.Scaler)
	assert.Equal(t, []float64{0.5, 0.4}, got.History.Loss)

	row := []float64{0.1, 0.2, 0.3, 0.4}
	want, err := net.Predict(row)
	require.NoError(t, err)
	have, err := got.Network.Predict(row)
	require.NoError(t, err)
	assert.Equal(t, want, have)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.msgpack")
	require.NoError(t, Save(path, &Artifact{Network: newNet(t, 2, 2, nil), NumberCount: 1}))
	require.NoError(t, Save(path, &Artifact{Network: newNet(t, 3, 3, nil), NumberCount: 9}))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, got.NumberCount)
	assert.Equal(t, 3, got.Network.InputDim())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not msgpack"), 0o600))
	_, err = Load(garbage)
	assert.Error(t, err)

	assert.Error(t, Save(filepath.Join(dir, "empty"), &Artifact{}))
}

func TestLoaderCachesFirstLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.msgpack")
	loader := NewLoader(path)

	_, err := loader.Get()
	require.Error(t, err, "nothing saved yet")

	require.NoError(t, Save(path, &Artifact{Network: newNet(t, 2, 2, nil), NumberCount: 1}))
	first, err := loader.Get()
	require.NoError(t, err)

	require.NoError(t, Save(path, &Artifact{Network: newNet(t, 2, 2, nil), NumberCount: 5}))
	second, err := loader.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, second.NumberCount)
}
