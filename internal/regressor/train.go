package regressor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var ErrTooFewSamples = errors.New("too few samples")

// FitOptions controls a training run
type FitOptions struct {
	Epochs          int
	BatchSize       int
	LearningRate    float64
	ValidationSplit float64 // fraction of rows held out from the tail, not shuffled
	Patience        int     // epochs without val loss improvement before stopping
	Seed            int64
	OnEpoch         func(epoch int, loss, valLoss float64)
}

// DefaultFitOptions mirrors the production training settings
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Epochs:          200,
		BatchSize:       32,
		LearningRate:    0.001,
		ValidationSplit: 0.2,
		Patience:        15,
		Seed:            42,
	}
}

// History records per-epoch metrics. MAE is reported as "accuracy".
type History struct {
	Loss         []float64 `msgpack:"loss"`
	ValLoss      []float64 `msgpack:"val_loss"`
	MAE          []float64 `msgpack:"mae"`
	ValMAE       []float64 `msgpack:"val_mae"`
	BestEpoch    int       `msgpack:"best_epoch"`
	StoppedEpoch int       `msgpack:"stopped_epoch"`
}

// EarlyStopping tracks the best monitored loss
type EarlyStopping struct {
	Patience int

	best  float64
	since int
	seen  bool
}

// Observe records loss for an epoch. improved reports a new best; stop reports
// that patience is exhausted.
func (e *EarlyStopping) Observe(loss float64) (improved, stop bool) {
	if !e.seen || loss < e.best {
		e.best, e.since, e.seen = loss, 0, true
		return true, false
	}
	e.since++
	return false, e.since >= e.Patience
}

// Best returns the lowest loss observed so far
func (e *EarlyStopping) Best() float64 {
	return e.best
}

// adam holds first and second moment estimates per parameter
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	mW, vW                [][]float64
	mB, vB                [][]float64
}

func newAdam(net *Network, lr float64) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
	for _, l := range net.Layers {
		n := len(l.Weights.RawMatrix().Data)
		a.mW = append(a.mW, make([]float64, n))
		a.vW = append(a.vW, make([]float64, n))
		a.mB = append(a.mB, make([]float64, len(l.Bias)))
		a.vB = append(a.vB, make([]float64, len(l.Bias)))
	}
	return a
}

func (a *adam) step(net *Network, dW []*mat.Dense, dB [][]float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	lr := a.lr * math.Sqrt(c2) / c1

	update := func(p, g, m, v []float64) {
		for i := range p {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			p[i] -= lr * m[i] / (math.Sqrt(v[i]) + a.eps)
		}
	}
	for li, l := range net.Layers {
		update(l.Weights.RawMatrix().Data, dW[li].RawMatrix().Data, a.mW[li], a.vW[li])
		update(l.Bias, dB[li], a.mB[li], a.vB[li])
	}
}

// Fit trains net on (x, y) minimising mean squared error. The last
// ValidationSplit fraction of rows is held out for early stopping, and the
// weights of the best validation epoch are restored before returning.
func Fit(net *Network, x, y *mat.Dense, opts FitOptions) (*History, error) {
	rows, xc := x.Dims()
	yr, yc := y.Dims()
	if rows != yr {
		return nil, fmt.Errorf("%w: %d inputs, %d targets", ErrDimensionMismatch, rows, yr)
	}
	if xc != net.InputDim() || yc != net.OutputDim() {
		return nil, fmt.Errorf("%w: network %d -> %d, data %d -> %d",
			ErrDimensionMismatch, net.InputDim(), net.OutputDim(), xc, yc)
	}
	if opts.Epochs < 1 || opts.BatchSize < 1 {
		return nil, fmt.Errorf("epochs and batch size must be positive")
	}

	nVal := int(float64(rows) * opts.ValidationSplit)
	nTrain := rows - nVal
	if nTrain < 1 || (opts.ValidationSplit > 0 && nVal < 1) {
		return nil, fmt.Errorf("%w: %d rows for validation split %g", ErrTooFewSamples, rows, opts.ValidationSplit)
	}

	xTrain := x.Slice(0, nTrain, 0, xc).(*mat.Dense)
	yTrain := y.Slice(0, nTrain, 0, yc).(*mat.Dense)
	var xVal, yVal *mat.Dense
	if nVal > 0 {
		xVal = x.Slice(nTrain, rows, 0, xc).(*mat.Dense)
		yVal = y.Slice(nTrain, rows, 0, yc).(*mat.Dense)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	opt := newAdam(net, opts.LearningRate)
	stopper := &EarlyStopping{Patience: opts.Patience}
	hist := &History{}
	best := net.Clone()

	order := make([]int, nTrain)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < nTrain; start += opts.BatchSize {
			end := min(start+opts.BatchSize, nTrain)
			bx, by := gather(xTrain, yTrain, order[start:end])

			tr := &trace{}
			out := net.forward(bx, rng, tr)
			dW, dB := net.backward(tr, lossGrad(out, by))
			opt.step(net, dW, dB)
		}

		loss, mae := evaluate(net, xTrain, yTrain)
		hist.Loss = append(hist.Loss, loss)
		hist.MAE = append(hist.MAE, mae)

		monitored := loss
		if xVal != nil {
			valLoss, valMAE := evaluate(net, xVal, yVal)
			hist.ValLoss = append(hist.ValLoss, valLoss)
			hist.ValMAE = append(hist.ValMAE, valMAE)
			monitored = valLoss
		}
		if opts.OnEpoch != nil {
			opts.OnEpoch(epoch, loss, monitored)
		}

		hist.StoppedEpoch = epoch
		improved, stop := stopper.Observe(monitored)
		if improved {
			best = net.Clone()
			hist.BestEpoch = epoch
		}
		if stop {
			break
		}
	}

	net.Layers = best.Layers
	return hist, nil
}

// lossGrad is the derivative of the batch MSE with respect to the output
func lossGrad(out, target *mat.Dense) *mat.Dense {
	rows, cols := out.Dims()
	g := mat.NewDense(rows, cols, nil)
	g.Sub(out, target)
	g.Scale(2/float64(rows*cols), g)
	return g
}

// Evaluate returns MSE and MAE of net over (x, y)
func Evaluate(net *Network, x, y *mat.Dense) (mse, mae float64, err error) {
	rows, _ := x.Dims()
	if rows == 0 {
		return 0, 0, ErrTooFewSamples
	}
	pred, err := net.PredictBatch(x)
	if err != nil {
		return 0, 0, err
	}
	if r, c := y.Dims(); r != rows || c != net.OutputDim() {
		return 0, 0, fmt.Errorf("%w: targets %dx%d", ErrDimensionMismatch, r, c)
	}
	mse, mae = errorStats(pred, y)
	return mse, mae, nil
}

func evaluate(net *Network, x, y *mat.Dense) (mse, mae float64) {
	return errorStats(net.forward(x, nil, nil), y)
}

func errorStats(pred, y *mat.Dense) (mse, mae float64) {
	rows, cols := pred.Dims()
	sq := make([]float64, 0, rows*cols)
	abs := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := pred.At(i, j) - y.At(i, j)
			sq = append(sq, d*d)
			abs = append(abs, math.Abs(d))
		}
	}
	return stat.Mean(sq, nil), stat.Mean(abs, nil)
}

func gather(x, y *mat.Dense, idx []int) (*mat.Dense, *mat.Dense) {
	_, xc := x.Dims()
	_, yc := y.Dims()
	bx := mat.NewDense(len(idx), xc, nil)
	by := mat.NewDense(len(idx), yc, nil)
	for i, r := range idx {
		bx.SetRow(i, x.RawRowView(r))
		by.SetRow(i, y.RawRowView(r))
	}
	return bx, by
}
