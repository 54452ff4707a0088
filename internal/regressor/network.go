package regressor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

var ErrDimensionMismatch = errors.New("dimension mismatch")

// Activation names a layer's nonlinearity
type Activation string

const (
	ReLU    Activation = "relu"
	Softmax Activation = "softmax"
	Linear  Activation = "linear"
)

// LayerSpec describes one hidden layer. Dropout is applied after the activation.
type LayerSpec struct {
	Units      int
	Activation Activation
	Dropout    float64
}

// DefaultArchitecture is the hidden stack placed before the linear output layer
func DefaultArchitecture() []LayerSpec {
	return []LayerSpec{
		{Units: 128, Activation: ReLU, Dropout: 0.3},
		{Units: 128, Activation: ReLU, Dropout: 0.3},
		{Units: 64, Activation: ReLU},
		{Units: 49, Activation: Softmax},
	}
}

// Layer is a fully connected layer: out = act(in·Weights + Bias)
type Layer struct {
	Weights    *mat.Dense // in x out
	Bias       []float64
	Activation Activation
	Dropout    float64
}

// Network is a feed-forward regression network
type Network struct {
	Layers []*Layer
}

// NewNetwork builds hidden layers from specs plus a linear output layer of
// outputDim units, with Glorot-uniform weights drawn from rng.
func NewNetwork(inputDim, outputDim int, hidden []LayerSpec, rng *rand.Rand) (*Network, error) {
	if inputDim < 1 || outputDim < 1 {
		return nil, fmt.Errorf("network needs positive dimensions, got %d -> %d", inputDim, outputDim)
	}

	specs := append(append([]LayerSpec{}, hidden...), LayerSpec{Units: outputDim, Activation: Linear})
	net := &Network{Layers: make([]*Layer, 0, len(specs))}
	in := inputDim
	for i, spec := range specs {
		if spec.Units < 1 {
			return nil, fmt.Errorf("layer %d has %d units", i, spec.Units)
		}
		if spec.Dropout < 0 || spec.Dropout >= 1 {
			return nil, fmt.Errorf("layer %d dropout %g not in [0,1)", i, spec.Dropout)
		}
		switch spec.Activation {
		case ReLU, Softmax, Linear:
		default:
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, spec.Activation)
		}

		limit := math.Sqrt(6 / float64(in+spec.Units))
		w := mat.NewDense(in, spec.Units, nil)
		raw := w.RawMatrix().Data
		for j := range raw {
			raw[j] = (rng.Float64()*2 - 1) * limit
		}
		net.Layers = append(net.Layers, &Layer{
			Weights:    w,
			Bias:       make([]float64, spec.Units),
			Activation: spec.Activation,
			Dropout:    spec.Dropout,
		})
		in = spec.Units
	}
	return net, nil
}

// InputDim is the width of an input row
func (n *Network) InputDim() int {
	r, _ := n.Layers[0].Weights.Dims()
	return r
}

// OutputDim is the width of an output row
func (n *Network) OutputDim() int {
	_, c := n.Layers[len(n.Layers)-1].Weights.Dims()
	return c
}

// Clone deep-copies the weights
func (n *Network) Clone() *Network {
	out := &Network{Layers: make([]*Layer, len(n.Layers))}
	for i, l := range n.Layers {
		out.Layers[i] = &Layer{
			Weights:    mat.DenseCopyOf(l.Weights),
			Bias:       append([]float64(nil), l.Bias...),
			Activation: l.Activation,
			Dropout:    l.Dropout,
		}
	}
	return out
}

// Predict runs inference on a single row
func (n *Network) Predict(row []float64) ([]float64, error) {
	if len(row) != n.InputDim() {
		return nil, fmt.Errorf("%w: network expects %d inputs, got %d", ErrDimensionMismatch, n.InputDim(), len(row))
	}
	out := n.forward(mat.NewDense(1, len(row), append([]float64(nil), row...)), nil, nil)
	return mat.Row(nil, 0, out), nil
}

// PredictBatch runs inference on every row of x
func (n *Network) PredictBatch(x mat.Matrix) (*mat.Dense, error) {
	_, c := x.Dims()
	if c != n.InputDim() {
		return nil, fmt.Errorf("%w: network expects %d inputs, got %d", ErrDimensionMismatch, n.InputDim(), c)
	}
	return n.forward(x, nil, nil), nil
}

// trace keeps what backprop needs from a training forward pass
type trace struct {
	inputs []mat.Matrix // input of each layer
	acts   []*mat.Dense // activation of each layer, before dropout
	masks  []*mat.Dense // scaled dropout mask, nil when the layer has none
}

// forward computes the output. With rng set, dropout is active and tr is filled.
func (n *Network) forward(x mat.Matrix, rng *rand.Rand, tr *trace) *mat.Dense {
	rows, _ := x.Dims()
	var in mat.Matrix = x
	var out *mat.Dense
	for _, l := range n.Layers {
		_, units := l.Weights.Dims()
		z := mat.NewDense(rows, units, nil)
		z.Mul(in, l.Weights)
		for i := 0; i < rows; i++ {
			row := z.RawRowView(i)
			for j := range row {
				row[j] += l.Bias[j]
			}
		}
		activate(l.Activation, z)

		out = z
		var mask *mat.Dense
		if rng != nil && l.Dropout > 0 {
			mask = dropoutMask(rows, units, l.Dropout, rng)
			out = mat.NewDense(rows, units, nil)
			out.MulElem(z, mask)
		}
		if tr != nil {
			tr.inputs = append(tr.inputs, in)
			tr.acts = append(tr.acts, z)
			tr.masks = append(tr.masks, mask)
		}
		in = out
	}
	return out
}

// backward turns dOut (gradient of the loss w.r.t. the output) into per-layer
// weight and bias gradients.
func (n *Network) backward(tr *trace, dOut *mat.Dense) (dW []*mat.Dense, dB [][]float64) {
	dW = make([]*mat.Dense, len(n.Layers))
	dB = make([][]float64, len(n.Layers))

	grad := dOut
	for li := len(n.Layers) - 1; li >= 0; li-- {
		l := n.Layers[li]
		if m := tr.masks[li]; m != nil {
			var masked mat.Dense
			masked.MulElem(grad, m)
			grad = &masked
		}
		dz := activationGrad(l.Activation, tr.acts[li], grad)

		in := tr.inputs[li]
		inRows, inCols := in.Dims()
		_, units := l.Weights.Dims()
		dW[li] = mat.NewDense(inCols, units, nil)
		dW[li].Mul(in.T(), dz)

		dB[li] = make([]float64, units)
		for i := 0; i < inRows; i++ {
			row := dz.RawRowView(i)
			for j, v := range row {
				dB[li][j] += v
			}
		}

		if li > 0 {
			prev := mat.NewDense(inRows, inCols, nil)
			prev.Mul(dz, l.Weights.T())
			grad = prev
		}
	}
	return dW, dB
}

func activate(a Activation, z *mat.Dense) {
	rows, _ := z.Dims()
	switch a {
	case ReLU:
		raw := z.RawMatrix().Data
		for i, v := range raw {
			if v < 0 {
				raw[i] = 0
			}
		}
	case Softmax:
		for i := 0; i < rows; i++ {
			row := z.RawRowView(i)
			peak := math.Inf(-1)
			for _, v := range row {
				peak = math.Max(peak, v)
			}
			sum := 0.0
			for j, v := range row {
				row[j] = math.Exp(v - peak)
				sum += row[j]
			}
			for j := range row {
				row[j] /= sum
			}
		}
	}
}

// activationGrad maps dL/dA to dL/dZ given the activation output act
func activationGrad(a Activation, act, grad *mat.Dense) *mat.Dense {
	rows, cols := act.Dims()
	dz := mat.NewDense(rows, cols, nil)
	switch a {
	case ReLU:
		dz.Apply(func(i, j int, v float64) float64 {
			if act.At(i, j) > 0 {
				return v
			}
			return 0
		}, grad)
	case Softmax:
		for i := 0; i < rows; i++ {
			s := act.RawRowView(i)
			g := grad.RawRowView(i)
			dot := 0.0
			for j := range s {
				dot += s[j] * g[j]
			}
			out := dz.RawRowView(i)
			for j := range s {
				out[j] = s[j] * (g[j] - dot)
			}
		}
	default:
		dz.Copy(grad)
	}
	return dz
}

// dropoutMask keeps each unit with probability 1-p and scales kept units by 1/(1-p)
func dropoutMask(rows, cols int, p float64, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	keep := 1 / (1 - p)
	raw := m.RawMatrix().Data
	for i := range raw {
		if rng.Float64() >= p {
			raw[i] = keep
		}
	}
	return m
}
