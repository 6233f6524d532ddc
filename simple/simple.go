package simple

import (
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config holds configurable hyperparameters for the model and training.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. Example: []int{64, 32}
	// If empty and Linear is false, a single hidden layer of size 32 is used.
	HiddenSizes []int

	// Linear drops every hidden layer, making the model a logistic
	// regression.
	Linear bool

	// InputDim is the dimensionality of the input feature vector. If zero,
	// it is taken from the first training batch.
	InputDim int

	// LearningRate of the SGD updates.
	LearningRate float64

	// Epochs to train for (default if 0 will be set by NewModel to 20).
	Epochs int

	// BatchSize for mini-batch updates (default if 0 will be set by NewModel to 32).
	BatchSize int

	// Seed controls RNG for weight init and shuffling. If zero, time-based seed is used.
	Seed int64

	// PositiveWeight scales the loss of positive examples; extremes are
	// rare, so values above 1 counter the class imbalance. Zero means 1.
	PositiveWeight float64

	// L2 is the weight decay applied to every weight (not biases).
	L2 float64
}

// Dataset is the minimal interface the trainer needs: indexed access to
// feature rows and their binary labels.
type Dataset interface {
	Len() int
	// Batch returns inputs and 0/1 labels for the provided indices.
	Batch(indices []int) ([][]float32, []float32, error)
}

// Model is a small configurable MLP binary classifier: ReLU hidden layers
// and one sigmoid output unit trained on binary cross-entropy. It is a
// self-contained pure Go trainer, deterministic for a fixed Seed.
type Model struct {
	// Config used for training / initialization.
	Config Config

	// layerSizes includes input size, hidden sizes, then output size.
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1
	weights [][][]float32

	// biases[l] is a vector of length out for layer l -> l+1
	biases [][]float32

	// rng used for weight initialization and shuffling
	rng *rand.Rand
}

// NewModel creates a new Model instance with the provided configuration.
// Weights are initialized here when InputDim is known, otherwise on the
// first training call.
func NewModel(cfg Config) (*Model, error) {
	// defaults
	if len(cfg.HiddenSizes) == 0 && !cfg.Linear {
		cfg.HiddenSizes = []int{32}
	}
	if cfg.Linear {
		cfg.HiddenSizes = nil
	}
	for _, h := range cfg.HiddenSizes {
		if h < 1 {
			return nil, errors.Errorf("hidden layer sizes must be positive, got %v", cfg.HiddenSizes)
		}
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 20
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 32
	}
	if cfg.PositiveWeight == 0 {
		cfg.PositiveWeight = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	m := &Model{
		Config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
	if cfg.InputDim > 0 {
		m.init(cfg.InputDim)
	}
	return m, nil
}

// init allocates the layers for inputDim features.
func (m *Model) init(inputDim int) {
	const outputDim = 1

	// build layer sizes
	sizes := make([]int, 0, 2+len(m.Config.HiddenSizes))
	sizes = append(sizes, inputDim)
	sizes = append(sizes, m.Config.HiddenSizes...)
	sizes = append(sizes, outputDim)
	m.layerSizes = sizes

	// allocate weights and biases
	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in := sizes[l]
		out := sizes[l+1]
		// Xavier/Glorot uniform initialization heuristic
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		mat := make([][]float32, out)
		for j := 0; j < out; j++ {
			row := make([]float32, in)
			for i := 0; i < in; i++ {
				row[i] = (m.rng.Float32()*2.0 - 1.0) * limit * 0.5
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float32, out)
	}
	m.Config.InputDim = inputDim
}

// InputDim returns the feature count the model was built for, zero before
// the first training call.
func (m *Model) InputDim() int {
	if len(m.layerSizes) == 0 {
		return 0
	}
	return m.layerSizes[0]
}

// activationReLU applies ReLU in-place over the slice.
func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// activationReLUDeriv returns elementwise derivative of ReLU applied to preact.
func activationReLUDeriv(preact []float32) []float32 {
	d := make([]float32, len(preact))
	for i := range preact {
		if preact[i] > 0 {
			d[i] = 1.0
		}
	}
	return d
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// forwardSingle performs a forward pass for a single input vector, returning:
// - preActivations: list of pre-activation vectors per layer (len = L)
// - activations: list of activation vectors per layer (len = L+1, activations[0] = input)
// The last activation is the sigmoid probability.
func (m *Model) forwardSingle(input []float32) (preActs [][]float32, acts [][]float32, err error) {
	if len(input) != m.layerSizes[0] {
		return nil, nil, errors.Errorf("input has %d features, model expects %d", len(input), m.layerSizes[0])
	}
	L := len(m.weights)
	acts = make([][]float32, L+1)
	acts[0] = make([]float32, len(input))
	copy(acts[0], input)

	preActs = make([][]float32, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		outDim := len(m.biases[l])
		pre := make([]float32, outDim)
		W := m.weights[l]
		b := m.biases[l]
		for j := 0; j < outDim; j++ {
			sum := b[j]
			for i, x := range inVec {
				sum += W[j][i] * x
			}
			pre[j] = sum
		}
		preActs[l] = pre

		act := make([]float32, outDim)
		copy(act, pre)
		if l < L-1 {
			activationReLU(act)
		} else {
			for j := range act {
				act[j] = sigmoid(act[j])
			}
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

// PredictBatch returns the positive-class probability of every input. It
// does a purely forward pass (no training).
func (m *Model) PredictBatch(inputs [][]float32) ([]float64, error) {
	if len(m.weights) == 0 {
		return nil, errors.New("model is not trained")
	}
	out := make([]float64, len(inputs))
	for i, in := range inputs {
		_, acts, err := m.forwardSingle(in)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		out[i] = float64(acts[len(acts)-1][0])
	}
	return out, nil
}

// PredictProba is PredictBatch; it satisfies the workflow classifier
// interface.
func (m *Model) PredictProba(X [][]float32) ([]float64, error) {
	return m.PredictBatch(X)
}

// Fit trains the model on rows X with 0/1 labels y.
func (m *Model) Fit(X [][]float32, y []float32) error {
	if len(X) != len(y) {
		return errors.Errorf("%d rows for %d labels", len(X), len(y))
	}
	return m.TrainWithDataset(&sliceDataset{inputs: X, labels: y})
}

type sliceDataset struct {
	inputs [][]float32
	labels []float32
}

func (s *sliceDataset) Len() int { return len(s.inputs) }

func (s *sliceDataset) Batch(indices []int) ([][]float32, []float32, error) {
	in := make([][]float32, len(indices))
	la := make([]float32, len(indices))
	for i, idx := range indices {
		in[i] = s.inputs[idx]
		la[i] = s.labels[idx]
	}
	return in, la, nil
}

// TrainWithDataset runs mini-batch SGD on the binary cross-entropy loss.
// Gradients are accumulated per example and averaged over the minibatch.
func (m *Model) TrainWithDataset(ds Dataset) error {
	if ds == nil {
		return errors.New("dataset is nil")
	}
	n := ds.Len()
	if n == 0 {
		return errors.New("dataset has no examples")
	}
	if len(m.weights) == 0 {
		first, _, err := ds.Batch([]int{0})
		if err != nil {
			return errors.Wrap(err, "reading first example")
		}
		if len(first) == 0 || len(first[0]) == 0 {
			return errors.New("first example has no features")
		}
		m.init(len(first[0]))
	}

	epochs := m.Config.Epochs
	if epochs <= 0 {
		epochs = 20
	}
	batchSize := m.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	lr := float32(m.Config.LearningRate)
	if lr <= 0 {
		lr = 0.01
	}
	posWeight := float32(m.Config.PositiveWeight)
	if posWeight <= 0 {
		posWeight = 1
	}
	decay := float32(m.Config.L2)

	indices := make([]int, n)
	for i := 0; i < n; i++ {
		indices[i] = i
	}

	L := len(m.weights)
	gradW := make([][][]float32, L)
	gradB := make([][]float32, L)
	for l := 0; l < L; l++ {
		outDim := len(m.biases[l])
		gradW[l] = make([][]float32, outDim)
		for j := 0; j < outDim; j++ {
			gradW[l][j] = make([]float32, len(m.weights[l][j]))
		}
		gradB[l] = make([]float32, outDim)
	}

	for ep := 0; ep < epochs; ep++ {
		m.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		var epochLoss float64
		for bstart := 0; bstart < n; bstart += batchSize {
			bend := min(bstart+batchSize, n)
			inputs, labels, err := ds.Batch(indices[bstart:bend])
			if err != nil {
				return err
			}
			batchN := len(inputs)
			if batchN == 0 {
				continue
			}

			for l := 0; l < L; l++ {
				clear(gradB[l])
				for j := range gradW[l] {
					clear(gradW[l][j])
				}
			}

			for ex := 0; ex < batchN; ex++ {
				preacts, acts, err := m.forwardSingle(inputs[ex])
				if err != nil {
					return err
				}
				y := labels[ex]
				p := acts[len(acts)-1][0]
				w := float32(1)
				if y == 1 {
					w = posWeight
				}
				epochLoss += float64(w) * bce(p, y)

				// sigmoid + cross-entropy: dLoss/dLogit = p - y
				delta := []float32{w * (p - y)}

				for l := L - 1; l >= 0; l-- {
					inAct := acts[l]
					outDim := len(delta)
					for j := 0; j < outDim; j++ {
						gradB[l][j] += delta[j]
						for i, x := range inAct {
							gradW[l][j][i] += delta[j] * x
						}
					}

					if l > 0 {
						prevLen := len(inAct)
						newDelta := make([]float32, prevLen)
						for i := 0; i < prevLen; i++ {
							var sum float32
							for j := 0; j < outDim; j++ {
								sum += m.weights[l][j][i] * delta[j]
							}
							newDelta[i] = sum
						}
						deriv := activationReLUDeriv(preacts[l-1])
						for i := range newDelta {
							newDelta[i] *= deriv[i]
						}
						delta = newDelta
					}
				}
			}

			bInv := float32(1.0 / float64(batchN))
			for l := 0; l < L; l++ {
				for j := range m.biases[l] {
					m.biases[l][j] -= lr * gradB[l][j] * bInv
					for i := range m.weights[l][j] {
						dw := gradW[l][j][i]*bInv + decay*m.weights[l][j][i]
						m.weights[l][j][i] -= lr * dw
					}
				}
			}
		}
		klog.V(3).Infof("epoch %d/%d: loss %.5f", ep+1, epochs, epochLoss/float64(n))
	}
	return nil
}

// bce is the binary cross-entropy of probability p against label y.
func bce(p, y float32) float64 {
	const eps = 1e-7
	q := math.Min(math.Max(float64(p), eps), 1-eps)
	return -(float64(y)*math.Log(q) + (1-float64(y))*math.Log(1-q))
}
