package model

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Options configures how the ONNX model is loaded.
type Options struct {
	ModelPath string
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default lookup.
	LibraryPath string
	// InputName and OutputName select tensors by name; empty picks the first.
	InputName  string
	OutputName string
	// InputShape fills dynamic (-1) input dimensions. The batch dimension is
	// always pinned to 1.
	InputShape []int64
}

// Classifier runs a single ONNX model over one image at a time.
//
// The model output is returned as-is. Nothing checks that it sums to one, so
// for a model without a softmax head the "confidence" is a raw score.
type Classifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	Metadata     Metadata
	logger       *slog.Logger
}

func NewClassifier(opts Options, log *slog.Logger) (*Classifier, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "classifier"))

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model io info: %w", err)
	}
	in, err := pickIO(inputs, opts.InputName, "input")
	if err != nil {
		return nil, err
	}
	out, err := pickIO(outputs, opts.OutputName, "output")
	if err != nil {
		return nil, err
	}

	metadata := Metadata{
		InputName:   in.Name,
		OutputName:  out.Name,
		InputShape:  resolveShape(in.Dimensions, opts.InputShape),
		OutputShape: resolveShape(out.Dimensions, nil),
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	log.Info("model loaded",
		slog.String("path", opts.ModelPath),
		slog.String("input", metadata.InputName),
		slog.Any("input_shape", metadata.InputShape),
		slog.String("output", metadata.OutputName),
		slog.Any("output_shape", metadata.OutputShape),
	)

	return &Classifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		Metadata:     metadata,
		logger:       log,
	}, nil
}

// Predict runs the model on a single-image batch and returns the scores of
// that image. Safe for concurrent use.
func (c *Classifier) Predict(t Tensor) (PredictionVector, error) {
	if !sameShape(t.Shape, c.Metadata.InputShape) {
		return nil, fmt.Errorf("%w: got %v, model expects %v", ErrShapeMismatch, t.Shape, c.Metadata.InputShape)
	}
	if int64(len(t.Data)) != t.Elements() {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(t.Data), t.Shape)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.inputTensor.GetData(), t.Data)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return firstBatch(c.outputTensor.GetData(), c.Metadata.OutputShape), nil
}

func (c *Classifier) Close() {
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}

func pickIO(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, fmt.Errorf("model has no %s tensors", kind)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return infos[0], nil
	}
	available := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
		available = append(available, info.Name)
	}
	return ort.InputOutputInfo{}, fmt.Errorf("model has no %s named %q (have %v)", kind, name, available)
}

// resolveShape pins the batch dimension to 1 and fills other dynamic
// dimensions from hint.
func resolveShape(dims []int64, hint []int64) []int64 {
	shape := make([]int64, len(dims))
	for i, d := range dims {
		switch {
		case i == 0:
			shape[i] = 1
		case d > 0:
			shape[i] = d
		case i < len(hint) && hint[i] > 0:
			shape[i] = hint[i]
		default:
			shape[i] = 1
		}
	}
	return shape
}

// firstBatch copies the scores of batch element 0 out of the shared output
// buffer.
func firstBatch(data []float32, shape []int64) PredictionVector {
	n := len(data)
	if len(shape) > 1 {
		n = int(shapeSize(shape[1:]))
	}
	if n > len(data) {
		n = len(data)
	}
	out := make(PredictionVector, n)
	copy(out, data[:n])
	return out
}
