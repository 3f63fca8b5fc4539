package model

import "fmt"

// Layout is the axis order of an image tensor.
type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

// Tensor is a dense float32 tensor with a batch dimension.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Elements returns the product of the shape dimensions.
func (t Tensor) Elements() int64 {
	return shapeSize(t.Shape)
}

// PredictionVector holds one score per class, in label order.
type PredictionVector []float32

// Labels maps model output indices to names. Read-only after startup.
type Labels []string

// Result is the formatted outcome of one classification.
type Result struct {
	Label      string  `json:"label"`
	Index      int     `json:"index"`
	Confidence float64 `json:"confidence"`
}

// String renders the reply text, e.g. "pea_seed (87.5%)".
func (r Result) String() string {
	return fmt.Sprintf("%s (%.1f%%)", r.Label, r.Confidence*100)
}

// Metadata describes the loaded model's tensors.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
}

// NumClasses is the size of the last output dimension.
func (m Metadata) NumClasses() int {
	if len(m.OutputShape) == 0 {
		return 0
	}
	return int(m.OutputShape[len(m.OutputShape)-1])
}

func shapeSize(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

func sameShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
