package model

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrIndexOutOfRange is returned when the winning class index has no label.
	ErrIndexOutOfRange = errors.New("prediction index out of range")

	// ErrShapeMismatch is returned when an input tensor does not match the model input.
	ErrShapeMismatch = errors.New("tensor shape mismatch")
)

// Argmax returns the index of the largest score. Ties go to the lowest index,
// and a NaN anywhere wins at its first position, the way numpy's argmax
// behaves. It returns -1 for an empty vector.
func Argmax(pred PredictionVector) int {
	if len(pred) == 0 {
		return -1
	}
	maxIdx := 0
	maxVal := pred[0]
	for i, val := range pred {
		if math.IsNaN(float64(val)) {
			return i
		}
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}
	return maxIdx
}

// Classify picks the top class and pairs it with its label. A winning index
// beyond the label list means the model and labels disagree; that is an error,
// never a guessed label.
func Classify(pred PredictionVector, labels Labels) (Result, error) {
	idx := Argmax(pred)
	if idx < 0 {
		return Result{}, fmt.Errorf("%w: empty prediction vector", ErrIndexOutOfRange)
	}
	if idx >= len(labels) {
		return Result{}, fmt.Errorf("%w: index %d with %d labels", ErrIndexOutOfRange, idx, len(labels))
	}
	return Result{
		Label:      labels[idx],
		Index:      idx,
		Confidence: float64(pred[idx]),
	}, nil
}

// Format classifies pred and renders the reply text.
func Format(pred PredictionVector, labels Labels) (string, error) {
	res, err := Classify(pred, labels)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}
