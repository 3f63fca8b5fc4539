package pipeline

import (
	"errors"

	"github.com/Brownie44l1/seedbot/internal/imageproc"
	"github.com/Brownie44l1/seedbot/internal/model"
	"github.com/Brownie44l1/seedbot/internal/telegram"
)

// Failure categories a stage can report. All of them end in an acknowledged
// webhook; they only differ in how they are logged and counted.
var (
	ErrNetwork           = telegram.ErrNetwork
	ErrMalformedResponse = telegram.ErrMalformedResponse
	ErrDecode            = imageproc.ErrDecode
	ErrIndexOutOfRange   = model.ErrIndexOutOfRange
	ErrShapeMismatch     = model.ErrShapeMismatch

	// ErrInference is returned when the model itself fails to run.
	ErrInference = errors.New("inference failed")

	// ErrPanic wraps a panic recovered inside a stage.
	ErrPanic = errors.New("stage panicked")
)

// ErrorKind maps an error to the label used in logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPanic):
		return "panic"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, ErrInference):
		return "inference"
	default:
		return "internal"
	}
}
