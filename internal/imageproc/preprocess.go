package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/Brownie44l1/seedbot/internal/model"
)

// ErrDecode is returned when the bytes are not a supported image.
var ErrDecode = errors.New("image decode failed")

// Preprocessor turns encoded image bytes into the classifier input tensor.
type Preprocessor struct {
	width  int
	height int
	layout model.Layout
}

func New(width, height int, layout model.Layout) (*Preprocessor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	switch layout {
	case model.LayoutNHWC, model.LayoutNCHW:
	case "":
		layout = model.LayoutNHWC
	default:
		return nil, fmt.Errorf("unknown tensor layout %q", layout)
	}
	return &Preprocessor{width: width, height: height, layout: layout}, nil
}

// Shape is the tensor shape Preprocess produces.
func (p *Preprocessor) Shape() []int64 {
	return Shape(p.layout, p.width, p.height)
}

// Shape returns the batch-of-one RGB tensor shape for a layout.
func Shape(layout model.Layout, width, height int) []int64 {
	if layout == model.LayoutNCHW {
		return []int64{1, 3, int64(height), int64(width)}
	}
	return []int64{1, int64(height), int64(width), 3}
}

// Preprocess decodes data, drops alpha, stretches the image to the target
// size and scales channel values to [0,1]. The same bytes always give the
// same tensor.
func (p *Preprocessor) Preprocess(data []byte) (model.Tensor, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return model.Tensor{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return p.FromImage(img), nil
}

// FromImage converts an already decoded image.
func (p *Preprocessor) FromImage(img image.Image) model.Tensor {
	// Stretch, not crop: aspect ratio is not preserved.
	resized := resize.Resize(uint(p.width), uint(p.height), opaque(img), resize.Bicubic)
	rgb := imaging.Clone(resized)

	width, height := p.width, p.height
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		row := rgb.Pix[y*rgb.Stride:]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]
			r := float32(px[0]) / 255.0
			g := float32(px[1]) / 255.0
			b := float32(px[2]) / 255.0

			pixelIndex := y*width + x
			if p.layout == model.LayoutNCHW {
				data[pixelIndex] = r
				data[plane+pixelIndex] = g
				data[2*plane+pixelIndex] = b
			} else {
				data[pixelIndex*3] = r
				data[pixelIndex*3+1] = g
				data[pixelIndex*3+2] = b
			}
		}
	}

	return model.Tensor{Shape: p.Shape(), Data: data}
}

// opaque copies img into NRGBA with alpha forced to 255, so transparent
// pixels keep their colour instead of being blended toward black.
func opaque(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
