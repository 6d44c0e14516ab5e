package classifier

import (
	"bytes"
	"image"
	"image/png"

	"github.com/brixfix/brixfix-go/internal/errors"
)

// EncodePNG re-encodes img as PNG for storage. Stored images are always
// PNG regardless of the upload format.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryImageDecode).
			Context("operation", "encode_png").
			Build()
	}
	return buf.Bytes(), nil
}
