package classifier

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Model input geometry. The tensor is NHWC with batch 1.
const (
	InputSize    = 128
	Channels     = 3
	TensorLength = InputSize * InputSize * Channels
)

// DefaultMaxPixels bounds decoded image area to reject decompression bombs.
const DefaultMaxPixels = 1 << 26

// Resampler names accepted by classifier.resampler.
const (
	ResamplerBicubic    = "bicubic"
	ResamplerBilinear   = "bilinear"
	ResamplerNearest    = "nearest"
	ResamplerLanczos3   = "lanczos3"
	ResamplerCatmullRom = "catmullrom"
)

// resampleFunc scales an opaque RGB image to InputSize x InputSize.
type resampleFunc func(src image.Image) image.Image

func nfntResampler(interp resize.InterpolationFunction) resampleFunc {
	return func(src image.Image) image.Image {
		return resize.Resize(InputSize, InputSize, src, interp)
	}
}

func catmullRom(src image.Image) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// resamplerFor returns the resampler for name. Empty selects bicubic.
func resamplerFor(name string) (resampleFunc, error) {
	switch name {
	case "", ResamplerBicubic:
		return nfntResampler(resize.Bicubic), nil
	case ResamplerBilinear:
		return nfntResampler(resize.Bilinear), nil
	case ResamplerNearest:
		return nfntResampler(resize.NearestNeighbor), nil
	case ResamplerLanczos3:
		return nfntResampler(resize.Lanczos3), nil
	case ResamplerCatmullRom:
		return catmullRom, nil
	default:
		return nil, fmt.Errorf("unknown resampler %q", name)
	}
}

// DecodeImage reads an image from r. It returns the decoded image and the
// format name, or an ErrDecode error. Images whose area exceeds maxPixels
// are rejected before the pixel data is decoded; maxPixels <= 0 uses
// DefaultMaxPixels.
func DecodeImage(r io.Reader, maxPixels int) (image.Image, string, error) {
	if r == nil {
		return nil, "", decodeError(fmt.Errorf("nil reader"))
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", decodeError(fmt.Errorf("read image: %w", err))
	}
	if len(data) == 0 {
		return nil, "", decodeError(fmt.Errorf("empty input"))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", decodeError(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", decodeError(fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height))
	}
	if cfg.Width > maxPixels/cfg.Height {
		return nil, "", decodeError(fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", decodeError(err)
	}
	return img, format, nil
}

// toRGB converts src to an opaque RGB image. Alpha is dropped and the
// straight (non-premultiplied) colour is kept, so transparent pixels keep
// their colour instead of turning black.
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			si := n.PixOffset(b.Min.X, b.Min.Y+y)
			di := dst.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				dst.Pix[di+0] = n.Pix[si+0]
				dst.Pix[di+1] = n.Pix[si+1]
				dst.Pix[di+2] = n.Pix[si+2]
				dst.Pix[di+3] = 0xff
				si += 4
				di += 4
			}
		}
		return dst
	}

	for y := 0; y < b.Dy(); y++ {
		di := dst.PixOffset(0, y)
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			dst.Pix[di+0] = c.R
			dst.Pix[di+1] = c.G
			dst.Pix[di+2] = c.B
			dst.Pix[di+3] = 0xff
			di += 4
		}
	}
	return dst
}

// toTensor lays out a 128x128 opaque image as NHWC float32 in [0, 1].
func toTensor(img image.Image) ([]float32, error) {
	b := img.Bounds()
	if b.Dx() != InputSize || b.Dy() != InputSize {
		return nil, fmt.Errorf("resampled image is %dx%d, want %dx%d", b.Dx(), b.Dy(), InputSize, InputSize)
	}

	out := make([]float32, TensorLength)

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < InputSize; y++ {
			si := rgba.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < InputSize; x++ {
				base := (y*InputSize + x) * Channels
				out[base+0] = float32(rgba.Pix[si+0]) / 255.0
				out[base+1] = float32(rgba.Pix[si+1]) / 255.0
				out[base+2] = float32(rgba.Pix[si+2]) / 255.0
				si += 4
			}
		}
		return out, nil
	}

	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			r32, g32, b32, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			base := (y*InputSize + x) * Channels
			out[base+0] = float32(r32>>8) / 255.0
			out[base+1] = float32(g32>>8) / 255.0
			out[base+2] = float32(b32>>8) / 255.0
		}
	}
	return out, nil
}

// Preprocess converts img into the model input tensor using resample.
func Preprocess(img image.Image, resample resampleFunc) ([]float32, error) {
	if img == nil {
		return nil, decodeError(fmt.Errorf("nil image"))
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, decodeError(fmt.Errorf("empty image bounds"))
	}
	if resample == nil {
		resample = nfntResampler(resize.Bicubic)
	}
	return toTensor(resample(toRGB(img)))
}
