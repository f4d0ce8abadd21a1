// Package rimage decodes and resizes compressed camera frames into
// fixed-shape RGB pixel buffers.
package rimage

import (
	"bytes"
	"image"

	// registered codecs for the camera formats that appear in recordings.
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// rgbChannels is the channel count of every decoded frame; decoding always
// converts to RGB regardless of the source color model.
const rgbChannels = 3

// Image is a row-major, tightly packed HxWxC uint8 RGB buffer.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// DecodeImage decodes compressed bytes into an RGB image. The format tag is
// advisory; the codec is sniffed from the payload.
func DecodeImage(data []byte, format string) (*Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image with format %q", format)
	}
	return FromGoImage(img), nil
}

// ImageDimensions reads just the header of a compressed image and reports the
// dimensions DecodeImage would produce for it.
func ImageDimensions(data []byte, format string) (width, height, channels int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, 0, errors.Wrapf(err, "failed to read dimensions of image with format %q", format)
	}
	return cfg.Width, cfg.Height, rgbChannels, nil
}

// FromGoImage converts any image.Image into a packed RGB buffer.
func FromGoImage(img image.Image) *Image {
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	out := &Image{Width: w, Height: h, Channels: rgbChannels, Pix: make([]uint8, w*h*rgbChannels)}
	for y := 0; y < h; y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := out.Pix[y*w*rgbChannels:]
		for x := 0; x < w; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return out
}

// ToGoImage converts the buffer back to a standard library image.
func (i *Image) ToGoImage() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, i.Width, i.Height))
	for y := 0; y < i.Height; y++ {
		src := i.Pix[y*i.Width*rgbChannels:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < i.Width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return out
}

// Resize scales the image to the target dimensions with bilinear filtering,
// preserving the channel count. A no-op when dimensions already match.
func (i *Image) Resize(width, height int) *Image {
	if width == i.Width && height == i.Height {
		return i
	}
	return FromGoImage(imaging.Resize(i.ToGoImage(), width, height, imaging.Linear))
}
