package xenon

import (
	"fmt"
	"image"
)

// DecodeImage decodes linear (already unswizzled) texture data. Block
// formats are decoded at their padded block size and cropped to width x
// height.
func DecodeImage(data []byte, width, height int, format TextureFormat) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid texture size %dx%d", width, height)
	}

	bs := format.BlockSize()
	pw := (width + bs - 1) / bs * bs
	ph := (height + bs - 1) / bs * bs

	var pix []byte
	var err error
	switch format {
	case BC1:
		pix, err = DecodeDXT1(data, pw, ph)
	case BC2:
		pix, err = DecodeDXT3(data, pw, ph)
	case BC3:
		pix, err = DecodeDXT5(data, pw, ph)
	case A8R8G8B8:
		pix, err = decodeARGB(data, width, height)
	case L8:
		pix, err = decodeL8(data, width, height)
	default:
		return nil, fmt.Errorf("unsupported texture format %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}

	if bs > 1 {
		// Block decoders emit BGRA.
		for i := 0; i < len(pix); i += 4 {
			pix[i], pix[i+2] = pix[i+2], pix[i]
		}
	}

	img := &image.NRGBA{
		Pix:    pix,
		Stride: pw * 4,
		Rect:   image.Rect(0, 0, pw, ph),
	}
	if pw == width && ph == height {
		return img, nil
	}
	return crop(img, width, height), nil
}

func crop(src *image.NRGBA, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+width*4], src.Pix[y*src.Stride:])
	}
	return dst
}

func decodeARGB(data []byte, width, height int) ([]byte, error) {
	n := width * height
	if len(data) < n*4 {
		return nil, fmt.Errorf("pixel data too short: %d < %d", len(data), n*4)
	}
	pix := make([]byte, n*4)
	for i := 0; i < n; i++ {
		s := data[i*4:]
		pix[i*4+0] = s[1]
		pix[i*4+1] = s[2]
		pix[i*4+2] = s[3]
		pix[i*4+3] = s[0]
	}
	return pix, nil
}

func decodeL8(data []byte, width, height int) ([]byte, error) {
	n := width * height
	if len(data) < n {
		return nil, fmt.Errorf("pixel data too short: %d < %d", len(data), n)
	}
	pix := make([]byte, n*4)
	for i := 0; i < n; i++ {
		l := data[i]
		pix[i*4+0], pix[i*4+1], pix[i*4+2], pix[i*4+3] = l, l, l, 255
	}
	return pix, nil
}
