package media

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
)

// Variant names a rendition of a media object with a bounding box.
// "orig" is the stored bytes untouched.
type Variant struct {
	// Name qualifies the rendition in storage keys and registry keys.
	Name string

	// MaxDim bounds the longer image edge in pixels; 0 means unbounded.
	MaxDim int
}

// Built-in variants.
var (
	VariantOrig   = Variant{Name: "orig"}
	VariantThumb  = Variant{Name: "thumb", MaxDim: 160}
	VariantMedium = Variant{Name: "medium", MaxDim: 800}
)

// Variants maps variant names to their definitions.
var Variants = map[string]Variant{
	VariantOrig.Name:   VariantOrig,
	VariantThumb.Name:  VariantThumb,
	VariantMedium.Name: VariantMedium,
}

// DeriveVariant produces the bytes for a variant of an image payload. The
// original payload is returned untouched for "orig" or when the image
// already fits the bound. Output keeps the input encoding (png, jpeg or
// gif).
func DeriveVariant(payload []byte, v Variant) ([]byte, error) {
	if v.MaxDim <= 0 {
		return payload, nil
	}

	img, format, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("media: decode for variant %s: %w", v.Name, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longer := w
	if h > w {
		longer = h
	}
	if longer <= v.MaxDim {
		return payload, nil
	}

	scale := float64(v.MaxDim) / float64(longer)
	outW := int(float64(w) * scale)
	outH := int(float64(h) * scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	// Nearest-neighbor is good enough for admin thumbnails and keeps the
	// dependency surface at the stdlib.
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		srcY := bounds.Min.Y + y*h/outH
		for x := 0; x < outW; x++ {
			srcX := bounds.Min.X + x*w/outW
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("media: encode variant %s: %w", v.Name, err)
	}
	return buf.Bytes(), nil
}
