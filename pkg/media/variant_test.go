package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// testPNG encodes a w×h image.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestDeriveVariantScalesDown(t *testing.T) {
	payload := testPNG(t, 640, 480)

	out, err := DeriveVariant(payload, VariantThumb)
	if err != nil {
		t.Fatalf("DeriveVariant failed: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "png" {
		t.Errorf("output format = %q, want png", format)
	}
	if got := img.Bounds().Dx(); got != VariantThumb.MaxDim {
		t.Errorf("width = %d, want %d", got, VariantThumb.MaxDim)
	}
	if got := img.Bounds().Dy(); got != 120 {
		t.Errorf("height = %d, want 120 (aspect preserved)", got)
	}
}

func TestDeriveVariantSmallImageUntouched(t *testing.T) {
	payload := testPNG(t, 50, 40)

	out, err := DeriveVariant(payload, VariantThumb)
	if err != nil {
		t.Fatalf("DeriveVariant failed: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Error("image within bounds was re-encoded")
	}
}

func TestDeriveVariantOrigPassthrough(t *testing.T) {
	payload := []byte("not even an image")
	out, err := DeriveVariant(payload, VariantOrig)
	if err != nil {
		t.Fatalf("DeriveVariant failed: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Error("orig variant modified payload")
	}
}

func TestDeriveVariantBadPayload(t *testing.T) {
	if _, err := DeriveVariant([]byte("garbage"), VariantThumb); err == nil {
		t.Fatal("DeriveVariant accepted non-image payload")
	}
}
