package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h, color.RGBA{200, 120, 40, 255}), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestPrepareShrinksLargePhoto(t *testing.T) {
	photo, err := Prepare(bytes.NewReader(encodeJPEG(t, 2000, 1000)))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if photo.Width != MaxEdge || photo.Height != 512 {
		t.Errorf("expected %dx512, got %dx%d", MaxEdge, photo.Width, photo.Height)
	}
	if w, h := decodeSize(t, photo.Data); w != photo.Width || h != photo.Height {
		t.Errorf("encoded size %dx%d does not match reported %dx%d", w, h, photo.Width, photo.Height)
	}
}

func TestPrepareKeepsSmallPhoto(t *testing.T) {
	photo, err := Prepare(bytes.NewReader(encodeJPEG(t, 60, 80)))
	if err != nil {
		t.Fatal(err)
	}
	if w, h := decodeSize(t, photo.Data); w != 60 || h != 80 {
		t.Errorf("small photo should keep its size, got %dx%d", w, h)
	}
}

func TestPrepareFlattensTransparentPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(10, 10, color.RGBA{})); err != nil {
		t.Fatal(err)
	}
	photo, err := Prepare(&buf)
	if err != nil {
		t.Fatal(err)
	}
	img, _, _ := image.Decode(bytes.NewReader(photo.Data))
	r, g, b, _ := img.At(5, 5).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("expected transparent pixels to become white, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestPrepareAcceptsGIF(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 20, 20), []color.Color{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, pal, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := Prepare(&buf); err != nil {
		t.Errorf("expected GIF to be accepted, got %v", err)
	}
}

func TestPrepareRejectsNonImage(t *testing.T) {
	_, err := Prepare(bytes.NewReader([]byte("definitely not a photo")))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{100, 50, 1024, 100, 50},
		{4096, 1024, 1024, 1024, 256},
		{1000, 3000, 1000, 333, 1000},
		{5000, 1, 100, 100, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.limit)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fit(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.limit, w, h, tt.wantW, tt.wantH)
		}
	}
}
