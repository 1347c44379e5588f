// Package imaging prepares uploaded batch photos for storage.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxUploadSize caps the raw upload accepted by Prepare.
const MaxUploadSize = 8 << 20

// MaxEdge is the longest side, in pixels, of a stored photo.
const MaxEdge = 1024

// Quality is the JPEG quality of stored photos.
const Quality = 82

// MIME is the content type of every stored photo.
const MIME = "image/jpeg"

// ErrUnsupported is returned for uploads that are not a known image format.
var ErrUnsupported = errors.New("unsupported image format")

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Photo is a photo ready to store.
type Photo struct {
	Data   []byte
	Width  int
	Height int
}

// Prepare reads an upload, checks its format from the leading bytes, shrinks
// it to fit within MaxEdge and re-encodes it as JPEG on a white background.
func Prepare(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("upload larger than %d bytes", MaxUploadSize)
	}

	if kind := http.DetectContentType(data); !accepted[kind] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}

	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), MaxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}
	return &Photo{Data: buf.Bytes(), Width: w, Height: h}, nil
}

// fit scales w x h down to fit within limit on the long edge, keeping the
// aspect ratio. Sizes already within the limit are returned unchanged.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
