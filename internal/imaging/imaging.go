// Package imaging prepares report photos for upload: the format is checked
// from the bytes themselves, large photos are shrunk and everything is
// re-encoded as JPEG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/erazemk/lofoph/internal/model"
)

// MaxDimension is the maximum width or height of an uploaded photo.
const MaxDimension = 1024

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// MaxInputSize caps how many bytes of a single photo are read.
const MaxInputSize = 10 << 20

// ErrUnsupportedFormat is returned for anything other than JPEG or PNG.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrTooLarge is returned when a photo exceeds MaxInputSize.
var ErrTooLarge = errors.New("image too large")

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Detect sniffs the MIME type of data and reports whether it is accepted.
func Detect(data []byte) (string, bool) {
	mime := http.DetectContentType(data)
	return mime, AllowedMIME[mime]
}

// Prepare reads one photo and returns it ready for the report form. The
// filename keeps its base name with a .jpg extension.
func Prepare(filename string, r io.Reader) (model.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputSize+1))
	if err != nil {
		return model.Image{}, fmt.Errorf("reading %s: %w", filename, err)
	}
	if len(data) > MaxInputSize {
		return model.Image{}, fmt.Errorf("%s: %w", filename, ErrTooLarge)
	}

	out, err := Reencode(data)
	if err != nil {
		return model.Image{}, fmt.Errorf("%s: %w", filename, err)
	}
	return model.Image{
		Filename:    jpegName(filename),
		ContentType: "image/jpeg",
		Data:        out,
	}, nil
}

// Reencode validates data, downscales it if either side exceeds
// MaxDimension and encodes it as JPEG.
func Reencode(data []byte) ([]byte, error) {
	if mime, ok := Detect(data); !ok {
		return nil, fmt.Errorf("%w: %s (only JPEG and PNG accepted)", ErrUnsupportedFormat, mime)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func jpegName(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == "/" || base == "" {
		base = "photo"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}

// downscale resizes img so neither side exceeds maxDim, keeping the aspect
// ratio. Images already within bounds are returned as is.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
