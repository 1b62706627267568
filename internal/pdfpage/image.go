package pdfpage

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

// CropImage cuts box out of a PNG page image and re-encodes it as PNG. The
// crop is clipped to the image and is never smaller than one pixel. When
// maxSide > 0 the result is downscaled so its longest side fits.
func CropImage(pagePNG []byte, box layout.BoundingBox, maxSide int) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(pagePNG))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}
	b := src.Bounds()
	abs := layout.ToAbsolute(&box, layout.Rect{
		X0: float64(b.Min.X), Y0: float64(b.Min.Y),
		X1: float64(b.Max.X), Y1: float64(b.Max.Y),
	})
	sr := pixelRect(abs).Intersect(b)
	if sr.Empty() {
		x := clamp(int(math.Floor(abs.X0)), b.Min.X, b.Max.X-1)
		y := clamp(int(math.Floor(abs.Y0)), b.Min.Y, b.Max.Y-1)
		sr = image.Rect(x, y, x+1, y+1)
	}

	w, h := sr.Dx(), sr.Dy()
	if maxSide > 0 && (w > maxSide || h > maxSide) {
		scale := float64(maxSide) / float64(max(w, h))
		w = max(1, int(math.Round(float64(w)*scale)))
		h = max(1, int(math.Round(float64(h)*scale)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == sr.Dx() && h == sr.Dy() {
		draw.Copy(dst, image.Point{}, src, sr, draw.Src, nil)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

func pixelRect(r layout.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X0)), int(math.Floor(r.Y0)),
		int(math.Ceil(r.X1)), int(math.Ceil(r.Y1)),
	)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
