package layout

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidBox is returned when a bounding box is out of range or inverted.
var ErrInvalidBox = errors.New("invalid bounding box")

// BoundingBox is a rectangle expressed as percentages (0-100) of the page
// width and height, measured from the top-left corner.
type BoundingBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// FullPage covers the entire page.
var FullPage = BoundingBox{XMin: 0, YMin: 0, XMax: 100, YMax: 100}

// Normalize rescales a box given in unit fractions to percentages. A box is
// treated as fractional when every coordinate is <= 1.
func Normalize(b BoundingBox) BoundingBox {
	if b.XMin <= 1 && b.YMin <= 1 && b.XMax <= 1 && b.YMax <= 1 {
		return BoundingBox{XMin: b.XMin * 100, YMin: b.YMin * 100, XMax: b.XMax * 100, YMax: b.YMax * 100}
	}
	return b
}

// NewBoundingBox normalizes and validates a box.
func NewBoundingBox(xmin, ymin, xmax, ymax float64) (BoundingBox, error) {
	b := Normalize(BoundingBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax})
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// Validate reports whether every coordinate lies in [0, 100] and the box is
// not inverted.
func (b BoundingBox) Validate() error {
	for _, v := range [...]float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if v < 0 || v > 100 || v != v {
			return fmt.Errorf("%w: coordinate %v outside [0, 100]", ErrInvalidBox, v)
		}
	}
	if b.XMin > b.XMax {
		return fmt.Errorf("%w: x_min %v > x_max %v", ErrInvalidBox, b.XMin, b.XMax)
	}
	if b.YMin > b.YMax {
		return fmt.Errorf("%w: y_min %v > y_max %v", ErrInvalidBox, b.YMin, b.YMax)
	}
	return nil
}

// UnmarshalJSON rejects malformed boxes. Stored boxes are already in
// percent and are not rescaled; model output goes through NewBoundingBox.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	type plain BoundingBox
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := BoundingBox(raw).Validate(); err != nil {
		return err
	}
	*b = BoundingBox(raw)
	return nil
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%.1f,%.1f)-(%.1f,%.1f)", b.XMin, b.YMin, b.XMax, b.YMax)
}

// Rect is an absolute rectangle in page points or image pixels. Y grows
// downwards.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// ToAbsolute maps a percentage box into the coordinate space of extents.
// A nil box selects the whole of extents. The extents origin is added, so
// renderers producing non-origin-anchored rectangles map correctly.
func ToAbsolute(box *BoundingBox, extents Rect) Rect {
	if box == nil {
		return extents
	}
	w, h := extents.Width(), extents.Height()
	return Rect{
		X0: extents.X0 + box.XMin*w/100,
		Y0: extents.Y0 + box.YMin*h/100,
		X1: extents.X0 + box.XMax*w/100,
		Y1: extents.Y0 + box.YMax*h/100,
	}
}

// ToRelative is the inverse of ToAbsolute. Degenerate extents yield FullPage.
func ToRelative(r Rect, extents Rect) BoundingBox {
	w, h := extents.Width(), extents.Height()
	if w <= 0 || h <= 0 {
		return FullPage
	}
	return BoundingBox{
		XMin: (r.X0 - extents.X0) * 100 / w,
		YMin: (r.Y0 - extents.Y0) * 100 / h,
		XMax: (r.X1 - extents.X0) * 100 / w,
		YMax: (r.Y1 - extents.Y0) * 100 / h,
	}
}
