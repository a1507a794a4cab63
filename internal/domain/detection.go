package domain

import "image"

// Detection is a single object-detector result for one frame
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// BoundingBox holds corner coordinates normalized to [0,1]
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// ToPixels scales the normalized box to pixel space for a frame of the
// given dimensions, clamping to the frame bounds.
func (b BoundingBox) ToPixels(width, height int) image.Rectangle {
	r := image.Rect(
		int(b.X1*float64(width)),
		int(b.Y1*float64(height)),
		int(b.X2*float64(width)),
		int(b.Y2*float64(height)),
	)
	return r.Intersect(image.Rect(0, 0, width, height))
}
