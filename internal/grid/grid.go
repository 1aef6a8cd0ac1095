// Package grid maps sample positions onto a regular nx by ny partition of
// the study area. Out-of-range points are clipped to the nearest valid cell
// rather than dropped, so every finite sample lands somewhere deterministic.
package grid

import (
	"fmt"
	"math"
)

// Bounds is the rectangular extent of the study area.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// BoundsOf returns the bounding box of the given coordinates, ignoring
// non-finite entries. Returns the zero Bounds when no finite point exists.
func BoundsOf(xs, ys []float64) Bounds {
	var b Bounds
	found := false
	for i := range xs {
		x, y := xs[i], ys[i]
		if !isFinite(x) || !isFinite(y) {
			continue
		}
		if !found {
			b = Bounds{MinX: x, MinY: y, MaxX: x, MaxY: y}
			found = true
			continue
		}
		b.MinX = math.Min(b.MinX, x)
		b.MinY = math.Min(b.MinY, y)
		b.MaxX = math.Max(b.MaxX, x)
		b.MaxY = math.Max(b.MaxY, y)
	}
	return b
}

// Union returns the smallest Bounds covering both b and o. A zero Bounds is
// treated as empty and does not widen the result.
func (b Bounds) Union(o Bounds) Bounds {
	if b.IsZero() {
		return o
	}
	if o.IsZero() {
		return b
	}
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// IsZero reports whether b is the zero value.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// ResolutionError reports a non-positive grid resolution.
type ResolutionError struct {
	Nx, Ny int
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("grid resolution must be positive: nx=%d ny=%d", e.Nx, e.Ny)
}

// Spec describes a regular grid: resolution plus spatial bounds.
// Cell (0,0) sits at (MinX, MinY); indices grow east and north.
type Spec struct {
	Nx     int    `json:"nx"`
	Ny     int    `json:"ny"`
	Bounds Bounds `json:"bounds"`
}

// SpecFromCellSize derives a Spec from a physical cell size, the way the
// pipeline runner sizes grids: nx = floor(extent/cell) + 1, with the bounds
// extended to nx*cellSize so every cell is exactly cellSize wide. The grid
// origin stays at (MinX, MinY); only the max edge moves out.
func SpecFromCellSize(b Bounds, cellSize float64) (Spec, error) {
	if !(cellSize > 0) || !isFinite(cellSize) {
		return Spec{}, fmt.Errorf("cell size must be positive and finite, got %v", cellSize)
	}
	nx := int(math.Floor((b.MaxX-b.MinX)/cellSize)) + 1
	ny := int(math.Floor((b.MaxY-b.MinY)/cellSize)) + 1
	b.MaxX = b.MinX + float64(nx)*cellSize
	b.MaxY = b.MinY + float64(ny)*cellSize
	return Spec{Nx: nx, Ny: ny, Bounds: b}, nil
}

// Validate returns a *ResolutionError unless Nx and Ny are both positive.
func (s Spec) Validate() error {
	if s.Nx <= 0 || s.Ny <= 0 {
		return &ResolutionError{Nx: s.Nx, Ny: s.Ny}
	}
	return nil
}

// CellWidth returns the east-west extent of one cell.
func (s Spec) CellWidth() float64 {
	return (s.Bounds.MaxX - s.Bounds.MinX) / float64(s.Nx)
}

// CellHeight returns the north-south extent of one cell.
func (s Spec) CellHeight() float64 {
	return (s.Bounds.MaxY - s.Bounds.MinY) / float64(s.Ny)
}

// Cell returns the (ix, iy) cell containing the point. Points outside the
// bounds clip to the nearest edge cell; non-finite coordinates clip to 0.
func (s Spec) Cell(x, y float64) (ix, iy int) {
	return s.index(x, s.Bounds.MinX, s.CellWidth(), s.Nx),
		s.index(y, s.Bounds.MinY, s.CellHeight(), s.Ny)
}

func (s Spec) index(v, min, width float64, n int) int {
	if !isFinite(v) || !(width > 0) {
		return 0
	}
	i := int(math.Floor((v - min) / width))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Assign maps each coordinate pair to its cell indices.
func (s Spec) Assign(xs, ys []float64) (ix, iy []int) {
	ix = make([]int, len(xs))
	iy = make([]int, len(ys))
	for i := range xs {
		ix[i], iy[i] = s.Cell(xs[i], ys[i])
	}
	return ix, iy
}

// CellCenter returns the centroid of cell (ix, iy).
func (s Spec) CellCenter(ix, iy int) (x, y float64) {
	return s.Bounds.MinX + (float64(ix)+0.5)*s.CellWidth(),
		s.Bounds.MinY + (float64(iy)+0.5)*s.CellHeight()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
