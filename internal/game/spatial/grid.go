// Package spatial provides the broad-phase index used by target acquisition
// and projectile collision.
//
// The grid stores arena indices (not pointers) into the enemy slice so that
// rebuilding it every frame allocates nothing once capacity has settled.
package spatial

import (
	"math"
)

// SpatialGrid partitions the play field into fixed-size square cells.
// It is cleared and repopulated from active enemy positions every frame.
//
// Cell size should be at least the largest collision radius. For the
// defense field the default is 80px against a 15px projectile radius.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type SpatialGrid struct {
	cellSize    float64
	invCellSize float64 // 1/cellSize for faster division
	cols, rows  int
	cells       [][]uint32 // cells[row*cols+col] = list of enemy indices
	scratch     []uint32   // reusable buffer for QueryRadius results
	line        []CellRef  // reusable buffer for CellsAlongLine results
	maxEntities int
}

// CellRef is one cell visited by CellsAlongLine.
// Occupants aliases the grid's storage and is only valid until the next Clear.
type CellRef struct {
	Col, Row  int
	Occupants []uint32
}

// NewSpatialGrid creates a grid for the given world bounds.
// maxEntities is used to preallocate cell capacity.
func NewSpatialGrid(worldWidth, worldHeight, cellSize float64, maxEntities int) *SpatialGrid {
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))

	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &SpatialGrid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
		line:        make([]CellRef, 0, cols+rows),
		maxEntities: maxEntities,
	}
}

// Clear empties every cell but keeps the backing arrays.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an entity at position (x, y). Positions outside the field are
// clamped into the border cells, so enemies spawning off-screen are still
// found by queries near the edge.
func (g *SpatialGrid) Insert(entityID uint32, x, y float64) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], entityID)
}

// cell returns the clamped (col, row) for a world position.
func (g *SpatialGrid) cell(x, y float64) (int, int) {
	col := int(math.Floor(x * g.invCellSize))
	row := int(math.Floor(y * g.invCellSize))
	return g.clampCol(col), g.clampRow(row)
}

func (g *SpatialGrid) clampCol(col int) int {
	if col < 0 {
		return 0
	}
	if col >= g.cols {
		return g.cols - 1
	}
	return col
}

func (g *SpatialGrid) clampRow(row int) int {
	if row < 0 {
		return 0
	}
	if row >= g.rows {
		return g.rows - 1
	}
	return row
}

// cellIndex computes the cell index for a position, with bounds checking.
func (g *SpatialGrid) cellIndex(x, y float64) int {
	col, row := g.cell(x, y)
	return row*g.cols + col
}

// QueryRadius returns every entity ID stored in a cell overlapping the
// axis-aligned box around the circle (cx, cy, radius).
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// Copy the results if you need to persist them.
//
// The result never misses an entity inside the radius, but may include
// entities outside it; callers do the exact distance check.
func (g *SpatialGrid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol, minRow := g.cell(cx-radius, cy-radius)
	maxCol, maxRow := g.cell(cx+radius, cy+radius)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}

	return g.scratch
}

// CellsAlongLine walks the cells crossed by the segment (x1,y1)-(x2,y2)
// using Bresenham in cell space. Cells come back in order from the start
// point, each exactly once.
//
// The returned slice is reused on subsequent calls.
func (g *SpatialGrid) CellsAlongLine(x1, y1, x2, y2 float64) []CellRef {
	g.line = g.line[:0]

	c0, r0 := g.cell(x1, y1)
	c1, r1 := g.cell(x2, y2)

	dc := abs(c1 - c0)
	dr := -abs(r1 - r0)
	sc, sr := 1, 1
	if c0 > c1 {
		sc = -1
	}
	if r0 > r1 {
		sr = -1
	}
	err := dc + dr

	for {
		g.line = append(g.line, CellRef{Col: c0, Row: r0, Occupants: g.cells[r0*g.cols+c0]})
		if c0 == c1 && r0 == r1 {
			break
		}
		e2 := 2 * err
		if e2 >= dr {
			err += dr
			c0 += sc
		}
		if e2 <= dc {
			err += dc
			r0 += sr
		}
	}

	return g.line
}

// QueryCell returns all entity IDs in the cell containing (x, y).
func (g *SpatialGrid) QueryCell(x, y float64) []uint32 {
	return g.cells[g.cellIndex(x, y)]
}

// Stats returns grid statistics for the performance overlay.
func (g *SpatialGrid) Stats() GridStats {
	var totalEntities, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		count := len(cell)
		totalEntities += count
		if count > maxInCell {
			maxInCell = count
		}
		if count > 0 {
			nonEmpty++
		}
	}

	avgPerCell := 0.0
	if nonEmpty > 0 {
		avgPerCell = float64(totalEntities) / float64(nonEmpty)
	}

	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		TotalEntities:  totalEntities,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avgPerCell,
	}
}

// GridStats contains grid occupancy numbers.
type GridStats struct {
	TotalCells     int     `json:"totalCells"`
	NonEmptyCells  int     `json:"nonEmptyCells"`
	TotalEntities  int     `json:"totalEntities"`
	MaxInCell      int     `json:"maxInCell"`
	AvgPerNonEmpty float64 `json:"avgPerNonEmpty"`
}

// Dimensions returns the grid dimensions.
func (g *SpatialGrid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
