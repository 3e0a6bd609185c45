package viz

import (
	"math"
	"strings"
)

const brailleBlank = 0x2800

// dot bits for a 2x4 braille cell, indexed [row][col]
var brailleDots = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille pixel grid. Each character cell holds 2x4 dots, so a
// canvas of Width x Height cells addresses (Width*2) x (Height*4) dots.
type Canvas struct {
	Width, Height int
	cells         [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, cells: make([][]rune, h)}
	for i := range c.cells {
		c.cells[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Dots returns the addressable resolution.
func (c *Canvas) Dots() (int, int) { return c.Width * 2, c.Height * 4 }

// Set lights the dot at (x, y). Out-of-range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.cells[row][col] |= brailleDots[y%4][x%2]
}

// Lit reports whether the dot at (x, y) is set.
func (c *Canvas) Lit(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.cells[y/4][x/2]&brailleDots[y%4][x%2] != 0
}

func (c *Canvas) Clear() {
	for i := range c.cells {
		for j := range c.cells[i] {
			c.cells[i][j] = brailleBlank
		}
	}
}

// Line draws from (x0, y0) to (x1, y1) with Bresenham's algorithm.
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Disc fills a circle of radius r dots centred on (cx, cy).
func (c *Canvas) Disc(cx, cy, r int) {
	if r <= 0 {
		c.Set(cx, cy)
		return
	}
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				c.Set(cx+x, cy+y)
			}
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Viewport maps a world-space rectangle onto canvas dots, y up.
type Viewport struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Project returns the dot coordinates of world point (x, y).
func (v Viewport) Project(c *Canvas, x, y float64) (int, int) {
	w, h := c.Dots()
	px := (x - v.MinX) / (v.MaxX - v.MinX) * float64(w-1)
	py := (v.MaxY - y) / (v.MaxY - v.MinY) * float64(h-1)
	return int(math.Round(px)), int(math.Round(py))
}

// Scale converts a world length along x into dots.
func (v Viewport) Scale(c *Canvas, l float64) int {
	w, _ := c.Dots()
	return int(math.Round(l / (v.MaxX - v.MinX) * float64(w-1)))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
