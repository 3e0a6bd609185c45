package viz

import (
	"bufio"
	"fmt"
	"io"
)

const svgBackground = "#0a0a0a"

// WriteSVG renders every lit dot of c as a circle, scale pixels per dot.
func (c *Canvas) WriteSVG(w io.Writer, scale float64) error {
	dw, dh := c.Dots()
	width, height := float64(dw)*scale, float64(dh)*scale

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="#00ff88">
`, width, height, width, height, svgBackground)

	r := scale * 0.4
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			if c.Lit(x, y) {
				fmt.Fprintf(bw, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
			}
		}
	}
	bw.WriteString("</g>\n</svg>\n")
	return bw.Flush()
}

// Series is one named line of a stacked SVG chart.
type Series struct {
	Name   string
	Values []float64
	Color  string
}

// WriteSeriesSVG stacks each series in its own band of height px, scaled
// between the series' own min and max. Series with fewer than two values
// get an empty band.
func WriteSeriesSVG(w io.Writer, series []Series, width, height int) error {
	const pad = 18.0
	total := height * len(series)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, total, width, total, svgBackground)

	for i, s := range series {
		top := float64(i * height)
		fmt.Fprintf(bw, "<text x=\"4\" y=\"%.1f\" fill=\"#888899\" font-family=\"monospace\" font-size=\"12\">%s</text>\n", top+13, s.Name)
		if len(s.Values) < 2 {
			continue
		}
		lo, hi := s.Values[0], s.Values[0]
		for _, v := range s.Values {
			lo, hi = min(lo, v), max(hi, v)
		}
		span := hi - lo
		if span == 0 {
			span = 1
		}
		band := float64(height) - pad - 4
		color := s.Color
		if color == "" {
			color = "#00ccff"
		}

		fmt.Fprintf(bw, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, color)
		for j, v := range s.Values {
			x := float64(j) / float64(len(s.Values)-1) * float64(width)
			y := top + pad + band - (v-lo)/span*band
			if j == 0 {
				fmt.Fprintf(bw, "M%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(bw, " L%.1f,%.1f", x, y)
			}
		}
		bw.WriteString("\"/>\n")
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}
