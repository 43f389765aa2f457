package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/ribbon/internal/lineart"
	"github.com/san-kum/ribbon/internal/render"
)

const (
	Background = "#000000"
	Stroke     = "#ffffff"
)

// PolylinesToSVG renders a set as closed white paths on a black canvas of
// the given pixel size. Polylines with fewer than two points are skipped.
func PolylinesToSVG(set lineart.Set, width, height int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="none" stroke="%s" stroke-width="%g" stroke-linecap="round" stroke-linejoin="round">
`, width, height, width, height, Background, Stroke, render.LineWidth))

	for _, line := range set {
		if !line.Drawable() {
			continue
		}
		sb.WriteString(`<path d="M`)
		for i, p := range line {
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.2f,%.2f", p.X, p.Y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.2f,%.2f", p.X, p.Y))
			}
		}
		sb.WriteString(" Z\"/>\n")
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}

// WriteSVG writes the renderer's current set with one frame of jitter.
func WriteSVG(w io.Writer, r *render.Renderer) error {
	width, height := r.Size()
	_, err := io.WriteString(w, PolylinesToSVG(r.Jittered(), width, height))
	return err
}
