// Package panels derives panel boxes and their reading order from the
// positioned markers of a reading analysis. Sentence markers that sit close
// together are clustered into one panel; panels are then ordered the way the
// page is read, right to left and top to bottom for manga.
package panels

import (
	"context"
	"sort"

	"github.com/okibee/mangalens/internal/analysis"
	"github.com/okibee/mangalens/internal/imaging"
)

// Segmenter produces ordered panels for a page.
type Segmenter interface {
	Segment(ctx context.Context, page *imaging.Page) ([]analysis.Panel, error)
}

// clusterMargin is how far apart two marker rects may be, as a fraction of
// the page, and still belong to the same panel.
const clusterMargin = 0.04

// rowOverlap is the minimum vertical overlap fraction for two panels to
// count as the same row.
const rowOverlap = 0.3

// ReadingFunc obtains a reading analysis for a page.
type ReadingFunc func(ctx context.Context, page *imaging.Page) (*analysis.ReadingAnalysis, error)

// MarkerSegmenter segments a page by clustering the sentence markers of a
// reading analysis.
type MarkerSegmenter struct {
	analyze ReadingFunc
	order   string
}

// NewMarkerSegmenter creates a MarkerSegmenter. order is "rtl" or "ltr".
func NewMarkerSegmenter(analyze ReadingFunc, order string) *MarkerSegmenter {
	return &MarkerSegmenter{analyze: analyze, order: order}
}

var _ Segmenter = (*MarkerSegmenter)(nil)

func (s *MarkerSegmenter) Segment(ctx context.Context, page *imaging.Page) ([]analysis.Panel, error) {
	reading, err := s.analyze(ctx, page)
	if err != nil {
		return nil, err
	}
	return FromMarkers(reading.Sentences, s.order), nil
}

// FromMarkers clusters sentence markers into panels and assigns reading
// order. An empty marker list yields no panels.
func FromMarkers(markers []analysis.Marker, order string) []analysis.Panel {
	rects := make([]analysis.Rect, 0, len(markers))
	for _, m := range markers {
		if m.Rect.Area() > 0 {
			rects = append(rects, m.Rect)
		}
	}
	if len(rects) == 0 {
		return nil
	}

	clusters := clusterRects(rects)
	panels := make([]analysis.Panel, len(clusters))
	for i, r := range clusters {
		panels[i] = analysis.Panel{Rect: r}
	}
	orderPanels(panels, order)
	return panels
}

// clusterRects merges rects whose margins touch until no merge applies.
func clusterRects(rects []analysis.Rect) []analysis.Rect {
	clusters := append([]analysis.Rect(nil), rects...)
	for {
		merged := false
		for i := 0; i < len(clusters) && !merged; i++ {
			for j := i + 1; j < len(clusters); j++ {
				if near(clusters[i], clusters[j], clusterMargin) {
					clusters[i] = union(clusters[i], clusters[j])
					clusters = append(clusters[:j], clusters[j+1:]...)
					merged = true
					break
				}
			}
		}
		if !merged {
			return clusters
		}
	}
}

func near(a, b analysis.Rect, margin float64) bool {
	return a.X-margin < b.X+b.Width &&
		b.X-margin < a.X+a.Width &&
		a.Y-margin < b.Y+b.Height &&
		b.Y-margin < a.Y+a.Height
}

func union(a, b analysis.Rect) analysis.Rect {
	x := min(a.X, b.X)
	y := min(a.Y, b.Y)
	return analysis.Rect{
		X:      x,
		Y:      y,
		Width:  max(a.X+a.Width, b.X+b.Width) - x,
		Height: max(a.Y+a.Height, b.Y+b.Height) - y,
	}
}

// orderPanels sorts panels into reading order in place and numbers them
// starting at 1. Panels are grouped into rows by vertical overlap; rows run
// top to bottom, and within a row panels run right to left unless order is
// "ltr".
func orderPanels(panels []analysis.Panel, order string) {
	sort.Slice(panels, func(i, j int) bool { return panels[i].Y < panels[j].Y })

	var rows [][]int
	for i := range panels {
		placed := false
		for r, row := range rows {
			if sameRow(panels[row[0]], panels[i]) {
				rows[r] = append(rows[r], i)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, []int{i})
		}
	}

	n := 1
	sorted := make([]analysis.Panel, 0, len(panels))
	for _, row := range rows {
		sort.Slice(row, func(a, b int) bool {
			if order == "ltr" {
				return panels[row[a]].X < panels[row[b]].X
			}
			return panels[row[a]].X+panels[row[a]].Width > panels[row[b]].X+panels[row[b]].Width
		})
		for _, idx := range row {
			p := panels[idx]
			p.Order = n
			n++
			sorted = append(sorted, p)
		}
	}
	copy(panels, sorted)
}

// sameRow reports whether b vertically overlaps a by at least rowOverlap of
// the shorter panel.
func sameRow(a, b analysis.Panel) bool {
	top := max(a.Y, b.Y)
	bottom := min(a.Y+a.Height, b.Y+b.Height)
	if bottom <= top {
		return false
	}
	shorter := min(a.Height, b.Height)
	if shorter <= 0 {
		return false
	}
	return (bottom-top)/shorter >= rowOverlap
}
