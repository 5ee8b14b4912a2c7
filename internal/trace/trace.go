// Package trace computes the visual and temporal semantics of the bounce
// chain and the pursuit trace: which hops are already traced, where the
// leading trace marker sits between hops, and how hops are highlighted.
//
// Everything here is a pure function over server-confirmed state; nothing is
// predicted locally.
package trace

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"gridlink.io/internal/protocol"
)

// Pursuit describes how far the trace has eaten into a chain of n hops.
//
// Traced counts fully-traced hops from the end of the chain backward (the
// hop nearest the target is traced first). Fractional is the trace marker's
// position between the next untraced hop and the first traced one, in [0,1).
type Pursuit struct {
	Traced     int
	Fractional float64
}

// Compute derives the pursuit position. Progress clamps to [0,1]; an empty
// chain is never traced. At progress 1.0 every hop is traced and the
// fractional part is exactly 0.
func Compute(progress float64, n int) Pursuit {
	if n <= 0 {
		return Pursuit{}
	}
	if progress <= 0 {
		return Pursuit{}
	}
	if progress >= 1 {
		return Pursuit{Traced: n}
	}
	scaled := progress * float64(n)
	traced := int(math.Floor(scaled))
	return Pursuit{Traced: traced, Fractional: scaled - float64(traced)}
}

// TracedAt reports whether the hop at chain index i (0 = first hop of the
// route) is fully traced.
func (p Pursuit) TracedAt(i, n int) bool {
	return i >= n-p.Traced
}

// Point is a screen coordinate for one chain hop.
type Point struct {
	X, Y float64
}

// Layout spaces the chain's hops evenly along the diagonal of a w x h map
// area, origin (player gateway) excluded, target corner last. A single hop
// sits at the midpoint.
func Layout(n int, w, h float64) []Point {
	if n <= 0 {
		return nil
	}
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		t := float64(i+1) / float64(n+1)
		pts[i] = Point{X: t * w, Y: t * h}
	}
	return pts
}

// TargetPoint is where the traced host sits on the same w x h map area the
// chain is laid out on. The trace emanates from here.
func TargetPoint(w, h float64) Point {
	return Point{X: w, Y: h}
}

// MarkerPosition interpolates the leading trace marker. The marker moves
// backward along the route, from the most recently traced hop (or the target
// itself when nothing is traced yet) toward the next untraced hop, by the
// fractional part. Returns false when the trace is not active or the chain
// is empty.
func MarkerPosition(p Pursuit, pts []Point, target Point, active bool) (Point, bool) {
	n := len(pts)
	if !active || n == 0 {
		return Point{}, false
	}
	if p.Traced >= n {
		return pts[0], true
	}
	from := target
	if p.Traced > 0 {
		from = pts[n-p.Traced]
	}
	to := pts[n-1-p.Traced]
	f := p.Fractional
	return Point{
		X: from.X + (to.X-from.X)*f,
		Y: from.Y + (to.Y-from.Y)*f,
	}, true
}

// Highlight is the derived per-hop display state.
type Highlight int

const (
	HighlightIdle Highlight = iota
	HighlightRoute
	HighlightTraced
	HighlightTarget
)

// Highlights derives the per-hop highlight state. Route highlighting exists
// only while connected; it is cleared by disconnect even though the chain
// contents survive.
func Highlights(chain []protocol.BounceNode, connected bool, target string, p Pursuit) []Highlight {
	n := len(chain)
	out := make([]Highlight, n)
	for i, node := range chain {
		switch {
		case !connected:
			out[i] = HighlightIdle
		case p.TracedAt(i, n):
			out[i] = HighlightTraced
		case node.Address == target:
			out[i] = HighlightTarget
		default:
			out[i] = HighlightRoute
		}
	}
	return out
}

// CanConnect is the UI-level precondition for offering a connect action.
func CanConnect(chain []protocol.BounceNode, connected bool) bool {
	return len(chain) > 0 && !connected
}

// Summary renders the status-bar text for the trace indicator.
func Summary(progress float64, active bool, n int) string {
	if !active {
		return "trace: inactive"
	}
	p := Compute(progress, n)
	return fmt.Sprintf("trace: %s%% (%d/%d hops compromised)",
		humanize.FtoaWithDigits(progress*100, 1), p.Traced, n)
}
