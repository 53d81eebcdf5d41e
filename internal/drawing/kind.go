// Package drawing defines the persisted chart annotation record.
package drawing

// Kind identifies the shape of a drawing. The set is closed; every switch over
// Kind in this module lists all members.
type Kind string

const (
	KindLine           Kind = "line"
	KindRay            Kind = "ray"
	KindExtendedLine   Kind = "extended-line"
	KindHorizontalLine Kind = "horizontal-line"
	KindVerticalLine   Kind = "vertical-line"
	KindZone           Kind = "zone"
	KindText           Kind = "text"
	KindMeasure        Kind = "measure"
	KindChannel        Kind = "channel"
	KindFibonacci      Kind = "fibonacci"
	KindArrow          Kind = "arrow"
	KindLongPosition   Kind = "long-position"
	KindShortPosition  Kind = "short-position"
)

// Kinds lists every drawing kind in toolbar order.
var Kinds = []Kind{
	KindLine, KindRay, KindExtendedLine, KindHorizontalLine, KindVerticalLine,
	KindZone, KindText, KindMeasure, KindChannel, KindFibonacci, KindArrow,
	KindLongPosition, KindShortPosition,
}

// Arity returns the number of points a complete drawing of this kind carries.
// Returns 0 for unknown kinds.
func (k Kind) Arity() int {
	switch k {
	case KindHorizontalLine, KindVerticalLine, KindText, KindLongPosition, KindShortPosition:
		return 1
	case KindLine, KindRay, KindExtendedLine, KindZone, KindMeasure, KindFibonacci, KindArrow:
		return 2
	case KindChannel:
		return 3
	default:
		return 0
	}
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	return k.Arity() > 0
}

// IsPosition reports whether k is a long or short position marker.
func (k Kind) IsPosition() bool {
	return k == KindLongPosition || k == KindShortPosition
}

func (k Kind) String() string {
	return string(k)
}

// Tool is the active toolbar selection: the cursor or a drawing kind.
type Tool string

const ToolCursor Tool = "cursor"

// ToolFor returns the creation tool for a kind.
func ToolFor(k Kind) Tool {
	return Tool(k)
}

// Kind returns the kind a creation tool builds. ok is false for the cursor.
func (t Tool) Kind() (Kind, bool) {
	k := Kind(t)
	return k, k.Valid()
}

// Valid reports whether t is the cursor or a known kind.
func (t Tool) Valid() bool {
	if t == ToolCursor {
		return true
	}
	_, ok := t.Kind()
	return ok
}

// FibonacciLevels are the retracement ratios drawn by a fibonacci drawing.
var FibonacciLevels = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}

// Leg names one of a position drawing's price lines.
type Leg string

const (
	LegEntry      Leg = "entry"
	LegTakeProfit Leg = "take-profit"
	LegStopLoss   Leg = "stop-loss"
)

// Legs lists the position legs from entry outward.
var Legs = []Leg{LegEntry, LegTakeProfit, LegStopLoss}
