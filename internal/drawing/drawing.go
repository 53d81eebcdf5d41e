package drawing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

var (
	ErrInvalidKind  = errors.New("invalid drawing kind")
	ErrArity        = errors.New("point count does not match kind")
	ErrInvalidPrice = errors.New("invalid price")
	ErrMissingID    = errors.New("drawing id is empty")
	ErrLocked       = errors.New("drawing is locked")
	ErrKindChanged  = errors.New("drawing kind cannot change")
)

// Point is a data-space anchor: a time-axis key (unix seconds) and a price.
type Point struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// LineStyle is the stroke pattern of a drawing.
type LineStyle string

const (
	StyleSolid  LineStyle = "solid"
	StyleDashed LineStyle = "dashed"
	StyleDotted LineStyle = "dotted"
)

// LegStyle holds per-leg display options of a position drawing.
type LegStyle struct {
	Color     string `json:"color,omitempty"`
	ShowLabel bool   `json:"showLabel"`
}

// PositionLegs groups the display options of the three position legs.
type PositionLegs struct {
	Entry      LegStyle `json:"entry"`
	TakeProfit LegStyle `json:"takeProfit"`
	StopLoss   LegStyle `json:"stopLoss"`
}

// Drawing is a persisted chart annotation. Coordinates are always data-space.
type Drawing struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	Points []Point   `json:"points"`
	Color  string    `json:"color"`
	Width  float64   `json:"width"`
	Style  LineStyle `json:"style"`
	Text   string    `json:"text,omitempty"`
	Locked bool      `json:"locked,omitempty"`

	// Position kinds only
	StopLoss   float64       `json:"stopLoss,omitempty"`
	TakeProfit float64       `json:"takeProfit,omitempty"`
	Quantity   float64       `json:"quantity,omitempty"`
	Legs       *PositionLegs `json:"legs,omitempty"`
}

// PositionDefaults configures new long/short position drawings.
type PositionDefaults struct {
	StopLossPercent   float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent float64 `yaml:"take_profit_percent"`
	Quantity          float64 `yaml:"quantity"`
}

// DefaultPositionDefaults returns the 2% stop / 4% target / 1 unit defaults.
func DefaultPositionDefaults() PositionDefaults {
	return PositionDefaults{StopLossPercent: 2, TakeProfitPercent: 4, Quantity: 1}
}

// NewID returns a fresh unique drawing id.
func NewID() string {
	return uuid.NewString()
}

// New creates a drawing of the given kind with default styling.
func New(kind Kind, points []Point) Drawing {
	pts := make([]Point, len(points))
	copy(pts, points)
	return Drawing{
		ID:     NewID(),
		Kind:   kind,
		Points: pts,
		Color:  DefaultColor(kind),
		Width:  2,
		Style:  StyleSolid,
	}
}

// NewPosition creates a long or short position anchored at entry.
func NewPosition(kind Kind, entry Point, defaults PositionDefaults) Drawing {
	d := New(kind, []Point{entry})
	sl := entry.Price * defaults.StopLossPercent / 100
	tp := entry.Price * defaults.TakeProfitPercent / 100
	if kind == KindShortPosition {
		d.StopLoss = entry.Price + sl
		d.TakeProfit = entry.Price - tp
	} else {
		d.StopLoss = entry.Price - sl
		d.TakeProfit = entry.Price + tp
	}
	d.Quantity = defaults.Quantity
	d.Legs = &PositionLegs{
		Entry:      LegStyle{ShowLabel: true},
		TakeProfit: LegStyle{Color: "#26a69a", ShowLabel: true},
		StopLoss:   LegStyle{Color: "#ef5350", ShowLabel: true},
	}
	return d
}

// DefaultColor returns the stroke color new drawings of a kind start with.
func DefaultColor(kind Kind) string {
	switch kind {
	case KindLongPosition:
		return "#26a69a"
	case KindShortPosition:
		return "#ef5350"
	case KindZone, KindMeasure:
		return "#2962ff"
	case KindFibonacci:
		return "#787b86"
	case KindText:
		return "#131722"
	default:
		return "#2962ff"
	}
}

// Validate checks that the drawing is renderable.
func (d *Drawing) Validate() error {
	if d.ID == "" {
		return ErrMissingID
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, d.Kind)
	}
	if len(d.Points) != d.Kind.Arity() {
		return fmt.Errorf("%w: %s needs %d, got %d", ErrArity, d.Kind, d.Kind.Arity(), len(d.Points))
	}
	for i, p := range d.Points {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			return fmt.Errorf("%w: point %d", ErrInvalidPrice, i)
		}
	}
	if d.Kind.IsPosition() {
		for name, v := range map[string]float64{"stop loss": d.StopLoss, "take profit": d.TakeProfit, "quantity": d.Quantity} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s", ErrInvalidPrice, name)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the drawing.
func (d Drawing) Clone() Drawing {
	c := d
	c.Points = make([]Point, len(d.Points))
	copy(c.Points, d.Points)
	if d.Legs != nil {
		legs := *d.Legs
		c.Legs = &legs
	}
	return c
}

// Translate shifts every point by whole bars and a price delta. Position
// levels move with the entry.
func (d *Drawing) Translate(bars int64, intervalSec int64, dPrice float64) {
	for i := range d.Points {
		d.Points[i].Time += bars * intervalSec
		d.Points[i].Price += dPrice
	}
	if d.Kind.IsPosition() {
		d.StopLoss += dPrice
		d.TakeProfit += dPrice
	}
}

// Duplicate returns an unlocked copy with a new id and prices offset by pct percent.
func (d Drawing) Duplicate(pct float64) Drawing {
	c := d.Clone()
	c.ID = NewID()
	c.Locked = false
	f := 1 + pct/100
	for i := range c.Points {
		c.Points[i].Price *= f
	}
	if c.Kind.IsPosition() {
		c.StopLoss *= f
		c.TakeProfit *= f
	}
	return c
}

// WithSettings returns d with the editable fields of edited applied. ID and
// kind are kept. A locked drawing only takes style changes; its points and
// position levels stay.
func (d Drawing) WithSettings(edited Drawing) Drawing {
	next := d.Clone()
	next.Color = edited.Color
	next.Width = edited.Width
	next.Style = edited.Style
	next.Text = edited.Text
	next.Locked = edited.Locked
	if edited.Legs != nil {
		legs := *edited.Legs
		next.Legs = &legs
	}
	if d.Locked {
		return next
	}
	next.Points = append([]Point(nil), edited.Points...)
	if d.Kind.IsPosition() {
		next.StopLoss = edited.StopLoss
		next.TakeProfit = edited.TakeProfit
		next.Quantity = edited.Quantity
	}
	return next
}

// LegPrice returns the price of a position leg.
func (d *Drawing) LegPrice(leg Leg) (float64, bool) {
	if !d.Kind.IsPosition() || len(d.Points) == 0 {
		return 0, false
	}
	switch leg {
	case LegEntry:
		return d.Points[0].Price, true
	case LegTakeProfit:
		return d.TakeProfit, true
	case LegStopLoss:
		return d.StopLoss, true
	}
	return 0, false
}

// MoveLeg sets a leg to price. Moving the entry translates the whole position
// so stop and target keep their distance from it.
func (d *Drawing) MoveLeg(leg Leg, price float64) {
	if !d.Kind.IsPosition() || len(d.Points) == 0 {
		return
	}
	switch leg {
	case LegEntry:
		delta := price - d.Points[0].Price
		d.Translate(0, 0, delta)
	case LegTakeProfit:
		d.TakeProfit = price
	case LegStopLoss:
		d.StopLoss = price
	}
}

// RiskReward returns reward divided by risk for a position, or 0 when risk is zero.
func (d *Drawing) RiskReward() float64 {
	if !d.Kind.IsPosition() || len(d.Points) == 0 {
		return 0
	}
	entry := d.Points[0].Price
	risk := math.Abs(entry - d.StopLoss)
	if risk == 0 {
		return 0
	}
	return math.Abs(d.TakeProfit-entry) / risk
}

// Encode marshals a drawing list to JSON.
func Encode(ds []Drawing) ([]byte, error) {
	if ds == nil {
		ds = []Drawing{}
	}
	b, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode drawings: %w", err)
	}
	return b, nil
}

// Decode unmarshals a drawing list. Records are not validated.
func Decode(b []byte) ([]Drawing, error) {
	var ds []Drawing
	if err := json.Unmarshal(b, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode drawings: %w", err)
	}
	return ds, nil
}
