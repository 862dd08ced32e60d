// Package control implements the rotary knob surface that drives the audio graph.
package control

import (
	"math"
)

// Knob sweep in degrees, 0 at twelve o'clock.
const (
	AngleMin = -135.0
	AngleMax = 135.0
)

// Knob is a rotary control with a quantized value range.
// A Knob is not safe for concurrent use; Surface serializes access.
type Knob struct {
	Name    string
	Label   string
	Unit    string
	Min     float64
	Max     float64
	Step    float64
	Default float64

	value float64
}

// NewKnob creates a knob set to its default value.
func NewKnob(name, label, unit string, min, max, step, def float64) *Knob {
	if step <= 0 {
		step = 1
	}
	k := &Knob{
		Name:    name,
		Label:   label,
		Unit:    unit,
		Min:     min,
		Max:     max,
		Step:    step,
		Default: def,
	}
	k.value = k.quantize(def)
	return k
}

// Value returns the current value.
func (k *Knob) Value() float64 {
	return k.value
}

// SetValue clamps and quantizes v, stores it and reports whether the value changed.
func (k *Knob) SetValue(v float64) (float64, bool) {
	q := k.quantize(v)
	if q == k.value {
		return q, false
	}
	k.value = q
	return q, true
}

// Reset restores the default value.
func (k *Knob) Reset() (float64, bool) {
	return k.SetValue(k.Default)
}

// ValueToAngle maps v linearly onto the knob sweep.
func (k *Knob) ValueToAngle(v float64) float64 {
	if k.Max == k.Min {
		return AngleMin
	}
	t := (v - k.Min) / (k.Max - k.Min)
	return AngleMin + t*(AngleMax-AngleMin)
}

// AngleToValue maps an angle on the sweep to a step-quantized value.
func (k *Knob) AngleToValue(a float64) float64 {
	t := (a - AngleMin) / (AngleMax - AngleMin)
	return k.quantize(k.Min + t*(k.Max-k.Min))
}

// Angle returns the pointer angle of the current value.
func (k *Knob) Angle() float64 {
	return k.ValueToAngle(k.value)
}

// Rotation returns the current angle as a CSS rotation in [0, 360).
func (k *Knob) Rotation() float64 {
	return math.Mod(k.Angle()+360, 360)
}

// Drag sets the value from a pointer at offset (dx, dy) from the knob
// center, in screen coordinates (y grows downward).
func (k *Knob) Drag(dx, dy float64) (float64, bool) {
	return k.SetValue(k.AngleToValue(PointerAngle(dx, dy)))
}

// PointerAngle converts a pointer offset from the knob center to a sweep
// angle: 0 straight up, positive clockwise, clamped to the sweep.
func PointerAngle(dx, dy float64) float64 {
	ang := math.Atan2(dy, dx)*180/math.Pi + 90
	if ang < -180 {
		ang += 360
	}
	if ang > 180 {
		ang -= 360
	}
	return math.Max(AngleMin, math.Min(AngleMax, ang))
}

// quantize snaps v to the step grid and clamps it into [Min, Max].
func (k *Knob) quantize(v float64) float64 {
	q := math.Floor(v/k.Step+0.5) * k.Step
	// strip float noise such as 0.30000000000000004
	q = math.Round(q*1e9) / 1e9
	return math.Max(k.Min, math.Min(k.Max, q))
}
