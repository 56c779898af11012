// Package visual derives the appearance of an event marker from its age
// relative to a reference time. Derivation is pure: no state, no side
// effects, identical input always yields identical output.
package visual

import "github.com/ScottCrass/quakescene/pkg/scene"

const msPerHour = 3_600_000

// Base colors of the age ramp, in linear RGB.
var (
	red    = scene.RGB{R: 1, G: 0, B: 0}
	orange = scene.RGB{R: 1, G: 0.5, B: 0}
	yellow = scene.RGB{R: 1, G: 1, B: 0}
	cyan   = scene.RGB{R: 0, G: 1, B: 1}
	blue   = scene.RGB{R: 0.2, G: 0.4, B: 1}
)

// State is the derived appearance of one event at one reference time.
// Color and Glow stay separate until render time so brightness
// composition remains the renderer's concern.
type State struct {
	Scale   float64
	Opacity float64
	Color   scene.RGB
	Glow    float64
}

// ColorRamp maps an age in hours to a base color.
type ColorRamp func(ageHours float64) scene.RGB

// ClassicRamp is the default three-band hue ramp: red for the first two
// hours, red to orange through 48 hours, yellow beyond.
func ClassicRamp(ageHours float64) scene.RGB {
	switch {
	case ageHours <= 2:
		return red
	case ageHours <= 48:
		return red.Lerp(orange, (ageHours-2)/46)
	default:
		return yellow
	}
}

// ExtendedRamp matches ClassicRamp through 48 hours, then continues
// orange through cyan to a cool blue by 168 hours. The 48-168h window
// splits evenly at 108h between the orange-cyan and cyan-blue legs.
func ExtendedRamp(ageHours float64) scene.RGB {
	switch {
	case ageHours <= 48:
		return ClassicRamp(ageHours)
	case ageHours <= 108:
		return orange.Lerp(cyan, (ageHours-48)/60)
	case ageHours <= 168:
		return cyan.Lerp(blue, (ageHours-108)/60)
	default:
		return blue
	}
}

// RampByName resolves a configured ramp name. Unknown names fall back to
// the classic ramp so a typo in config degrades visibly but safely.
func RampByName(name string) ColorRamp {
	if name == "extended" {
		return ExtendedRamp
	}
	return ClassicRamp
}

// Derive computes the visual state of an event that occurred at eventMs
// when viewed at refMs, using the classic color ramp. Both times are
// milliseconds since epoch.
func Derive(eventMs, refMs int64) State {
	return DeriveWithRamp(eventMs, refMs, ClassicRamp)
}

// DeriveWithRamp is Derive with an explicit color ramp.
//
// Scale grows linearly over the first hour. Opacity holds at 1 for 48
// hours then fades over five days, floored at 0.1 so old events never
// vanish entirely. Glow steps down through three bands so recent events
// pop. Events ahead of the reference time have zero scale and opacity.
func DeriveWithRamp(eventMs, refMs int64, ramp ColorRamp) State {
	age := float64(refMs-eventMs) / msPerHour

	s := State{Color: ramp(age)}

	switch {
	case age < 0:
		s.Scale = 0
	case age < 1:
		s.Scale = age
	default:
		s.Scale = 1
	}

	switch {
	case age < 0:
		s.Opacity = 0
	case age <= 48:
		s.Opacity = 1
	default:
		s.Opacity = max(0.1, 1-(age-48)/120)
	}

	switch {
	case age <= 2:
		s.Glow = 12
	case age <= 12:
		s.Glow = lerp(12, 6, (age-2)/10)
	case age <= 48:
		s.Glow = lerp(6, 2, (age-12)/36)
	default:
		s.Glow = 1.2
	}

	return s
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
