// Package pll computes dot clock settings for the UniChrome family clock
// generators. Frequencies are in kHz throughout.
//
// Both generators derive the dot clock from the 14.318 MHz reference as
//
//	ref * mult / div / (1 << shift)
//
// and differ in the legal ranges of the three terms and in how the result is
// packed into the sequencer clock registers.
package pll

import "fmt"

// RefKHz is the reference crystal frequency.
const RefKHz = 14318

// initialBestDiff seeds every search; any candidate must beat it.
const initialBestDiff = 300000

// Family selects the clock generator generation.
type Family int

const (
	// FamilyCLE266 is the generator of the CastleRock and early UniChrome
	// parts: 7 bit multiplier, 2 register bytes.
	FamilyCLE266 Family = iota
	// FamilyPro is the generator of the UniChrome Pro parts: 8 bit biased
	// multiplier and divider, 3 register bytes.
	FamilyPro
)

func (f Family) String() string {
	switch f {
	case FamilyCLE266:
		return "cle266"
	case FamilyPro:
		return "unichrome-pro"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Solution is one generator setting. It is immutable once returned.
type Solution struct {
	Mult  int
	Div   int
	Shift int // post divider is 1 << Shift

	KHz       int // achieved frequency
	Deviation int // KHz minus the requested frequency
}

func (s Solution) String() string {
	return fmt.Sprintf("mult=%d div=%d shift=%d -> %dkHz (%+d)", s.Mult, s.Div, s.Shift, s.KHz, s.Deviation)
}

// Window is one bounded search: every divider in [MinDiv, MaxDiv] with a fixed
// post divider.
type Window struct {
	Shift  int
	MinDiv int
	MaxDiv int
}

// Register is one sequencer register value of an encoded solution.
type Register struct {
	Index uint8
	Value uint8
}

// Multiplier returns the multiplier closest to the target for div and shift.
func Multiplier(kHz, div, shift int) int {
	num := 2*kHz*div<<shift + RefKHz
	return num / (2 * RefKHz)
}

// Output returns the frequency produced by mult, div and shift, truncating the
// way the hardware tables were derived.
func Output(mult, div, shift int) int {
	return mult * RefKHz / div >> shift
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Accepts reports whether mult is programmable.
func (f Family) Accepts(mult int) bool {
	switch f {
	case FamilyCLE266:
		return mult > 0 && mult < 129
	case FamilyPro:
		return mult >= 2 && mult <= 257
	default:
		return false
	}
}

// search scans windows in order, sharing one best difference across them.
// A candidate replaces the current best only when strictly closer, so the
// first solution found wins ties.
//
// Output truncates, so the rounded multiplier is not always the closest one
// for a divider; its neighbours are scored after it.
func (f Family) search(kHz int, windows []Window, best *Solution, bestDiff *int) bool {
	found := false
	for _, w := range windows {
		for div := w.MinDiv; div <= w.MaxDiv; div++ {
			rounded := Multiplier(kHz, div, w.Shift)
			for _, mult := range [3]int{rounded, rounded - 1, rounded + 1} {
				if !f.Accepts(mult) {
					continue
				}
				out := Output(mult, div, w.Shift)
				diff := abs(kHz - out)
				if diff < *bestDiff {
					*bestDiff = diff
					*best = Solution{Mult: mult, Div: div, Shift: w.Shift, KHz: out, Deviation: out - kHz}
					found = true
				}
			}
		}
	}
	return found
}

// cle266Singularity is the setting used between 71389 and 71788 kHz, where no
// searched combination locks.
var cle266Singularity = Solution{Mult: 0x50, Div: 0x10, Shift: 0}

// Windows returns the divider ranges searched for kHz, in search order. It
// returns nil for the CLE266 singularity band, which uses a fixed setting.
//
// The CLE266 band edges were measured on hardware; the usable multiplier
// range collapses between them.
func (f Family) Windows(kHz int) []Window {
	switch f {
	case FamilyCLE266:
		switch {
		case kHz > 72514:
			return []Window{{0, 2, 25}}
		case kHz > 71788:
			return []Window{{0, 16, 24}}
		case kHz > 71389:
			return nil
		case kHz > 48833:
			w := []Window{{1, 7, 18}}
			switch {
			case kHz > 69024:
				return append(w, Window{0, 15, 23})
			case kHz > 63500:
				return append(w, Window{0, 15, 21})
			case kHz > 52008:
				return append(w, Window{0, 17, 19})
			default:
				return append(w, Window{0, 17, 17})
			}
		case kHz > 35220:
			return []Window{{1, 11, 24}}
		case kHz > 34511:
			return []Window{{1, 11, 23}}
		case kHz > 33453:
			return []Window{{1, 11, 22}}
		case kHz > 31817:
			return []Window{{1, 11, 21}}
		default:
			w := []Window{{2, 8, 19}}
			switch {
			case kHz > 27713:
				return append(w, Window{1, 8, 17})
			case kHz > 26000:
				return append(w, Window{1, 8, 18})
			default:
				return append(w, Window{1, 8, 19})
			}
		}
	case FamilyPro:
		return []Window{
			{0, 2, 4},
			{1, 4, 8},
			{2, 8, 16},
			{3, 16, 32},
		}
	default:
		return nil
	}
}

// Synthesize returns the setting closest to kHz. It never fails: callers
// decide whether the deviation is acceptable.
func (f Family) Synthesize(kHz int) Solution {
	windows := f.Windows(kHz)
	if f == FamilyCLE266 && windows == nil {
		s := cle266Singularity
		s.KHz = Output(s.Mult, s.Div, s.Shift)
		s.Deviation = s.KHz - kHz
		return s
	}

	best := Solution{}
	bestDiff := initialBestDiff
	if !f.search(kHz, windows, &best, &bestDiff) {
		// nothing beat the seed; report the empty setting honestly
		best.Deviation = -kHz
	}
	return best
}

// Valid reports whether s can be programmed on f. The empty setting
// Synthesize returns when nothing locks is not valid.
func (f Family) Valid(s Solution) bool {
	if !f.Accepts(s.Mult) || s.Shift < 0 || s.Shift > 3 {
		return false
	}
	switch f {
	case FamilyCLE266:
		return s.Div > 0 && s.Div < 0x40 && s.Shift < 3
	case FamilyPro:
		return s.Div >= 2 && s.Div <= 257
	default:
		return false
	}
}

// Registers encodes s as sequencer register writes, in write order. It
// returns nil when s is not Valid for f.
func (f Family) Registers(s Solution) []Register {
	if !f.Valid(s) {
		return nil
	}
	switch f {
	case FamilyCLE266:
		var post uint8
		switch s.Shift {
		case 2:
			post = 0x80
		case 1:
			post = 0x40
		}
		return []Register{
			{Index: 0x46, Value: post | uint8(s.Div)},
			{Index: 0x47, Value: uint8(s.Mult)},
		}
	case FamilyPro:
		return []Register{
			{Index: 0x44, Value: uint8(s.Shift & 0x03)},
			{Index: 0x45, Value: uint8(s.Div - 2)},
			{Index: 0x46, Value: uint8(s.Mult - 2)},
		}
	default:
		return nil
	}
}
