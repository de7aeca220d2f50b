// Package volume maps between the 0-11 display volume and the player's linear gain.
package volume

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrVolumeNotInteger = errors.New("volume is not an integer")
	ErrTooLoud          = errors.New("volume too loud")
	ErrTooLow           = errors.New("volume too low")
	ErrConversion       = errors.New("gain has no display volume")
)

const (
	MaxDisplay = 11  // "one louder"
	MaxGain    = 2.0 // gain for MaxDisplay
	MinGain    = 0.0
)

// Change is the outcome of an accepted volume change.
type Change struct {
	Gain    float64 // New linear gain
	Display int     // New display volume
	Diff    int     // Signed display difference from the previous volume
}

// ToGain converts a display volume to linear gain. 0-10 map linearly to 0.0-1.0 and 11 maps to
// 2.0. Values beyond 11 keep growing past MaxGain so callers can reject them.
func ToGain(display int) float64 {
	if display > 10 {
		return float64(display+9) / 10
	}
	return float64(display) / 10
}

// ToDisplay converts a linear gain back to the display scale.
func ToDisplay(gain float64) (int, error) {
	whole := int(math.Round(gain * 10))
	if whole > MaxDisplay && whole < 20 {
		return 0, errors.Wrapf(ErrConversion, "gain %.2f", gain)
	}
	if whole == 20 {
		return MaxDisplay, nil
	}
	return whole, nil
}

// ApplyChange computes the gain for a requested value. relative requests add to the current
// display volume; absolute requests replace it. Nothing is mutated on rejection.
func ApplyChange(currentGain float64, requested int, relative bool) (Change, error) {
	current, err := ToDisplay(currentGain)
	if err != nil {
		return Change{}, err
	}

	next := requested
	if relative {
		next = current + requested
	}

	gain := ToGain(next)
	if gain > MaxGain {
		return Change{}, errors.Wrapf(ErrTooLoud, "requested %d", next)
	}
	if gain < MinGain {
		return Change{}, errors.Wrapf(ErrTooLow, "requested %d", next)
	}

	return Change{
		Gain:    gain,
		Display: next,
		Diff:    next - current,
	}, nil
}

// ParseRequest parses "7", "+2" or "-3". A leading sign makes the request relative.
func ParseRequest(s string) (value int, relative bool, err error) {
	s = strings.TrimSpace(s)
	value, err = strconv.Atoi(s)
	if err != nil {
		return 0, false, errors.Wrapf(ErrVolumeNotInteger, "%q", s)
	}
	relative = strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")
	return value, relative, nil
}
