// Package daytime provides a wall-clock time of day used to stamp chat
// messages for display.
package daytime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Daytime is a time of day in seconds since midnight, always normalized to
// [0, 24h). Arithmetic wraps around midnight.
type Daytime int

// New builds a Daytime from clock components, normalizing any overflow.
func New(hour, minute, second int) Daytime {
	return normalize(hour*3600 + minute*60 + second)
}

// Now returns the current local time of day.
func Now() Daytime {
	t := time.Now()
	return New(t.Hour(), t.Minute(), t.Second())
}

// Parse reads "HH:MM:SS". Trailing components may be omitted ("HH" or
// "HH:MM") and default to zero.
func Parse(s string) (Daytime, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("daytime: parse %q: too many components", s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("daytime: parse %q: %w", s, err)
		}
		vals[i] = v
	}
	return New(vals[0], vals[1], vals[2]), nil
}

func normalize(seconds int) Daytime {
	seconds %= secondsPerDay
	if seconds < 0 {
		seconds += secondsPerDay
	}
	return Daytime(seconds)
}

func (d Daytime) Hour() int   { return int(d) / 3600 }
func (d Daytime) Minute() int { return int(d) / 60 % 60 }
func (d Daytime) Second() int { return int(d) % 60 }

// Seconds returns the absolute value in seconds since midnight.
func (d Daytime) Seconds() int { return int(d) }

// Add returns d advanced by o, wrapping past midnight.
func (d Daytime) Add(o Daytime) Daytime { return normalize(int(d) + int(o)) }

// Sub returns d moved back by o, wrapping past midnight.
func (d Daytime) Sub(o Daytime) Daytime { return normalize(int(d) - int(o)) }

// String formats as "HH:MM:SS".
func (d Daytime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", d.Hour(), d.Minute(), d.Second())
}
