package reveal

import (
	"fmt"
	"strings"
	"time"
)

// Speed is a named reveal pace.
type Speed string

const (
	SpeedFast    Speed = "fast"
	SpeedMedium  Speed = "medium"
	SpeedSlow    Speed = "slow"
	SpeedSlower  Speed = "slower"
	SpeedInstant Speed = "instant"
)

// Speeds lists every speed from quickest animation to no animation.
var Speeds = []Speed{SpeedFast, SpeedMedium, SpeedSlow, SpeedSlower, SpeedInstant}

// DefaultBlockDelay is the pause after each block unit.
const DefaultBlockDelay = 400 * time.Millisecond

var speedDelays = map[Speed]time.Duration{
	SpeedFast:    20 * time.Millisecond,
	SpeedMedium:  60 * time.Millisecond,
	SpeedSlow:    100 * time.Millisecond,
	SpeedSlower:  140 * time.Millisecond,
	SpeedInstant: 0,
}

// ParseSpeed converts a case-insensitive name into a Speed.
func ParseSpeed(s string) (Speed, error) {
	sp := Speed(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := speedDelays[sp]; !ok {
		return "", fmt.Errorf("unknown reveal speed %q", s)
	}
	return sp, nil
}

// Valid reports whether s is a known speed.
func (s Speed) Valid() bool {
	_, ok := speedDelays[s]
	return ok
}

// Delay is the per-word delay for s. Unknown speeds use medium.
func (s Speed) Delay() time.Duration {
	if d, ok := speedDelays[s]; ok {
		return d
	}
	return speedDelays[SpeedMedium]
}

// Next cycles through the speeds, wrapping from instant back to fast.
func (s Speed) Next() Speed {
	for i, sp := range Speeds {
		if sp == s {
			return Speeds[(i+1)%len(Speeds)]
		}
	}
	return SpeedFast
}
