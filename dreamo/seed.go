// seed.go - Seed-Aufloesung fuer die Diffusion
package dreamo

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// RandomSeed ist der Eingabewert, der einen frischen Zufalls-Seed anfordert
const RandomSeed = "-1"

var ErrInvalidSeed = errors.New("ungueltiger seed")

// Seed ist entweder ein fester Wert oder "zufaellig".
// Seeds sind uint64, weil Galerie-Seeds den int64-Bereich ueberschreiten.
type Seed struct {
	Value  uint64
	Random bool
}

// ParseSeed liest "-1" (zufaellig) oder eine nicht-negative Ganzzahl
func ParseSeed(s string) (Seed, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == RandomSeed {
		return Seed{Random: true}, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Seed{}, fmt.Errorf("%w %q", ErrInvalidSeed, s)
	}
	return Seed{Value: v}, nil
}

// FixedSeed erzeugt einen festen Seed
func FixedSeed(v uint64) Seed { return Seed{Value: v} }

// Resolve gibt den festen Wert zurueck oder zieht einen neuen Zufallswert
func (s Seed) Resolve(draw func() uint64) uint64 {
	if !s.Random {
		return s.Value
	}
	if draw == nil {
		draw = rand.Uint64
	}
	return draw()
}

func (s Seed) String() string {
	if s.Random {
		return RandomSeed
	}
	return strconv.FormatUint(s.Value, 10)
}
