package dreamo

import (
	"errors"
	"testing"
)

func TestParseSeed(t *testing.T) {
	tests := []struct {
		in   string
		want Seed
	}{
		{"-1", Seed{Random: true}},
		{"", Seed{Random: true}},
		{"0", Seed{Value: 0}},
		{"42", Seed{Value: 42}},
		// groesser als int64
		{"11980469406460273604", Seed{Value: 11980469406460273604}},
		{" 5443415087540486371 ", Seed{Value: 5443415087540486371}},
	}
	for _, tt := range tests {
		got, err := ParseSeed(tt.in)
		if err != nil {
			t.Fatalf("ParseSeed(%q) fehler: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSeed(%q) = %+v, erwartet %+v", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"abc", "-2", "1.5", "99999999999999999999999"} {
		if _, err := ParseSeed(in); !errors.Is(err, ErrInvalidSeed) {
			t.Errorf("ParseSeed(%q) erwartet ErrInvalidSeed, bekommen %v", in, err)
		}
	}
}

func TestSeedResolve(t *testing.T) {
	draws := 0
	draw := func() uint64 { draws++; return 7 }

	if got := FixedSeed(9514069256241143615).Resolve(draw); got != 9514069256241143615 {
		t.Errorf("fester seed veraendert: %d", got)
	}
	if draws != 0 {
		t.Errorf("fester seed darf nicht ziehen")
	}

	random := Seed{Random: true}
	if got := random.Resolve(draw); got != 7 {
		t.Errorf("zufalls-seed = %d, erwartet 7", got)
	}
	if draws != 1 {
		t.Errorf("erwartet genau einen zug, bekommen %d", draws)
	}

	// ohne Quelle wird math/rand benutzt
	if a, b := random.Resolve(nil), random.Resolve(nil); a == b {
		t.Errorf("zwei zufalls-seeds sind gleich: %d", a)
	}

	if random.String() != "-1" || FixedSeed(3).String() != "3" {
		t.Errorf("String(): %q %q", random.String(), FixedSeed(3).String())
	}
}
