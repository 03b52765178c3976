package protocol

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-ephys/dsp/trace"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}

	aliases := map[string]Kind{
		"Resonnance":          KindResonance,
		"zap":                 KindResonance,
		" TC ":                KindTimeConstant,
		"inputr":              KindResistance,
		"SpontaneousActivity": KindSpontaneous,
		"IV":                  KindIV,
	}
	for name, want := range aliases {
		if got, err := ParseKind(name); err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %v, %v; want %v", name, got, err, want)
		}
	}

	if _, err := ParseKind("foldername"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestUnknownKind(t *testing.T) {
	k := Kind(42)
	if k.String() != "kind(42)" {
		t.Fatalf("String() = %q", k.String())
	}
	if _, err := New(k, Input{}, DefaultConfig()); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("New: err = %v, want ErrUnknownKind", err)
	}
	if _, err := Provides(k, DefaultConfig()); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Provides: err = %v, want ErrUnknownKind", err)
	}
}

func TestProvidesWithoutData(t *testing.T) {
	cfg := DefaultConfig()
	for _, k := range Kinds() {
		s, err := Provides(k, cfg)
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		if len(s) == 0 {
			t.Fatalf("%s: empty schema", k)
		}
		for key, doc := range s {
			if doc == "" {
				t.Fatalf("%s: %q has no description", k, key)
			}
		}
	}

	s, _ := Provides(KindSag, cfg)
	if len(s) != len(cfg.Sag.CurrentSteps) {
		t.Fatalf("sag schema = %d keys, want one per step", len(s))
	}
}

func TestNewDispatch(t *testing.T) {
	in := Input{Current: []*trace.Signal{rampSweep(t)}}
	p, err := New(KindRamp, in, DefaultConfig(), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind() != KindRamp {
		t.Fatalf("Kind() = %v", p.Kind())
	}
	for _, k := range []Kind{KindIV, KindAHP, KindResistance, KindSag, KindResonance, KindRheobase, KindTimeConstant, KindSpontaneous} {
		p, err := New(k, in, DefaultConfig(), quiet())
		if !errors.Is(err, ErrConfig) {
			t.Fatalf("%s without voltage: err = %v, want ErrConfig", k, err)
		}
		if p != nil {
			t.Fatalf("%s: non-nil protocol returned with error", k)
		}
	}
}
