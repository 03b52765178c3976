package protocol

import (
	"fmt"
	"strings"
)

// Kind identifies a stimulation protocol.
type Kind int

const (
	KindIV Kind = iota
	KindAHP
	KindResistance
	KindSag
	KindResonance
	KindRamp
	KindRheobase
	KindTimeConstant
	KindSpontaneous
)

var kindNames = [...]string{
	KindIV:           "iv",
	KindAHP:          "ahp",
	KindResistance:   "resistance",
	KindSag:          "sag",
	KindResonance:    "resonance",
	KindRamp:         "ramp",
	KindRheobase:     "rheobase",
	KindTimeConstant: "timeconstant",
	KindSpontaneous:  "spontaneous",
}

// Kinds returns every supported kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) String() string {
	if k.valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) valid() bool { return k >= 0 && int(k) < len(kindNames) }

// ParseKind maps a name returned by String back to its Kind. Matching is
// case-insensitive; "resonnance", "zap", "tc", "inputr" and
// "spontaneousactivity" are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "resonnance", "zap":
		return KindResonance, nil
	case "tc":
		return KindTimeConstant, nil
	case "inputr":
		return KindResistance, nil
	case "spontaneousactivity":
		return KindSpontaneous, nil
	}
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}
