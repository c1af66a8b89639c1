package buildconf

import (
	"fmt"
	"strings"
)

// Mode selects which overlay is merged over the base partial.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// Modes lists every accepted mode, in the order they are documented.
var Modes = []Mode{Development, Production}

// ParseMode accepts exactly "development" or "production".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case Development, Production:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownMode, s, Development, Production)
	}
}

// ParseModeLenient mirrors webpack's handling of the mode option: anything
// that is not "production" builds for development.
func ParseModeLenient(s string) Mode {
	if Mode(strings.TrimSpace(s)) == Production {
		return Production
	}
	return Development
}

func (m Mode) IsProduction() bool {
	return m == Production
}

func (m Mode) String() string {
	return string(m)
}
