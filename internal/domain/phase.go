package domain

import "fmt"

// Phase is the market-maturity stage. Phases are totally ordered and only
// ever advance one step at a time.
type Phase uint8

const (
	PhaseUtility Phase = iota
	PhaseForwards
	PhaseSynthetics
	PhaseSpeculation
)

// FinalPhase is the terminal phase.
const FinalPhase = PhaseSpeculation

var phaseNames = [...]string{
	PhaseUtility:     "UTILITY",
	PhaseForwards:    "FORWARDS",
	PhaseSynthetics:  "SYNTHETICS",
	PhaseSpeculation: "SPECULATION",
}

// String returns the string representation of Phase.
func (p Phase) String() string {
	if !p.IsValid() {
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
	return phaseNames[p]
}

// IsValid checks if the phase is a known value.
func (p Phase) IsValid() bool {
	return int(p) < len(phaseNames)
}

// IsFinal reports whether no further transition exists.
func (p Phase) IsFinal() bool {
	return p == FinalPhase
}

// CanTransitionTo reports whether target is exactly the next phase.
// Backward, same-phase and skipping transitions are all rejected.
func (p Phase) CanTransitionTo(target Phase) bool {
	return p.IsValid() && target.IsValid() && uint8(target) == uint8(p)+1
}

// Next returns the following phase, or false at the terminal phase.
func (p Phase) Next() (Phase, bool) {
	if !p.IsValid() || p.IsFinal() {
		return p, false
	}
	return p + 1, true
}

// ParsePhase parses a phase name.
func ParsePhase(s string) (Phase, bool) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, ok := ParsePhase(string(text))
	if !ok {
		return fmt.Errorf("unknown phase %q", string(text))
	}
	*p = parsed
	return nil
}
