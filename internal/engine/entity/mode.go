package entity

import "strings"

// Mode selects how strictly the enforcement policy treats rule violations.
type Mode string

const (
	// ModeNormal enforces the full allow/warn/block table.
	ModeNormal Mode = "normal"
	// ModeOverride accepts any mutation but still records violations.
	ModeOverride Mode = "override"
	// ModeFreebuild accepts any mutation during unconstrained building.
	ModeFreebuild Mode = "freebuild"
)

// ParseMode normalizes a mode label.
func ParseMode(value string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "normal", "":
		return ModeNormal, true
	case "override":
		return ModeOverride, true
	case "freebuild", "free_build":
		return ModeFreebuild, true
	default:
		return "", false
	}
}

// Bypasses reports whether the mode bypasses enforcement gating.
//
// Bypassing modes do not change what the domain resolver reports; they only
// change whether the policy blocks on violations.
func (m Mode) Bypasses() bool {
	return m == ModeOverride || m == ModeFreebuild
}

func (m Mode) String() string { return string(m) }
