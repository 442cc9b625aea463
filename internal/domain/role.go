package domain

import "fmt"

// Role decides who yields when both sides offer at once.
type Role string

const (
	RoleAuto     Role = "auto"
	RolePolite   Role = "polite"
	RoleImpolite Role = "impolite"
)

// ResolveRole turns a configured role into a concrete one. For RoleAuto the
// peer whose id sorts lower is polite, so both ends agree without talking.
func ResolveRole(configured Role, pair Pair) (Role, error) {
	switch configured {
	case RolePolite, RoleImpolite:
		return configured, nil
	case RoleAuto, "":
		if pair.Self < pair.Remote {
			return RolePolite, nil
		}
		return RoleImpolite, nil
	default:
		return "", fmt.Errorf("unknown role %q", configured)
	}
}
