package entity

import (
	"fmt"
	"strings"
)

// Tier is an ordered access level. Comparisons use the ordinal.
type Tier int

const (
	TierGuest Tier = iota
	TierOne
	TierTwo
	TierThree
	TierAdmin
)

var tierNames = map[Tier]string{
	TierGuest: "GUEST",
	TierOne:   "TIER1",
	TierTwo:   "TIER2",
	TierThree: "TIER3",
	TierAdmin: "ADMIN",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TIER(%d)", int(t))
}

// AtLeast reports whether t satisfies the required tier.
func (t Tier) AtLeast(required Tier) bool {
	return t >= required
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier accepts the canonical names case-insensitively.
func ParseTier(s string) (Tier, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for tier, name := range tierNames {
		if name == upper {
			return tier, nil
		}
	}
	return TierGuest, fmt.Errorf("unknown tier %q", s)
}
