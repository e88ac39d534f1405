package tier

import (
	"fmt"
	"strings"
)

// Tier is the canonical, provider independent storage tier.
type Tier string

const (
	Standard    Tier = "STANDARD"
	Performance Tier = "PERFORMANCE"
	Archive     Tier = "ARCHIVE"
)

// All lists the canonical tiers in reporting order.
var All = []Tier{Standard, Performance, Archive}

// Parse accepts a canonical tier name in any case.
func Parse(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range All {
		if t == known {
			return t, nil
		}
	}

	return "", fmt.Errorf("unknown tier %q, expected one of %v", s, All)
}

func (t Tier) String() string {
	return string(t)
}

func rank(t Tier) int {
	for i, known := range All {
		if t == known {
			return i
		}
	}
	return len(All)
}
