package tier

import (
	"fmt"
	"slices"
	"strings"
)

// Kind labels a distribution by how many tiers it spans.
type Kind int

const (
	Empty Kind = iota
	Uniform
	Mixed
)

func (k Kind) String() string {
	switch k {
	case Uniform:
		return "uniform"
	case Mixed:
		return "mixed"
	default:
		return "empty"
	}
}

// Distribution is the number of objects per canonical tier. Zero counts are insignificant.
type Distribution map[Tier]int

// Of returns a distribution of n objects at a single tier.
func Of(t Tier, n int) Distribution {
	return Distribution{t: n}
}

func (d Distribution) Total() int {
	var total int
	for _, n := range d {
		total += n
	}
	return total
}

// Tiers returns the tiers with a nonzero count, in reporting order.
func (d Distribution) Tiers() []Tier {
	var tiers []Tier
	for t, n := range d {
		if n != 0 {
			tiers = append(tiers, t)
		}
	}
	slices.SortFunc(tiers, func(a, b Tier) int {
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra - rb
		}
		return strings.Compare(string(a), string(b))
	})
	return tiers
}

// Kind is Uniform iff exactly one tier is nonzero, Mixed if more than one is, Empty otherwise.
func (d Distribution) Kind() Kind {
	switch len(d.Tiers()) {
	case 0:
		return Empty
	case 1:
		return Uniform
	default:
		return Mixed
	}
}

// Equal compares per-tier counts.
func (d Distribution) Equal(other Distribution) bool {
	for t := range d {
		if d[t] != other[t] {
			return false
		}
	}
	for t := range other {
		if d[t] != other[t] {
			return false
		}
	}
	return true
}

// Add accumulates other into d.
func (d Distribution) Add(other Distribution) {
	for t, n := range other {
		d[t] += n
	}
}

// Clone returns a copy without zero entries.
func (d Distribution) Clone() Distribution {
	out := make(Distribution, len(d))
	for t, n := range d {
		if n != 0 {
			out[t] = n
		}
	}
	return out
}

func (d Distribution) String() string {
	tiers := d.Tiers()
	if len(tiers) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(tiers))
	for _, t := range tiers {
		parts = append(parts, fmt.Sprintf("%s:%d", t, d[t]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
