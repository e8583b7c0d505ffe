package spawn

import "fmt"

// Tier is the strategy level that produced an outcome. It doubles as the
// notification tag handed to the notifier.
type Tier int

const (
	TierSuppressed Tier = iota
	TierSilent
	TierFirstAssignment
	TierRelocatedNearby
	TierRelocatedRandom
	TierDeath
)

var tierNames = map[Tier]string{
	TierSuppressed:      "suppressed",
	TierSilent:          "silent",
	TierFirstAssignment: "first-assignment",
	TierRelocatedNearby: "relocated-nearby",
	TierRelocatedRandom: "relocated-random",
	TierDeath:           "death",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tier) UnmarshalText(b []byte) error {
	v, ok := ParseTier(string(b))
	if !ok {
		return fmt.Errorf("unknown tier %q", string(b))
	}
	*t = v
	return nil
}

func ParseTier(s string) (Tier, bool) {
	for t, name := range tierNames {
		if name == s {
			return t, true
		}
	}
	return TierSuppressed, false
}
