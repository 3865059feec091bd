// Package character defines the character domain model consumed by the
// combat engine.
package character

import "time"

// StatAether is the resource stat spent when a skill is used.
const StatAether = "aether"

// primaryStats is the set of stat names skills are allowed to scale on.
// Aether is a resource, not a primary stat, and is deliberately excluded.
var primaryStats = map[string]bool{
	"might":    true,
	"finesse":  true,
	"vitality": true,
	"insight":  true,
	"resolve":  true,
	"presence": true,
}

// IsPrimaryStat reports whether name is a known primary stat.
func IsPrimaryStat(name string) bool {
	return primaryStats[name]
}

// PrimaryStats returns the set of known primary stat names.
//
// Postcondition: the returned slice is a fresh copy; mutating it does not
// affect the package-level set.
func PrimaryStats() []string {
	names := make([]string, 0, len(primaryStats))
	for name := range primaryStats {
		names = append(names, name)
	}
	return names
}

// Character represents a character's persistent state as read by the
// combat engine.
//
// ID is set by the persistence layer; an empty ID indicates an unsaved
// character.
type Character struct {
	ID     string
	UserID string

	Name       string
	LocationID string // current location ID
	Active     bool

	// Stats maps stat names to values. Always contains StatAether plus
	// any named primary stats.
	Stats map[string]int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stat returns the character's value for the named stat, or 0 when unset.
func (c *Character) Stat(name string) int {
	return c.Stats[name]
}

// Aether returns the character's current aether reserve.
func (c *Character) Aether() int {
	return c.Stats[StatAether]
}

// SetAether overwrites the character's aether reserve.
//
// Precondition: value >= 0.
// Postcondition: Aether() == value. Persistence is the caller's concern.
func (c *Character) SetAether(value int) {
	if c.Stats == nil {
		c.Stats = make(map[string]int)
	}
	c.Stats[StatAether] = value
}
