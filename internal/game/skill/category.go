package skill

import "strings"

// Category is the interaction category a skill type name resolves to.
type Category int

const (
	CategoryAttack Category = iota
	CategoryDefence
	CategoryCounter
	CategoryBuff
	CategoryHeal
	CategoryDebuff
	CategoryCrafting
	CategoryPassive
)

// String returns the human-readable category name.
func (c Category) String() string {
	switch c {
	case CategoryAttack:
		return "Attack"
	case CategoryDefence:
		return "Defence"
	case CategoryCounter:
		return "Counter"
	case CategoryBuff:
		return "Buff"
	case CategoryHeal:
		return "Heal"
	case CategoryDebuff:
		return "Debuff"
	case CategoryCrafting:
		return "Crafting"
	case CategoryPassive:
		return "Passive"
	default:
		return "unknown"
	}
}

// ParseCategory maps a category name produced by String back to its
// Category. Matching is case-insensitive.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryAttack; c <= CategoryPassive; c++ {
		if strings.EqualFold(s, c.String()) {
			return c, true
		}
	}
	return CategoryAttack, false
}

// categoryKeywords maps lower-case substrings of a skill type name to a
// category. Order matters: earlier rows win, so the more specific words
// come first (an explicit "passive" marker outranks everything, counter
// beats attack, debuff beats buff).
var categoryKeywords = []struct {
	keyword  string
	category Category
}{
	{"passive", CategoryPassive},
	{"counter", CategoryCounter},
	{"riposte", CategoryCounter},
	{"parry", CategoryCounter},
	{"debuff", CategoryDebuff},
	{"curse", CategoryDebuff},
	{"hex", CategoryDebuff},
	{"weaken", CategoryDebuff},
	{"drain", CategoryDebuff},
	{"defen", CategoryDefence},
	{"ward", CategoryDefence},
	{"shield", CategoryDefence},
	{"guard", CategoryDefence},
	{"barrier", CategoryDefence},
	{"protect", CategoryDefence},
	{"heal", CategoryHeal},
	{"mend", CategoryHeal},
	{"restor", CategoryHeal},
	{"regen", CategoryHeal},
	{"buff", CategoryBuff},
	{"empower", CategoryBuff},
	{"enhanc", CategoryBuff},
	{"bless", CategoryBuff},
	{"craft", CategoryCrafting},
	{"forge", CategoryCrafting},
	{"brew", CategoryCrafting},
	{"aura", CategoryPassive},
	{"attack", CategoryAttack},
	{"strike", CategoryAttack},
	{"offen", CategoryAttack},
	{"bolt", CategoryAttack},
	{"blast", CategoryAttack},
	{"assault", CategoryAttack},
}

// Classify maps a free-text skill type name to its interaction category.
// Matching is case-insensitive substring matching against a bounded
// keyword table.
//
// Postcondition: When no keyword matches, returns (CategoryAttack, false)
// so callers can distinguish a real Attack classification from the
// fallback. Content validation (Skill.Validate) treats the fallback as an
// authoring error.
func Classify(typeName string) (Category, bool) {
	name := strings.ToLower(typeName)
	for _, row := range categoryKeywords {
		if strings.Contains(name, row.keyword) {
			return row.category, true
		}
	}
	return CategoryAttack, false
}
