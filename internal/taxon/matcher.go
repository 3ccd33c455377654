package taxon

import (
	"log/slog"
	"strings"
)

// Ancestor is one taxon in an observation's ancestor chain.
type Ancestor struct {
	Rank            string   `json:"rank"`
	Name            string   `json:"name"`
	VernacularNames []string `json:"vernacular_names,omitempty"`
}

// Chain is the ordered list of higher-rank taxa above an observation's taxon.
type Chain []Ancestor

// Rule maps a canonical category to the ranks worth inspecting and the name
// fragments that constitute a match at those ranks.
type Rule struct {
	Ranks []string
	Terms []string
}

// defaultRules is the built-in category table. Matching is substring-based
// on lower-cased ancestor names and vernacular names; this is a heuristic,
// not exact taxonomic inference, and naive containment can misfire when a
// term appears inside an unrelated longer word.
var defaultRules = map[string]Rule{
	"angiosperma": {
		Ranks: []string{"phylum", "subphylum", "class", "subclass"},
		Terms: []string{"magnoliopsida", "liliopsida", "magnoliophyta", "angiosperm", "flowering plant"},
	},
	"gimnosperma": {
		Ranks: []string{"phylum", "class", "order"},
		Terms: []string{"pinopsida", "cycadopsida", "ginkgoopsida", "gnetopsida", "pinophyta", "conifer", "gymnosperm"},
	},
	"helecho": {
		Ranks: []string{"phylum", "class"},
		Terms: []string{"polypodiopsida", "pteridophyta", "fern"},
	},
	"musgo": {
		Ranks: []string{"phylum", "class"},
		Terms: []string{"bryophyta", "bryopsida", "marchantiophyta", "moss", "liverwort"},
	},
	"alga": {
		Ranks: []string{"kingdom", "phylum", "class"},
		Terms: []string{"chlorophyta", "rhodophyta", "phaeophyceae", "charophyta", "alga"},
	},
	"hongo": {
		Ranks: []string{"kingdom", "phylum", "class"},
		Terms: []string{"fungi", "basidiomycota", "ascomycota", "agaricomycetes", "fungus"},
	},
	"liquen": {
		Ranks: []string{"class", "order"},
		Terms: []string{"lecanoromycetes", "lichen"},
	},
}

// aliases maps alternative normalized spellings onto canonical rule keys.
var aliases = map[string]string{
	"angiosperm":  "angiosperma",
	"gymnosperm":  "gimnosperma",
	"fern":        "helecho",
	"pteridofito": "helecho",
	"moss":        "musgo",
	"briofito":    "musgo",
	"bryophyte":   "musgo",
	"fungu":       "hongo", // "fungus" after plural trim
	"fungi":       "hongo",
	"mushroom":    "hongo",
	"lichen":      "liquen",
}

// Matcher decides whether an ancestor chain belongs to a taxonomic category.
type Matcher struct {
	rules  map[string]Rule
	logger *slog.Logger
}

// NewMatcher builds a matcher over the built-in rule table.
func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{rules: defaultRules, logger: logger}
}

// NewMatcherWithRules builds a matcher over a caller-supplied rule table,
// keyed by normalized category names.
func NewMatcherWithRules(rules map[string]Rule, logger *slog.Logger) *Matcher {
	return &Matcher{rules: rules, logger: logger}
}

// KnownCategory reports whether the category resolves to a rule.
func (m *Matcher) KnownCategory(category string) bool {
	_, ok := m.lookup(category)
	return ok
}

func (m *Matcher) lookup(category string) (Rule, bool) {
	key := NormalizeCategory(category)
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	rule, ok := m.rules[key]
	return rule, ok
}

// Matches reports whether the ancestor chain belongs to the requested
// category. An empty category matches everything (no filtering requested).
// An unknown category matches nothing and is logged once per call. A single
// substring hit at any inspected rank, on either the scientific or a
// vernacular name, suffices.
func (m *Matcher) Matches(ancestors Chain, category string) bool {
	if strings.TrimSpace(category) == "" {
		return true
	}

	rule, ok := m.lookup(category)
	if !ok {
		if m.logger != nil {
			m.logger.Warn("unknown taxonomic category, matching nothing",
				"category", category,
				"normalized", NormalizeCategory(category))
		}
		return false
	}

	rankSet := make(map[string]bool, len(rule.Ranks))
	for _, r := range rule.Ranks {
		rankSet[strings.ToLower(r)] = true
	}

	for i := range ancestors {
		if !rankSet[strings.ToLower(ancestors[i].Rank)] {
			continue
		}
		if nameMatchesAny(ancestors[i].Name, rule.Terms) {
			return true
		}
		for _, vernacular := range ancestors[i].VernacularNames {
			if nameMatchesAny(vernacular, rule.Terms) {
				return true
			}
		}
	}
	return false
}

func nameMatchesAny(name string, terms []string) bool {
	lower := strings.ToLower(name)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
