package handoff

import (
	"fmt"
	"strings"
)

// Role is the normalized role a free-form agent label resolves to.
type Role string

const (
	Dev           Role = "dev"
	QA            Role = "qa"
	Architect     Role = "architect"
	PM            Role = "pm"
	UXExpert      Role = "ux-expert"
	Analyst       Role = "analyst"
	Brainstorming Role = "brainstorming"
	Research      Role = "research"

	DevAnalyst             Role = "dev-analyst"
	QAResearch             Role = "qa-research"
	ArchitectBrainstorming Role = "architect-brainstorming"
	PMAnalyst              Role = "pm-analyst"
	UXResearch             Role = "ux-research"
)

// SingleRoles lists the single roles in resolution order: when a label carries
// evidence for several of them, the first one wins.
var SingleRoles = []Role{QA, UXExpert, Analyst, Research, Brainstorming, Architect, PM, Dev}

// MultiRoles lists the combined roles in resolution order. They are checked
// before any single role.
var MultiRoles = []Role{DevAnalyst, QAResearch, ArchitectBrainstorming, PMAnalyst, UXResearch}

var multiParts = map[Role][2]Role{
	DevAnalyst:             {Dev, Analyst},
	QAResearch:             {QA, Research},
	ArchitectBrainstorming: {Architect, Brainstorming},
	PMAnalyst:              {PM, Analyst},
	UXResearch:             {UXExpert, Research},
}

// Multi reports whether r combines two roles.
func (r Role) Multi() bool {
	_, ok := multiParts[r]
	return ok
}

// Parts returns the primary and secondary role of a multi-role.
func (r Role) Parts() (primary, secondary Role, ok bool) {
	p, ok := multiParts[r]
	return p[0], p[1], ok
}

// ParseRole returns the role named s exactly.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range SingleRoles {
		if r == known {
			return r, nil
		}
	}
	if r.Multi() {
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// DefaultAliases returns the built-in keyword table used to recognise each
// single role in a label.
func DefaultAliases() map[Role][]string {
	return map[Role][]string{
		Dev:           {"dev", "engineer", "coder", "programmer", "implement"},
		QA:            {"qa", "test", "quality"},
		Architect:     {"architect"},
		PM:            {"pm", "product manager", "project manager", "product owner"},
		UXExpert:      {"ux", "designer", "user experience"},
		Analyst:       {"analyst", "analysis", "business"},
		Brainstorming: {"brainstorm", "ideation", "creative"},
		Research:      {"research"},
	}
}

// Resolver maps free-form agent labels to roles.
//
// Keywords of three or more characters match anywhere in the lowercased
// label. Shorter ones ("qa", "pm", "ux") must be a whole word so that
// "development" does not read as "pm".
type Resolver struct {
	aliases map[Role][]string
}

// NewResolver creates a resolver from the default table extended with extra
// keywords per role.
func NewResolver(extra map[Role][]string) *Resolver {
	aliases := DefaultAliases()
	for role, words := range extra {
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				aliases[role] = append(aliases[role], w)
			}
		}
	}
	return &Resolver{aliases: aliases}
}

// Aliases returns a copy of the keyword table.
func (r *Resolver) Aliases() map[Role][]string {
	out := make(map[Role][]string, len(r.aliases))
	for role, words := range r.aliases {
		out[role] = append([]string(nil), words...)
	}
	return out
}

// Resolve returns the role for label. A multi-role wins when the label has
// evidence for both of its parts; the default is Dev.
func (r *Resolver) Resolve(label string) Role {
	l := strings.ToLower(label)
	words := strings.FieldsFunc(l, func(c rune) bool {
		return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
	})

	matches := func(role Role) bool {
		for _, kw := range r.aliases[role] {
			if len(kw) >= 3 {
				if strings.Contains(l, kw) {
					return true
				}
				continue
			}
			for _, w := range words {
				if w == kw {
					return true
				}
			}
		}
		return false
	}

	for _, m := range MultiRoles {
		p, s, _ := m.Parts()
		if matches(p) && matches(s) {
			return m
		}
	}
	for _, role := range SingleRoles {
		if matches(role) {
			return role
		}
	}
	return Dev
}
