package handoff

import "strings"

// coverPrefix is how much of an action identifies it when deciding whether a
// next step is already covered.
const coverPrefix = 20

// NextActions starts from the role catalogue and appends next steps not
// already covered by an action, up to limit.
func NextActions(p Profile, nextSteps []string, limit int) []string {
	var actions []string
	for _, a := range p.Actions {
		if len(actions) == limit {
			return actions
		}
		actions = append(actions, a)
	}
	for _, step := range nextSteps {
		if len(actions) >= limit {
			break
		}
		step = strings.TrimSpace(step)
		if step == "" || covered(actions, step) {
			continue
		}
		actions = append(actions, step)
	}
	return actions
}

func covered(actions []string, step string) bool {
	s := strings.ToLower(step)
	for _, a := range actions {
		a = strings.ToLower(a)
		if strings.HasPrefix(s, prefix(a)) || strings.HasPrefix(a, prefix(s)) {
			return true
		}
	}
	return false
}

func prefix(s string) string {
	r := []rune(s)
	if len(r) > coverPrefix {
		r = r[:coverPrefix]
	}
	return string(r)
}
