package handoff

import "strings"

// Profile is what a role cares about: keywords that make content relevant or
// irrelevant, the sections a handoff for it must carry, and its default
// action catalogue.
type Profile struct {
	Include  []string
	Exclude  []string
	Required []string
	Actions  []string
}

var profiles = map[Role]Profile{
	Dev: {
		Include:  []string{"technical", "implementation", "code", "api", "architecture", "database", "performance", "security", "framework", "library", "dependency", "refactor", "bug", "build"},
		Exclude:  []string{"marketing", "pricing", "business model", "stakeholder"},
		Required: []string{"technical details", "implementation notes", "code references"},
		Actions: []string{
			"Review technical decisions and implementation constraints",
			"Set up the development environment and dependencies",
			"Implement the pending tasks of the current story",
			"Write unit tests alongside new code",
			"Update technical documentation for changed components",
		},
	},
	QA: {
		Include:  []string{"test", "quality", "bug", "defect", "acceptance", "criteria", "coverage", "regression", "validation", "verify", "requirement"},
		Exclude:  []string{"marketing", "pricing"},
		Required: []string{"acceptance criteria", "testing requirements", "quality standards"},
		Actions: []string{
			"Review acceptance criteria for the current story",
			"Write a test plan covering functional and edge cases",
			"Execute regression tests on affected areas",
			"Verify quality standards and coverage thresholds",
			"Report defects with reproduction steps",
		},
	},
	Architect: {
		Include:  []string{"architecture", "design", "pattern", "system", "scalability", "integration", "infrastructure", "api", "database", "security", "technical"},
		Exclude:  []string{"marketing", "copywriting"},
		Required: []string{"system design", "technical constraints", "integration points"},
		Actions: []string{
			"Review the system design against recent decisions",
			"Document technical constraints and quality attributes",
			"Map integration points and their contracts",
			"Assess scalability and security risks",
			"Record architecture decisions with alternatives considered",
		},
	},
	PM: {
		Include:  []string{"requirement", "scope", "priority", "timeline", "milestone", "stakeholder", "business", "user story", "roadmap", "release", "feature"},
		Exclude:  []string{"refactor", "stack trace", "implementation detail"},
		Required: []string{"business requirements", "timeline", "stakeholder impact"},
		Actions: []string{
			"Confirm business requirements and scope for the current story",
			"Review priorities against the release timeline",
			"Communicate stakeholder impact of recent decisions",
			"Update the roadmap and milestones",
			"Clarify open questions with the team",
		},
	},
	UXExpert: {
		Include:  []string{"user", "ux", "ui", "design", "interface", "usability", "accessibility", "flow", "experience", "feedback"},
		Exclude:  []string{"database", "infrastructure", "refactor"},
		Required: []string{"user experience", "design requirements", "usability considerations"},
		Actions: []string{
			"Review user flows affected by the current story",
			"Define design requirements for new interface elements",
			"Check accessibility of proposed changes",
			"Collect usability feedback on recent work",
			"Update design documentation and assets",
		},
	},
	Analyst: {
		Include:  []string{"analysis", "data", "metric", "requirement", "business", "process", "insight", "report", "market", "kpi"},
		Exclude:  []string{"refactor", "css"},
		Required: []string{"business analysis", "data requirements", "success metrics"},
		Actions: []string{
			"Analyze business requirements behind the current story",
			"Identify data requirements and sources",
			"Define success metrics and how to measure them",
			"Document process changes and their impact",
			"Report insights to the team",
		},
	},
	Brainstorming: {
		Include:  []string{"idea", "alternative", "option", "explore", "creative", "innovation", "concept", "opportunity", "design"},
		Exclude:  []string{"deprecated"},
		Required: []string{"ideas", "alternatives explored", "open questions"},
		Actions: []string{
			"Generate ideas around the current focus",
			"Explore alternatives to recent decisions",
			"Group and rank ideas by impact and effort",
			"Capture open questions for follow-up",
			"Summarize promising concepts for the next role",
		},
	},
	Research: {
		Include:  []string{"research", "investigate", "evidence", "study", "finding", "benchmark", "comparison", "source", "analysis", "data"},
		Exclude:  []string{"marketing copy"},
		Required: []string{"research questions", "findings", "sources"},
		Actions: []string{
			"Frame research questions from the current focus",
			"Gather evidence from relevant sources",
			"Benchmark options against prior findings",
			"Summarize findings with citations",
			"Flag gaps that need further investigation",
		},
	},
}

var multiActions = map[Role][]string{
	DevAnalyst: {
		"Review business requirements against technical constraints",
		"Analyze data flows before implementation",
		"Implement features with measurable success metrics",
		"Instrument code for the metrics the analysis needs",
		"Document technical decisions with their business rationale",
	},
	QAResearch: {
		"Research testing approaches for the changed areas",
		"Design tests from documented findings",
		"Validate acceptance criteria with evidence",
		"Benchmark quality metrics against prior assessments",
		"Report findings and defects with sources",
	},
	ArchitectBrainstorming: {
		"Explore alternative system designs",
		"Evaluate trade-offs of each architectural option",
		"Prototype the most promising integration approach",
		"Record rejected alternatives in the decision log",
		"Define technical constraints for the chosen design",
	},
	PMAnalyst: {
		"Prioritize requirements using the latest analysis",
		"Define success metrics for the current milestone",
		"Review the timeline against stakeholder impact",
		"Update the roadmap with analysed scope changes",
		"Report progress to stakeholders with supporting data",
	},
	UXResearch: {
		"Research user needs for the current story",
		"Run a usability review of the proposed flows",
		"Synthesize findings into design requirements",
		"Validate accessibility against standards",
		"Document user experience decisions with sources",
	},
}

// ProfileFor returns the profile of r. A multi-role unions the include sets and
// required sections of its parts and keeps the primary's excludes, minus any
// keyword the secondary role includes verbatim.
func ProfileFor(r Role) Profile {
	if p, ok := profiles[r]; ok {
		return p
	}
	primary, secondary, ok := r.Parts()
	if !ok {
		return profiles[Dev]
	}
	a, b := profiles[primary], profiles[secondary]

	var exclude []string
	for _, kw := range a.Exclude {
		if !collides(kw, b.Include) {
			exclude = append(exclude, kw)
		}
	}

	return Profile{
		Include:  unique(a.Include, b.Include),
		Exclude:  exclude,
		Required: unique(a.Required, b.Required),
		Actions:  multiActions[r],
	}
}

// collides reports whether kw is one of the include keywords.
func collides(kw string, includes []string) bool {
	for _, inc := range includes {
		if strings.EqualFold(kw, inc) {
			return true
		}
	}
	return false
}

func unique(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// ActionLimit is the maximum number of next actions for r.
func ActionLimit(r Role) int {
	if r.Multi() {
		return 10
	}
	return 8
}
