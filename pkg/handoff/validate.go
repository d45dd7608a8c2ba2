package handoff

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Score weights of the structural checks.
const (
	weightRequired       = 30
	weightContextSummary = 25
	weightDecisions      = 20
	weightNextActions    = 15
	weightReferences     = 10

	minContextLength = 500
)

var checkbox = regexp.MustCompile(`(?m)^\s*[-*+]\s+\[ \]`)

// Validation is the structural completeness of a rendered handoff.
//
// It is a lint over headings and checkboxes, not a semantic audit: a document
// that carries the right headings scores well whatever they contain.
type Validation struct {
	Score          int
	Grade          string
	Found          []string
	Missing        []string
	ContextSummary bool
	Decisions      bool
	NextActions    bool
	References     bool
}

// Grade maps a score to a letter.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

type heading struct {
	level int
	title string
	body  string
}

// headings returns every ATX or setext heading of content with the text that
// follows it up to the next heading of the same or a higher level.
func headings(content []byte) []heading {
	root := goldmark.New().Parser().Parse(text.NewReader(content))

	type mark struct {
		level int
		title string
		start int
		body  int
	}
	var marks []mark
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		start := bytes.LastIndexByte(content[:seg.Start], '\n') + 1
		end := len(content)
		if i := bytes.IndexByte(content[seg.Stop:], '\n'); i >= 0 {
			end = seg.Stop + i + 1
		}
		marks = append(marks, mark{
			level: h.Level,
			title: strings.ToLower(strings.TrimSpace(string(seg.Value(content)))),
			start: start,
			body:  end,
		})
	}

	out := make([]heading, 0, len(marks))
	for i, m := range marks {
		end := len(content)
		for _, next := range marks[i+1:] {
			if next.level <= m.level {
				end = next.start
				break
			}
		}
		if m.body > end {
			end = m.body
		}
		out = append(out, heading{level: m.level, title: m.title, body: string(content[m.body:end])})
	}
	return out
}

// Validate scores content against the required section labels:
// 30 × found/total, +25 for a context summary in a document over 500
// characters, +20 for a decisions section, +15 for next actions with at least
// one open checkbox and +10 for references.
func Validate(content string, required []string) Validation {
	hs := headings([]byte(content))
	has := func(label string) (heading, bool) {
		label = strings.ToLower(label)
		for _, h := range hs {
			if strings.Contains(h.title, label) {
				return h, true
			}
		}
		return heading{}, false
	}

	var v Validation
	for _, label := range required {
		if _, ok := has(label); ok {
			v.Found = append(v.Found, label)
		} else {
			v.Missing = append(v.Missing, label)
		}
	}
	if len(required) == 0 {
		v.Score += weightRequired
	} else {
		v.Score += weightRequired * len(v.Found) / len(required)
	}

	if _, ok := has("context summary"); ok && len(content) > minContextLength {
		v.ContextSummary = true
		v.Score += weightContextSummary
	}
	if _, ok := has("decisions"); ok {
		v.Decisions = true
		v.Score += weightDecisions
	}
	if h, ok := has("next actions"); ok && checkbox.MatchString(h.body) {
		v.NextActions = true
		v.Score += weightNextActions
	}
	if _, ok := has("references"); ok {
		v.References = true
		v.Score += weightReferences
	}

	v.Grade = Grade(v.Score)
	return v
}
