package fs

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/aretw0/tandem/pkg/core"
)

// Document titles and the field/section names other tools parse. They must not
// change.
const (
	titleSharedContext = "Shared Context"
	titleDecisionLog   = "Decision Log"
	titleProgress      = "Progress Summary"
	titleQuality       = "Quality Metrics"

	fieldLastUpdated    = "Last Updated"
	fieldActiveSessions = "Active Sessions"
	fieldPrimaryAgent   = "Primary Agent"
	fieldCurrentStory   = "Current Story"
	fieldQualityScore   = "Quality Score"
	fieldArchive        = "Archive"

	sectionCurrentFocus   = "Current Focus"
	sectionKeyDecisions   = "Key Decisions"
	sectionNextSteps      = "Next Steps"
	sectionSessionNotes   = "Session Notes"
	sectionCompletedTasks = "Completed Tasks"
	sectionPendingTasks   = "Pending Tasks"
	sectionBlockers       = "Blockers"
)

// timestampLayout is millisecond RFC3339 in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// undated stands in for a missing assessment timestamp so the heading still
// parses as an assessment.
const undated = "undated"

var (
	fieldLine     = regexp.MustCompile(`^\*\*([^*]+?):\*\*[ \t]*(.*)$`)
	decisionTitle = regexp.MustCompile(`^Decision\s+(\d+)\s*:\s*(.*)$`)
	assessment    = regexp.MustCompile(`^Assessment\s+(.+)$`)

	errUnrecognised = errors.New("no known fields or sections")
)

// MarkdownCodec implements core.Codec for the canonical markdown documents.
// Sections are located through the goldmark block AST so that headings inside
// code blocks or lists are not mistaken for document structure.
type MarkdownCodec struct {
	parser parser.Parser
}

// NewMarkdownCodec creates a codec with a reusable goldmark parser.
func NewMarkdownCodec() *MarkdownCodec {
	return &MarkdownCodec{parser: goldmark.New().Parser()}
}

var _ core.Codec = (*MarkdownCodec)(nil)

type section struct {
	title string
	body  string
}

type parsed struct {
	fields   map[string]string
	sections []section
}

func (p parsed) section(name string) (string, bool) {
	for _, s := range p.sections {
		if strings.EqualFold(s.title, name) {
			return s.body, true
		}
	}
	return "", false
}

// split returns the preamble fields and the level-2 sections of src.
func (c *MarkdownCodec) split(src []byte) parsed {
	root := c.parser.Parse(text.NewReader(src))

	type mark struct {
		title string
		start int
		body  int
	}
	var marks []mark
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 2 || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		start := lineStart(src, seg.Start)
		if !bytes.HasPrefix(bytes.TrimLeft(src[start:], " "), []byte("##")) {
			continue // setext heading
		}
		marks = append(marks, mark{
			title: strings.TrimSpace(string(seg.Value(src))),
			start: start,
			body:  lineEnd(src, seg.Stop),
		})
	}

	preambleEnd := len(src)
	if len(marks) > 0 {
		preambleEnd = marks[0].start
	}
	p := parsed{fields: parseFields(string(src[:preambleEnd]))}
	for i, m := range marks {
		end := len(src)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		p.sections = append(p.sections, section{title: m.title, body: string(src[m.body:end])})
	}
	return p
}

func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	i := bytes.LastIndexByte(src[:pos], '\n')
	return i + 1
}

func lineEnd(src []byte, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	i := bytes.IndexByte(src[pos:], '\n')
	if i < 0 {
		return len(src)
	}
	return pos + i + 1
}

func parseFields(block string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(block, "\n") {
		m := fieldLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		fields[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
	}
	return fields
}

func parseList(body string) []string {
	var items []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		var item string
		switch {
		case strings.HasPrefix(line, "- "):
			item = line[2:]
		case strings.HasPrefix(line, "* "):
			item = line[2:]
		default:
			continue
		}
		item = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(item, "[ ] "), "[x] "))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func parseScore(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return 0
	}
	return v
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// oneLine collapses a value so it fits on a bolded field line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Parse implements core.Codec.
func (c *MarkdownCodec) Parse(t core.ContextType, content []byte) (core.Record, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, core.ParseError(t, errors.New("empty document"))
	}
	p := c.split(content)

	switch t {
	case core.SharedContextType:
		return parseSharedContext(p)
	case core.DecisionsType:
		return parseDecisionLog(p)
	case core.ProgressType:
		return parseProgress(p)
	case core.QualityType:
		return parseQuality(p)
	default:
		return &core.RawDocument{
			Kind:        t,
			LastUpdated: parseTime(p.fields[fieldLastUpdated]),
			Content:     string(content),
		}, nil
	}
}

func recognised(p parsed, fields []string, sections []string) bool {
	for _, f := range fields {
		if _, ok := p.fields[f]; ok {
			return true
		}
	}
	for _, s := range sections {
		if _, ok := p.section(s); ok {
			return true
		}
	}
	return false
}

func parseSharedContext(p parsed) (core.Record, error) {
	if !recognised(p,
		[]string{fieldLastUpdated, fieldActiveSessions, fieldPrimaryAgent},
		[]string{sectionCurrentFocus, sectionKeyDecisions, sectionNextSteps, sectionSessionNotes}) {
		return nil, core.ParseError(core.SharedContextType, errUnrecognised)
	}
	rec := &core.SharedContext{
		LastUpdated:    parseTime(p.fields[fieldLastUpdated]),
		ActiveSessions: splitCSV(p.fields[fieldActiveSessions]),
		PrimaryAgent:   p.fields[fieldPrimaryAgent],
		Archive:        p.fields[fieldArchive],
	}
	if body, ok := p.section(sectionCurrentFocus); ok {
		rec.CurrentFocus = unescapeText(strings.TrimSpace(body))
	}
	if body, ok := p.section(sectionKeyDecisions); ok {
		rec.KeyDecisions = parseList(body)
	}
	if body, ok := p.section(sectionNextSteps); ok {
		rec.NextSteps = parseList(body)
	}
	if body, ok := p.section(sectionSessionNotes); ok {
		rec.SessionNotes = unescapeText(strings.TrimSpace(body))
	}
	return rec, nil
}

func parseDecisionLog(p parsed) (core.Record, error) {
	rec := &core.DecisionLog{
		LastUpdated: parseTime(p.fields[fieldLastUpdated]),
		Archive:     p.fields[fieldArchive],
	}
	found := recognised(p, []string{fieldLastUpdated}, nil)
	for _, s := range p.sections {
		m := decisionTitle.FindStringSubmatch(s.title)
		if m == nil {
			continue
		}
		found = true
		id, _ := strconv.Atoi(m[1])
		f := parseFields(s.body)
		rec.Decisions = append(rec.Decisions, core.Decision{
			ID:           id,
			Title:        strings.TrimSpace(m[2]),
			Date:         parseTime(f["Date"]),
			Agent:        f["Agent"],
			Context:      f["Context"],
			Decision:     f["Decision"],
			Rationale:    f["Rationale"],
			Alternatives: f["Alternatives"],
			Impact:       f["Impact"],
			Status:       f["Status"],
		})
	}
	if !found {
		return nil, core.ParseError(core.DecisionsType, errUnrecognised)
	}
	return rec, nil
}

func parseProgress(p parsed) (core.Record, error) {
	if !recognised(p,
		[]string{fieldLastUpdated, fieldCurrentStory, fieldQualityScore},
		[]string{sectionCompletedTasks, sectionPendingTasks, sectionBlockers}) {
		return nil, core.ParseError(core.ProgressType, errUnrecognised)
	}
	rec := &core.ProgressSummary{
		LastUpdated:  parseTime(p.fields[fieldLastUpdated]),
		CurrentStory: p.fields[fieldCurrentStory],
		QualityScore: parseScore(p.fields[fieldQualityScore]),
		Archive:      p.fields[fieldArchive],
	}
	if body, ok := p.section(sectionCompletedTasks); ok {
		rec.CompletedTasks = parseList(body)
	}
	if body, ok := p.section(sectionPendingTasks); ok {
		rec.PendingTasks = parseList(body)
	}
	if body, ok := p.section(sectionBlockers); ok {
		rec.Blockers = parseList(body)
	}
	return rec, nil
}

func parseQuality(p parsed) (core.Record, error) {
	rec := &core.QualityMetrics{
		LastUpdated: parseTime(p.fields[fieldLastUpdated]),
		Archive:     p.fields[fieldArchive],
	}
	found := recognised(p, []string{fieldLastUpdated}, nil)
	for _, s := range p.sections {
		m := assessment.FindStringSubmatch(s.title)
		if m == nil {
			continue
		}
		found = true
		f := parseFields(s.body)
		rec.Assessments = append(rec.Assessments, core.Assessment{
			Timestamp: parseTime(m[1]),
			Agent:     f["Agent"],
			Score:     parseScore(f["Score"]),
			Grade:     f["Grade"],
			Notes:     f["Notes"],
		})
	}
	if !found {
		return nil, core.ParseError(core.QualityType, errUnrecognised)
	}
	return rec, nil
}

// Format implements core.Codec.
func (c *MarkdownCodec) Format(r core.Record) ([]byte, error) {
	var b bytes.Buffer
	switch rec := r.(type) {
	case *core.SharedContext:
		header(&b, titleSharedContext)
		field(&b, fieldLastUpdated, formatTime(rec.LastUpdated))
		field(&b, fieldActiveSessions, strings.Join(rec.ActiveSessions, ", "))
		field(&b, fieldPrimaryAgent, oneLine(rec.PrimaryAgent))
		archiveField(&b, rec.Archive)
		textSection(&b, sectionCurrentFocus, rec.CurrentFocus)
		listSection(&b, sectionKeyDecisions, rec.KeyDecisions)
		listSection(&b, sectionNextSteps, rec.NextSteps)
		textSection(&b, sectionSessionNotes, rec.SessionNotes)
	case *core.DecisionLog:
		header(&b, titleDecisionLog)
		field(&b, fieldLastUpdated, formatTime(rec.LastUpdated))
		archiveField(&b, rec.Archive)
		for _, d := range rec.Decisions {
			fmt.Fprintf(&b, "\n## Decision %d: %s\n\n", d.ID, headingText(d.Title))
			field(&b, "Date", formatTime(d.Date))
			field(&b, "Agent", oneLine(d.Agent))
			field(&b, "Status", oneLine(d.Status))
			field(&b, "Context", oneLine(d.Context))
			field(&b, "Decision", oneLine(d.Decision))
			field(&b, "Rationale", oneLine(d.Rationale))
			field(&b, "Alternatives", oneLine(d.Alternatives))
			field(&b, "Impact", oneLine(d.Impact))
		}
	case *core.ProgressSummary:
		header(&b, titleProgress)
		field(&b, fieldLastUpdated, formatTime(rec.LastUpdated))
		field(&b, fieldCurrentStory, oneLine(rec.CurrentStory))
		field(&b, fieldQualityScore, formatScore(rec.QualityScore))
		archiveField(&b, rec.Archive)
		listSection(&b, sectionCompletedTasks, rec.CompletedTasks)
		listSection(&b, sectionPendingTasks, rec.PendingTasks)
		listSection(&b, sectionBlockers, rec.Blockers)
	case *core.QualityMetrics:
		header(&b, titleQuality)
		field(&b, fieldLastUpdated, formatTime(rec.LastUpdated))
		archiveField(&b, rec.Archive)
		for _, a := range rec.Assessments {
			when := formatTime(a.Timestamp)
			if when == "" {
				when = undated
			}
			fmt.Fprintf(&b, "\n## Assessment %s\n\n", when)
			field(&b, "Agent", oneLine(a.Agent))
			field(&b, "Score", formatScore(a.Score))
			field(&b, "Grade", oneLine(a.Grade))
			field(&b, "Notes", oneLine(a.Notes))
		}
	case *core.RawDocument:
		return []byte(rec.Content), nil
	default:
		return nil, fmt.Errorf("%w: %T", core.ErrUnknownType, r)
	}
	return b.Bytes(), nil
}

func header(b *bytes.Buffer, title string) {
	fmt.Fprintf(b, "# %s\n\n", title)
}

func field(b *bytes.Buffer, name, value string) {
	if value == "" {
		fmt.Fprintf(b, "**%s:**\n", name)
		return
	}
	fmt.Fprintf(b, "**%s:** %s\n", name, value)
}

func archiveField(b *bytes.Buffer, archive string) {
	if archive != "" {
		field(b, fieldArchive, archive)
	}
}

func textSection(b *bytes.Buffer, name, body string) {
	fmt.Fprintf(b, "\n## %s\n\n", name)
	if body = strings.TrimSpace(body); body != "" {
		b.WriteString(escapeText(body))
		b.WriteString("\n")
	}
}

func listSection(b *bytes.Buffer, name string, items []string) {
	fmt.Fprintf(b, "\n## %s\n\n", name)
	for _, item := range items {
		if item = oneLine(item); item != "" {
			fmt.Fprintf(b, "- %s\n", item)
		}
	}
}

// headingText collapses s for use in an ATX heading. A trailing '#' would be
// read as a closing sequence, so one is appended for the parser to strip.
func headingText(s string) string {
	s = oneLine(s)
	if strings.HasSuffix(s, "#") {
		s += " #"
	}
	return s
}

// escapeMarkers are the line starts that would open a heading, a fence or an
// HTML block inside a free-text section.
const escapeMarkers = "\\#`~<"

// escapeText prefixes a backslash to every line of s that starts, after at
// most three spaces, with a block marker or a backslash. unescapeText strips
// exactly one, so the pair round-trips any text.
func escapeText(s string) string {
	return mapBlockLines(s, func(indent, rest string) string {
		if rest != "" && strings.IndexByte(escapeMarkers, rest[0]) >= 0 {
			return indent + "\\" + rest
		}
		return indent + rest
	})
}

func unescapeText(s string) string {
	return mapBlockLines(s, func(indent, rest string) string {
		return indent + strings.TrimPrefix(rest, "\\")
	})
}

func mapBlockLines(s string, fn func(indent, rest string) string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		rest := strings.TrimLeft(line, " ")
		if n := len(line) - len(rest); n <= 3 {
			lines[i] = fn(line[:n], rest)
		}
	}
	return strings.Join(lines, "\n")
}
