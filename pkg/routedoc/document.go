// Package routedoc models the routing document: a markdown file whose
// sections contain bullet rule lines mapping task types to model choices.
// The model is pure; it owns no files and never mutates state.
package routedoc

import (
	"fmt"
	"os"
	"strings"

	"github.com/zen-systems/routekeeper/pkg/config"
)

// SectionKind identifies one of the recognized document sections.
type SectionKind string

const (
	SectionRouting   SectionKind = "routing"
	SectionCoding    SectionKind = "coding"
	SectionFallbacks SectionKind = "fallbacks"
)

// sectionMarkers maps a heading marker substring to its section kind.
// Detection strategy is confined to IsSectionHeader so it can be swapped
// without touching the parser's control flow.
var sectionMarkers = []struct {
	marker string
	kind   SectionKind
}{
	{"model routing", SectionRouting},
	{"coding", SectionCoding},
	{"fallbacks", SectionFallbacks},
}

// RecognizedSections returns the section kinds the parser knows about.
func RecognizedSections() []SectionKind {
	return []SectionKind{SectionRouting, SectionCoding, SectionFallbacks}
}

// IsSectionHeader reports whether a line opens a recognized section.
func IsSectionHeader(line string) (SectionKind, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	lower := strings.ToLower(trimmed)
	for _, m := range sectionMarkers {
		if strings.Contains(lower, m.marker) {
			return m.kind, true
		}
	}
	return "", false
}

// BulletMarker is the prefix a rule line's trimmed form must carry.
const BulletMarker = "- "

// TaskMatch records one phrase-table hit inside a rule line.
type TaskMatch struct {
	Description string `json:"description"`
	TaskType    string `json:"task_type"`
}

// RuleLine is an addressable bullet line inside a section. LineNumber is
// 1-based and is the line's identity for the whole pipeline.
type RuleLine struct {
	LineNumber int         `json:"line_number"`
	Text       string      `json:"text"`
	Matches    []TaskMatch `json:"matches,omitempty"`
}

// Section is a contiguous run of lines under a recognized heading.
type Section struct {
	Kind      SectionKind `json:"kind"`
	Heading   string      `json:"heading"`
	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"`
	Rules     []RuleLine  `json:"rules,omitempty"`
}

// Document is the parsed routing document.
type Document struct {
	Path     string
	Lines    []string
	Sections []Section
}

// RuleRef points at one task-type occurrence in the document.
type RuleRef struct {
	Section     SectionKind `json:"section"`
	LineNumber  int         `json:"line_number"`
	Description string      `json:"description"`
	Line        string      `json:"line"`
}

// ParseError reports a failure to read the routing document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse routing document %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads and parses the routing document at path.
func Load(path string, phrases []config.Phrase) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	doc := Parse(string(data), phrases)
	doc.Path = path
	return doc, nil
}

// Parse splits raw text into lines and walks top to bottom, opening a new
// section on each heading-predicate match and collecting bullet rule lines
// inside open sections. Lines outside any section are ignored. The phrase
// table must already be ordered however the caller wants ties broken;
// SortedPhrases ordering (longest first) is applied here regardless.
func Parse(rawText string, phrases []config.Phrase) *Document {
	lines := SplitLines(rawText)
	doc := &Document{Lines: lines}

	ordered := orderPhrases(phrases)

	open := -1 // index into doc.Sections
	for i, line := range lines {
		lineNumber := i + 1

		if kind, ok := IsSectionHeader(line); ok {
			if open >= 0 {
				doc.Sections[open].EndLine = lineNumber - 1
			}
			doc.Sections = append(doc.Sections, Section{
				Kind:      kind,
				Heading:   strings.TrimSpace(line),
				StartLine: lineNumber,
				EndLine:   len(lines),
			})
			open = len(doc.Sections) - 1
			continue
		}

		if open < 0 {
			continue
		}
		if !strings.HasPrefix(strings.TrimSpace(line), BulletMarker) {
			continue
		}

		rule := RuleLine{
			LineNumber: lineNumber,
			Text:       line,
			Matches:    matchPhrases(line, ordered),
		}
		doc.Sections[open].Rules = append(doc.Sections[open].Rules, rule)
	}

	return doc
}

// Render joins the document's lines back into text. With no modifications
// applied, Render(Parse(text)) == text.
func (d *Document) Render() string {
	return strings.Join(d.Lines, "\n")
}

// RenderLines joins an arbitrary line slice the same way Render does.
func RenderLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// SplitLines splits text into lines without dropping a trailing empty line,
// preserving round-trip identity with RenderLines.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

// BuildRuleIndex flattens all matches grouped by task type, preserving
// section order then line order.
func (d *Document) BuildRuleIndex() map[string][]RuleRef {
	index := make(map[string][]RuleRef)
	for _, section := range d.Sections {
		for _, rule := range section.Rules {
			for _, match := range rule.Matches {
				index[match.TaskType] = append(index[match.TaskType], RuleRef{
					Section:     section.Kind,
					LineNumber:  rule.LineNumber,
					Description: match.Description,
					Line:        rule.Text,
				})
			}
		}
	}
	return index
}

// TaskTypes returns the set of task types that appear anywhere in the
// document's rule lines, in first-appearance order.
func (d *Document) TaskTypes() []string {
	seen := make(map[string]bool)
	var types []string
	for _, section := range d.Sections {
		for _, rule := range section.Rules {
			for _, match := range rule.Matches {
				if seen[match.TaskType] {
					continue
				}
				seen[match.TaskType] = true
				types = append(types, match.TaskType)
			}
		}
	}
	return types
}

// orderPhrases sorts descriptions longest first so a shorter phrase never
// shadows a longer one that contains it.
func orderPhrases(phrases []config.Phrase) []config.Phrase {
	tables := config.Tables{Phrases: phrases}
	return tables.SortedPhrases()
}

// matchPhrases finds phrase-table hits in a line using case-insensitive
// substring containment. A phrase whose occurrence overlaps a span already
// claimed by a longer phrase is skipped.
func matchPhrases(line string, ordered []config.Phrase) []TaskMatch {
	lower := strings.ToLower(line)

	type span struct{ start, end int }
	var claimed []span
	var matches []TaskMatch

	for _, phrase := range ordered {
		needle := strings.ToLower(phrase.Description)
		idx := strings.Index(lower, needle)
		if idx < 0 {
			continue
		}
		end := idx + len(needle)
		overlaps := false
		for _, s := range claimed {
			if idx < s.end && end > s.start {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		claimed = append(claimed, span{start: idx, end: end})
		matches = append(matches, TaskMatch{
			Description: phrase.Description,
			TaskType:    phrase.TaskType,
		})
	}

	return matches
}
