package routedoc

import (
	"regexp"
)

// Replacement rules. Most task types follow "description DELIM model" where
// DELIM is a colon or an arrow; three task types phrase their model choice
// differently and get bespoke patterns. A line with no recognizable delimiter
// is left untouched for that match, never guess-replace.
//
// A span runs to the next comma, semicolon, or sentence-ending period. A
// period inside the span only terminates it when followed by whitespace or
// the end of the line, so version dots in model names ("Gemini 2.0 Flash")
// stay inside the span.

const spanChars = `(?:[^,;.]|\.[^\s,;.])`

var (
	// span after "cheap/simple edits use"
	cheapEditPattern = regexp.MustCompile(`(?i)(cheap/simple edits use\s+)(` + spanChars + `+)`)
	// span after "higher risk edits use"
	highRiskPattern = regexp.MustCompile(`(?i)(higher risk edits use\s+)(` + spanChars + `+)`)
	// span between the colon and an optional trailing "first" qualifier,
	// which must survive the rewrite
	codeChangesPattern = regexp.MustCompile(`(?i)(code changes\s*:\s*)(` + spanChars + `+?)(\s+first)?\s*(?:[,;]|\.(?:\s|$)|$)`)
)

// ApplyRecommendations rewrites the matched span of every rule line whose
// task type has a recommended label, producing one ModifiedLine per line that
// actually changed. Lines with no effective change are omitted. The document
// itself is not mutated.
func (d *Document) ApplyRecommendations(labelsByTaskType map[string]string) *ChangeSet {
	original := d.Render()
	lines := make([]string, len(d.Lines))
	copy(lines, d.Lines)

	// Non-nil even when empty: validators treat a missing list and an empty
	// list differently.
	modified := []ModifiedLine{}

	for _, section := range d.Sections {
		for _, rule := range section.Rules {
			idx := rule.LineNumber - 1
			before := lines[idx]
			after := before
			var taskTypes []string

			for _, match := range rule.Matches {
				label, ok := labelsByTaskType[match.TaskType]
				if !ok || label == "" {
					continue
				}
				rewritten, changed := rewriteMatch(after, match, label)
				if changed {
					after = rewritten
					taskTypes = append(taskTypes, match.TaskType)
				}
			}

			if after == before {
				continue
			}
			lines[idx] = after
			modified = append(modified, ModifiedLine{
				LineNumber: rule.LineNumber,
				Section:    string(section.Kind),
				Before:     before,
				After:      after,
				TaskTypes:  taskTypes,
			})
		}
	}

	return &ChangeSet{
		Path:            d.Path,
		ResolvedPath:    d.Path,
		OriginalContent: original,
		ProposedContent: RenderLines(lines),
		ModifiedLines:   modified,
	}
}

// rewriteMatch replaces only the model span belonging to one task match.
// Returns the rewritten line and whether the text changed.
func rewriteMatch(line string, match TaskMatch, label string) (string, bool) {
	switch match.TaskType {
	case "cheap_file_edit":
		return replaceSpan(line, cheapEditPattern, label)
	case "high_risk_file_edit":
		return replaceSpan(line, highRiskPattern, label)
	case "code_changes":
		return replaceSpan(line, codeChangesPattern, label)
	default:
		return replaceSpan(line, genericPattern(match.Description), label)
	}
}

// genericPattern matches "description DELIM span" where DELIM is ':', '→',
// or '->'.
func genericPattern(description string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(description) + `\s*(?::|→|->)\s*)(` + spanChars + `+)`)
}

// replaceSpan swaps the pattern's second capture group for label, trimming
// trailing whitespace out of the replaced span so separators and qualifiers
// keep their spacing.
func replaceSpan(line string, pattern *regexp.Regexp, label string) (string, bool) {
	loc := pattern.FindStringSubmatchIndex(line)
	if loc == nil {
		return line, false
	}
	start, end := loc[4], loc[5]
	for end > start && (line[end-1] == ' ' || line[end-1] == '\t') {
		end--
	}
	if line[start:end] == label {
		return line, false
	}
	return line[:start] + label + line[end:], true
}
