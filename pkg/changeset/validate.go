// Package changeset validates line-addressed diffs against the routing
// document's structural contracts before anything is written.
package changeset

import (
	"fmt"
	"strings"

	"github.com/zen-systems/routekeeper/pkg/routedoc"
)

// Result reports the outcome of validating a ChangeSet. Valid is the
// conjunction of every check; Errors lists every violated check.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidationError carries the full list of violated checks. It is fatal for
// the apply attempt that raised it; a ChangeSet is never partially applied.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("change set validation failed: %s", strings.Join(e.Errors, "; "))
}

// Validate runs every structural check against the change set. Edits must be
// pure line substitutions: equal line counts, declared lines only, bullet
// rule lines only, snapshots matching both document versions exactly.
func Validate(cs *routedoc.ChangeSet) Result {
	var errs []string

	if cs == nil {
		return Result{Errors: []string{"change set is nil"}}
	}
	if cs.OriginalContent == "" {
		errs = append(errs, "original content is missing")
	}
	if cs.ProposedContent == "" {
		errs = append(errs, "proposed content is missing")
	}
	if cs.ModifiedLines == nil {
		errs = append(errs, "modified lines list is missing")
	}
	if len(errs) > 0 {
		return Result{Errors: errs}
	}

	originalLines := routedoc.SplitLines(cs.OriginalContent)
	proposedLines := routedoc.SplitLines(cs.ProposedContent)

	if len(originalLines) != len(proposedLines) {
		errs = append(errs, fmt.Sprintf(
			"line count drift: original has %d lines, proposed has %d (edits must be pure substitutions)",
			len(originalLines), len(proposedLines)))
		return Result{Errors: errs}
	}

	recognized := make(map[string]bool)
	for _, kind := range routedoc.RecognizedSections() {
		recognized[string(kind)] = true
	}

	for _, ml := range cs.ModifiedLines {
		if !recognized[ml.Section] {
			errs = append(errs, fmt.Sprintf("line %d: unrecognized section %q", ml.LineNumber, ml.Section))
		}
		if ml.LineNumber < 1 || ml.LineNumber > len(originalLines) {
			errs = append(errs, fmt.Sprintf("line %d: outside document (1-%d)", ml.LineNumber, len(originalLines)))
			continue
		}
		if !strings.HasPrefix(strings.TrimSpace(ml.Before), routedoc.BulletMarker) {
			errs = append(errs, fmt.Sprintf("line %d: before text is not a bullet rule line", ml.LineNumber))
		}
		if !strings.HasPrefix(strings.TrimSpace(ml.After), routedoc.BulletMarker) {
			errs = append(errs, fmt.Sprintf("line %d: after text is not a bullet rule line", ml.LineNumber))
		}
		if originalLines[ml.LineNumber-1] != ml.Before {
			errs = append(errs, fmt.Sprintf("line %d: before snapshot does not match original document", ml.LineNumber))
		}
		if proposedLines[ml.LineNumber-1] != ml.After {
			errs = append(errs, fmt.Sprintf("line %d: after snapshot does not match proposed document", ml.LineNumber))
		}
	}

	diffCount := 0
	for i := range originalLines {
		if originalLines[i] != proposedLines[i] {
			diffCount++
		}
	}
	if diffCount != len(cs.ModifiedLines) {
		errs = append(errs, fmt.Sprintf(
			"undeclared edits: %d lines differ but %d modified lines are declared",
			diffCount, len(cs.ModifiedLines)))
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}
