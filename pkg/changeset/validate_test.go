package changeset

import (
	"strings"
	"testing"

	"github.com/zen-systems/routekeeper/pkg/config"
	"github.com/zen-systems/routekeeper/pkg/routedoc"
)

const docText = `# Model Routing
- Debugging: Claude Haiku
- Casual chat: DeepSeek Chat

## Coding
- Code changes: Claude Sonnet 4 first

## Fallbacks
- Web search: Gemini 2.0 Pro
`

func validChangeSet(t *testing.T) *routedoc.ChangeSet {
	t.Helper()
	doc := routedoc.Parse(docText, config.DefaultTables().Phrases)
	cs := doc.ApplyRecommendations(map[string]string{"debugging": "DeepSeek Reasoner"})
	if len(cs.ModifiedLines) != 1 {
		t.Fatalf("fixture expected 1 modified line, got %d", len(cs.ModifiedLines))
	}
	return cs
}

func TestValidateAccepts(t *testing.T) {
	result := Validate(validChangeSet(t))
	if !result.Valid {
		t.Fatalf("expected valid, got errors: %v", result.Errors)
	}
}

func TestValidateAcceptsEmptyChangeSet(t *testing.T) {
	doc := routedoc.Parse(docText, config.DefaultTables().Phrases)
	cs := doc.ApplyRecommendations(map[string]string{})
	result := Validate(cs)
	if !result.Valid {
		t.Fatalf("expected valid no-op change set, got errors: %v", result.Errors)
	}
}

func TestValidateNilChangeSet(t *testing.T) {
	result := Validate(nil)
	if result.Valid {
		t.Fatal("nil change set must be invalid")
	}
}

func TestValidateMissingPieces(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*routedoc.ChangeSet)
		want   string
	}{
		{"no original", func(cs *routedoc.ChangeSet) { cs.OriginalContent = "" }, "original content"},
		{"no proposed", func(cs *routedoc.ChangeSet) { cs.ProposedContent = "" }, "proposed content"},
		{"nil modified lines", func(cs *routedoc.ChangeSet) { cs.ModifiedLines = nil }, "modified lines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := validChangeSet(t)
			tt.mutate(cs)
			result := Validate(cs)
			if result.Valid {
				t.Fatal("expected invalid")
			}
			if !containsSubstring(result.Errors, tt.want) {
				t.Errorf("errors %v missing %q", result.Errors, tt.want)
			}
		})
	}
}

func TestValidateLineCountDrift(t *testing.T) {
	cs := validChangeSet(t)
	cs.ProposedContent += "\nan extra line"
	result := Validate(cs)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if !containsSubstring(result.Errors, "line count drift") {
		t.Errorf("errors %v missing line count drift", result.Errors)
	}
}

func TestValidateUndeclaredEdit(t *testing.T) {
	cs := validChangeSet(t)
	lines := routedoc.SplitLines(cs.ProposedContent)
	lines[2] = "- Casual chat: Something Else"
	cs.ProposedContent = routedoc.RenderLines(lines)

	result := Validate(cs)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if !containsSubstring(result.Errors, "undeclared edits") {
		t.Errorf("errors %v missing undeclared edits", result.Errors)
	}
}

func TestValidateUnrecognizedSection(t *testing.T) {
	cs := validChangeSet(t)
	cs.ModifiedLines[0].Section = "appendix"
	result := Validate(cs)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if !containsSubstring(result.Errors, "unrecognized section") {
		t.Errorf("errors %v missing unrecognized section", result.Errors)
	}
}

func TestValidateLineOutOfRange(t *testing.T) {
	cs := validChangeSet(t)
	cs.ModifiedLines[0].LineNumber = 999
	result := Validate(cs)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if !containsSubstring(result.Errors, "outside document") {
		t.Errorf("errors %v missing range check", result.Errors)
	}
}

func TestValidateNonBulletLine(t *testing.T) {
	cs := validChangeSet(t)
	cs.ModifiedLines[0].After = "plain text replacement"
	result := Validate(cs)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if !containsSubstring(result.Errors, "not a bullet rule line") {
		t.Errorf("errors %v missing bullet check", result.Errors)
	}
}

func TestValidateSnapshotMismatch(t *testing.T) {
	cs := validChangeSet(t)
	cs.ModifiedLines[0].Before = "- Debugging: something that was never there"
	result := Validate(cs)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if !containsSubstring(result.Errors, "before snapshot") {
		t.Errorf("errors %v missing snapshot check", result.Errors)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Errors: []string{"a", "b"}}
	if got := err.Error(); !strings.Contains(got, "a; b") {
		t.Errorf("error message %q does not join violations", got)
	}
}

func containsSubstring(errs []string, want string) bool {
	for _, e := range errs {
		if strings.Contains(e, want) {
			return true
		}
	}
	return false
}
