package report

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/zen-systems/routekeeper/pkg/approval"
	"github.com/zen-systems/routekeeper/pkg/recommend"
	"github.com/zen-systems/routekeeper/pkg/routedoc"
)

func TestRecommendationsReport(t *testing.T) {
	recs := []recommend.Recommendation{
		{TaskType: "debugging", RecommendedModel: "anthropic/claude-sonnet-4-20250514", Score: 9.4, Quality: 9, TotalCost: 17.0, Reasoning: "quality 9/10"},
	}
	cs := &routedoc.ChangeSet{
		Path:            "/tmp/routing.md",
		OriginalContent: "a",
		ProposedContent: "b",
		ModifiedLines: []routedoc.ModifiedLine{
			{LineNumber: 2, Section: "routing", Before: "- Debugging: Claude Haiku", After: "- Debugging: Claude Sonnet 4"},
		},
	}

	out := Recommendations("run-1", time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC), recs, cs, nil)

	for _, want := range []string{
		"# Weekly Routing Recommendations",
		"run-1",
		"debugging",
		"anthropic/claude-sonnet-4-20250514",
		"Line 2 (routing)",
		"- - Debugging: Claude Haiku",
		"+ - Debugging: Claude Sonnet 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRecommendationsReportNoEdits(t *testing.T) {
	out := Recommendations("run-2", time.Now(), nil, &routedoc.ChangeSet{
		OriginalContent: "a", ProposedContent: "a",
		ModifiedLines: []routedoc.ModifiedLine{},
	}, nil)

	if !strings.Contains(out, "No edits proposed") {
		t.Error("no-op report should say no edits were proposed")
	}
	if !strings.Contains(out, "No recommendations") {
		t.Error("empty recommendation list should be called out")
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, "run-3", "content")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "content" {
		t.Errorf("report content = %q", data)
	}
	if !strings.HasSuffix(path, "run-3.md") {
		t.Errorf("path = %q", path)
	}
}

func TestFinalPromptDistinguishesNoop(t *testing.T) {
	batch := &approval.Batch{
		BatchID:      "b1",
		DocumentPath: "/tmp/routing.md",
		Items: []approval.Item{
			{ItemIndex: 1, Status: approval.ItemRejected},
			{ItemIndex: 2, Status: approval.ItemKept},
		},
	}
	out := FinalPrompt(batch)
	if !strings.Contains(out, "Nothing to apply") {
		t.Errorf("prompt = %q", out)
	}

	batch.Items[0].Status = approval.ItemApproved
	out = FinalPrompt(batch)
	if !strings.Contains(out, "Apply the 1 approved change(s)") {
		t.Errorf("prompt = %q", out)
	}
}

func TestOutcomeMessages(t *testing.T) {
	batch := &approval.Batch{BatchID: "b1", DocumentPath: "/tmp/routing.md", Status: approval.BatchApplied,
		Items: []approval.Item{{ItemIndex: 1, Status: approval.ItemApproved}}}

	if out := Outcome(batch, "/tmp/routing.md.bak.20260823-090000"); !strings.Contains(out, "Applied 1 change(s)") || !strings.Contains(out, ".bak.") {
		t.Errorf("applied outcome = %q", out)
	}

	batch.Status = approval.BatchCancelled
	if out := Outcome(batch, ""); !strings.Contains(out, "cancelled") {
		t.Errorf("cancelled outcome = %q", out)
	}

	batch.Status = approval.BatchExpired
	batch.ExpireReason = "superseded"
	if out := Outcome(batch, ""); !strings.Contains(out, "superseded") {
		t.Errorf("expired outcome = %q", out)
	}
}

func TestItemPromptShowsBothVersions(t *testing.T) {
	item := approval.Item{
		ItemIndex:  2,
		LineNumber: 5,
		Before:     "- Debugging: Claude Haiku",
		After:      "- Debugging: Claude Sonnet 4",
	}
	out := ItemPrompt(item, 4)
	for _, want := range []string{"2 of 4", "line 5", "Claude Haiku", "Claude Sonnet 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q in %q", want, out)
		}
	}
}
