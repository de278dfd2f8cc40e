// Package report renders the weekly recommendation report and the chat
// prompts used during approval.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zen-systems/routekeeper/pkg/approval"
	"github.com/zen-systems/routekeeper/pkg/classify"
	"github.com/zen-systems/routekeeper/pkg/recommend"
	"github.com/zen-systems/routekeeper/pkg/routedoc"
)

// Recommendations renders the weekly report as markdown.
func Recommendations(runID string, createdAt time.Time, recs []recommend.Recommendation, cs *routedoc.ChangeSet, discovery *classify.DiscoveryReport) string {
	var sb strings.Builder

	sb.WriteString("# Weekly Routing Recommendations\n\n")
	fmt.Fprintf(&sb, "- Run: %s\n", runID)
	fmt.Fprintf(&sb, "- Date: %s\n", createdAt.UTC().Format("2006-01-02 15:04 UTC"))
	if cs != nil {
		fmt.Fprintf(&sb, "- Document: %s\n", cs.Path)
	}
	sb.WriteString("\n## Recommendations\n\n")

	if len(recs) == 0 {
		sb.WriteString("No recommendations this week.\n")
	} else {
		sb.WriteString("| Task Type | Recommended Model | Score | Quality | Cost ($/M) |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, r := range recs {
			fmt.Fprintf(&sb, "| %s | %s | %.2f | %d | %.2f |\n",
				r.TaskType, r.RecommendedModel, r.Score, r.Quality, r.TotalCost)
		}
		sb.WriteString("\n")
		for _, r := range recs {
			fmt.Fprintf(&sb, "- **%s**: %s\n", r.TaskType, r.Reasoning)
		}
	}

	sb.WriteString("\n## Proposed Edits\n\n")
	if cs == nil || len(cs.ModifiedLines) == 0 {
		sb.WriteString("The document already matches the recommendations. No edits proposed.\n")
	} else {
		for _, ml := range cs.ModifiedLines {
			fmt.Fprintf(&sb, "### Line %d (%s)\n\n", ml.LineNumber, ml.Section)
			fmt.Fprintf(&sb, "```diff\n- %s\n+ %s\n```\n\n", ml.Before, ml.After)
		}
	}

	if discovery != nil {
		sb.WriteString("## Task Discovery\n\n")
		fmt.Fprintf(&sb, "- Tasks scanned: %d\n", discovery.TotalTasks)
		fmt.Fprintf(&sb, "- Known: %d, unknown: %d\n", discovery.KnownTasks, discovery.UnknownTasks)
		if len(discovery.NewlyDiscovered) > 0 {
			fmt.Fprintf(&sb, "- Newly discovered: %s\n", strings.Join(discovery.NewlyDiscovered, ", "))
		}
	}

	return sb.String()
}

// Write stores the report under dir as <runID>.md and returns the path.
func Write(dir, runID, content string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, runID+".md")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// ItemPrompt formats the chat message asking for a decision on one item.
func ItemPrompt(item approval.Item, total int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Proposed change %d of %d (line %d):\n\n", item.ItemIndex, total, item.LineNumber)
	fmt.Fprintf(&sb, "Current:  %s\n", strings.TrimSpace(item.Before))
	fmt.Fprintf(&sb, "Proposed: %s\n", strings.TrimSpace(item.After))
	return sb.String()
}

// FinalPrompt formats the final confirmation message once every item has
// been decided.
func FinalPrompt(batch *approval.Batch) string {
	s := batch.Summarize()
	var sb strings.Builder
	fmt.Fprintf(&sb, "All %d changes in batch %s decided:\n", s.Total, batch.BatchID)
	fmt.Fprintf(&sb, "  approved: %d\n", s.Approved)
	fmt.Fprintf(&sb, "  rejected: %d\n", s.Rejected)
	if s.Kept > 0 {
		fmt.Fprintf(&sb, "  kept:     %d\n", s.Kept)
	}
	if s.Approved == 0 {
		sb.WriteString("\nNothing to apply. Confirm to close the batch.")
	} else {
		fmt.Fprintf(&sb, "\nApply the %d approved change(s) to %s?", s.Approved, batch.DocumentPath)
	}
	return sb.String()
}

// Outcome formats the message sent after a batch reaches a terminal state.
func Outcome(batch *approval.Batch, backupPath string) string {
	switch batch.Status {
	case approval.BatchApplied:
		s := batch.Summarize()
		msg := fmt.Sprintf("Applied %d change(s) to %s.", s.Approved, batch.DocumentPath)
		if backupPath != "" {
			msg += fmt.Sprintf(" Backup: %s", filepath.Base(backupPath))
		}
		return msg
	case approval.BatchCompletedNoop:
		return fmt.Sprintf("Batch %s closed with no changes applied.", batch.BatchID)
	case approval.BatchCancelled:
		return fmt.Sprintf("Batch %s cancelled. The document was not modified.", batch.BatchID)
	case approval.BatchExpired:
		return fmt.Sprintf("Batch %s expired: %s", batch.BatchID, batch.ExpireReason)
	default:
		return fmt.Sprintf("Batch %s is %s.", batch.BatchID, batch.Status)
	}
}
