// Package approval tracks the per-item human approval workflow for one
// weekly run's proposed edits, persisting each batch as a JSON record.
package approval

import (
	"errors"
	"fmt"
	"time"

	"github.com/zen-systems/routekeeper/pkg/routedoc"
)

// BatchStatus is the batch lifecycle state. Every status except pending is
// terminal: no item decisions or final actions are accepted afterwards.
type BatchStatus string

const (
	BatchPending       BatchStatus = "pending"
	BatchApplied       BatchStatus = "applied"
	BatchCancelled     BatchStatus = "cancelled"
	BatchCompletedNoop BatchStatus = "completed-noop"
	BatchExpired       BatchStatus = "expired"
)

// ItemStatus is the per-item decision state.
type ItemStatus string

const (
	ItemPending  ItemStatus = "pending"
	ItemApproved ItemStatus = "approved"
	ItemRejected ItemStatus = "rejected"
	ItemKept     ItemStatus = "kept"
	ItemExpired  ItemStatus = "expired"
)

// Sentinel errors for caller misuse of the approval API. Reported, never
// retried.
var (
	ErrBatchNotFound   = errors.New("approval batch not found")
	ErrInvalidIndex    = errors.New("approval item index out of range")
	ErrBatchNotPending = errors.New("approval batch is not pending")
	ErrBatchNotReady   = errors.New("approval batch has undecided items")
	ErrEmptyBatch      = errors.New("approval batch has no items")
)

// Item is one individually decidable proposed edit. ItemIndex is 1-based and
// stable within its batch. Changes is a single-line ChangeSet scoped to
// exactly this edit.
type Item struct {
	ItemIndex  int                 `json:"item_index"`
	LineNumber int                 `json:"line_number"`
	Before     string              `json:"before"`
	After      string              `json:"after"`
	Status     ItemStatus          `json:"status"`
	DecidedAt  *time.Time          `json:"decided_at,omitempty"`
	Changes    *routedoc.ChangeSet `json:"changes"`
}

// Batch is one weekly run's full set of proposed edits.
type Batch struct {
	BatchID          string            `json:"batch_id"`
	DocumentPath     string            `json:"document_path"`
	ReportPath       string            `json:"report_path,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	Status           BatchStatus       `json:"status"`
	FinalRequestSent bool              `json:"final_request_sent"`
	Items            []Item            `json:"items"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	ExpireReason     string            `json:"expire_reason,omitempty"`
}

// Terminal reports whether the batch has reached a terminal status.
func (b *Batch) Terminal() bool {
	return b.Status != BatchPending
}

// Summary counts items by status.
type Summary struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Kept     int `json:"kept"`
	Expired  int `json:"expired"`
}

// Summarize tallies the batch's items by status.
func (b *Batch) Summarize() Summary {
	s := Summary{Total: len(b.Items)}
	for _, item := range b.Items {
		switch item.Status {
		case ItemPending:
			s.Pending++
		case ItemApproved:
			s.Approved++
		case ItemRejected:
			s.Rejected++
		case ItemKept:
			s.Kept++
		case ItemExpired:
			s.Expired++
		}
	}
	return s
}

// ReadyForFinalConfirmation is true once every item of a still-pending,
// non-empty batch has been decided.
func (b *Batch) ReadyForFinalConfirmation() bool {
	if b.Status != BatchPending {
		return false
	}
	s := b.Summarize()
	return s.Total > 0 && s.Pending == 0
}

// BuildApplyChangeSet reconstructs a document-level ChangeSet from the
// batch, replaying only the approved items' single-line edits onto the
// original content captured when the batch was created.
func (b *Batch) BuildApplyChangeSet() (*routedoc.ChangeSet, error) {
	if len(b.Items) == 0 {
		return nil, fmt.Errorf("batch %s: %w", b.BatchID, ErrEmptyBatch)
	}

	base := b.Items[0].Changes
	if base == nil {
		return nil, fmt.Errorf("batch %s: first item carries no change set", b.BatchID)
	}

	lines := routedoc.SplitLines(base.OriginalContent)
	modified := []routedoc.ModifiedLine{}

	for _, item := range b.Items {
		if item.Status != ItemApproved {
			continue
		}
		if item.LineNumber < 1 || item.LineNumber > len(lines) {
			return nil, fmt.Errorf("batch %s item %d: line %d outside document",
				b.BatchID, item.ItemIndex, item.LineNumber)
		}
		lines[item.LineNumber-1] = item.After

		ml := routedoc.ModifiedLine{
			LineNumber: item.LineNumber,
			Before:     item.Before,
			After:      item.After,
		}
		if item.Changes != nil {
			if source, ok := item.Changes.LineFor(item.LineNumber); ok {
				ml.Section = source.Section
				ml.TaskTypes = source.TaskTypes
			}
		}
		modified = append(modified, ml)
	}

	return &routedoc.ChangeSet{
		Path:            base.Path,
		ResolvedPath:    base.ResolvedPath,
		OriginalContent: base.OriginalContent,
		ProposedContent: routedoc.RenderLines(lines),
		ModifiedLines:   modified,
	}, nil
}

// ItemChangeSet scopes a document-level ChangeSet down to a single modified
// line, for attaching to an approval item.
func ItemChangeSet(cs *routedoc.ChangeSet, ml routedoc.ModifiedLine) *routedoc.ChangeSet {
	lines := routedoc.SplitLines(cs.OriginalContent)
	proposed := make([]string, len(lines))
	copy(proposed, lines)
	if ml.LineNumber >= 1 && ml.LineNumber <= len(proposed) {
		proposed[ml.LineNumber-1] = ml.After
	}
	return &routedoc.ChangeSet{
		Path:            cs.Path,
		ResolvedPath:    cs.ResolvedPath,
		OriginalContent: cs.OriginalContent,
		ProposedContent: routedoc.RenderLines(proposed),
		ModifiedLines:   []routedoc.ModifiedLine{ml},
	}
}
