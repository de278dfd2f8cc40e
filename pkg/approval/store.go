package approval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Store persists approval batches, one JSON file per batch, under
// <dir>/batches/.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a batch store rooted at stateDir.
func NewStore(stateDir string, logger *zap.Logger) *Store {
	return &Store{
		dir:    filepath.Join(stateDir, "batches"),
		logger: logger,
		now:    time.Now,
	}
}

// sanitizeID keeps batch ids filesystem-safe. Anything outside
// [A-Za-z0-9._-] becomes an underscore.
func sanitizeID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

func (s *Store) path(batchID string) string {
	return filepath.Join(s.dir, sanitizeID(batchID)+".json")
}

// CreateBatch persists a new pending batch. Items are renumbered from 1 in
// the order given and start pending.
func (s *Store) CreateBatch(batchID, documentPath, reportPath string, items []Item, metadata map[string]string) (*Batch, error) {
	if _, err := os.Stat(s.path(batchID)); err == nil {
		return nil, fmt.Errorf("batch %s already exists", batchID)
	}

	batch := &Batch{
		BatchID:      batchID,
		DocumentPath: documentPath,
		ReportPath:   reportPath,
		CreatedAt:    s.now().UTC(),
		Status:       BatchPending,
		Items:        make([]Item, len(items)),
		Metadata:     metadata,
	}
	for i, item := range items {
		item.ItemIndex = i + 1
		item.Status = ItemPending
		item.DecidedAt = nil
		batch.Items[i] = item
	}

	if err := s.save(batch); err != nil {
		return nil, err
	}
	s.logger.Info("approval batch created",
		zap.String("batch_id", batchID),
		zap.Int("items", len(items)))
	return batch, nil
}

// Get loads a batch by id, resolving hashed token ids by scanning the store.
func (s *Store) Get(batchID string) (*Batch, error) {
	batch, err := s.load(s.path(batchID))
	if err == nil {
		return batch, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	// Callback tokens may carry a hashed id when the raw id would not fit
	// the token budget. Resolve by scanning.
	if resolved, ok := s.findHashed(batchID); ok {
		return resolved, nil
	}
	return nil, fmt.Errorf("batch %s: %w", batchID, ErrBatchNotFound)
}

func (s *Store) findHashed(tokenID string) (*Batch, bool) {
	batches, err := s.List()
	if err != nil {
		return nil, false
	}
	for _, b := range batches {
		if hashedID(b.BatchID) == tokenID {
			return b, true
		}
	}
	return nil, false
}

// SetItemDecision records a decision for one item. Re-decisions overwrite
// the previous one (last write wins) while the batch is still pending.
func (s *Store) SetItemDecision(batchID string, itemIndex int, decision ItemStatus) (*Batch, error) {
	batch, err := s.Get(batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != BatchPending {
		return nil, fmt.Errorf("batch %s is %s: %w", batch.BatchID, batch.Status, ErrBatchNotPending)
	}
	if itemIndex < 1 || itemIndex > len(batch.Items) {
		return nil, fmt.Errorf("batch %s has %d items, got index %d: %w",
			batch.BatchID, len(batch.Items), itemIndex, ErrInvalidIndex)
	}

	decidedAt := s.now().UTC()
	batch.Items[itemIndex-1].Status = decision
	batch.Items[itemIndex-1].DecidedAt = &decidedAt

	if err := s.save(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// MarkFinalRequestSent flags that the final confirmation prompt went out, so
// it is sent at most once per batch.
func (s *Store) MarkFinalRequestSent(batchID string) (*Batch, error) {
	batch, err := s.Get(batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != BatchPending {
		return nil, fmt.Errorf("batch %s is %s: %w", batch.BatchID, batch.Status, ErrBatchNotPending)
	}
	batch.FinalRequestSent = true
	if err := s.save(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// Finalize moves a pending batch into a terminal status.
func (s *Store) Finalize(batchID string, status BatchStatus) (*Batch, error) {
	if status == BatchPending {
		return nil, fmt.Errorf("cannot finalize batch %s to pending", batchID)
	}
	batch, err := s.Get(batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != BatchPending {
		return nil, fmt.Errorf("batch %s is %s: %w", batch.BatchID, batch.Status, ErrBatchNotPending)
	}
	batch.Status = status
	if err := s.save(batch); err != nil {
		return nil, err
	}
	s.logger.Info("approval batch finalized",
		zap.String("batch_id", batch.BatchID),
		zap.String("status", string(status)))
	return batch, nil
}

// ExpireBatch expires a single pending batch with a reason, expiring its
// undecided items too.
func (s *Store) ExpireBatch(batchID, reason string) (*Batch, error) {
	batch, err := s.Get(batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != BatchPending {
		return nil, fmt.Errorf("batch %s is %s: %w", batch.BatchID, batch.Status, ErrBatchNotPending)
	}
	batch.Status = BatchExpired
	batch.ExpireReason = reason
	for i := range batch.Items {
		if batch.Items[i].Status == ItemPending {
			batch.Items[i].Status = ItemExpired
		}
	}
	if err := s.save(batch); err != nil {
		return nil, err
	}
	s.logger.Info("approval batch expired",
		zap.String("batch_id", batch.BatchID),
		zap.String("reason", reason))
	return batch, nil
}

// ExpireAll expires every non-terminal batch and its undecided items,
// returning how many batches were expired. Run before creating a new batch
// so stale prompts cannot be acted on.
func (s *Store) ExpireAll(reason string) (int, error) {
	batches, err := s.List()
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, batch := range batches {
		if batch.Terminal() {
			continue
		}
		batch.Status = BatchExpired
		batch.ExpireReason = reason
		for i := range batch.Items {
			if batch.Items[i].Status == ItemPending {
				batch.Items[i].Status = ItemExpired
			}
		}
		if err := s.save(batch); err != nil {
			return expired, err
		}
		expired++
		s.logger.Info("approval batch expired",
			zap.String("batch_id", batch.BatchID),
			zap.String("reason", reason))
	}
	return expired, nil
}

// List loads every stored batch, newest first.
func (s *Store) List() ([]*Batch, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch store: %w", err)
	}

	var batches []*Batch
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		batch, err := s.load(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable batch record",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		batches = append(batches, batch)
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].CreatedAt.After(batches[j].CreatedAt)
	})
	return batches, nil
}

func (s *Store) load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse batch record %s: %w", filepath.Base(path), err)
	}
	return &batch, nil
}

func (s *Store) save(batch *Batch) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create batch store: %w", err)
	}
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(batch.BatchID), data, 0644); err != nil {
		return fmt.Errorf("failed to write batch record: %w", err)
	}
	return nil
}
