// Package applier writes an approved change set back to the routing
// document: staleness check, timestamped backup, write, verify, and
// rollback on any post-write failure.
package applier

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/routekeeper/pkg/changeset"
	"github.com/zen-systems/routekeeper/pkg/config"
	"github.com/zen-systems/routekeeper/pkg/routedoc"
)

// StaleDocumentError reports that the document on disk no longer matches the
// content the change set was computed against. Nothing was modified.
type StaleDocumentError struct {
	Path string
}

func (e *StaleDocumentError) Error() string {
	return fmt.Sprintf("document %s changed since the change set was computed; re-run the recommendation", e.Path)
}

// Result describes the outcome of an apply.
type Result struct {
	Applied       bool
	DryRun        bool
	Path          string
	BackupPath    string
	ModifiedLines []routedoc.ModifiedLine
}

// Engine applies validated change sets to routing documents.
type Engine struct {
	tables *config.Tables
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates an apply engine. tables supplies the phrase table used
// to re-parse the document during post-write verification.
func NewEngine(tables *config.Tables, logger *zap.Logger) *Engine {
	return &Engine{
		tables: tables,
		logger: logger,
		now:    time.Now,
	}
}

// Apply validates the change set and, unless dryRun is set, writes the
// proposed content to path. The document is checked against the change
// set's original content before any mutation; a mismatch returns
// StaleDocumentError. After writing, the file is re-read and re-parsed; any
// verification failure restores the backup and returns the original error.
func (e *Engine) Apply(path string, cs *routedoc.ChangeSet, dryRun bool) (*Result, error) {
	if result := changeset.Validate(cs); !result.Valid {
		return nil, &changeset.ValidationError{Errors: result.Errors}
	}

	result := &Result{
		DryRun:        dryRun,
		Path:          path,
		ModifiedLines: cs.ModifiedLines,
	}
	if dryRun {
		return result, nil
	}

	current, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if string(current) != cs.OriginalContent {
		return nil, &StaleDocumentError{Path: path}
	}

	backupPath := fmt.Sprintf("%s.bak.%s", path, e.now().UTC().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, current, 0644); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	result.BackupPath = backupPath

	if err := os.WriteFile(path, []byte(cs.ProposedContent), 0644); err != nil {
		return nil, e.rollback(path, current, backupPath, fmt.Errorf("failed to write document: %w", err))
	}

	if err := e.verify(path, cs.ProposedContent); err != nil {
		return nil, e.rollback(path, current, backupPath, err)
	}

	result.Applied = true
	e.logger.Info("routing document updated",
		zap.String("path", path),
		zap.Int("modified_lines", len(cs.ModifiedLines)),
		zap.String("backup", filepath.Base(backupPath)))
	return result, nil
}

// verify re-reads the written file byte for byte and re-parses it, requiring
// every recognized section to still be present.
func (e *Engine) verify(path, want string) error {
	written, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to re-read document after write: %w", err)
	}
	if string(written) != want {
		return fmt.Errorf("document content mismatch after write")
	}

	doc := routedoc.Parse(string(written), e.tables.Phrases)
	found := make(map[routedoc.SectionKind]bool)
	for _, section := range doc.Sections {
		found[section.Kind] = true
	}
	for _, kind := range routedoc.RecognizedSections() {
		if !found[kind] {
			return fmt.Errorf("document lost its %s section after write", kind)
		}
	}
	return nil
}

// rollback restores the pre-write bytes and re-propagates the error that
// triggered it. A failed restore is reported alongside the original error.
func (e *Engine) rollback(path string, original []byte, backupPath string, cause error) error {
	e.logger.Warn("rolling back document write",
		zap.String("path", path), zap.Error(cause))
	if err := os.WriteFile(path, original, 0644); err != nil {
		return fmt.Errorf("rollback failed (%v) after apply error: %w", err, cause)
	}
	e.logger.Info("document restored from backup",
		zap.String("path", path),
		zap.String("backup", filepath.Base(backupPath)))
	return cause
}
