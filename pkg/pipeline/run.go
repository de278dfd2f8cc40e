// Package pipeline orchestrates the weekly run: fetch pricing, parse the
// routing document, generate recommendations, and drive the approval
// workflow through to an applied (or closed) batch.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zen-systems/routekeeper/pkg/adapter"
	"github.com/zen-systems/routekeeper/pkg/applier"
	"github.com/zen-systems/routekeeper/pkg/approval"
	"github.com/zen-systems/routekeeper/pkg/changeset"
	"github.com/zen-systems/routekeeper/pkg/classify"
	"github.com/zen-systems/routekeeper/pkg/config"
	"github.com/zen-systems/routekeeper/pkg/notify"
	"github.com/zen-systems/routekeeper/pkg/pricing"
	"github.com/zen-systems/routekeeper/pkg/recommend"
	"github.com/zen-systems/routekeeper/pkg/report"
	"github.com/zen-systems/routekeeper/pkg/routedoc"
)

// RunResult is the outcome of one recommendation pass.
type RunResult struct {
	RunID           string
	ReportPath      string
	Recommendations []recommend.Recommendation
	ChangeSet       *routedoc.ChangeSet
	Discovery       *classify.DiscoveryReport
	BatchID         string
}

// Runner wires the pipeline's collaborators together for one process.
type Runner struct {
	cfg      *config.Config
	fetcher  *pricing.Fetcher
	provider []string
	engine   *recommend.Engine
	store    *approval.Store
	applier  *applier.Engine
	notifier notify.Notifier
	disco    *classify.Discoverer
	logger   *zap.Logger
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	noCache bool
}

// WithoutPricingCache disables the pricing cache so every provider is
// fetched live.
func WithoutPricingCache() RunnerOption {
	return func(o *runnerOptions) {
		o.noCache = true
	}
}

// NewRunner builds a Runner from configuration. Collaborators that need
// credentials degrade gracefully: no bot token means prompts go to the log,
// no classifier key means unknown task phrases stay unknown.
func NewRunner(cfg *config.Config, logger *zap.Logger, opts ...RunnerOption) (*Runner, error) {
	var options runnerOptions
	for _, opt := range opts {
		opt(&options)
	}

	providers := pricing.DefaultProviders()
	var fetcherOpts []pricing.FetcherOption
	if !options.noCache {
		cache, err := pricing.NewCache(filepath.Join(cfg.CacheDir, "pricing"))
		if err != nil {
			return nil, err
		}
		fetcherOpts = append(fetcherOpts, pricing.WithCache(cache))
	}
	fetcher := pricing.NewFetcher(providers, logger, fetcherOpts...)

	taxonomy, err := classify.LoadTaxonomy(filepath.Join(cfg.StateDir, "taxonomy.json"))
	if err != nil {
		return nil, err
	}

	var classifier *classify.Classifier
	if a, model := classifierAdapter(cfg); a != nil {
		classifier = classify.NewClassifier(a, model, logger)
	} else {
		logger.Warn("no classifier adapter configured; unknown task phrases will not be classified")
	}

	var notifier notify.Notifier
	if cfg.BotToken != "" && cfg.BotChatID != "" {
		bot, err := notify.NewBotNotifier(cfg.BotToken, cfg.BotChatID, logger,
			notify.WithBaseURL(cfg.BotAPIBase))
		if err != nil {
			return nil, err
		}
		notifier = bot
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	return &Runner{
		cfg:      cfg,
		fetcher:  fetcher,
		provider: pricing.ProviderNames(providers),
		engine:   recommend.NewEngine(cfg.Tables),
		store:    approval.NewStore(cfg.StateDir, logger),
		applier:  applier.NewEngine(cfg.Tables, logger),
		notifier: notifier,
		disco:    classify.NewDiscoverer(cfg.Tables, taxonomy, classifier, logger),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// classifierAdapter picks the cheapest configured adapter for phrase
// classification.
func classifierAdapter(cfg *config.Config) (adapter.Adapter, string) {
	if cfg.DeepSeekAPIKey != "" {
		if a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey); err == nil {
			return a, "deepseek-chat"
		}
	}
	if cfg.AnthropicAPIKey != "" {
		if a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey); err == nil {
			return a, "claude-3-5-haiku"
		}
	}
	if cfg.GoogleAPIKey != "" {
		if a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey); err == nil {
			return a, "gemini-2.0-flash"
		}
	}
	if cfg.OpenAIAPIKey != "" {
		if a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey); err == nil {
			return a, "gpt-5.2-mini"
		}
	}
	return nil, ""
}

// Recommend runs the read-only half of the pipeline: pricing, discovery,
// recommendations, change set, report. The document is never modified.
func (r *Runner) Recommend(ctx context.Context) (*RunResult, error) {
	runID := uuid.NewString()

	byProvider, err := r.fetcher.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("pricing unavailable: %w", err)
	}
	models := pricing.Flatten(byProvider, r.provider)

	doc, err := routedoc.Load(r.cfg.DocumentPath, r.cfg.Tables.Phrases)
	if err != nil {
		return nil, err
	}

	discovery, err := r.disco.DiscoverTaskTypes(ctx, doc.Render())
	if err != nil {
		r.logger.Warn("task discovery failed; continuing with phrase table only", zap.Error(err))
		discovery = nil
	}

	recs := r.engine.GenerateRecommendations(doc.TaskTypes(), models)

	labels := make(map[string]string, len(recs))
	for _, rec := range recs {
		labels[rec.TaskType] = r.cfg.Tables.Label(rec.RecommendedModel)
	}
	cs := doc.ApplyRecommendations(labels)

	if result := changeset.Validate(cs); !result.Valid {
		return nil, fmt.Errorf("generated change set failed validation: %w",
			&changeset.ValidationError{Errors: result.Errors})
	}

	content := report.Recommendations(runID, r.now(), recs, cs, discovery)
	reportPath, err := report.Write(r.cfg.ReportDir, runID, content)
	if err != nil {
		r.logger.Warn("failed to write report", zap.Error(err))
		reportPath = ""
	}

	r.logger.Info("recommendation pass complete",
		zap.String("run_id", runID),
		zap.Int("recommendations", len(recs)),
		zap.Int("proposed_edits", len(cs.ModifiedLines)))

	return &RunResult{
		RunID:           runID,
		ReportPath:      reportPath,
		Recommendations: recs,
		ChangeSet:       cs,
		Discovery:       discovery,
	}, nil
}

// Apply runs the full weekly pipeline. With autoApprove set, every proposed
// edit is approved and applied immediately; otherwise a pending batch is
// created and per-item prompts are sent for asynchronous decisions.
func (r *Runner) Apply(ctx context.Context, autoApprove bool) (*RunResult, error) {
	result, err := r.Recommend(ctx)
	if err != nil {
		return nil, err
	}

	// A new run supersedes whatever is still awaiting decisions, even when
	// it proposes nothing itself: stale prompts must stop being actionable.
	expired, err := r.store.ExpireAll("superseded by a newer run")
	if err != nil {
		return nil, fmt.Errorf("failed to expire previous batches: %w", err)
	}
	if expired > 0 {
		r.logger.Info("expired previous batches", zap.Int("count", expired))
	}

	if len(result.ChangeSet.ModifiedLines) == 0 {
		r.logger.Info("document already matches recommendations; no batch created")
		if err := r.notifier.SendMessage(ctx,
			"Weekly routing check: the document already matches the recommendations.", nil); err != nil {
			r.logger.Warn("failed to send no-op notice", zap.Error(err))
		}
		return result, nil
	}

	items := make([]approval.Item, 0, len(result.ChangeSet.ModifiedLines))
	for _, ml := range result.ChangeSet.ModifiedLines {
		items = append(items, approval.Item{
			LineNumber: ml.LineNumber,
			Before:     ml.Before,
			After:      ml.After,
			Changes:    approval.ItemChangeSet(result.ChangeSet, ml),
		})
	}

	batchID := approval.NewBatchID(r.now())
	batch, err := r.store.CreateBatch(batchID, r.cfg.DocumentPath, result.ReportPath, items,
		map[string]string{"run_id": result.RunID})
	if err != nil {
		return nil, err
	}
	result.BatchID = batch.BatchID

	if autoApprove {
		for _, item := range batch.Items {
			if batch, err = r.store.SetItemDecision(batch.BatchID, item.ItemIndex, approval.ItemApproved); err != nil {
				return nil, err
			}
		}
		if err := r.finalize(ctx, batch); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := r.sendItemPrompts(ctx, batch); err != nil {
		return nil, err
	}
	return result, nil
}

// sendItemPrompts sends one decision prompt per item.
func (r *Runner) sendItemPrompts(ctx context.Context, batch *approval.Batch) error {
	tokenID := approval.TokenID(batch.BatchID)
	for _, item := range batch.Items {
		buttons := make([]notify.Button, 0, 3)
		for _, choice := range []struct {
			label  string
			action notify.Action
		}{
			{"Approve", notify.ActionApprove},
			{"Reject", notify.ActionReject},
			{"Keep current", notify.ActionKeep},
		} {
			token, err := notify.ItemToken(choice.action, tokenID, item.ItemIndex)
			if err != nil {
				return err
			}
			buttons = append(buttons, notify.Button{Label: choice.label, CallbackToken: token})
		}
		text := report.ItemPrompt(item, len(batch.Items))
		if err := r.notifier.SendMessage(ctx, text, buttons); err != nil {
			return fmt.Errorf("failed to send prompt for item %d: %w", item.ItemIndex, err)
		}
	}
	return nil
}

// ProcessCallback advances the approval workflow with one decoded button
// press. Item decisions may arrive in any order and may be re-decided while
// the batch is pending; the final confirmation is requested exactly once.
func (r *Runner) ProcessCallback(ctx context.Context, rawToken string) error {
	token, err := notify.ParseToken(rawToken)
	if err != nil {
		return err
	}

	switch token.Action {
	case notify.ActionApprove, notify.ActionReject, notify.ActionKeep:
		return r.processItemDecision(ctx, token)
	case notify.ActionApply:
		batch, err := r.store.Get(token.BatchID)
		if err != nil {
			return err
		}
		return r.finalize(ctx, batch)
	case notify.ActionCancel:
		batch, err := r.store.Get(token.BatchID)
		if err != nil {
			return err
		}
		if err := ensureDecided(batch); err != nil {
			return err
		}
		closed, err := r.store.Finalize(token.BatchID, approval.BatchCancelled)
		if err != nil {
			return err
		}
		return r.notifier.SendMessage(ctx, report.Outcome(closed, ""), nil)
	default:
		return fmt.Errorf("unhandled callback action %q", token.Action)
	}
}

func (r *Runner) processItemDecision(ctx context.Context, token *notify.Token) error {
	status := map[notify.Action]approval.ItemStatus{
		notify.ActionApprove: approval.ItemApproved,
		notify.ActionReject:  approval.ItemRejected,
		notify.ActionKeep:    approval.ItemKept,
	}[token.Action]

	batch, err := r.store.SetItemDecision(token.BatchID, token.ItemIndex, status)
	if err != nil {
		return err
	}
	r.logger.Info("item decision recorded",
		zap.String("batch_id", batch.BatchID),
		zap.Int("item", token.ItemIndex),
		zap.String("decision", string(status)))

	if !batch.ReadyForFinalConfirmation() || batch.FinalRequestSent {
		return nil
	}

	tokenID := approval.TokenID(batch.BatchID)
	applyToken, err := notify.BatchToken(notify.ActionApply, tokenID)
	if err != nil {
		return err
	}
	cancelToken, err := notify.BatchToken(notify.ActionCancel, tokenID)
	if err != nil {
		return err
	}
	buttons := []notify.Button{
		{Label: "Apply", CallbackToken: applyToken},
		{Label: "Cancel", CallbackToken: cancelToken},
	}
	if err := r.notifier.SendMessage(ctx, report.FinalPrompt(batch), buttons); err != nil {
		return fmt.Errorf("failed to send final confirmation: %w", err)
	}
	if _, err := r.store.MarkFinalRequestSent(batch.BatchID); err != nil {
		return err
	}
	return nil
}

// ensureDecided rejects a final action while any item still awaits its
// decision. A final token can arrive out of order (resent prompt, operator
// replay), so the batch state, not the prompt flow, is the gate.
func ensureDecided(batch *approval.Batch) error {
	if batch.Terminal() {
		return fmt.Errorf("batch %s is %s: %w", batch.BatchID, batch.Status, approval.ErrBatchNotPending)
	}
	if !batch.ReadyForFinalConfirmation() {
		return fmt.Errorf("batch %s has %d undecided item(s): %w",
			batch.BatchID, batch.Summarize().Pending, approval.ErrBatchNotReady)
	}
	return nil
}

// finalize closes a confirmed batch: replays the approved items, applies
// them to the document, and records the terminal status. A batch with no
// approved items closes as completed-noop without touching the document.
func (r *Runner) finalize(ctx context.Context, batch *approval.Batch) error {
	if err := ensureDecided(batch); err != nil {
		return err
	}

	if batch.Summarize().Approved == 0 {
		closed, err := r.store.Finalize(batch.BatchID, approval.BatchCompletedNoop)
		if err != nil {
			return err
		}
		return r.notifier.SendMessage(ctx, report.Outcome(closed, ""), nil)
	}

	cs, err := batch.BuildApplyChangeSet()
	if err != nil {
		return err
	}

	applyResult, err := r.applier.Apply(batch.DocumentPath, cs, false)
	if err != nil {
		if staleErr, ok := err.(*applier.StaleDocumentError); ok {
			// The document moved under the batch; its edits no longer apply.
			expired, expireErr := r.store.ExpireBatch(batch.BatchID, staleErr.Error())
			if expireErr != nil {
				return expireErr
			}
			notifyErr := r.notifier.SendMessage(ctx, report.Outcome(expired, ""), nil)
			if notifyErr != nil {
				r.logger.Warn("failed to send stale notice", zap.Error(notifyErr))
			}
			return staleErr
		}
		return err
	}

	applied, err := r.store.Finalize(batch.BatchID, approval.BatchApplied)
	if err != nil {
		return err
	}
	return r.notifier.SendMessage(ctx, report.Outcome(applied, applyResult.BackupPath), nil)
}

// Batches lists stored approval batches, newest first.
func (r *Runner) Batches() ([]*approval.Batch, error) {
	return r.store.List()
}

// Batch loads one batch by raw or hashed id.
func (r *Runner) Batch(batchID string) (*approval.Batch, error) {
	return r.store.Get(batchID)
}
