package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/masking"
	"github.com/textveil/textveil/internal/similarity"
)

const saveTimeout = 10 * time.Second

// Saver is the persistence sink the autosave scheduler writes through.
// *Store satisfies it.
type Saver interface {
	Create(ctx context.Context, sourceText *string, targetText string, mappings []masking.Mapping) (*Record, error)
	Update(ctx context.Context, id string, sourceText *string, targetText string, mappings []masking.Mapping) (*Record, error)
	Latest(ctx context.Context) (*Record, error)
}

// AutosaveConfig tunes the scheduler.
type AutosaveConfig struct {
	Debounce            time.Duration
	SimilarityThreshold float64

	// OnError, when set, receives persistence failures. Failures are never
	// retried automatically; the next edit reschedules a save.
	OnError func(error)
}

// pendingSave captures one scheduled result. The generation ties the timer
// callback to the schedule that created it; any reschedule invalidates it.
type pendingSave struct {
	generation uint64
	sourceText *string
	targetText string
	mappings   []masking.Mapping
}

// Autosave debounces result persistence. At most one timer is in flight:
// scheduling a new result cancels the previous timer. When a timer fires it
// re-checks that its result is still the latest before writing, so a stale
// fire racing a newer edit performs no work.
type Autosave struct {
	saver  Saver
	config AutosaveConfig
	logger *zap.Logger

	mu         sync.Mutex
	generation uint64
	timer      *time.Timer
	latestText string
}

// NewAutosave creates an autosave scheduler.
func NewAutosave(saver Saver, config AutosaveConfig, logger *zap.Logger) *Autosave {
	if config.Debounce <= 0 {
		config.Debounce = 2 * time.Second
	}
	if config.SimilarityThreshold <= 0 {
		config.SimilarityThreshold = similarity.DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autosave{saver: saver, config: config, logger: logger}
}

// Schedule queues a result for persistence after the debounce interval,
// cancelling any previously scheduled save.
func (a *Autosave) Schedule(sourceText *string, targetText string, mappings []masking.Mapping) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	a.latestText = targetText

	if a.timer != nil {
		a.timer.Stop()
	}

	pending := &pendingSave{
		generation: a.generation,
		sourceText: sourceText,
		targetText: targetText,
		mappings:   mappings,
	}
	a.timer = time.AfterFunc(a.config.Debounce, func() { a.fire(pending) })
}

// Stop cancels any scheduled save. A cancelled timer performs no further
// work, including no late write.
func (a *Autosave) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// fire runs in the timer goroutine after the debounce elapses.
func (a *Autosave) fire(pending *pendingSave) {
	a.mu.Lock()
	stale := pending.generation != a.generation || a.latestText != pending.targetText
	a.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := a.save(ctx, pending); err != nil {
		a.logger.Error("Autosave failed", zap.Error(err))
		if a.config.OnError != nil {
			a.config.OnError(err)
		}
	}
}

// save applies the merge-or-create decision: when the latest record's target
// text scores at or above the similarity threshold, that record is updated,
// otherwise a new record is created.
func (a *Autosave) save(ctx context.Context, pending *pendingSave) error {
	latest, err := a.saver.Latest(ctx)
	if err != nil {
		return err
	}

	if latest != nil && similarity.Score(latest.TargetText, pending.targetText) >= a.config.SimilarityThreshold {
		_, err = a.saver.Update(ctx, latest.ID, pending.sourceText, pending.targetText, pending.mappings)
		if err == nil {
			a.logger.Debug("Autosave merged into existing record", zap.String("id", latest.ID))
		}
		return err
	}

	record, err := a.saver.Create(ctx, pending.sourceText, pending.targetText, pending.mappings)
	if err == nil {
		a.logger.Debug("Autosave created new record", zap.String("id", record.ID))
	}
	return err
}
