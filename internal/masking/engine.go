package masking

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine performs rule-based substitution followed by automatic detection.
// Engines hold no per-run state and are safe for concurrent use.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a masking engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Anonymize applies the enabled manual rules in order, then the enabled
// automatic detectors in the fixed order URL, email, phone. Each detector
// operates on the output text of the previous step. Mapping order follows
// application order.
func (e *Engine) Anonymize(text string, rules []Rule, opts Options) Result {
	working := text
	mappings := make([]Mapping, 0)
	alloc := newAliasAllocator()

	for _, rule := range rules {
		if !ruleApplies(rule) {
			continue
		}

		updated, count := Replace(working, rule.Original, rule.Masked)
		if count == 0 {
			// A rule that matched nothing contributes no mapping.
			continue
		}

		working = updated
		mappings = append(mappings, Mapping{
			ID:              uuid.NewString(),
			Original:        rule.Original,
			Masked:          rule.Masked,
			Kind:            rule.Kind,
			OccurrenceCount: count,
		})
	}

	if opts.DetectURLs {
		working, mappings = e.applyDetector(working, CategoryURL, detectURLs(working), mappings, alloc)
	}
	if opts.DetectEmails {
		working, mappings = e.applyDetector(working, CategoryEmail, detectEmails(working), mappings, alloc)
	}
	if opts.DetectPhones {
		working, mappings = e.applyDetector(working, CategoryPhone, detectPhones(working), mappings, alloc)
	}

	e.logger.Debug("anonymize complete",
		zap.Int("input_len", len(text)),
		zap.Int("mappings", len(mappings)),
	)

	return Result{MaskedText: working, Mappings: mappings}
}

// applyDetector substitutes each detected candidate with an auto-generated
// alias. A candidate equal to a manual mapping's original, or to any alias
// already in the text, is skipped so aliases are never masked twice. A
// candidate already auto-masked earlier in this run reuses its alias and
// merges occurrence counts instead of allocating a new label.
func (e *Engine) applyDetector(text string, kind Category, candidates []string, mappings []Mapping, alloc *aliasAllocator) (string, []Mapping) {
	for _, candidate := range candidates {
		if consumed(mappings, candidate) {
			continue
		}

		if i := autoMappingIndex(mappings, candidate); i >= 0 {
			updated, count := Replace(text, candidate, mappings[i].Masked)
			if count == 0 {
				continue
			}
			text = updated
			mappings[i].OccurrenceCount += count
			continue
		}

		alias := alloc.next(kind)
		updated, count := Replace(text, candidate, alias)
		if count == 0 {
			continue
		}

		text = updated
		mappings = append(mappings, Mapping{
			ID:              uuid.NewString(),
			Original:        candidate,
			Masked:          alias,
			Kind:            kind,
			OccurrenceCount: count,
			auto:            true,
		})

		e.logger.Debug("pattern masked",
			zap.String("category", kind.String()),
			zap.String("alias", alias),
			zap.Int("occurrences", count),
		)
	}

	return text, mappings
}

// ruleApplies reports whether a manual rule participates in masking: it must
// be enabled and both sides must be non-blank after trimming whitespace.
func ruleApplies(rule Rule) bool {
	return rule.Enabled &&
		strings.TrimSpace(rule.Original) != "" &&
		strings.TrimSpace(rule.Masked) != ""
}

// consumed reports whether candidate equals a manual mapping's original or
// any mapping's alias produced so far in this run.
func consumed(mappings []Mapping, candidate string) bool {
	for _, m := range mappings {
		if m.Masked == candidate {
			return true
		}
		if !m.auto && m.Original == candidate {
			return true
		}
	}
	return false
}

// autoMappingIndex finds an auto-generated mapping for the exact original,
// regardless of category, or -1.
func autoMappingIndex(mappings []Mapping, original string) int {
	for i, m := range mappings {
		if m.auto && m.Original == original {
			return i
		}
	}
	return -1
}
