package functions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
	"github.com/dragon-zzuni/smart-assistant/internal/functions/local"
)

var (
	// ErrCapabilityUnavailable indicates no judgment capability is configured
	ErrCapabilityUnavailable = errors.New("judgment capability unavailable")
	// ErrCapabilityFailure indicates a judgment call failed
	ErrCapabilityFailure = errors.New("judgment call failed")
	// ErrCancelled indicates the run was cancelled before the item was judged
	ErrCancelled = errors.New("analysis cancelled")
)

// ProcessorMode represents the processing mode (AI or local)
type ProcessorMode string

const (
	// ProcessorModeAI uses the judgment capability with local fallback
	ProcessorModeAI ProcessorMode = "ai"
	// ProcessorModeLocal uses local heuristics only
	ProcessorModeLocal ProcessorMode = "local"
)

// Defaults for AnalyzerConfig
const (
	DefaultConcurrency  = 5
	DefaultJudgeTimeout = 30 * time.Second
)

// Capability judges one message. Implementations make a single attempt.
type Capability interface {
	Judge(ctx context.Context, msg domain.Message) (domain.Summary, error)
}

// AnalyzerConfig holds the knobs of the analysis stage
type AnalyzerConfig struct {
	Concurrency   int
	Timeout       time.Duration
	SynopsisChars int
	Rules         local.Rules
}

// Outcome is the judgment of one input item. Err is set when the summary
// came from the heuristic fallback and says why.
type Outcome struct {
	Summary domain.Summary
	Err     error
}

// Fallback reports whether the summary is a heuristic result
func (o Outcome) Fallback() bool {
	return o.Err != nil
}

// Analyzer runs the judgment capability over a batch with a fixed number of
// workers. Each worker writes only the slot of the index it was handed.
type Analyzer struct {
	capability Capability
	cfg        AnalyzerConfig
}

// NewAnalyzer creates a new Analyzer. A nil capability means every item is
// judged by the local heuristic.
func NewAnalyzer(capability Capability, cfg AnalyzerConfig) *Analyzer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultJudgeTimeout
	}
	if cfg.SynopsisChars <= 0 {
		cfg.SynopsisChars = local.DefaultSynopsisLength
	}
	cfg.Rules = cfg.Rules.WithDefaults()
	return &Analyzer{capability: capability, cfg: cfg}
}

// Mode returns which processor the analyzer tries first
func (a *Analyzer) Mode() ProcessorMode {
	if a.capability == nil {
		return ProcessorModeLocal
	}
	return ProcessorModeAI
}

// Analyze returns one outcome per message, index-aligned with the input.
// Cancelling ctx stops new calls; calls already in flight run to their own
// timeout and the items never handed out get the heuristic.
func (a *Analyzer) Analyze(ctx context.Context, messages []domain.Message) []Outcome {
	outcomes := make([]Outcome, len(messages))
	if len(messages) == 0 {
		return outcomes
	}

	if a.capability == nil {
		for i, msg := range messages {
			outcomes[i] = a.fallback(msg, ErrCapabilityUnavailable)
		}
		return outcomes
	}

	workers := a.cfg.Concurrency
	if workers > len(messages) {
		workers = len(messages)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = a.judgeOne(ctx, messages[i])
			}
		}()
	}

	dispatched := 0
dispatch:
	for dispatched < len(messages) {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- dispatched:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	if dispatched < len(messages) {
		log.WithFields(log.Fields{
			"dispatched": dispatched,
			"remaining":  len(messages) - dispatched,
		}).Warn("[Analyzer] Run cancelled, remaining items use local heuristics")
		for i := dispatched; i < len(messages); i++ {
			outcomes[i] = a.fallback(messages[i], fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx)))
		}
	}

	return outcomes
}

// judgeOne makes the single capability attempt for msg and degrades to the
// heuristic on any failure
func (a *Analyzer) judgeOne(ctx context.Context, msg domain.Message) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = a.fallback(msg, fmt.Errorf("%w: panic: %v", ErrCapabilityFailure, r))
		}
	}()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Timeout)
	defer cancel()

	summary, err := a.capability.Judge(callCtx, msg)
	if err != nil {
		return a.fallback(msg, fmt.Errorf("%w: %v", ErrCapabilityFailure, err))
	}
	if !summary.Urgency.IsValid() || !summary.Sentiment.IsValid() {
		return a.fallback(msg, fmt.Errorf("%w: invalid judgment tags", ErrCapabilityFailure))
	}

	summary.MessageID = msg.ID
	if summary.ProcessedBy == "" {
		summary.ProcessedBy = domain.ProcessedByAI
	}
	return Outcome{Summary: summary}
}

func (a *Analyzer) fallback(msg domain.Message, reason error) Outcome {
	if !errors.Is(reason, ErrCapabilityUnavailable) {
		log.WithFields(log.Fields{
			"message_id": msg.ID,
			"reason":     reason.Error(),
		}).Warn("[Analyzer] Judgment failed, using local heuristics")
	}
	summary := local.HeuristicJudgment(a.cfg.Rules, msg, a.cfg.SynopsisChars)
	summary.FallbackReason = reason.Error()
	return Outcome{Summary: summary, Err: reason}
}

// Summaries indexes the outcomes by message ID
func Summaries(messages []domain.Message, outcomes []Outcome) map[string]*domain.Summary {
	byID := make(map[string]*domain.Summary, len(outcomes))
	for i := range outcomes {
		if i >= len(messages) {
			break
		}
		s := outcomes[i].Summary
		byID[messages[i].ID] = &s
	}
	return byID
}
