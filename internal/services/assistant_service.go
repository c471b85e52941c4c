package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dragon-zzuni/smart-assistant/internal/archive"
	"github.com/dragon-zzuni/smart-assistant/internal/database/models"
	"github.com/dragon-zzuni/smart-assistant/internal/digest"
	"github.com/dragon-zzuni/smart-assistant/internal/domain"
	"github.com/dragon-zzuni/smart-assistant/internal/functions"
	"github.com/dragon-zzuni/smart-assistant/internal/functions/local"
	"github.com/dragon-zzuni/smart-assistant/internal/ingest"
	"github.com/dragon-zzuni/smart-assistant/internal/notify"
	"github.com/dragon-zzuni/smart-assistant/internal/sources"
)

var (
	// ErrNothingCollected indicates no source produced a single usable message
	ErrNothingCollected = errors.New("nothing collected")
	// ErrRunInProgress indicates another run is still active
	ErrRunInProgress = errors.New("run already in progress")
	// ErrInvalidTransition indicates a run tried to leave the state machine
	ErrInvalidTransition = errors.New("invalid run state transition")
	// ErrRunNotFound indicates the requested run does not exist
	ErrRunNotFound = errors.New("run not found")
)

// Run triggers
const (
	TriggerCLI       = "cli"
	TriggerAPI       = "api"
	TriggerScheduler = "scheduler"
)

// DefaultTopN is how many ranked messages get deep analysis
const DefaultTopN = 60

// RunResult is the outcome of one successful run
type RunResult struct {
	RunID          string                  `json:"run_id"`
	State          domain.RunState         `json:"state"`
	Trigger        string                  `json:"trigger"`
	Mode           functions.ProcessorMode `json:"mode"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     time.Time               `json:"finished_at"`
	Collected      int                     `json:"collected"`
	Normalized     int                     `json:"normalized"`
	Fallbacks      int                     `json:"fallbacks"`
	SourceFailures []string                `json:"source_failures,omitempty"`
	Messages       []domain.Message        `json:"messages"`
	Results        []domain.AnalysisResult `json:"results"`
	Todo           domain.TodoList         `json:"todo"`
	Report         string                  `json:"report"`
	ArchivePath    string                  `json:"archive_path,omitempty"`
}

// AssistantOptions wires the components of a run. Zero values fall back to
// package defaults; a nil Capability runs every judgment locally.
type AssistantOptions struct {
	Sources    []sources.Source
	Capability functions.Capability
	Normalize  ingest.Options
	Coalesce   digest.CoalesceOptions
	Analyzer   functions.AnalyzerConfig
	Rules      local.Rules
	TopN       int
	MaxTodo    int
	Archive    *archive.Store
	Sinks      []notify.Sink
}

// AssistantService executes pipeline runs and records their outcome
type AssistantService struct {
	db          *gorm.DB
	logService  *LogService
	sources     []sources.Source
	normalizer  *ingest.Normalizer
	coalescer   *digest.Coalescer
	ranker      *local.Ranker
	analyzer    *functions.Analyzer
	extractor   *local.ActionExtractor
	todoBuilder *digest.TodoBuilder
	archive     *archive.Store
	sinks       []notify.Sink
	topN        int
	now         func() time.Time
	newID       func() string
	running     sync.Mutex
}

// NewAssistantService creates a new AssistantService. db and logService may
// be nil, in which case runs are not persisted.
func NewAssistantService(db *gorm.DB, logService *LogService, opts AssistantOptions) *AssistantService {
	rules := opts.Rules.WithDefaults()
	opts.Analyzer.Rules = rules
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	return &AssistantService{
		db:          db,
		logService:  logService,
		sources:     opts.Sources,
		normalizer:  ingest.NewNormalizer(opts.Normalize),
		coalescer:   digest.NewCoalescer(opts.Coalesce),
		ranker:      local.NewRanker(rules),
		analyzer:    functions.NewAnalyzer(opts.Capability, opts.Analyzer),
		extractor:   local.NewActionExtractor(rules),
		todoBuilder: digest.NewTodoBuilder(opts.MaxTodo),
		archive:     opts.Archive,
		sinks:       opts.Sinks,
		topN:        opts.TopN,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Mode returns which processor the analysis stage tries first
func (s *AssistantService) Mode() functions.ProcessorMode {
	return s.analyzer.Mode()
}

// Run executes one pipeline run triggered from the command line
func (s *AssistantService) Run(ctx context.Context) (*RunResult, error) {
	return s.RunWithTrigger(ctx, TriggerCLI)
}

// RunWithTrigger executes one pipeline run. It returns ErrNothingCollected
// when no source yields a message and ErrRunInProgress when another run is
// active; every other failure is absorbed into the result.
func (s *AssistantService) RunWithTrigger(ctx context.Context, trigger string) (*RunResult, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	run := &pipelineRun{
		service: s,
		result: &RunResult{
			RunID:     s.newID(),
			Trigger:   trigger,
			Mode:      s.analyzer.Mode(),
			StartedAt: s.now(),
		},
	}
	s.logService.LogRunStarted(run.result.RunID, trigger)
	log.WithFields(log.Fields{
		"run_id":  run.result.RunID,
		"trigger": trigger,
		"mode":    run.result.Mode,
	}).Info("[Pipeline] Run started")

	if err := run.execute(ctx); err != nil {
		run.fail(err)
		return nil, err
	}

	s.finish(ctx, run.result)
	return run.result, nil
}

// pipelineRun carries the state of one run through the stages
type pipelineRun struct {
	service *AssistantService
	result  *RunResult
}

// advance moves the run to next and records the item count at that state
func (r *pipelineRun) advance(next domain.RunState, count int) error {
	prev := r.result.State
	if !prev.CanTransition(next) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, prev, next)
	}
	r.result.State = next

	r.service.logService.LogStateTransition(r.result.RunID, prev, next, count)
	log.WithFields(log.Fields{
		"run_id": r.result.RunID,
		"state":  next,
		"count":  count,
	}).Debug("[Pipeline] State changed")
	return nil
}

func (r *pipelineRun) execute(ctx context.Context) error {
	s := r.service
	res := r.result

	records, failures := sources.CollectAll(ctx, s.sources)
	for _, f := range failures {
		res.SourceFailures = append(res.SourceFailures, f.Source)
		s.logService.LogSourceFailure(res.RunID, f.Source, f.Err)
	}
	res.Collected = len(records)
	if err := r.advance(domain.RunCollected, len(records)); err != nil {
		return err
	}

	messages := s.normalizer.NormalizeAll(records)
	res.Normalized = len(messages)
	if len(messages) == 0 {
		return fmt.Errorf("%w: %d records from %d sources, %d unavailable",
			ErrNothingCollected, len(records), len(s.sources), len(failures))
	}
	if err := r.advance(domain.RunNormalized, len(messages)); err != nil {
		return err
	}

	messages = s.coalescer.Coalesce(messages)
	res.Messages = messages
	if err := r.advance(domain.RunCoalesced, len(messages)); err != nil {
		return err
	}

	ranked := s.ranker.Rank(messages)
	if err := r.advance(domain.RunRanked, len(ranked)); err != nil {
		return err
	}

	top := make([]domain.Message, 0, min(s.topN, len(ranked)))
	for _, rm := range ranked[:min(s.topN, len(ranked))] {
		top = append(top, rm.Message)
	}
	outcomes := s.analyzer.Analyze(ctx, top)
	for _, o := range outcomes {
		if o.Fallback() {
			res.Fallbacks++
		}
	}
	actions := s.extractor.Extract(top)
	if err := r.advance(domain.RunAnalyzed, len(top)); err != nil {
		return err
	}

	res.Results = digest.Merge(ranked, functions.Summaries(top, outcomes), digest.GroupActions(actions))
	if err := r.advance(domain.RunMerged, len(res.Results)); err != nil {
		return err
	}

	res.Todo = s.todoBuilder.Build(res.Results, len(messages))
	res.Report = digest.ComposeReport(res.Results, res.Todo, res.Todo.GeneratedAt)
	return r.advance(domain.RunTodoBuilt, res.Todo.TotalItems)
}

// fail moves the run to Failed and records why
func (r *pipelineRun) fail(err error) {
	s := r.service
	res := r.result
	if res.State.CanTransition(domain.RunFailed) {
		r.advance(domain.RunFailed, 0)
	}
	res.FinishedAt = s.now()

	log.WithFields(log.Fields{
		"run_id": res.RunID,
		"error":  err.Error(),
	}).Error("[Pipeline] Run failed")
	s.logService.LogRunFailed(res.RunID, err)
	s.saveRun(res, err)
}

// finish archives, persists and delivers a successful run. None of these
// can fail the run.
func (s *AssistantService) finish(ctx context.Context, res *RunResult) {
	res.FinishedAt = s.now()

	if s.archive != nil {
		path, err := s.archive.Save(&archive.Record{
			RunID:          res.RunID,
			State:          res.State,
			Mode:           string(res.Mode),
			StartedAt:      res.StartedAt,
			FinishedAt:     res.FinishedAt,
			SourceFailures: res.SourceFailures,
			Messages:       res.Messages,
			Results:        res.Results,
			Todo:           res.Todo,
			Report:         res.Report,
		})
		if err != nil {
			log.WithField("error", err.Error()).Warn("[Pipeline] Failed to archive run")
		} else {
			res.ArchivePath = path
		}
	}

	s.saveRun(res, nil)

	delivery := notify.Delivery{
		RunID:       res.RunID,
		GeneratedAt: res.Todo.GeneratedAt,
		Todo:        res.Todo,
		Report:      res.Report,
	}
	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, delivery); err != nil {
			log.WithFields(log.Fields{
				"sink":  sink.Name(),
				"error": err.Error(),
			}).Warn("[Pipeline] Sink failed")
			s.logService.LogSinkFailure(res.RunID, sink.Name(), err)
		}
	}

	s.logService.LogRunFinished(res.RunID, res.Todo.TotalItems, res.FinishedAt.Sub(res.StartedAt))
	log.WithFields(log.Fields{
		"run_id":    res.RunID,
		"messages":  len(res.Messages),
		"fallbacks": res.Fallbacks,
		"todo":      res.Todo.TotalItems,
	}).Info("[Pipeline] Run finished")
}

// saveRun persists the run row and its displayed todo items
func (s *AssistantService) saveRun(res *RunResult, runErr error) {
	if s.db == nil {
		return
	}

	finished := res.FinishedAt
	row := models.Run{
		ID:             res.RunID,
		State:          res.State,
		Trigger:        res.Trigger,
		Mode:           string(res.Mode),
		Collected:      res.Collected,
		Normalized:     res.Normalized,
		Coalesced:      len(res.Messages),
		Analyzed:       min(s.topN, len(res.Messages)),
		Fallbacks:      res.Fallbacks,
		TotalActions:   res.Todo.Summary.TotalActions,
		TodoItems:      res.Todo.TotalItems,
		SourceFailures: len(res.SourceFailures),
		Report:         res.Report,
		ArchivePath:    res.ArchivePath,
		StartedAt:      res.StartedAt,
		FinishedAt:     &finished,
	}
	if runErr != nil {
		row.Error = runErr.Error()
		row.Analyzed = 0
	}
	for i, item := range res.Todo.Items {
		row.Todos = append(row.Todos, models.NewTodoRecord(res.RunID, i, item))
	}

	if err := s.db.Create(&row).Error; err != nil {
		log.WithFields(log.Fields{
			"run_id": res.RunID,
			"error":  err.Error(),
		}).Warn("[Pipeline] Failed to persist run")
	}
}

// ListRuns returns the most recent runs without their todo items
func (s *AssistantService) ListRuns(limit int) ([]models.Run, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var runs []models.Run
	if err := s.db.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// GetLatestRun returns the most recent run that reached TodoBuilt, with its
// todo items in display order
func (s *AssistantService) GetLatestRun() (*models.Run, error) {
	if s.db == nil {
		return nil, ErrRunNotFound
	}

	var run models.Run
	err := s.db.Preload("Todos", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("state = ?", domain.RunTodoBuilt).Order("started_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
