package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/repositories"
)

const defaultEvaluationThreshold = 0.5

// EvaluationRunner scores one queued evaluation run end to end.
type EvaluationRunner interface {
	Run(ctx context.Context, runID uuid.UUID) error
}

// JobQueue accepts evaluation runs for background processing.
type JobQueue interface {
	EnqueueJob(runID uuid.UUID)
}

type StartEvaluationParams struct {
	FileName    string
	CVColumn    string
	JDColumn    string
	LabelColumn string
	LabelRules  models.LabelRules
	// Threshold is the minimum score predicted as a positive match; nil means 0.5.
	Threshold *float64
}

type EvaluationService interface {
	Start(ctx context.Context, ownerID uint, data []byte, params StartEvaluationParams) (*models.EvaluationRun, error)
	Get(ctx context.Context, ownerID uint, runID uuid.UUID) (*models.EvaluationRun, error)
}

type evaluationService struct {
	evalRepo repositories.EvaluationRepository
	storage  ObjectStorage
	queue    JobQueue
	log      *zap.Logger
}

func NewEvaluationService(evalRepo repositories.EvaluationRepository, storage ObjectStorage, queue JobQueue, log *zap.Logger) EvaluationService {
	return &evaluationService{
		evalRepo: evalRepo,
		storage:  storage,
		queue:    queue,
		log:      logger.OrNop(log),
	}
}

func (s *evaluationService) Start(ctx context.Context, ownerID uint, data []byte, params StartEvaluationParams) (*models.EvaluationRun, error) {
	ds, err := ParseDataset(data)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{params.CVColumn, params.JDColumn, params.LabelColumn} {
		if _, err := ds.ColumnIndex(col); err != nil {
			return nil, err
		}
	}
	if _, err := newLabelMapper(params.LabelRules); err != nil {
		return nil, err
	}

	threshold := defaultEvaluationThreshold
	if params.Threshold != nil {
		threshold = *params.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, &llm.ValidationError{Field: "threshold", Message: "must be between 0 and 1"}
	}

	rules, err := json.Marshal(params.LabelRules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode label rules: %w", err)
	}

	key := ObjectKey("datasets", ownerID, params.FileName)
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), "text/csv"); err != nil {
		return nil, fmt.Errorf("failed to store dataset: %w", err)
	}

	run := &models.EvaluationRun{
		OwnerID:     ownerID,
		FileName:    params.FileName,
		DatasetKey:  key,
		CVColumn:    strings.TrimSpace(params.CVColumn),
		JDColumn:    strings.TrimSpace(params.JDColumn),
		LabelColumn: strings.TrimSpace(params.LabelColumn),
		LabelRules:  datatypes.JSON(rules),
		Threshold:   threshold,
		Status:      models.StatusQueued,
	}
	if err := s.evalRepo.Create(run); err != nil {
		_ = s.storage.Delete(ctx, key)
		return nil, err
	}

	s.queue.EnqueueJob(run.ID)
	s.log.Info("Evaluation queued",
		zap.String("run_id", run.ID.String()),
		zap.Uint(logger.FieldUserID, ownerID),
		zap.Int("rows", len(ds.Rows)))
	return run, nil
}

func (s *evaluationService) Get(ctx context.Context, ownerID uint, runID uuid.UUID) (*models.EvaluationRun, error) {
	return s.evalRepo.FindByOwner(ownerID, runID)
}

type evaluationRunner struct {
	evalRepo      repositories.EvaluationRepository
	configService LLMConfigService
	storage       ObjectStorage
	matcher       *Matcher
	log           *zap.Logger
}

func NewEvaluationRunner(
	evalRepo repositories.EvaluationRepository,
	configService LLMConfigService,
	storage ObjectStorage,
	matcher *Matcher,
	log *zap.Logger,
) EvaluationRunner {
	return &evaluationRunner{
		evalRepo:      evalRepo,
		configService: configService,
		storage:       storage,
		matcher:       matcher,
		log:           logger.OrNop(log),
	}
}

func (e *evaluationRunner) Run(ctx context.Context, runID uuid.UUID) error {
	claimed, err := e.evalRepo.ClaimQueued(runID)
	if err != nil {
		return fmt.Errorf("failed to claim run: %w", err)
	}
	if !claimed {
		return nil
	}

	log := e.log.With(zap.String("run_id", runID.String()))
	log.Info("Starting evaluation run")

	metrics, err := e.evaluate(ctx, runID, log)
	if err != nil && ctx.Err() != nil {
		// shutdown interrupted the run; leave it for the next worker
		if _, rerr := e.evalRepo.Requeue(runID); rerr != nil {
			log.Error("Failed to requeue interrupted evaluation run", zap.Error(rerr))
		}
		log.Warn("Evaluation run interrupted, requeued", zap.Error(err))
		return fmt.Errorf("evaluation run interrupted: %w", ctx.Err())
	}
	if err != nil {
		if uerr := e.evalRepo.UpdateError(runID, err.Error()); uerr != nil {
			log.Error("Failed to record evaluation error", zap.Error(uerr))
		}
		return err
	}

	buf, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := e.evalRepo.UpdateMetrics(runID, datatypes.JSON(buf)); err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}

	log.Info("Evaluation run completed",
		zap.Int("evaluated", metrics.Evaluated),
		zap.Int("skipped", metrics.Skipped),
		zap.Int("failed", metrics.Failed),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("f1", metrics.F1))
	return nil
}

func (e *evaluationRunner) evaluate(ctx context.Context, runID uuid.UUID, log *zap.Logger) (*models.EvaluationMetrics, error) {
	run, err := e.evalRepo.FindByID(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	// configuration snapshot for the whole run
	cfg, err := e.configService.Get(ctx, run.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load LLM configuration: %w", err)
	}
	settings := SettingsFromConfig(cfg)

	data, err := e.storage.Get(ctx, run.DatasetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	ds, err := ParseDataset(data)
	if err != nil {
		return nil, err
	}

	var rules models.LabelRules
	if err := json.Unmarshal(run.LabelRules, &rules); err != nil {
		return nil, fmt.Errorf("invalid label rules: %w", err)
	}
	mapper, err := newLabelMapper(rules)
	if err != nil {
		return nil, err
	}

	cvIdx, err := ds.ColumnIndex(run.CVColumn)
	if err != nil {
		return nil, err
	}
	jdIdx, err := ds.ColumnIndex(run.JDColumn)
	if err != nil {
		return nil, err
	}
	labelIdx, err := ds.ColumnIndex(run.LabelColumn)
	if err != nil {
		return nil, err
	}

	var pairs [][2]string
	var labels []bool
	skipped := 0
	for _, row := range ds.Rows {
		positive, ok := mapper.Resolve(row[labelIdx])
		cv, jd := strings.TrimSpace(row[cvIdx]), strings.TrimSpace(row[jdIdx])
		if !ok || cv == "" || jd == "" {
			skipped++
			continue
		}
		pairs = append(pairs, [2]string{cv, jd})
		labels = append(labels, positive)
	}

	log.Info("Scoring dataset rows",
		append(logger.CommonFields(string(settings.Provider), settings.Model),
			zap.Int("pairs", len(pairs)), zap.Int("skipped", skipped))...)

	results, errs := e.matcher.MatchPairs(ctx, settings, pairs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var expected, predicted []bool
	var firstErr error
	failed := 0
	for i := range pairs {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		expected = append(expected, labels[i])
		predicted = append(predicted, results[i].Score >= run.Threshold)
	}

	if len(pairs) > 0 && len(expected) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAllMatchesFailed, llm.Describe(settings, firstErr))
	}

	metrics := ComputeMetrics(expected, predicted)
	metrics.Total = len(ds.Rows)
	metrics.Skipped = skipped
	metrics.Failed = failed
	return &metrics, nil
}
