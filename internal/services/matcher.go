package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/models"
)

// ErrAllMatchesFailed is returned by MatchMany when no CV could be scored.
var ErrAllMatchesFailed = errors.New("all matches failed")

type MatcherOptions struct {
	CallTimeout time.Duration
	Concurrency int
	// RatePerSecond caps outbound LLM calls; zero disables the limiter.
	RatePerSecond float64
	// BatchTimeout bounds a whole MatchMany call; zero means no bound.
	BatchTimeout time.Duration
}

type MatchInput struct {
	ID       uint
	Filename string
	Text     string
}

type RankedMatch struct {
	CVID     uint
	Filename string
	Index    int
	Result   *models.MatchResult
}

type MatchFailure struct {
	CVID  uint
	Index int
	Err   error
}

type MatchBatch struct {
	Results []RankedMatch
	Failed  []MatchFailure
}

type Matcher struct {
	generator    llm.Generator
	prompts      *PromptBuilder
	callTimeout  time.Duration
	batchTimeout time.Duration
	concurrency  int
	limiter      *rate.Limiter
	log          *zap.Logger
}

func NewMatcher(generator llm.Generator, opts MatcherOptions, log *zap.Logger) *Matcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 60 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	return &Matcher{
		generator:   generator,
		prompts:     NewPromptBuilder(),
		callTimeout:  opts.CallTimeout,
		batchTimeout: opts.BatchTimeout,
		concurrency:  opts.Concurrency,
		limiter:      limiter,
		log:          logger.OrNop(log),
	}
}

// MatchOne scores a single CV against a job description.
func (m *Matcher) MatchOne(ctx context.Context, s llm.Settings, cvText, jdText string) (*models.MatchResult, error) {
	if strings.TrimSpace(cvText) == "" {
		return nil, &llm.ValidationError{Field: "cv_text", Message: "must not be empty"}
	}
	if strings.TrimSpace(jdText) == "" {
		return nil, &llm.ValidationError{Field: "jd_text", Message: "must not be empty"}
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	raw, err := m.generator.Generate(callCtx, s, m.prompts.BuildMatchPrompt(cvText, jdText))
	if err != nil {
		var pe *llm.ProviderError
		if !errors.As(err, &pe) && callCtx.Err() != nil && ctx.Err() == nil {
			err = &llm.ProviderError{
				Provider: s.Provider,
				Kind:     llm.ErrProviderUnavailable,
				Message:  "model call timed out",
				Err:      err,
			}
		}
		return nil, err
	}

	result, err := ParseMatchResponse(raw)
	if err != nil {
		m.log.Warn("Unparseable model reply",
			append(logger.CommonFields(string(s.Provider), s.Model),
				zap.String("reply", logger.TruncateForLog(raw, 300)))...)
		return nil, err
	}
	if len(result.Issues) > 0 {
		m.log.Debug("Model reply defaulted fields",
			append(logger.CommonFields(string(s.Provider), s.Model), zap.Strings("issues", result.Issues))...)
	}
	return result, nil
}

// MatchPairs scores each (cv, jd) pair with bounded concurrency. The returned
// slices are indexed like pairs; exactly one of results[i] and errs[i] is set.
func (m *Matcher) MatchPairs(ctx context.Context, s llm.Settings, pairs [][2]string) ([]*models.MatchResult, []error) {
	results := make([]*models.MatchResult, len(pairs))
	errs := make([]error, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, pair := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = m.MatchOne(gctx, s, pair[0], pair[1])
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}

// MatchMany scores every CV against one job description and returns the
// successes sorted by score, highest first. Failed items are reported in
// MatchBatch.Failed; ErrAllMatchesFailed is returned only when none succeeded.
func (m *Matcher) MatchMany(ctx context.Context, s llm.Settings, items []MatchInput, jdText string) (*MatchBatch, error) {
	batch := &MatchBatch{Results: []RankedMatch{}, Failed: []MatchFailure{}}
	if len(items) == 0 {
		return batch, nil
	}
	if strings.TrimSpace(jdText) == "" {
		return nil, &llm.ValidationError{Field: "jd_text", Message: "must not be empty"}
	}

	pairs := make([][2]string, len(items))
	for i, item := range items {
		pairs[i] = [2]string{item.Text, jdText}
	}

	if m.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.batchTimeout)
		defer cancel()
	}

	started := time.Now()
	results, errs := m.MatchPairs(ctx, s, pairs)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("match batch of %d CVs: %w", len(items), err)
	}

	for i, item := range items {
		if errs[i] != nil {
			batch.Failed = append(batch.Failed, MatchFailure{CVID: item.ID, Index: i, Err: errs[i]})
			m.log.Warn("CV match failed",
				append(logger.CommonFields(string(s.Provider), s.Model),
					zap.Uint("cv_id", item.ID), zap.Error(errs[i]))...)
			continue
		}
		batch.Results = append(batch.Results, RankedMatch{
			CVID:     item.ID,
			Filename: item.Filename,
			Index:    i,
			Result:   results[i],
		})
	}

	sort.SliceStable(batch.Results, func(a, b int) bool {
		return batch.Results[a].Result.Score > batch.Results[b].Result.Score
	})

	m.log.Info("Batch match finished",
		append(logger.CommonFields(string(s.Provider), s.Model),
			zap.Int("total", len(items)),
			zap.Int("succeeded", len(batch.Results)),
			zap.Int("failed", len(batch.Failed)),
			zap.Duration("elapsed", time.Since(started)))...)

	if len(batch.Results) == 0 {
		return nil, fmt.Errorf("%w: %d of %d: %w", ErrAllMatchesFailed, len(batch.Failed), len(items), batch.Failed[0].Err)
	}
	return batch, nil
}
