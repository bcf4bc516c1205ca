// Package research assembles keyword research bundles from several
// completion requests per keyword.
package research

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rankwise/internal/extract"
	"rankwise/internal/llm"
	"rankwise/internal/models"
	"rankwise/internal/validation"
)

// DefaultMaxKeywords caps the keywords of one batch.
const DefaultMaxKeywords = 5

var (
	// ErrNoData means no signal at all was recovered for a keyword.
	ErrNoData = errors.New("no research data recovered")
	// ErrNoKeywords means a batch had no usable keyword.
	ErrNoKeywords = errors.New("no keywords to analyze")
)

// Signal outcomes reported to the Observer.
const (
	OutcomeUnavailable = "unavailable"
	OutcomeParseFailed = "parse_failed"
)

// Observer receives one call per completion request with the signal name
// and its outcome: OutcomeUnavailable, OutcomeParseFailed, or the
// extract.Outcome string of a recovered payload.
type Observer interface {
	ObserveSignal(signal, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveSignal(string, string) {}

type Config struct {
	MaxKeywords int
	Options     llm.Options
	// Aliases extends SignalAliases.
	Aliases extract.Aliases
}

// Analyzer runs the per-keyword task graph: ranking, competitors and volume
// concurrently, then traffic once the volume is known.
type Analyzer struct {
	client      llm.Client
	aliases     extract.Aliases
	opts        llm.Options
	maxKeywords int
	observer    Observer
	logger      *zap.Logger
}

func NewAnalyzer(client llm.Client, cfg Config, observer Observer, logger *zap.Logger) *Analyzer {
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = DefaultMaxKeywords
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		client:      client,
		aliases:     SignalAliases.Merge(cfg.Aliases),
		opts:        cfg.Options,
		maxKeywords: cfg.MaxKeywords,
		observer:    observer,
		logger:      logger,
	}
}

// MaxKeywords returns the batch cap.
func (a *Analyzer) MaxKeywords() int { return a.maxKeywords }

// Analyze builds the bundle for one keyword. A failed sub-request only
// leaves its fields empty. ErrNoData is returned when every field is empty;
// validation.ErrInvalidTarget when targetURL is unusable.
func (a *Analyzer) Analyze(ctx context.Context, targetURL, keyword string) (models.ResearchBundle, error) {
	target, err := validation.NormalizeTargetURL(targetURL)
	if err != nil {
		return models.ResearchBundle{}, err
	}
	keyword = validation.NormalizeKeyword(keyword)
	if !validation.ValidateKeyword(keyword) {
		return models.ResearchBundle{}, ErrNoKeywords
	}
	return a.analyze(ctx, target, keyword)
}

func (a *Analyzer) analyze(ctx context.Context, target *url.URL, keyword string) (models.ResearchBundle, error) {
	site := target.String()
	bundle := models.ResearchBundle{Keyword: keyword, TopCompetitors: []string{}}

	var (
		ranking     rankingSignal
		competitors []string
		volume      *int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if payload, ok := a.complete(gctx, SignalRanking, keyword, rankingPrompt(site, keyword)); ok {
			ranking = parseRanking(a.aliases, payload, target)
		}
		return gctx.Err()
	})
	g.Go(func() error {
		if payload, ok := a.complete(gctx, SignalCompetitors, keyword, competitorsPrompt(site, keyword)); ok {
			competitors = parseCompetitors(a.aliases, payload)
		}
		return gctx.Err()
	})
	g.Go(func() error {
		if payload, ok := a.complete(gctx, SignalVolume, keyword, volumePrompt(keyword)); ok {
			volume = parseCount(a.aliases, payload, FieldMonthlySearches)
		}
		return gctx.Err()
	})
	// signal failures only leave fields empty; the group fails on cancellation
	if err := g.Wait(); err != nil {
		return models.ResearchBundle{}, err
	}

	var (
		daily      *int64
		difficulty *models.Difficulty
	)
	if payload, ok := a.complete(ctx, SignalTraffic, keyword, trafficPrompt(site, keyword, volume)); ok {
		daily = parseCount(a.aliases, payload, FieldDailyVisitors)
		difficulty = parseDifficulty(a.aliases, payload)
	}
	if daily == nil && volume != nil {
		estimate := estimateDailyVisitors(*volume)
		daily = &estimate
	}

	bundle.RankingPage = ranking.page
	bundle.RankingPosition = ranking.position
	bundle.RankingPageNumber = ranking.pageNumber
	bundle.MonthlySearches = volume
	bundle.DailyVisitors = daily
	bundle.Difficulty = difficulty
	if competitors != nil {
		bundle.TopCompetitors = competitors
	}

	if bundle.IsEmpty() {
		return bundle, ErrNoData
	}
	return bundle, nil
}

// AnalyzeBatch analyzes up to MaxKeywords keywords for one target, one at a
// time in input order. Keywords are trimmed and de-duplicated case-insensitively
// first. Per-keyword failures are collected in Errors; only an invalid target,
// an empty keyword list or a cancelled context fail the whole batch.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, targetURL string, keywords []string) (models.ResearchBatch, error) {
	target, err := validation.NormalizeTargetURL(targetURL)
	if err != nil {
		return models.ResearchBatch{}, err
	}

	keywords = a.NormalizeKeywords(keywords)
	if len(keywords) == 0 {
		return models.ResearchBatch{}, ErrNoKeywords
	}

	batch := models.ResearchBatch{
		TargetURL: target.String(),
		Results:   make([]models.ResearchBundle, 0, len(keywords)),
		Errors:    []models.KeywordError{},
	}

	for _, keyword := range keywords {
		bundle, err := a.analyze(ctx, target, keyword)
		switch {
		case err == nil:
			batch.Results = append(batch.Results, bundle)
		case errors.Is(err, ErrNoData):
			batch.Errors = append(batch.Errors, models.KeywordError{
				Keyword: keyword,
				Code:    "no_data",
				Error:   "No research data could be recovered for this keyword",
			})
		default:
			return batch, fmt.Errorf("analyzing %q: %w", keyword, err)
		}
	}

	a.logger.Info("research batch complete",
		zap.String("target", batch.TargetURL),
		zap.Int("keywords", len(keywords)),
		zap.Int("results", len(batch.Results)),
		zap.Int("errors", len(batch.Errors)),
	)
	return batch, nil
}

// NormalizeKeywords trims, drops blanks and invalid entries, de-duplicates
// case-insensitively and caps the list at MaxKeywords.
func (a *Analyzer) NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, min(len(keywords), a.maxKeywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = validation.NormalizeKeyword(k)
		if !validation.ValidateKeyword(k) {
			continue
		}
		key := strings.ToLower(k)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
		if len(out) == a.maxKeywords {
			break
		}
	}
	return out
}

func (a *Analyzer) complete(ctx context.Context, signal, keyword string, msgs []llm.Message) (any, bool) {
	text, err := a.client.Complete(ctx, msgs, a.opts)
	if err != nil {
		a.observer.ObserveSignal(signal, OutcomeUnavailable)
		a.logger.Debug("research signal unavailable",
			zap.String("signal", signal),
			zap.String("keyword", keyword),
			zap.Error(err),
		)
		return nil, false
	}

	payload, outcome := extract.ParsePayload(text)
	if !outcome.OK() {
		a.observer.ObserveSignal(signal, OutcomeParseFailed)
		a.logger.Debug("research signal unparseable",
			zap.String("signal", signal),
			zap.String("keyword", keyword),
			zap.Int("chars", len(text)),
		)
		return nil, false
	}

	a.observer.ObserveSignal(signal, outcome.String())
	return payload, true
}
