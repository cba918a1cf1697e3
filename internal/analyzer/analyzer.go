// Package analyzer orchestrates page analysis across the configured
// providers: it builds prompts, retries transient failures with backoff,
// escalates timeouts, and falls through to the next provider when one is
// exhausted.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okibee/mangalens/internal/analysis"
	"github.com/okibee/mangalens/internal/apperrors"
	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/imaging"
	"github.com/okibee/mangalens/internal/language"
	"github.com/okibee/mangalens/internal/llmjson"
	"github.com/okibee/mangalens/internal/logger"
	"github.com/okibee/mangalens/internal/provider"
)

var defaultQPS = 3
var defaultRampUp = 2 * time.Second

// State represents the current state of a page analysis.
type State int

const (
	StateStarted State = iota
	StateRetrying
	StateCompleted
	StateFailed
	StateCanceled
)

// Progress reports analysis progress to the caller. PageIndex is -1 for
// single-page runs and for batch-level cancellation events.
type Progress struct {
	PageIndex  int
	TotalPages int
	Provider   string
	Attempt    int
	State      State
	Error      error
}

// Options carries the analysis settings the orchestrator needs.
type Options struct {
	Features          config.Features
	Source            language.Language
	Target            language.Language
	RequestTimeout    time.Duration
	MaxAttempts       int
	TimeoutEscalation float64
	Concurrency       int
	MaxOutputTokens   int
	Temperature       float32
	Names             map[string]string
}

// Analyzer runs page analysis against an ordered list of provider clients.
// The first client is the primary; the rest are fallbacks.
type Analyzer struct {
	clients []provider.Client
	opts    Options
	usage   provider.Usage
	usageMu sync.Mutex
}

// New creates an Analyzer. clients must be in fallback priority order.
func New(clients []provider.Client, opts Options) (*Analyzer, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("at least one provider client is required")
	}
	if opts.MaxAttempts <= 0 {
		return nil, fmt.Errorf("maxAttempts must be greater than 0, got %d", opts.MaxAttempts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Analyzer{clients: clients, opts: opts}, nil
}

func (a *Analyzer) addUsage(u provider.Usage) {
	a.usageMu.Lock()
	a.usage.Add(u)
	a.usageMu.Unlock()
}

// Usage returns the total token usage across all requests so far.
func (a *Analyzer) Usage() provider.Usage {
	a.usageMu.Lock()
	defer a.usageMu.Unlock()
	return a.usage
}

// request runs one provider request with per-attempt timeout.
func (a *Analyzer) request(ctx context.Context, client provider.Client, req provider.Request, attempt int) (*provider.Response, error) {
	timeout := attemptTimeout(a.opts.RequestTimeout, a.opts.TimeoutEscalation, attempt)
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := client.Analyze(reqCtx, req)
	if resp != nil {
		a.addUsage(resp.Usage)
	}
	// A per-attempt deadline is retryable even though the outer context
	// is still live.
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.Transient(err)
	}
	return resp, err
}

// runProviders tries each client in order, retrying within a client before
// moving on. parse converts a raw reply into the result or fails with a
// validation error, which also counts as retryable. The last raw reply text
// is returned for fallback handling when every parse fails.
func (a *Analyzer) runProviders(ctx context.Context, req provider.Request, pageIndex, totalPages int, onProgress func(Progress), parse func(resp *provider.Response) error) (lastText string, lastModel string, lastProvider string, err error) {
	for _, client := range a.clients {
		for attempt := 1; attempt <= a.opts.MaxAttempts; attempt++ {
			if onProgress != nil {
				state := StateStarted
				progressErr := error(nil)
				if attempt > 1 {
					// Retry events carry the error that caused them;
					// started events never do, even after a fallback.
					state = StateRetrying
					progressErr = err
				}
				onProgress(Progress{
					PageIndex:  pageIndex,
					TotalPages: totalPages,
					Provider:   client.Name(),
					Attempt:    attempt,
					State:      state,
					Error:      progressErr,
				})
			}

			var resp *provider.Response
			resp, err = a.request(ctx, client, req, attempt)
			if err == nil {
				lastText = resp.Text
				lastModel = resp.Model
				lastProvider = client.Name()
				err = parse(resp)
			}
			if err == nil {
				if onProgress != nil {
					onProgress(Progress{
						PageIndex:  pageIndex,
						TotalPages: totalPages,
						Provider:   client.Name(),
						Attempt:    attempt,
						State:      StateCompleted,
					})
				}
				return lastText, lastModel, lastProvider, nil
			}

			if ctx.Err() != nil {
				return lastText, lastModel, lastProvider, err
			}
			retry, backoff := retryDecision(err, attempt, a.opts.MaxAttempts)
			if !retry {
				break
			}
			logger.Debug("retrying provider request",
				"provider", client.Name(), "attempt", attempt, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return lastText, lastModel, lastProvider, err
			case <-time.After(backoff):
			}
		}
		logger.Warn("provider exhausted, trying next",
			"provider", client.Name(), "error", err)
	}
	return lastText, lastModel, lastProvider, err
}

// AnalyzePage runs a full text analysis of one page. When every provider's
// replies fail to parse, the raw text of the last reply is returned as a
// fallback result instead of an error so the user still sees the model
// output; its provenance source marks it as unparsed.
func (a *Analyzer) AnalyzePage(ctx context.Context, page *imaging.Page, onProgress func(Progress)) (*analysis.TextAnalysis, error) {
	req := provider.Request{
		Image:           page.Data,
		MIMEType:        page.MIMEType,
		Prompt:          TextUserPrompt(a.opts.Source),
		System:          BuildSystemPrompt(a.opts.Source, a.opts.Target, a.opts.Features, a.opts.Names),
		MaxOutputTokens: a.opts.MaxOutputTokens,
		Temperature:     a.opts.Temperature,
	}

	var result *analysis.TextAnalysis
	lastText, lastModel, lastProvider, err := a.runProviders(ctx, req, -1, 1, onProgress, func(resp *provider.Response) error {
		parsed, parseErr := llmjson.ParseTextAnalysis(resp.Text)
		if parseErr != nil {
			return parseErr
		}
		result = parsed
		return nil
	})
	if err == nil {
		result.Provenance.Provider = lastProvider
		result.Provenance.Model = lastModel
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if lastText != "" {
		logger.Warn("all providers failed to produce parseable analysis, returning raw text",
			"provider", lastProvider, "error", err)
		fb := llmjson.FallbackTextAnalysis(lastText, err)
		fb.Provenance.Provider = lastProvider
		fb.Provenance.Model = lastModel
		return fb, nil
	}
	return nil, err
}

// AnalyzeReading runs a reading-aid analysis of one page. Unlike text
// analysis there is no raw-text fallback: markers without coordinates are
// useless, so an unparseable run is an error.
func (a *Analyzer) AnalyzeReading(ctx context.Context, page *imaging.Page, onProgress func(Progress)) (*analysis.ReadingAnalysis, error) {
	req := provider.Request{
		Image:           page.Data,
		MIMEType:        page.MIMEType,
		Prompt:          ReadingUserPrompt(a.opts.Source),
		System:          BuildReadingSystemPrompt(a.opts.Source, a.opts.Target),
		MaxOutputTokens: a.opts.MaxOutputTokens,
		Temperature:     a.opts.Temperature,
	}

	var result *analysis.ReadingAnalysis
	_, lastModel, lastProvider, err := a.runProviders(ctx, req, -1, 1, onProgress, func(resp *provider.Response) error {
		parsed, parseErr := llmjson.ParseReadingAnalysis(resp.Text)
		if parseErr != nil {
			return parseErr
		}
		result = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Provenance.Provider = lastProvider
	result.Provenance.Model = lastModel
	return result, nil
}

// AnalyzeBatch analyzes pages concurrently with a worker pool. pageIndices
// selects a subset to (re)process; nil means all pages. Returns per-page
// results (nil for failures) and the indices that failed.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, pages []*imaging.Page, pageIndices []int, onProgress func(Progress)) ([]*analysis.TextAnalysis, []int, error) {
	results := make([]*analysis.TextAnalysis, len(pages))
	failedMarks := make([]bool, len(pages))
	processed := make([]bool, len(pages))

	toProcess := make(map[int]bool, len(pages))
	if pageIndices == nil {
		for i := range pages {
			toProcess[i] = true
		}
	} else {
		for _, idx := range pageIndices {
			if idx >= 0 && idx < len(pages) {
				toProcess[idx] = true
			}
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	rateCh, stopRate := newRateLimiter(defaultQPS)
	defer stopRate()

	jobs := make(chan int, len(pages))
	for i := range pages {
		if toProcess[i] {
			jobs <- i
		}
	}
	close(jobs)

	for w := 0; w < a.opts.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			if delay := rampDelay(worker, a.opts.Concurrency, defaultRampUp); delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if rateCh != nil {
					select {
					case <-ctx.Done():
						return
					case <-rateCh:
					}
				}

				pageProgress := func(p Progress) {
					if onProgress == nil {
						return
					}
					p.PageIndex = i
					p.TotalPages = len(pages)
					onProgress(p)
				}
				result, err := a.AnalyzePage(ctx, pages[i], pageProgress)
				mu.Lock()
				if err != nil {
					failedMarks[i] = true
					logger.Error("page analysis failed", "index", i, "path", pages[i].Path, "error", err)
				} else {
					results[i] = result
					processed[i] = true
				}
				mu.Unlock()
				if err != nil && onProgress != nil {
					onProgress(Progress{PageIndex: i, TotalPages: len(pages), State: StateFailed, Error: err})
				}
			}
		}(w)
	}

	wg.Wait()
	if ctx.Err() != nil && onProgress != nil {
		onProgress(Progress{
			PageIndex:  -1,
			TotalPages: len(pages),
			State:      StateCanceled,
			Error:      ctx.Err(),
		})
	}
	for idx := range toProcess {
		if !processed[idx] {
			failedMarks[idx] = true
		}
	}

	var failed []int
	for i, f := range failedMarks {
		if f {
			failed = append(failed, i)
		}
	}
	return results, failed, nil
}
