package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tutorjudge/internal/judge/driver"
	"tutorjudge/internal/judge/model"
	"tutorjudge/pkg/errors"
	"tutorjudge/pkg/utils/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultJudge0Endpoint = "https://judge0-ce.p.rapidapi.com"
	defaultJudge0Host     = "judge0-ce.p.rapidapi.com"
	maxResponseBytes      = 8 << 20
)

// DefaultLanguageIDs are the Judge0 CE language ids.
var DefaultLanguageIDs = map[model.Language]int{
	model.JavaScript: 93,
	model.Python:     71,
	model.Java:       62,
	model.Cpp:        54,
	model.TypeScript: 94,
}

// Judge0Config configures the remote client.
type Judge0Config struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
	APIHost  string `yaml:"apiHost"`
	// WaitOverhead is added to the program time limit to bound one HTTP attempt.
	WaitOverhead time.Duration `yaml:"waitOverhead"`
	MaxAttempts  int           `yaml:"maxAttempts"`
	RetryBase    time.Duration `yaml:"retryBase"`
	RetryMax     time.Duration `yaml:"retryMax"`
	// RatePerSecond and Burst throttle outbound submissions.
	RatePerSecond float64        `yaml:"ratePerSecond"`
	Burst         int            `yaml:"burst"`
	LanguageIDs   map[string]int `yaml:"languageIds"`
}

// DefaultJudge0Config returns production defaults without credentials.
func DefaultJudge0Config() Judge0Config {
	return Judge0Config{
		Endpoint:      defaultJudge0Endpoint,
		APIHost:       defaultJudge0Host,
		WaitOverhead:  10 * time.Second,
		MaxAttempts:   3,
		RetryBase:     500 * time.Millisecond,
		RetryMax:      4 * time.Second,
		RatePerSecond: 5,
		Burst:         5,
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Judge0Client submits programs to Judge0 and waits for the verdict in the
// same request.
type Judge0Client struct {
	cfg         Judge0Config
	httpClient  *http.Client
	limiter     *rate.Limiter
	sleep       Sleeper
	languageIDs map[model.Language]int
}

// Judge0Option customizes a client.
type Judge0Option func(*Judge0Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Judge0Option {
	return func(j *Judge0Client) { j.httpClient = c }
}

// WithSleeper replaces the wait used between attempts and for rate limiting.
func WithSleeper(s Sleeper) Judge0Option {
	return func(j *Judge0Client) { j.sleep = s }
}

// WithLimiter replaces the outbound rate limiter.
func WithLimiter(l *rate.Limiter) Judge0Option {
	return func(j *Judge0Client) { j.limiter = l }
}

// NewJudge0Client builds a client; zero config fields take defaults.
func NewJudge0Client(cfg Judge0Config, opts ...Judge0Option) *Judge0Client {
	def := DefaultJudge0Config()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.APIHost == "" {
		cfg.APIHost = def.APIHost
	}
	if cfg.WaitOverhead <= 0 {
		cfg.WaitOverhead = def.WaitOverhead
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = def.RetryMax
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	ids := make(map[model.Language]int, len(DefaultLanguageIDs))
	for lang, id := range DefaultLanguageIDs {
		ids[lang] = id
	}
	for name, id := range cfg.LanguageIDs {
		if lang, ok := model.ParseLanguage(name); ok && id > 0 {
			ids[lang] = id
		}
	}

	c := &Judge0Client{
		cfg:         cfg,
		httpClient:  &http.Client{},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		sleep:       sleepContext,
		languageIDs: ids,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Judge0Client) Configured() bool {
	return c.cfg.APIKey != ""
}

type judge0Request struct {
	LanguageID      int     `json:"language_id"`
	SourceCode      string  `json:"source_code"`
	Stdin           string  `json:"stdin"`
	CPUTimeLimit    float64 `json:"cpu_time_limit"`
	WallTimeLimit   float64 `json:"wall_time_limit"`
	MemoryLimit     int     `json:"memory_limit"`
	CompilerOptions string  `json:"compiler_options,omitempty"`
}

type judge0Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type judge0Response struct {
	Stdout        *string       `json:"stdout"`
	Stderr        *string       `json:"stderr"`
	CompileOutput *string       `json:"compile_output"`
	Message       *string       `json:"message"`
	Time          *string       `json:"time"`
	Memory        *int64        `json:"memory"`
	Status        *judge0Status `json:"status"`
}

// transientError marks a failure worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// errAttemptTimeout marks an attempt that outlived the wait bound.
var errAttemptTimeout = stderrors.New("judge0 attempt exceeded wait bound")

// Execute submits prog, retrying transient failures with exponential backoff.
// A definitive rejection returns BackendRejected; exhausted retries return
// BackendUnavailable.
func (c *Judge0Client) Execute(ctx context.Context, prog driver.Program, limits model.Limits) (RawResult, error) {
	langID, ok := c.languageIDs[prog.Language]
	if !ok {
		return RawResult{}, errors.Newf(errors.LanguageNotSupported, "language %q has no judge0 id", prog.Language)
	}
	body, err := json.Marshal(c.buildRequest(langID, prog, limits))
	if err != nil {
		return RawResult{}, errors.Wrap(err, errors.InternalServerError)
	}

	schedule := c.schedule()
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.waitForSlot(ctx); err != nil {
			return RawResult{}, err
		}

		start := time.Now()
		res, err := c.attempt(ctx, body, limits)
		elapsed := time.Since(start)
		if err == nil {
			logger.Debug(ctx, "judge0 submission finished",
				zap.String("language", prog.Language.String()),
				zap.Int("attempt", attempt),
				zap.Int("status_id", res.StatusCode),
				zap.Duration("elapsed", elapsed),
			)
			return res, nil
		}
		if stderrors.Is(err, errAttemptTimeout) {
			logger.Warn(ctx, "judge0 submission exceeded wait bound",
				zap.String("language", prog.Language.String()),
				zap.Duration("elapsed", elapsed),
			)
			return TimeoutResult(SourceRemote, elapsed.Seconds()), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RawResult{}, ctxErr
		}

		var transient *transientError
		if !stderrors.As(err, &transient) {
			logger.Warn(ctx, "judge0 rejected submission", zap.Error(err))
			return RawResult{}, err
		}
		lastErr = err
		if attempt == c.cfg.MaxAttempts {
			break
		}
		delay := schedule.NextBackOff()
		logger.Warn(ctx, "judge0 submission failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return RawResult{}, err
		}
	}
	return RawResult{}, errors.Wrapf(lastErr, errors.BackendUnavailable,
		"judge0 unavailable after %d attempts: %v", c.cfg.MaxAttempts, lastErr)
}

// schedule returns a deterministic exponential backoff.
func (c *Judge0Client) schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryBase
	b.MaxInterval = c.cfg.RetryMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (c *Judge0Client) waitForSlot(ctx context.Context) error {
	r := c.limiter.Reserve()
	if !r.OK() {
		return errors.New(errors.TooManyRequests).WithMessage("judge0 rate limit cannot be satisfied")
	}
	if delay := r.Delay(); delay > 0 {
		if err := c.sleep(ctx, delay); err != nil {
			r.Cancel()
			return err
		}
	}
	return nil
}

func (c *Judge0Client) buildRequest(langID int, prog driver.Program, limits model.Limits) judge0Request {
	cpu := limits.Time.Seconds()
	req := judge0Request{
		LanguageID:    langID,
		SourceCode:    base64.StdEncoding.EncodeToString([]byte(prog.Source)),
		Stdin:         "",
		CPUTimeLimit:  cpu,
		WallTimeLimit: math.Min(cpu+2, 20),
		MemoryLimit:   limits.MemoryKB,
	}
	if prog.Language == model.Cpp {
		req.CompilerOptions = driver.CppCompilerOptions
	}
	return req
}

func (c *Judge0Client) attempt(ctx context.Context, body []byte, limits model.Limits) (RawResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, limits.Time+c.cfg.WaitOverhead)
	defer cancel()

	url := c.cfg.Endpoint + "/submissions?base64_encoded=true&wait=true"
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return RawResult{}, errors.Wrap(err, errors.InternalServerError)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.cfg.APIHost)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return RawResult{}, errAttemptTimeout
		}
		return RawResult{}, &transientError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return RawResult{}, errAttemptTimeout
		}
		return RawResult{}, &transientError{err: fmt.Errorf("read response body failed: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return RawResult{}, &transientError{err: fmt.Errorf("judge0 returned HTTP %d", resp.StatusCode)}
	case isHTML(resp.Header.Get("Content-Type"), payload):
		return RawResult{}, &transientError{err: fmt.Errorf("judge0 returned an HTML page with HTTP %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return RawResult{}, errors.Newf(errors.BackendRejected, "judge0 returned HTTP %d: %s",
			resp.StatusCode, truncate(string(payload), 200)).
			WithDetail("http_status", resp.StatusCode)
	}

	var parsed judge0Response
	if err := json.Unmarshal(payload, &parsed); err != nil || parsed.Status == nil {
		return RawResult{}, errors.Newf(errors.BackendBadResponse, "judge0 response is not a submission: %s",
			truncate(string(payload), 200))
	}
	return decodeJudge0(parsed), nil
}

func decodeJudge0(r judge0Response) RawResult {
	res := RawResult{
		Stdout:            decodeField(r.Stdout),
		Stderr:            decodeField(r.Stderr),
		CompileOutput:     decodeField(r.CompileOutput),
		StatusCode:        r.Status.ID,
		StatusDescription: r.Status.Description,
		Source:            SourceRemote,
	}
	if res.Stderr == "" && res.StatusCode != model.StatusAccepted {
		res.Stderr = strings.TrimSpace(decodeField(r.Message))
	}
	if r.Time != nil {
		if t, err := strconv.ParseFloat(*r.Time, 64); err == nil {
			res.TimeSeconds = t
		}
	}
	if r.Memory != nil {
		res.MemoryKB = *r.Memory
	}
	return res
}

// decodeField decodes a base64 field; Judge0 wraps encoded output at 60
// columns. Undecodable text is returned as is.
func decodeField(s *string) string {
	if s == nil {
		return ""
	}
	compact := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, *s)
	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return *s
	}
	return string(decoded)
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
