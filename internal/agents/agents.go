// Package agents implements the three advisory strategies. Every agent asks
// the advisory backend first and substitutes a deterministic fallback when the
// call fails, times out or returns output that does not validate. Agents
// never return advisory errors to their callers.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/jordanhubbard/cogload/internal/metrics"
	"github.com/jordanhubbard/cogload/internal/provider"
)

var (
	// ErrAdvisory marks a failed or timed-out advisory call
	ErrAdvisory = errors.New("advisory failure")

	// ErrParse marks an advisory response that does not match the expected schema
	ErrParse = errors.New("advisory response parse failure")
)

// DefaultTimeout bounds each advisory call
const DefaultTimeout = 20 * time.Second

// Config tunes the agents
type Config struct {
	Timeout  time.Duration    `yaml:"timeout"`
	Focus    provider.Options `yaml:"focus"`
	Planning provider.Options `yaml:"planning"`
	Guard    provider.Options `yaml:"interrupt_guard"`
}

// DefaultConfig returns the calibrated temperatures and token limits
func DefaultConfig() Config {
	return Config{
		Timeout:  DefaultTimeout,
		Focus:    provider.Options{Temperature: 0.2, MaxTokens: 500},
		Planning: provider.Options{Temperature: 0.3, MaxTokens: 800},
		Guard:    provider.Options{Temperature: 0.2, MaxTokens: 500},
	}
}

// Meta describes how an agent produced its output
type Meta struct {
	UsedFallback bool
	Cause        error // why the fallback ran, nil otherwise
	Duration     time.Duration
}

// validator is implemented by every advisory response schema
type validator interface {
	validate() error
}

// advisor is the shared advisory call path
type advisor struct {
	name      string
	completer provider.Completer
	timeout   time.Duration
	opts      provider.Options
	metrics   *metrics.Metrics
}

func newAdvisor(name string, c provider.Completer, timeout time.Duration, opts provider.Options, m *metrics.Metrics) advisor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return advisor{name: name, completer: c, timeout: timeout, opts: opts, metrics: m}
}

// ask runs one bounded advisory call and decodes the reply into out
func (a advisor) ask(ctx context.Context, system, prompt string, out validator) error {
	if a.completer == nil {
		return fmt.Errorf("%w: no advisory backend configured", ErrAdvisory)
	}
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.completer.Complete(callCtx, system, prompt, a.opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAdvisory, err)
	}
	return decode(text, out)
}

// finish records the run and logs a fallback cause
func (a advisor) finish(start time.Time, cause error) Meta {
	meta := Meta{UsedFallback: cause != nil, Cause: cause, Duration: time.Since(start)}
	if cause != nil {
		log.Printf("[Agents] %s agent using fallback: %v", a.name, cause)
	}
	a.metrics.RecordAgentRun(a.name, meta.UsedFallback, meta.Duration.Seconds())
	return meta
}

var fencePattern = regexp.MustCompile("```(?:json)?\\n?|\\n?```")

// cleanResponse strips markdown code fences around a JSON reply
func cleanResponse(text string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
}

// decode is the validated decode step: malformed JSON or a schema mismatch yields ErrParse
func decode(text string, out validator) error {
	if err := json.Unmarshal([]byte(cleanResponse(text)), out); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := out.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	return nil
}

// roundHalfUp rounds .5 toward positive infinity
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func requireActions(actions []string) error {
	if actions == nil {
		return errors.New("suggestedActions is required")
	}
	for _, a := range actions {
		if strings.TrimSpace(a) == "" {
			return errors.New("suggestedActions contains an empty entry")
		}
	}
	return nil
}
