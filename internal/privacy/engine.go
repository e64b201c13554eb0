package privacy

import (
	"time"

	"go.uber.org/zap"
)

// Timer receives the duration of every finder invocation
type Timer interface {
	ObserveFinder(name string, d time.Duration)
}

// Engine runs an ordered list of finders against a value and stops at the
// first finder that reports a match.
type Engine struct {
	finders []Finder
	timer   Timer
	logger  *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithTimer records per-finder latency
func WithTimer(t Timer) Option {
	return func(e *Engine) {
		e.timer = t
	}
}

// WithLogger sets the logger used to report misbehaving finders
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine that evaluates finders in the given order
func NewEngine(finders []Finder, opts ...Option) *Engine {
	e := &Engine{
		finders: append([]Finder(nil), finders...),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Find returns the matches of the first finder that matches input. The
// result holds at most one finder name.
func (e *Engine) Find(input string) Findings {
	findings := Findings{}
	for _, finder := range e.finders {
		matches := e.run(finder, input)
		if len(matches) > 0 {
			findings[finder.Name()] = append(findings[finder.Name()], matches...)
			break
		}
	}
	return findings
}

// FindAll applies Find to every input and merges the results by finder
// name, keeping input order within each name.
func (e *Engine) FindAll(inputs []string) Findings {
	findings := Findings{}
	for _, input := range inputs {
		findings.Merge(e.Find(input))
	}
	return findings
}

// FinderNames returns the finder names in evaluation order, without duplicates
func (e *Engine) FinderNames() []string {
	seen := make(map[string]bool, len(e.finders))
	names := make([]string, 0, len(e.finders))
	for _, finder := range e.finders {
		if !seen[finder.Name()] {
			seen[finder.Name()] = true
			names = append(names, finder.Name())
		}
	}
	return names
}

// run invokes a single finder; a panicking finder yields no matches
func (e *Engine) run(finder Finder, input string) (matches []string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Finder failed",
				zap.String("finder", finder.Name()),
				zap.Any("panic", r))
			matches = nil
		}
		if e.timer != nil {
			e.timer.ObserveFinder(finder.Name(), time.Since(start))
		}
	}()

	return finder.Find(input)
}
