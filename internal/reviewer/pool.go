package reviewer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/router"
	"github.com/ppiankov/peerpanel/internal/worker"
)

// AgentFactory builds the agent for one facet. It is called once per task,
// so every task gets its own generator client.
type AgentFactory func(f model.Facet) (Agent, error)

// NewAgentFactory returns a factory creating FacetAgents with fresh generators
func NewAgentFactory(newGenerator llm.Factory, opts Options) AgentFactory {
	return func(f model.Facet) (Agent, error) {
		gen, err := newGenerator()
		if err != nil {
			return nil, fmt.Errorf("create generator for %s: %w", f, err)
		}
		return NewFacetAgent(f, gen, opts), nil
	}
}

// Outcome is the result of one facet task
type Outcome struct {
	Facet    model.Facet
	Points   []model.Point
	Err      error
	Duration time.Duration
}

// GetError implements worker.Result
func (o *Outcome) GetError() error {
	return o.Err
}

type reviewJob struct {
	facet   model.Facet
	text    string
	paper   *model.Paper
	factory AgentFactory
}

// Execute runs one agent. Errors and panics become a failed outcome for
// this facet only.
func (j *reviewJob) Execute(ctx context.Context) (result worker.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = &Outcome{Facet: j.facet, Err: fmt.Errorf("agent panicked: %v", r), Duration: time.Since(start)}
		}
	}()

	agent, err := j.factory(j.facet)
	if err != nil {
		return &Outcome{Facet: j.facet, Err: err, Duration: time.Since(start)}
	}
	points, err := agent.Review(ctx, j.paper, j.text)
	return &Outcome{Facet: j.facet, Points: points, Err: err, Duration: time.Since(start)}
}

// Pool runs one reviewer task per routed facet on a fixed-size worker pool
type Pool struct {
	factory AgentFactory
	workers int
	logger  *zap.Logger
}

// NewPool creates a reviewer pool with the given width
func NewPool(factory AgentFactory, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{factory: factory, workers: workers, logger: logger}
}

// Run reviews every routed facet. Outcomes come back in routing order
// whatever order the tasks finished in. A failed task yields an outcome with
// Err set and no points.
func (p *Pool) Run(ctx context.Context, paper *model.Paper, routing router.Routing) []Outcome {
	if len(routing) == 0 {
		return nil
	}

	jobs := make([]worker.Job, len(routing))
	for i, route := range routing {
		jobs[i] = &reviewJob{facet: route.Facet, text: route.Text, paper: paper, factory: p.factory}
	}

	pool := worker.NewPoolWithContext(ctx, p.workers)
	results := pool.Run(jobs)

	byFacet := make(map[model.Facet]*Outcome, len(results))
	for _, r := range results {
		o, ok := r.(*Outcome)
		if !ok {
			// Pool-level failure with no facet attached
			p.logger.Warn("reviewer task failed", zap.Error(r.GetError()))
			continue
		}
		byFacet[o.Facet] = o
	}

	outcomes := make([]Outcome, 0, len(routing))
	for _, route := range routing {
		o, ok := byFacet[route.Facet]
		if !ok {
			o = &Outcome{Facet: route.Facet, Err: fmt.Errorf("not run: %w", context.Cause(ctx))}
		}
		if o.Err != nil {
			p.logger.Warn("reviewer agent failed, contributing zero points",
				zap.String("facet", string(o.Facet)),
				zap.Error(o.Err))
			o.Points = nil
		} else {
			p.logger.Debug("reviewer agent finished",
				zap.String("facet", string(o.Facet)),
				zap.Int("points", len(o.Points)),
				zap.Duration("duration", o.Duration))
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes
}

// Points concatenates the points of all outcomes in order
func Points(outcomes []Outcome) []model.Point {
	var points []model.Point
	for _, o := range outcomes {
		points = append(points, o.Points...)
	}
	return points
}

// Failed lists the facets whose task failed
func Failed(outcomes []Outcome) []model.Facet {
	var failed []model.Facet
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o.Facet)
		}
	}
	return failed
}
