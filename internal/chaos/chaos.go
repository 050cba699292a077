// internal/chaos/chaos.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendingdesk/internal/app"
)

// Experiment defines a consistency test run against a live library
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	Duration    time.Duration
}

// Metric defines a measurable system property
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action represents a load injection or cleanup step
type Action struct {
	Type       string
	Target     string
	Parameters map[string]interface{}
	Execute    func(context.Context) error
}

// Assertion validates experiment outcome
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

// ExperimentResult captures experiment execution data
type ExperimentResult struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
	FailedAssertions []string               `json:"failed_assertions,omitempty"`
	MTTR             *time.Duration         `json:"mttr,omitempty"`
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Engine orchestrates experiments
type Engine struct {
	// SampleInterval is how often metrics are sampled while observing.
	SampleInterval time.Duration
	// Pause is the wait between experiments of a game day.
	Pause time.Duration

	tracer      trace.Tracer
	lib         *app.Library
	maxActive   int
	out         io.Writer
	experiments []Experiment
	results     []ExperimentResult
	mu          sync.Mutex
}

// NewEngine creates an engine for lib. maxActive is the loan cap lib enforces.
func NewEngine(lib *app.Library, maxActive int, out io.Writer) *Engine {
	return &Engine{
		SampleInterval: time.Second,
		tracer:         otel.Tracer("lendingdesk/chaos"),
		lib:            lib,
		maxActive:      maxActive,
		out:            out,
		experiments:    make([]Experiment, 0),
		results:        make([]ExperimentResult, 0),
	}
}

// RegisterExperiment adds an experiment to the test suite
func (e *Engine) RegisterExperiment(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

// GetExperiments returns the list of registered experiments.
func (e *Engine) GetExperiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

// Results returns the results of every experiment run so far.
func (e *Engine) Results() []ExperimentResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ExperimentResult(nil), e.results...)
}

// RunExperiment executes a single experiment
func (e *Engine) RunExperiment(ctx context.Context, exp Experiment) (*ExperimentResult, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(
			attribute.String("experiment.name", exp.Name),
		),
	)
	defer span.End()

	result := &ExperimentResult{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
		ErrorEvents:    make([]ErrorEvent, 0),
	}

	// Phase 1: Validate steady state
	span.AddEvent("validating_steady_state")
	if valid, violations := e.validateSteadyState(ctx, exp.SteadyState); !valid {
		result.SteadyStateValid = false
		result.Violations = violations
		return result, errors.New("steady state invalid - aborting experiment")
	}
	result.SteadyStateValid = true

	// Phase 2: Inject load
	span.AddEvent("injecting_chaos")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: action.Target,
			})
			span.RecordError(err)
		}
	}

	// Phase 3: Observe system behavior
	span.AddEvent("observing_system")
	observer := &observation{result: result}
	observer.sample(ctx, e, exp.SteadyState)

	observationCtx, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()

	ticker := time.NewTicker(e.SampleInterval)
	defer ticker.Stop()

observe:
	for {
		select {
		case <-observationCtx.Done():
			break observe
		case <-ticker.C:
			observer.sample(ctx, e, exp.SteadyState)
		}
	}

	// Phase 4: Roll back
	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			span.RecordError(err)
		}
	}

	// Phase 5: Validate assertions
	span.AddEvent("validating_assertions")
	result.FailedAssertions = e.validateAssertions(exp.Validation, result)
	result.HypothesisHeld = len(result.FailedAssertions) == 0 && len(result.Violations) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)

	return result, nil
}

// observation tracks threshold breaches and recovery across samples.
type observation struct {
	result        *ExperimentResult
	recoveryStart time.Time
	recovered     bool
}

func (o *observation) sample(ctx context.Context, e *Engine, metrics []Metric) {
	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			o.result.ErrorEvents = append(o.result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: metric.Name,
			})
			continue
		}

		o.result.Observations[metric.Name] = append(
			o.result.Observations[metric.Name],
			DataPoint{Timestamp: time.Now(), Value: value},
		)

		if !e.evaluateThreshold(value, metric.Threshold) {
			if o.recoveryStart.IsZero() {
				o.recoveryStart = time.Now()
			}
			o.result.Violations = append(o.result.Violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		} else if !o.recoveryStart.IsZero() && !o.recovered {
			mttr := time.Since(o.recoveryStart)
			o.result.MTTR = &mttr
			o.recovered = true
		}
	}
}

func (e *Engine) validateSteadyState(ctx context.Context, metrics []Metric) (bool, []MetricViolation) {
	violations := make([]MetricViolation, 0)

	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     -1,
				Timestamp:  time.Now(),
			})
			continue
		}

		if !e.evaluateThreshold(value, metric.Threshold) {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}

	return len(violations) == 0, violations
}

func (e *Engine) evaluateThreshold(value float64, threshold Threshold) bool {
	switch threshold.Operator {
	case ">":
		return value > threshold.Value
	case "<":
		return value < threshold.Value
	case ">=":
		return value >= threshold.Value
	case "<=":
		return value <= threshold.Value
	case "==":
		return value == threshold.Value
	default:
		return false
	}
}

// validateAssertions checks every assertion against the metric's final
// observation and returns the messages of those that failed.
func (e *Engine) validateAssertions(assertions []Assertion, result *ExperimentResult) []string {
	var failed []string
	for _, assertion := range assertions {
		observations := result.Observations[assertion.Metric]
		if len(observations) == 0 {
			failed = append(failed, assertion.Message+" (no observations)")
			continue
		}

		finalValue := observations[len(observations)-1].Value
		if !assertion.Condition(finalValue) {
			failed = append(failed, assertion.Message)
		}
	}
	return failed
}

// GameDay orchestrates a series of experiments.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
}

// ExecuteGameDay runs every scenario and reports each result. It returns an
// error naming the scenarios whose hypothesis did not hold.
func (e *Engine) ExecuteGameDay(ctx context.Context, gameDay GameDay) error {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(
			attribute.String("gameday.name", gameDay.Name),
		),
	)
	defer span.End()

	fmt.Fprintf(e.out, "🎮 Starting Game Day: %s\n", gameDay.Name)
	fmt.Fprintf(e.out, "📅 Date: %s\n", gameDay.Date.Format(time.RFC1123))

	var failed []string
	for i, scenario := range gameDay.Scenarios {
		fmt.Fprintf(e.out, "\n🔬 Experiment %d/%d: %s\n", i+1, len(gameDay.Scenarios), scenario.Name)
		fmt.Fprintf(e.out, "💡 Hypothesis: %s\n", scenario.Hypothesis)

		result, err := e.RunExperiment(ctx, scenario)
		if err != nil {
			fmt.Fprintf(e.out, "❌ Experiment failed: %v\n", err)
			failed = append(failed, scenario.Name)
			continue
		}

		e.printExperimentResult(result)
		if !result.HypothesisHeld {
			failed = append(failed, scenario.Name)
		}

		if i < len(gameDay.Scenarios)-1 && e.Pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.Pause):
			}
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("hypothesis violated: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (e *Engine) printExperimentResult(result *ExperimentResult) {
	if result.HypothesisHeld {
		fmt.Fprintf(e.out, "✅ Hypothesis held - System behaved as expected\n")
	} else {
		fmt.Fprintf(e.out, "❌ Hypothesis violated - Unexpected behavior observed\n")
	}

	if len(result.Violations) > 0 {
		fmt.Fprintf(e.out, "⚠️  Violations detected: %d\n", len(result.Violations))
		for _, v := range result.Violations {
			fmt.Fprintf(e.out, "   - %s: expected %.2f, got %.2f\n", v.MetricName, v.Expected, v.Actual)
		}
	}
	for _, msg := range result.FailedAssertions {
		fmt.Fprintf(e.out, "   - %s\n", msg)
	}

	if result.MTTR != nil {
		fmt.Fprintf(e.out, "⏱️  MTTR: %s\n", *result.MTTR)
	}

	fmt.Fprintf(e.out, "📊 Duration: %s\n", result.Duration)
}
