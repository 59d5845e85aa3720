package pipeline

import (
	"context"
	"fmt"
	"time"

	"medagent/internal/domain"
	"medagent/internal/observability"
)

// DefaultMaxHops caps total stage transitions per run. The reference
// topology is acyclic, but the executor does not assume that: a routing bug
// that introduces a cycle fails closed instead of spinning.
const DefaultMaxHops = 32

// Executor drives a Graph: invoke the current stage, merge its delta,
// resolve the successor, repeat until the terminal marker. It has no side
// effects of its own.
type Executor struct {
	graph   *Graph
	maxHops int
}

func NewExecutor(g *Graph, maxHops int) *Executor {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &Executor{graph: g, maxHops: maxHops}
}

// Run executes the pipeline over st, mutating it in place via delta merges,
// and returns it for convenience.
func (e *Executor) Run(ctx context.Context, st *domain.ConsultationState) (*domain.ConsultationState, error) {
	log := observability.LoggerFromContext(ctx)

	current := e.graph.Entry()
	for hops := 0; ; hops++ {
		if hops >= e.maxHops {
			return st, fmt.Errorf("%w: %d stage transitions", domain.ErrExecutionLimitExceeded, hops)
		}

		node, ok := e.graph.node(current)
		if !ok {
			return st, fmt.Errorf("%w: resolved stage %q is not in the graph", domain.ErrExecutionLimitExceeded, current)
		}

		start := time.Now()
		delta, err := node.Handler.Run(ctx, st)
		if err != nil {
			log.Error("stage failed", "stage", current, "error", err)
			return st, fmt.Errorf("stage %s: %w", current, err)
		}
		st.Apply(delta)
		log.Info("stage done", "stage", current, "elapsed_ms", time.Since(start).Milliseconds())

		// Successor is resolved against post-merge state.
		next := node.Next
		if node.Selector != nil {
			next = node.Selector(st)
		}
		st.NextStep = next
		if next == StageEnd {
			return st, nil
		}
		current = next
	}
}
