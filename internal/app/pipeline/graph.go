// Package pipeline defines the consultation stage graph and the executor
// that drives it. The topology is plain data: named stages, their handlers,
// and either one unconditional successor or a selector function evaluated
// against post-merge state. That keeps routing inspectable and testable
// independent of handler logic.
package pipeline

import (
	"context"
	"fmt"

	"medagent/internal/domain"
)

// StageEnd is the explicit terminal marker. A resolved successor that is
// neither StageEnd nor a known stage is a configuration error, not an
// implicit end of pipeline.
const StageEnd = "end"

// Canonical stage names.
const (
	StageIntake     = "intake"
	StageTriage     = "triage"
	StageKnowledge  = "knowledge"
	StageReasoning  = "reasoning"
	StageValidation = "validation"
	StageSafety     = "safety"
	StageReport     = "report"
	StageScheduling = "scheduling"
	StageMedication = "medication"
	StageVision     = "vision"
)

// Handler is one unit of pipeline work. Handlers convert their own external
// failures into deltas; a returned error means the handler hit a fault it
// cannot express as state, and the run aborts.
type Handler interface {
	Name() string
	Run(ctx context.Context, st *domain.ConsultationState) (domain.StateDelta, error)
}

// Selector picks the next stage name from post-merge state. Must be a pure
// function of the state.
type Selector func(st *domain.ConsultationState) string

// Node is one graph entry: a handler plus either a static successor or a
// selector (exactly one of the two).
type Node struct {
	Handler  Handler
	Next     string
	Selector Selector
}

// Graph maps stage names to nodes with a fixed entry stage.
type Graph struct {
	entry string
	nodes map[string]Node
}

func NewGraph(entry string) *Graph {
	return &Graph{entry: entry, nodes: make(map[string]Node)}
}

// AddStage registers a stage with a single unconditional successor.
func (g *Graph) AddStage(name string, h Handler, next string) *Graph {
	g.nodes[name] = Node{Handler: h, Next: next}
	return g
}

// AddConditionalStage registers a stage whose successor is chosen by sel.
func (g *Graph) AddConditionalStage(name string, h Handler, sel Selector) *Graph {
	g.nodes[name] = Node{Handler: h, Selector: sel}
	return g
}

func (g *Graph) Entry() string { return g.entry }

func (g *Graph) node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Validate checks that the entry exists and that every static successor is
// either a known stage or the terminal marker. Selector targets can only be
// checked at run time.
func (g *Graph) Validate() error {
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("pipeline graph: entry stage %q not registered", g.entry)
	}
	for name, n := range g.nodes {
		if n.Selector != nil {
			continue
		}
		if n.Next == StageEnd {
			continue
		}
		if _, ok := g.nodes[n.Next]; !ok {
			return fmt.Errorf("pipeline graph: stage %q points at unknown successor %q", name, n.Next)
		}
	}
	return nil
}
