// Package resolver decides whether a question can be answered from the
// conversation graph.
package resolver

import "interview_agent/internal/knowledge"

// Graph is the part of the knowledge store the resolver reads.
type Graph interface {
	Lookup(question string) (knowledge.QuestionNode, bool)
	FollowUpsFor(id string) []string
}

// Result is the outcome of resolving one question. Found is false when the
// graph has no matching node; that is an expected outcome, not an error.
type Result struct {
	Found     bool
	NodeID    string
	Answer    string
	FollowUps []string
}

// Resolver answers questions from the graph. It performs no I/O.
type Resolver struct {
	graph Graph
}

// New creates a resolver over the given graph
func New(graph Graph) *Resolver {
	return &Resolver{graph: graph}
}

// Resolve looks the question up and, on a match, returns the canned answer
// together with the follow-up questions as text.
func (r *Resolver) Resolve(question string) Result {
	node, ok := r.graph.Lookup(question)
	if !ok {
		return Result{}
	}
	return Result{
		Found:     true,
		NodeID:    node.ID,
		Answer:    node.Answer,
		FollowUps: r.graph.FollowUpsFor(node.ID),
	}
}
