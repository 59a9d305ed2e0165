package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/knowledge.yaml
var defaultGraph []byte

// QuestionNode is one canned question with its answer and the ids of the
// questions suggested after it.
type QuestionNode struct {
	ID        string   `yaml:"id" json:"id"`
	Question  string   `yaml:"question" json:"question"`
	Answer    string   `yaml:"answer" json:"answer"`
	FollowUps []string `yaml:"follow_ups" json:"follow_ups"`
}

// graphFile represents the structure of a knowledge file
type graphFile struct {
	Initial    []string            `yaml:"initial"`
	Categories map[string][]string `yaml:"categories"`
	Nodes      []QuestionNode      `yaml:"nodes"`
}

// DanglingRef is a follow-up, initial or category entry naming an unknown id.
type DanglingRef struct {
	From string
	To   string
}

// Store is the read-only conversation graph. It is built once and never
// mutated, so it is safe for concurrent use without locking.
type Store struct {
	nodes      map[string]QuestionNode
	order      []string
	byQuestion map[string]string
	initial    []string
	categories map[string][]string
	dangling   []DanglingRef
}

// Default returns the built-in interview graph.
func Default() (*Store, error) {
	return Load(defaultGraph)
}

// LoadFile reads a knowledge graph from a YAML file.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading knowledge file: %w", err)
	}
	return Load(data)
}

// Load parses and validates a knowledge graph. Unknown follow-up ids are
// kept and reported by Dangling; they are skipped when follow-ups are listed.
func Load(data []byte) (*Store, error) {
	var file graphFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing knowledge YAML: %w", err)
	}
	if len(file.Nodes) == 0 {
		return nil, fmt.Errorf("knowledge graph has no nodes")
	}

	s := &Store{
		nodes:      make(map[string]QuestionNode, len(file.Nodes)),
		order:      make([]string, 0, len(file.Nodes)),
		byQuestion: make(map[string]string, len(file.Nodes)),
		initial:    append([]string(nil), file.Initial...),
		categories: make(map[string][]string, len(file.Categories)),
	}

	for i, node := range file.Nodes {
		node.ID = strings.TrimSpace(node.ID)
		node.Question = strings.TrimSpace(node.Question)
		node.Answer = strings.TrimSpace(node.Answer)
		switch {
		case node.ID == "":
			return nil, fmt.Errorf("node %d has empty id", i)
		case node.Question == "":
			return nil, fmt.Errorf("node %q has empty question", node.ID)
		case node.Answer == "":
			return nil, fmt.Errorf("node %q has empty answer", node.ID)
		}
		if _, dup := s.nodes[node.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", node.ID)
		}
		key := normalize(node.Question)
		if other, dup := s.byQuestion[key]; dup {
			return nil, fmt.Errorf("nodes %q and %q share the same question", other, node.ID)
		}
		node.FollowUps = append([]string(nil), node.FollowUps...)
		s.nodes[node.ID] = node
		s.order = append(s.order, node.ID)
		s.byQuestion[key] = node.ID
	}

	for _, id := range s.order {
		for _, ref := range s.nodes[id].FollowUps {
			if _, ok := s.nodes[ref]; !ok {
				s.dangling = append(s.dangling, DanglingRef{From: id, To: ref})
			}
		}
	}
	for _, ref := range s.initial {
		if _, ok := s.nodes[ref]; !ok {
			s.dangling = append(s.dangling, DanglingRef{From: "initial", To: ref})
		}
	}
	for name, ids := range file.Categories {
		s.categories[name] = append([]string(nil), ids...)
		for _, ref := range ids {
			if _, ok := s.nodes[ref]; !ok {
				s.dangling = append(s.dangling, DanglingRef{From: "category:" + name, To: ref})
			}
		}
	}

	return s, nil
}

// Lookup finds the node whose question equals the given text, ignoring case
// and surrounding whitespace. There is no fuzzy or partial matching.
func (s *Store) Lookup(question string) (QuestionNode, bool) {
	id, ok := s.byQuestion[normalize(question)]
	if !ok {
		return QuestionNode{}, false
	}
	return s.Node(id)
}

// Node returns a node by id.
func (s *Store) Node(id string) (QuestionNode, bool) {
	node, ok := s.nodes[id]
	if !ok {
		return QuestionNode{}, false
	}
	node.FollowUps = append([]string(nil), node.FollowUps...)
	return node, true
}

// InitialQuestions returns the entry-point questions as text.
func (s *Store) InitialQuestions() []string {
	return s.questionsFor(s.initial)
}

// FollowUpsFor resolves a node's follow-up ids to question text.
// Ids that do not resolve are dropped.
func (s *Store) FollowUpsFor(id string) []string {
	node, ok := s.nodes[id]
	if !ok {
		return []string{}
	}
	return s.questionsFor(node.FollowUps)
}

// Category returns the question texts of a named suggestion set.
func (s *Store) Category(name string) []string {
	return s.questionsFor(s.categories[name])
}

// Categories returns the suggestion set names in sorted order.
func (s *Store) Categories() []string {
	names := make([]string, 0, len(s.categories))
	for name := range s.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Questions returns every question text in declaration order.
func (s *Store) Questions() []string {
	return s.questionsFor(s.order)
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	return len(s.order)
}

// Dangling lists references to ids that are not in the graph.
func (s *Store) Dangling() []DanglingRef {
	return append([]DanglingRef(nil), s.dangling...)
}

func (s *Store) questionsFor(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if node, ok := s.nodes[id]; ok {
			out = append(out, node.Question)
		}
	}
	return out
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
