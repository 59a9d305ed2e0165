package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGraph(t *testing.T) {
	store, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 17, store.Len())
	assert.Empty(t, store.Dangling())
	assert.Equal(t, []string{
		"Tell me about yourself",
		"Walk me through a technical challenge you solved",
		"Why should we hire you?",
		"What got you into programming?",
	}, store.InitialQuestions())
}

func TestLookupIgnoresCaseAndSurroundingSpace(t *testing.T) {
	store, err := Default()
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		found bool
	}{
		{"exact", "Tell me about yourself", true},
		{"lower case", "tell me about yourself", true},
		{"padded", "   TELL ME ABOUT YOURSELF \n", true},
		{"missing question mark", "Why should we hire you", false},
		{"substring", "about yourself", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, ok := store.Lookup(tt.input)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, "tell-me-about-yourself", node.ID)
			}
		})
	}
}

func TestFollowUpsForResolvesQuestionText(t *testing.T) {
	store, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"What's your experience with React?",
		"What was the transition from teaching to software like?",
		"How does your philosophy background help you as a developer?",
	}, store.FollowUpsFor("tell-me-about-yourself"))
	assert.Empty(t, store.FollowUpsFor("no-such-node"))
}

func TestDanglingFollowUpsAreDropped(t *testing.T) {
	data := []byte(`
initial: [a, ghost]
nodes:
  - id: a
    question: "Question A"
    answer: "Answer A"
    follow_ups: [b, missing, a]
  - id: b
    question: "Question B"
    answer: "Answer B"
`)
	store, err := Load(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Question B", "Question A"}, store.FollowUpsFor("a"))
	assert.Equal(t, []string{"Question A"}, store.InitialQuestions())
	assert.ElementsMatch(t, []DanglingRef{
		{From: "a", To: "missing"},
		{From: "initial", To: "ghost"},
	}, store.Dangling())
}

func TestLoadRejectsInvalidGraphs(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no nodes", "initial: []\n"},
		{"empty id", "nodes:\n  - question: q\n    answer: a\n"},
		{"empty answer", "nodes:\n  - id: x\n    question: q\n"},
		{"duplicate id", "nodes:\n  - {id: x, question: q1, answer: a}\n  - {id: x, question: q2, answer: a}\n"},
		{"duplicate question", "nodes:\n  - {id: x, question: Same, answer: a}\n  - {id: y, question: ' same ', answer: a}\n"},
		{"bad yaml", "nodes: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestCategories(t *testing.T) {
	store, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"background", "default", "technical"}, store.Categories())
	assert.Equal(t, []string{
		"Can you tell me more about your experience with TypeScript?",
		"How do you approach debugging complex issues?",
		"What DevOps tools have you worked with?",
	}, store.Category("technical"))
	assert.Empty(t, store.Category("unknown"))
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	store, err := Default()
	require.NoError(t, err)

	node, ok := store.Node("tell-me-about-yourself")
	require.True(t, ok)
	node.FollowUps[0] = "changed"

	again, _ := store.Node("tell-me-about-yourself")
	assert.Equal(t, "react-experience", again.FollowUps[0])
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  - {id: x, question: Hi, answer: Hello}\n"), 0o644))

	store, err := LoadFile(path)
	require.NoError(t, err)
	node, ok := store.Lookup("hi")
	require.True(t, ok)
	assert.Equal(t, "Hello", node.Answer)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
