package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderQuestionPrompt(t *testing.T) {
	tests := []struct {
		name     string
		context  string
		question string
	}{
		{name: "plain", context: "Aim is an experiment tracker.", question: "What is Aim?"},
		{name: "code", context: "```python\nfrom aim import Run\nrun = Run()\n```", question: "How do I start a run?"},
		{name: "braces in values", context: "use {question} literally", question: "what about {context}?"},
		{name: "multiline question", context: "ctx", question: "line one\nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderQuestionPrompt(tt.context, tt.question)

			assert.Contains(t, out, tt.context)
			assert.Contains(t, out, tt.question)
			assert.Contains(t, out, "Please include any Python code that is relevant to the answer.")
			assert.Equal(t, out, RenderQuestionPrompt(tt.context, tt.question), "rendering must be idempotent")
		})
	}
}

func TestRenderQuestionPrompt_NoReexpansion(t *testing.T) {
	out := RenderQuestionPrompt("{question}", "Q")

	assert.Equal(t, 1, strings.Count(out, "Question: Q"))
	assert.Contains(t, out, "\n{question}\n")
}

func TestRenderCombinePrompt(t *testing.T) {
	summaries := "Aim logs metrics.\n\nAim tracks text."
	out := RenderCombinePrompt(summaries, "What does Aim do?")

	assert.Contains(t, out, summaries)
	assert.Contains(t, out, "What does Aim do?")
	assert.Contains(t, out, "just say that you don't know")
	assert.True(t, strings.HasSuffix(out, "Combined answer, if any:\n"))
}

func TestNewTemplate_RequiresPlaceholders(t *testing.T) {
	_, err := NewQuestionTemplate("Answer {question} only")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{context}")

	_, err = NewCombineTemplate("   ")
	require.Error(t, err)

	tmpl, err := NewCombineTemplate("S={summaries} Q={question}")
	require.NoError(t, err)
	assert.Equal(t, []string{"question", "summaries"}, tmpl.Vars())
	assert.Equal(t, "S=a Q=b", tmpl.Render(map[string]string{"summaries": "a", "question": "b"}))
}

func TestTemplate_MissingValueRendersEmpty(t *testing.T) {
	tmpl := MustTemplate("[{context}]", VarContext)
	assert.Equal(t, "[]", tmpl.Render(nil))
}

func TestDefaultCombineTemplate_KeepsTrailingSpaces(t *testing.T) {
	lines := strings.Split(DefaultCombineTemplate, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "Given the following summaries from the documentation, ", lines[0])
	assert.Equal(t, "collect them into one combined answer for the user's question. If you don't have a good ", lines[1])
	assert.Equal(t, "answer, just say that you don't know.", lines[2])
	assert.True(t, strings.HasSuffix(DefaultCombineTemplate, "Combined answer, if any:\n"))
}
