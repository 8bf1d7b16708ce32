// Package prompts holds the two templates of the map-reduce chain: the
// question prompt applied to each retrieved chunk and the combine prompt
// applied to the collected partial answers.
package prompts

import (
	"fmt"
	"sort"
	"strings"
)

// Placeholder names.
const (
	VarContext   = "context"
	VarQuestion  = "question"
	VarSummaries = "summaries"
)

// DefaultQuestionTemplate is rendered once per retrieved chunk.
const DefaultQuestionTemplate = `You are a help bot for an open source software community.
Use this section of the documentation to answer a user's question, if the text is related
to the question:
{context}
Question: {question}
Please include any Python code that is relevant to the answer.
Relevant text, if any:`

// DefaultCombineTemplate is rendered once over the concatenated partials.
// Two lines end in a space; the concatenation keeps them visible.
const DefaultCombineTemplate = "Given the following summaries from the documentation, \n" +
	"collect them into one combined answer for the user's question. If you don't have a good \n" +
	`answer, just say that you don't know.
Summaries:
{summaries}
Question: {question}
Combined answer, if any:
`

// Template is an immutable text with named {placeholders}.
type Template struct {
	text string
	vars []string
}

// NewTemplate checks that every variable occurs in text.
func NewTemplate(text string, vars ...string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("template is empty")
	}
	for _, v := range vars {
		if !strings.Contains(text, "{"+v+"}") {
			return nil, fmt.Errorf("template is missing placeholder {%s}", v)
		}
	}
	sorted := append([]string(nil), vars...)
	sort.Strings(sorted)
	return &Template{text: text, vars: sorted}, nil
}

// MustTemplate is NewTemplate for package-level constants.
func MustTemplate(text string, vars ...string) *Template {
	t, err := NewTemplate(text, vars...)
	if err != nil {
		panic(err)
	}
	return t
}

// Vars returns the placeholder names, sorted.
func (t *Template) Vars() []string {
	return append([]string(nil), t.vars...)
}

// Text returns the raw template.
func (t *Template) Text() string { return t.text }

// Render substitutes every placeholder in one pass, so braces inside the
// values are left alone. Missing values render as empty strings.
func (t *Template) Render(values map[string]string) string {
	pairs := make([]string, 0, 2*len(t.vars))
	for _, v := range t.vars {
		pairs = append(pairs, "{"+v+"}", values[v])
	}
	return strings.NewReplacer(pairs...).Replace(t.text)
}

var (
	questionPrompt = MustTemplate(DefaultQuestionTemplate, VarContext, VarQuestion)
	combinePrompt  = MustTemplate(DefaultCombineTemplate, VarSummaries, VarQuestion)
)

// QuestionPrompt returns the default per-chunk template.
func QuestionPrompt() *Template { return questionPrompt }

// CombinePrompt returns the default reduce template.
func CombinePrompt() *Template { return combinePrompt }

// NewQuestionTemplate validates a user-supplied per-chunk template.
func NewQuestionTemplate(text string) (*Template, error) {
	return NewTemplate(text, VarContext, VarQuestion)
}

// NewCombineTemplate validates a user-supplied reduce template.
func NewCombineTemplate(text string) (*Template, error) {
	return NewTemplate(text, VarSummaries, VarQuestion)
}

// RenderQuestionPrompt fills the default question template.
func RenderQuestionPrompt(context, question string) string {
	return questionPrompt.Render(map[string]string{VarContext: context, VarQuestion: question})
}

// RenderCombinePrompt fills the default combine template.
func RenderCombinePrompt(summaries, question string) string {
	return combinePrompt.Render(map[string]string{VarSummaries: summaries, VarQuestion: question})
}
