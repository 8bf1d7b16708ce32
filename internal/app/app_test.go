package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/adapters/tracker"
	"github.com/0xcro3dile/docqa-go/internal/config"
	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
)

// echoLLM answers map prompts with the chunk they carry and combine prompts
// with the summaries they carry.
type echoLLM struct {
	mu    sync.Mutex
	calls int
}

func between(s, start, end string) (string, bool) {
	i := strings.Index(s, start)
	if i < 0 {
		return "", false
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(s[:j]), true
}

func (e *echoLLM) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if out, ok := between(prompt, "Summaries:\n", "\nQuestion:"); ok {
		return out, nil
	}
	if out, ok := between(prompt, "to the question:\n", "\nQuestion:"); ok {
		return out, nil
	}
	return "", errors.New("unexpected prompt")
}

func (e *echoLLM) Name() string { return "echo" }

func docsDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.DocsDir = dir
	cfg.LLM.Provider = "ollama"
	return cfg
}

func TestBuild_AnswersFromDocs(t *testing.T) {
	dir := docsDir(t, map[string]string{"a.md": "Aim is an experiment tracker."})
	model := &echoLLM{}

	qa, err := Build(context.Background(), testConfig(dir), nil, WithLanguageModel(model))
	require.NoError(t, err)
	defer qa.Close(context.Background())

	assert.Equal(t, 1, qa.Documents)
	assert.Equal(t, 1, qa.Retriever.Count())
	assert.Equal(t, "echo", qa.Model)

	answer, err := qa.Pipeline.Run(context.Background(), "What is Aim?")
	require.NoError(t, err)
	assert.Contains(t, answer, "Aim is an experiment tracker.")
	assert.Equal(t, 2, model.calls, "one map call for the single chunk, one reduce call")
}

func TestBuild_EmptyCorpus(t *testing.T) {
	dir := docsDir(t, map[string]string{"notes.txt": "not markdown"})

	_, err := Build(context.Background(), testConfig(dir), nil, WithLanguageModel(&echoLLM{}))
	var empty *errs.EmptyCorpusError
	assert.ErrorAs(t, err, &empty)
}

func TestBuild_MissingDocsDir(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing"))

	_, err := Build(context.Background(), cfg, nil, WithLanguageModel(&echoLLM{}))
	var invalid *errs.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestBuild_TracksPromptsToSQLite(t *testing.T) {
	dir := docsDir(t, map[string]string{
		"a.md":       "Aim is an experiment tracker.",
		"guide/b.md": "Aim runs on HuggingFace Spaces.",
	})
	cfg := testConfig(dir)
	cfg.Chunking.Size = 40
	cfg.Tracker.Enabled = true
	cfg.Tracker.Path = filepath.Join(t.TempDir(), "tracking.db")

	qa, err := Build(context.Background(), cfg, nil, WithLanguageModel(&echoLLM{}))
	require.NoError(t, err)

	_, err = qa.Pipeline.Run(context.Background(), "How do I use Aim with HuggingFace spaces?")
	require.NoError(t, err)
	require.NoError(t, qa.Close(context.Background()))

	reopened, err := tracker.NewSQLiteTracker(cfg.Tracker.Path, cfg.Tracker.Experiment, nil)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].Finished)
	assert.Equal(t, 3, runs[0].Records, "two map calls and one reduce call")
	assert.Equal(t, config.DefaultExperiment, runs[0].Experiment)
}

func TestQAConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.K = 7
	cfg.LLM.Temperature = 0
	cfg.LLM.Timeout = config.Duration(5 * time.Second)
	cfg.LLM.MapFailurePolicy = "skip"
	cfg.Prompts.Combine = "S: {summaries} Q: {question}"

	qa, err := QAConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 7, qa.K)
	assert.Zero(t, qa.Temperature)
	assert.Equal(t, 5*time.Second, qa.Timeout)
	assert.Equal(t, usecases.MapSkip, qa.MapFailurePolicy)
	assert.Equal(t, "S: {summaries} Q: {question}", qa.CombinePrompt.Text())
	assert.Equal(t, usecases.DefaultQAConfig().QuestionPrompt.Text(), qa.QuestionPrompt.Text())

	cfg.Prompts.Question = "nothing to fill"
	_, err = QAConfig(cfg)
	assert.Error(t, err)
}

func TestProviderConfigs(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "anthropic"
	cfg.APIKeys.Anthropic = "ak"
	cfg.Embedder.Provider = "openai"
	cfg.APIKeys.OpenAI = "sk"

	assert.Equal(t, "ak", LLMConfig(cfg).APIKey)
	assert.Equal(t, "sk", EmbeddingConfig(cfg).APIKey)
}
