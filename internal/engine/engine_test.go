package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakhealth/medassist/internal/answer"
	"github.com/oakhealth/medassist/internal/docsource"
	"github.com/oakhealth/medassist/internal/europepmc"
	"github.com/oakhealth/medassist/internal/llm"
	"github.com/oakhealth/medassist/internal/memory"
	"github.com/oakhealth/medassist/internal/moderation"
)

type fakeGate struct {
	calls   int
	verdict moderation.Verdict
	err     error
}

func (g *fakeGate) Decide(ctx context.Context, text string) (moderation.Verdict, error) {
	g.calls++
	return g.verdict, g.err
}

// fakeMemory matches a stored entry when the query shares a long word with
// its text, which is enough to stand in for cosine similarity here.
type fakeMemory struct {
	searchCalls int
	addCalls    int
	entries     []memory.Entry
	addErr      error
}

func (m *fakeMemory) Add(ctx context.Context, text string, metadata map[string]string) error {
	m.addCalls++
	if m.addErr != nil {
		return m.addErr
	}
	m.entries = append(m.entries, memory.Entry{Text: text, Metadata: metadata})
	return nil
}

func (m *fakeMemory) Search(ctx context.Context, query string, topK int, threshold float32) ([]memory.Match, error) {
	m.searchCalls++
	var out []memory.Match
	for _, e := range m.entries {
		if sharesKeyword(query, e.Text) {
			out = append(out, memory.Match{Entry: e, Score: 0.9})
		}
	}
	return out, nil
}

func (m *fakeMemory) entriesTagged(kind string) []memory.Entry {
	var out []memory.Entry
	for _, e := range m.entries {
		if e.Metadata["type"] == kind {
			out = append(out, e)
		}
	}
	return out
}

func sharesKeyword(query, text string) bool {
	lower := strings.ToLower(text)
	for _, word := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		if len(word) >= 6 && strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

type fakeLiterature struct {
	searchCalls int
	fetchCalls  int
	ids         []string
	sections    map[string]europepmc.Sections
}

func (l *fakeLiterature) SearchArticles(ctx context.Context, query string, maxResults int) []string {
	l.searchCalls++
	return l.ids
}

func (l *fakeLiterature) FetchArticleSections(ctx context.Context, id string) europepmc.Sections {
	l.fetchCalls++
	return l.sections[id]
}

type fakeExpander struct {
	calls   int
	queries []string
	err     error
}

func (e *fakeExpander) Expand(ctx context.Context, question string) ([]string, error) {
	e.calls++
	return e.queries, e.err
}

type fakeGenerator struct {
	answerCalls    int
	summarizeCalls int

	lastContext string
	lastHistory []answer.Turn

	answerText string
	answerErr  error
	summarize  func(record string) (string, error)
}

func (g *fakeGenerator) Answer(ctx context.Context, question, context string, history []answer.Turn) (string, error) {
	g.answerCalls++
	g.lastContext = context
	g.lastHistory = history
	return g.answerText, g.answerErr
}

func (g *fakeGenerator) AnswerStream(ctx context.Context, question, context string, history []answer.Turn) (llm.Stream, error) {
	g.answerCalls++
	g.lastContext = context
	g.lastHistory = history
	if g.answerErr != nil {
		return nil, g.answerErr
	}
	return llm.NewTextStream(g.answerText), nil
}

func (g *fakeGenerator) Summarize(ctx context.Context, record string) (string, error) {
	g.summarizeCalls++
	if g.summarize != nil {
		return g.summarize(record)
	}
	return "summary: " + record, nil
}

type passthroughSanitizer struct{ calls int }

func (s *passthroughSanitizer) Anonymize(text string) string {
	s.calls++
	return text
}

type fakeSource struct {
	docs []docsource.Document
	err  error
}

func (s *fakeSource) Documents(ctx context.Context) ([]docsource.Document, error) {
	return s.docs, s.err
}

type fixture struct {
	gate       *fakeGate
	memory     *fakeMemory
	literature *fakeLiterature
	expander   *fakeExpander
	generator  *fakeGenerator
	sanitizer  *passthroughSanitizer
	source     *fakeSource
	engine     *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gate:       &fakeGate{verdict: moderation.Verdict{Category: moderation.CategoryAllow}},
		memory:     &fakeMemory{},
		literature: &fakeLiterature{},
		expander:   &fakeExpander{},
		generator:  &fakeGenerator{answerText: "generated answer"},
		sanitizer:  &passthroughSanitizer{},
		source:     &fakeSource{},
	}
	eng, err := New(Config{
		Gate:       f.gate,
		Memory:     f.memory,
		Literature: f.literature,
		Expander:   f.expander,
		Generator:  f.generator,
		Sanitizer:  f.sanitizer,
		Source:     f.source,
	})
	require.NoError(t, err)
	f.engine = eng
	return f
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{
		Gate:       &fakeGate{},
		Memory:     &fakeMemory{},
		Literature: &fakeLiterature{},
		Expander:   &fakeExpander{},
	})
	assert.Error(t, err)
}

func TestAsk_BlockedQuestionShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.gate.verdict = moderation.Verdict{
		Blocked:     true,
		Category:    moderation.CategorySelfHarm,
		SafeMessage: moderation.SafeMessage(moderation.CategorySelfHarm),
	}

	reply, err := f.engine.Ask(context.Background(), "blocked question", nil, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeBlocked, reply.Outcome)
	assert.Equal(t, moderation.CategorySelfHarm, reply.Category)
	assert.Equal(t, moderation.SafeMessage(moderation.CategorySelfHarm), reply.Text)

	assert.Equal(t, 0, f.memory.searchCalls)
	assert.Equal(t, 0, f.expander.calls)
	assert.Equal(t, 0, f.literature.searchCalls)
	assert.Equal(t, 0, f.generator.answerCalls)
}

func TestAsk_BlockedStreamingWrapsSafeMessage(t *testing.T) {
	f := newFixture(t)
	f.gate.verdict = moderation.Verdict{
		Blocked:     true,
		Category:    moderation.CategoryMedicalHarm,
		SafeMessage: moderation.SafeMessage(moderation.CategoryMedicalHarm),
	}

	reply, err := f.engine.Ask(context.Background(), "blocked question", nil, true)
	require.NoError(t, err)
	require.NotNil(t, reply.Stream)

	text, err := llm.Collect(reply.Stream)
	require.NoError(t, err)
	assert.Equal(t, moderation.SafeMessage(moderation.CategoryMedicalHarm), text)
}

func TestAsk_ClassifierOutageFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.gate.err = moderation.ErrClassifierUnavailable

	_, err := f.engine.Ask(context.Background(), "any question", nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, moderation.ErrClassifierUnavailable)
	assert.Equal(t, 0, f.memory.searchCalls)
	assert.Equal(t, 0, f.generator.answerCalls)
}

func TestAsk_MemoryHitSkipsLiterature(t *testing.T) {
	f := newFixture(t)
	f.memory.entries = []memory.Entry{
		{Text: "Metformin dosing guidance for type 2 diabetes.", Metadata: map[string]string{"type": "user_summary"}},
	}

	reply, err := f.engine.Ask(context.Background(), "What is the right metformin dose?", nil, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, reply.Outcome)
	assert.Equal(t, "generated answer", reply.Text)
	assert.Contains(t, f.generator.lastContext, "Metformin dosing guidance")

	assert.Equal(t, 0, f.expander.calls)
	assert.Equal(t, 0, f.literature.searchCalls)
}

func TestAsk_LiteratureFallbackStoresSections(t *testing.T) {
	f := newFixture(t)
	f.expander.queries = []string{"statin muscle pain"}
	f.literature.ids = []string{"PMC100"}
	f.literature.sections = map[string]europepmc.Sections{
		"PMC100": {
			Abstract:   "Statins can cause myalgia.",
			Conclusion: "Myalgia resolves after discontinuation.",
		},
	}

	reply, err := f.engine.Ask(context.Background(), "Why do statins hurt my muscles?", nil, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, reply.Outcome)
	assert.Contains(t, f.generator.lastContext, "myalgia")

	stored := f.memory.entriesTagged("literature")
	require.Len(t, stored, 2)
	assert.Equal(t, "PMC100", stored[0].Metadata["article_id"])
	assert.Equal(t, "abstract", stored[0].Metadata["section"])
	assert.Equal(t, "conclusion", stored[1].Metadata["section"])
}

func TestAsk_LiteratureContextCapped(t *testing.T) {
	f := newFixture(t)
	f.expander.queries = []string{"q"}
	f.literature.ids = []string{"A", "B"}
	f.literature.sections = map[string]europepmc.Sections{
		"A": {Abstract: "first", Introduction: "second", Discussion: "third"},
		"B": {Abstract: "fourth"},
	}

	_, err := f.engine.Ask(context.Background(), "anything at all", nil, false)
	require.NoError(t, err)

	// Six sections stored, only the first three reach the generator.
	assert.Equal(t, []string{"first", "second", "third"},
		strings.Split(f.generator.lastContext, "\n\n"))
	assert.Len(t, f.memory.entriesTagged("literature"), 4)
}

func TestAsk_NoSectionsAnywhereReturnsNoResult(t *testing.T) {
	f := newFixture(t)
	f.expander.queries = []string{"query one", "query two"}
	f.literature.ids = nil

	reply, err := f.engine.Ask(context.Background(), "obscure question", nil, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoResult, reply.Outcome)
	assert.Equal(t, NoLiteratureMessage, reply.Text)
	assert.Equal(t, 2, f.literature.searchCalls)
	assert.Equal(t, 0, f.generator.answerCalls)
}

func TestAsk_ExpanderFailureDegradesToNoResult(t *testing.T) {
	f := newFixture(t)
	f.expander.err = errors.New("model unavailable")

	reply, err := f.engine.Ask(context.Background(), "obscure question", nil, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoResult, reply.Outcome)
	assert.Equal(t, 0, f.literature.searchCalls)
}

func TestAsk_HistoryReachesGenerator(t *testing.T) {
	f := newFixture(t)
	f.memory.entries = []memory.Entry{{Text: "aspirin interactions overview"}}

	history := []answer.Turn{
		{Role: answer.RoleUser, Content: "Can I take aspirin?"},
		{Role: answer.RoleAssistant, Content: "Generally yes, with food."},
	}
	_, err := f.engine.Ask(context.Background(), "What about aspirin with ibuprofen?", history, false)
	require.NoError(t, err)
	assert.Equal(t, history, f.generator.lastHistory)
}

func TestIngest_StoresTaggedSummaries(t *testing.T) {
	f := newFixture(t)
	f.source.docs = []docsource.Document{
		{Name: "record.txt", Text: "Patient age 68, hypertension, on dexamethasone."},
	}
	f.expander.queries = []string{"dexamethasone elderly"}

	err := f.engine.Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.sanitizer.calls)
	assert.Equal(t, 1, f.generator.summarizeCalls)

	summaries := f.memory.entriesTagged("user_summary")
	require.Len(t, summaries, 1)
	assert.Equal(t, "record.txt", summaries[0].Metadata["source"])
	assert.Contains(t, summaries[0].Text, "dexamethasone")

	// The summary is expanded and searched for enriching literature.
	assert.Equal(t, 1, f.expander.calls)
	assert.Equal(t, 1, f.literature.searchCalls)
}

func TestIngest_OneDocumentFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	f.source.docs = []docsource.Document{
		{Name: "bad.txt", Text: "unreadable"},
		{Name: "good.txt", Text: "Patient on lisinopril for blood pressure."},
	}
	f.generator.summarize = func(record string) (string, error) {
		if strings.Contains(record, "unreadable") {
			return "", errors.New("summarization failed")
		}
		return "summary: " + record, nil
	}

	err := f.engine.Ingest(context.Background())
	require.NoError(t, err)

	summaries := f.memory.entriesTagged("user_summary")
	require.Len(t, summaries, 1)
	assert.Equal(t, "good.txt", summaries[0].Metadata["source"])
}

func TestIngest_RequiresSource(t *testing.T) {
	f := newFixture(t)
	eng, err := New(Config{
		Gate:       f.gate,
		Memory:     f.memory,
		Literature: f.literature,
		Expander:   f.expander,
		Generator:  f.generator,
		Sanitizer:  f.sanitizer,
	})
	require.NoError(t, err)

	assert.Error(t, eng.Ingest(context.Background()))
}

func TestIngestThenAsk_AnswersFromMemory(t *testing.T) {
	f := newFixture(t)
	f.source.docs = []docsource.Document{
		{Name: "record.txt", Text: "Patient age 68, hypertension, on dexamethasone."},
	}

	require.NoError(t, f.engine.Ingest(context.Background()))
	require.NotEmpty(t, f.memory.entriesTagged("user_summary"))

	literatureCallsAfterIngest := f.literature.searchCalls
	expanderCallsAfterIngest := f.expander.calls

	reply, err := f.engine.Ask(context.Background(),
		"Is dexamethasone safe for elderly patients?", nil, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, reply.Outcome)
	assert.Contains(t, f.generator.lastContext, "dexamethasone")
	// Memory path short-circuits: no fresh expansion or literature search.
	assert.Equal(t, literatureCallsAfterIngest, f.literature.searchCalls)
	assert.Equal(t, expanderCallsAfterIngest, f.expander.calls)
}
