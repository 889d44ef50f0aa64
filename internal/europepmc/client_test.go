package europepmc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullTextXML = `<?xml version="1.0"?>
<article>
  <front>
    <abstract><p>Abstract element text.</p></abstract>
  </front>
  <body>
    <sec>
      <title>Introduction</title>
      <p>Intro paragraph one.</p>
      <sec>
        <title>Study population</title>
        <p>Nested subsection text.</p>
      </sec>
    </sec>
    <sec>
      <title>Discussion</title>
      <p>Discussion text here.</p>
    </sec>
    <sec>
      <title>Concluding Remarks</title>
      <p>Conclusion text.</p>
    </sec>
    <sec>
      <title>Discussion continued</title>
      <p>Second discussion, must be ignored.</p>
    </sec>
  </body>
</article>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, MaxResults: 3}, nil)
}

func TestSearchArticles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Contains(t, q.Get("query"), "OPEN_ACCESS:Y")
		assert.Contains(t, q.Get("query"), "dexamethasone elderly")
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "3", q.Get("pageSize"))

		w.Write([]byte(`{"resultList":{"result":[
			{"pmcid":"PMC111"},
			{"id":"no-pmcid-here"},
			{"pmcid":"PMC222"}
		]}}`))
	})

	ids := c.SearchArticles(context.Background(), "dexamethasone elderly", 0)
	assert.Equal(t, []string{"PMC111", "PMC222"}, ids)
}

func TestSearchArticles_HTTPErrorYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	})

	assert.Empty(t, c.SearchArticles(context.Background(), "q", 3))
}

func TestSearchArticles_TransportFailureYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(Config{BaseURL: srv.URL}, nil)

	assert.Empty(t, c.SearchArticles(context.Background(), "q", 3))
}

func TestSearchArticles_MalformedJSONYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultList": [broken`))
	})

	assert.Empty(t, c.SearchArticles(context.Background(), "q", 3))
}

func TestFetchArticleSections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/PMC111/fullTextXML", r.URL.Path)
		w.Write([]byte(fullTextXML))
	})

	sections := c.FetchArticleSections(context.Background(), "PMC111")

	assert.Contains(t, sections.Introduction, "Intro paragraph one.")
	// nested subsection text folds into the enclosing section
	assert.Contains(t, sections.Introduction, "Nested subsection text.")
	// first discussion wins, the later one is ignored
	assert.Contains(t, sections.Discussion, "Discussion text here.")
	assert.NotContains(t, sections.Discussion, "Second discussion")
	// "concluding remarks" maps to conclusion
	assert.Contains(t, sections.Conclusion, "Conclusion text.")
	// no titled abstract section: the <abstract> element is the fallback
	assert.Equal(t, "Abstract element text.", sections.Abstract)
}

func TestFetchArticleSections_TitledAbstractWinsOverElement(t *testing.T) {
	body := `<article>
  <front><abstract><p>Element abstract.</p></abstract></front>
  <body>
    <sec><title>Abstract</title><p>Titled abstract section.</p></sec>
  </body>
</article>`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	sections := c.FetchArticleSections(context.Background(), "PMC1")
	assert.Contains(t, sections.Abstract, "Titled abstract section.")
	assert.NotContains(t, sections.Abstract, "Element abstract.")
}

func TestFetchArticleSections_MalformedBodyKeepsPartial(t *testing.T) {
	// the discussion section opens after valid intro, then the XML breaks
	body := `<article><body>
<sec><title>Introduction</title><p>Valid intro.</p></sec>
<sec><title>Discussion</title><p>Partial discussion` + "\x01" + `</article>`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	sections := c.FetchArticleSections(context.Background(), "PMC1")
	assert.Contains(t, sections.Introduction, "Valid intro.")
}

func TestFetchArticleSections_HTTPErrorYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	sections := c.FetchArticleSections(context.Background(), "PMC404")
	assert.True(t, sections.Empty())
}

func TestSections_TextsAndEmpty(t *testing.T) {
	assert.True(t, Sections{}.Empty())

	s := Sections{Abstract: "a", Conclusion: "c"}
	assert.False(t, s.Empty())

	texts := s.Texts()
	require.Len(t, texts, 2)
	assert.Equal(t, SectionText{Name: "abstract", Text: "a"}, texts[0])
	assert.Equal(t, SectionText{Name: "conclusion", Text: "c"}, texts[1])
}

func TestParseSections_TitleKeywordTable(t *testing.T) {
	tests := []struct {
		title string
		check func(t *testing.T, s Sections)
	}{
		{"Background", func(t *testing.T, s Sections) { assert.NotEmpty(t, s.Introduction) }},
		{"Summary", func(t *testing.T, s Sections) { assert.NotEmpty(t, s.Conclusion) }},
		{"Methods", func(t *testing.T, s Sections) { assert.True(t, s.Empty()) }},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			body := `<article><body><sec><title>` + tt.title + `</title><p>text</p></sec></body></article>`
			s := parseSections(strings.NewReader(body))
			tt.check(t, s)
		})
	}
}
