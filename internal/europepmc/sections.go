package europepmc

import (
	"encoding/xml"
	"io"
	"strings"
)

// Sections holds the structured sections extracted from one full-text
// article. Any field may be empty; partial results are valid.
type Sections struct {
	Abstract     string `json:"abstract"`
	Introduction string `json:"introduction"`
	Discussion   string `json:"discussion"`
	Conclusion   string `json:"conclusion"`
}

// Empty reports whether no section was extracted at all.
func (s Sections) Empty() bool {
	return s.Abstract == "" && s.Introduction == "" && s.Discussion == "" && s.Conclusion == ""
}

// SectionText is one extracted section with its category name.
type SectionText struct {
	Name string
	Text string
}

// Texts returns the non-empty section texts in document order:
// abstract, introduction, discussion, conclusion.
func (s Sections) Texts() []SectionText {
	var out []SectionText
	for _, part := range []SectionText{
		{"abstract", s.Abstract},
		{"introduction", s.Introduction},
		{"discussion", s.Discussion},
		{"conclusion", s.Conclusion},
	} {
		if part.Text != "" {
			out = append(out, part)
		}
	}
	return out
}

// sectionKeywords classifies a section title. First match per category
// wins; later same-category sections are ignored.
var sectionKeywords = []struct {
	category string
	keywords []string
}{
	{"abstract", []string{"abstract"}},
	{"introduction", []string{"introduction", "background"}},
	{"discussion", []string{"discussion"}},
	{"conclusion", []string{"conclusion", "summary", "concluding remarks"}},
}

// secFrame accumulates text for one <sec> element. Nested section text
// is folded into every enclosing section, matching a full subtree
// extraction.
type secFrame struct {
	depth int
	title strings.Builder
	text  strings.Builder
}

// parseSections scans full-text XML for titled sections and a fallback
// <abstract> element. A parse error mid-document stops the scan but the
// sections populated so far are still returned.
func parseSections(r io.Reader) Sections {
	dec := xml.NewDecoder(r)

	var (
		stack     []*secFrame
		preorder  []*secFrame
		depth     int
		titleOf   *secFrame // frame whose title is currently open
		inAbstr   int
		abstrText strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			// io.EOF is the normal end; anything else truncates the scan
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "sec":
				frame := &secFrame{depth: depth}
				stack = append(stack, frame)
				preorder = append(preorder, frame)
			case "title":
				// only a title directly under the innermost open section
				// names that section; figure and caption titles do not
				if len(stack) > 0 {
					innermost := stack[len(stack)-1]
					if depth == innermost.depth+1 && innermost.title.Len() == 0 {
						titleOf = innermost
					}
				}
			case "abstract":
				inAbstr++
			}

		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "sec":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			case "title":
				titleOf = nil
			case "abstract":
				if inAbstr > 0 {
					inAbstr--
				}
			}

		case xml.CharData:
			text := string(t)
			if titleOf != nil {
				titleOf.title.WriteString(text)
			}
			for _, frame := range stack {
				frame.text.WriteString(text)
			}
			if inAbstr > 0 {
				abstrText.WriteString(text)
			}
		}
	}

	var sections Sections
	for _, frame := range preorder {
		title := strings.ToLower(strings.TrimSpace(frame.title.String()))
		if title == "" {
			continue
		}
		for _, sk := range sectionKeywords {
			if sectionField(&sections, sk.category) != "" {
				continue
			}
			for _, kw := range sk.keywords {
				if strings.Contains(title, kw) {
					setSectionField(&sections, sk.category, normalizeSpace(frame.text.String()))
					break
				}
			}
		}
	}

	// fallback: a dedicated <abstract> element when no titled abstract
	// section was found
	if sections.Abstract == "" {
		sections.Abstract = normalizeSpace(abstrText.String())
	}

	return sections
}

func sectionField(s *Sections, category string) string {
	switch category {
	case "abstract":
		return s.Abstract
	case "introduction":
		return s.Introduction
	case "discussion":
		return s.Discussion
	case "conclusion":
		return s.Conclusion
	}
	return ""
}

func setSectionField(s *Sections, category, text string) {
	switch category {
	case "abstract":
		s.Abstract = text
	case "introduction":
		s.Introduction = text
	case "discussion":
		s.Discussion = text
	case "conclusion":
		s.Conclusion = text
	}
}

// normalizeSpace collapses runs of whitespace left over from XML
// indentation into single spaces.
func normalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
