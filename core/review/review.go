// Package review parses reviewer notes — the bullet-list format produced by
// human reviewers and LLM review passes — into comment requests against a
// parsed document. A note line references a paragraph by index and may quote
// the exact text the comment targets:
//
//	- [para 5] "limitation of liability" cap is unclear
//	- **[段落 3]** missing governing-law clause
package review

import (
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/redline/core/docx"
)

// Note is one parsed reviewer note.
type Note struct {
	// Paragraph is the referenced paragraph index.
	Paragraph int `json:"paragraph"`

	// Target is the quoted text the note points at; empty means the whole
	// paragraph.
	Target string `json:"target,omitempty"`

	// Comment is the full note text after the locator, quote included.
	Comment string `json:"comment"`
}

// noteLocator is the participle grammar for the paragraph locator prefix,
// tolerant of list bullets and markdown emphasis around it.
//
type noteLocator struct {
	Index int `parser:"(Marks | Int)* '[' Keyword @Int ']'"`
}

// locatorLexer tokenizes the locator prefix. Keyword must precede Int so the
// paragraph keywords never lex as anything else.
var locatorLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i:paragraph|para)|段落`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Marks", Pattern: `[-*_+.]+`},
	{Name: "Bracket", Pattern: `[\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var locatorParser = participle.MustBuild[noteLocator](
	participle.Lexer(locatorLexer),
	participle.Elide("Whitespace"),
)

// ParseNotes extracts notes from free-form review text. Lines without a
// parseable locator are ignored, matching how reviewers interleave prose
// with actionable bullets.
func ParseNotes(text string) []Note {
	var notes []Note
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		end := strings.Index(line, "]")
		if end < 0 {
			continue
		}
		loc, err := locatorParser.ParseString("", line[:end+1])
		if err != nil {
			continue
		}
		comment := strings.TrimSpace(strings.TrimLeft(line[end+1:], "*_ \t"))
		if comment == "" {
			continue
		}
		notes = append(notes, Note{
			Paragraph: loc.Index,
			Target:    quotedTarget(comment),
			Comment:   comment,
		})
	}
	return notes
}

// quotedTarget extracts a leading quoted fragment, skipping markdown
// emphasis markers, mirroring the reviewer prompt convention.
func quotedTarget(comment string) string {
	s := strings.TrimLeft(comment, "*_ \t")
	if !strings.HasPrefix(s, `"`) {
		return ""
	}
	if end := strings.Index(s[1:], `"`); end >= 0 {
		return s[1 : 1+end]
	}
	return ""
}

// Resolve maps notes onto a parsed document, producing injection requests in
// note order. A quoted target resolves to the first occurrence within the
// paragraph's flattened text; a target that cannot be found falls back to
// the whole paragraph. Notes referencing paragraphs outside the document
// are returned as skipped rather than failing the batch.
func Resolve(doc *docx.Document, notes []Note, author, initials string) (reqs []docx.CommentRequest, skipped []Note) {
	for _, note := range notes {
		para := doc.Paragraph(note.Paragraph)
		if para == nil {
			skipped = append(skipped, note)
			continue
		}
		req := docx.CommentRequest{
			ParagraphIndex: note.Paragraph,
			Author:         author,
			Initials:       initials,
			Body:           note.Comment,
		}
		if note.Target != "" {
			if r, ok := findRange(para.FlatText(), note.Target); ok {
				req.Range = &r
			}
		}
		reqs = append(reqs, req)
	}
	return reqs, skipped
}

// findRange locates target inside flat and returns its rune range.
func findRange(flat, target string) (docx.Range, bool) {
	byteIdx := strings.Index(flat, target)
	if byteIdx < 0 {
		return docx.Range{}, false
	}
	start := utf8.RuneCountInString(flat[:byteIdx])
	return docx.Range{
		Start: start,
		End:   start + utf8.RuneCountInString(target),
	}, true
}
