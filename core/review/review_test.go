package review

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/FocuswithJustin/redline/core/docx"
)

// buildDocx assembles a minimal package whose body holds the given paragraphs.
func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	parts := [][2]string{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`},
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p[0])
		if err != nil {
			t.Fatalf("create %s: %v", p[0], err)
		}
		if _, err := w.Write([]byte(p[1])); err != nil {
			t.Fatalf("write %s: %v", p[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// TestParseNotes verifies locator recognition across reviewer formats.
func TestParseNotes(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Note
	}{
		{
			"bulleted with quote",
			`- [para 5] "limitation of liability" cap is unclear`,
			[]Note{{Paragraph: 5, Target: "limitation of liability", Comment: `"limitation of liability" cap is unclear`}},
		},
		{
			"bold cjk keyword",
			`**[段落 3]** missing governing-law clause`,
			[]Note{{Paragraph: 3, Comment: "missing governing-law clause"}},
		},
		{
			"numbered list full keyword",
			`1. [Paragraph 2] ambiguous notice period`,
			[]Note{{Paragraph: 2, Comment: "ambiguous notice period"}},
		},
		{
			"uppercase keyword",
			`[PARA 7] term undefined`,
			[]Note{{Paragraph: 7, Comment: "term undefined"}},
		},
		{
			"prose without locator ignored",
			`Overall the agreement looks reasonable.`,
			nil,
		},
		{
			"locator without comment ignored",
			`- [para 4]`,
			nil,
		},
		{
			"bracket but no keyword ignored",
			`- [see note] something`,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNotes(tt.line)
			if len(got) != len(tt.want) {
				t.Fatalf("notes = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("note %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// TestParseNotesMultiLine verifies interleaved prose and bullets.
func TestParseNotesMultiLine(t *testing.T) {
	text := `Review summary: two issues found.

- [para 0] "Hello" greeting too informal
- [para 1] closing is fine but verbose

Thanks.`
	notes := ParseNotes(text)
	if len(notes) != 2 {
		t.Fatalf("notes = %+v", notes)
	}
	if notes[0].Paragraph != 0 || notes[0].Target != "Hello" {
		t.Errorf("note 0 = %+v", notes[0])
	}
	if notes[1].Paragraph != 1 || notes[1].Target != "" {
		t.Errorf("note 1 = %+v", notes[1])
	}
}

// TestResolve verifies quoted targets become rune ranges and the rest fall
// back to whole paragraphs.
func TestResolve(t *testing.T) {
	data := buildDocx(t, `<w:p><w:r><w:t>The quick brown fox</w:t></w:r></w:p><w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>`)
	doc, err := docx.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	notes := []Note{
		{Paragraph: 0, Target: "quick", Comment: `"quick" check wording`},
		{Paragraph: 1, Comment: "whole paragraph remark"},
		{Paragraph: 0, Target: "absent text", Comment: `"absent text" not found`},
		{Paragraph: 9, Comment: "beyond the document"},
	}

	reqs, skipped := Resolve(doc, notes, "Reviewer", "RV")
	if len(reqs) != 3 {
		t.Fatalf("requests = %+v", reqs)
	}
	if len(skipped) != 1 || skipped[0].Paragraph != 9 {
		t.Errorf("skipped = %+v", skipped)
	}

	if reqs[0].Range == nil || reqs[0].Range.Start != 4 || reqs[0].Range.End != 9 {
		t.Errorf("quoted target range = %+v", reqs[0].Range)
	}
	if reqs[0].Author != "Reviewer" || reqs[0].Initials != "RV" {
		t.Errorf("request metadata = %+v", reqs[0])
	}
	if reqs[1].Range != nil {
		t.Errorf("whole-paragraph note should have nil range, got %+v", reqs[1].Range)
	}
	if reqs[2].Range != nil {
		t.Errorf("unfindable target should fall back to nil range, got %+v", reqs[2].Range)
	}
}

// TestResolveUnicodeTarget verifies target offsets count runes.
func TestResolveUnicodeTarget(t *testing.T) {
	data := buildDocx(t, `<w:p><w:r><w:t>héllo wörld</w:t></w:r></w:p>`)
	doc, err := docx.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	reqs, _ := Resolve(doc, []Note{{Paragraph: 0, Target: "wörld", Comment: `"wörld" spelling`}}, "R", "R")
	if len(reqs) != 1 || reqs[0].Range == nil {
		t.Fatalf("requests = %+v", reqs)
	}
	if reqs[0].Range.Start != 6 || reqs[0].Range.End != 11 {
		t.Errorf("range = %+v, want {6 11}", reqs[0].Range)
	}
}

// TestNotesRoundTrip verifies notes resolved from text land as comments the
// extractor reads back.
func TestNotesRoundTrip(t *testing.T) {
	data := buildDocx(t, `<w:p><w:r><w:t>The quick brown fox</w:t></w:r></w:p>`)
	doc, err := docx.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	notes := ParseNotes(`- [para 0] "quick" check wording`)
	reqs, skipped := Resolve(doc, notes, "Reviewer", "RV")
	if len(reqs) != 1 || len(skipped) != 0 {
		t.Fatalf("reqs = %+v, skipped = %+v", reqs, skipped)
	}

	result, err := docx.Inject(data, reqs)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	annotated, err := docx.Parse(result.Output)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}

	var found bool
	for _, ev := range annotated.Paragraphs[0].Events {
		if ev.Kind == docx.EventComment && ev.Text == "quick" && ev.CommentText == `"quick" check wording` {
			found = true
		}
	}
	if !found {
		t.Errorf("injected note not recovered: %+v", annotated.Paragraphs[0].Events)
	}
}
