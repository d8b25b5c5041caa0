package docx

import (
	"archive/zip"
	"bytes"
	stdxml "encoding/xml"
	"io"
	"sort"
	"testing"

	"github.com/FocuswithJustin/redline/core/opc"
)

// Shared fixtures for building WordprocessingML packages in memory.

const documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document xmlns:w="` + nsW + `" xmlns:w14="` + nsW14 + `"><w:body>`
const documentFooter = `</w:body></w:document>`

const baseContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Types xmlns="` + nsCT + `"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const baseRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Relationships xmlns="` + nsRel + `"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/></Relationships>`

const commentsHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:comments xmlns:w="` + nsW + `" xmlns:w14="` + nsW14 + `">`
const commentsFooter = `</w:comments>`

// buildArchive assembles a zip from the given parts. A fixed set of known
// names goes first in conventional order; the rest follow sorted.
func buildArchive(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	ordered := []string{opc.PartContentTypes, opc.PartDocumentRels, opc.PartDocument, opc.PartComments}
	var names []string
	seen := map[string]bool{}
	for _, n := range ordered {
		if _, ok := parts[n]; ok {
			names = append(names, n)
			seen[n] = true
		}
	}
	var rest []string
	for n := range parts {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatalf("create %s: %v", n, err)
		}
		if _, err := w.Write([]byte(parts[n])); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// buildDocx builds a package whose document body holds the given paragraphs.
// extra parts are merged over the defaults; word/comments.xml is the usual
// addition.
func buildDocx(t *testing.T, body string, extra map[string]string) []byte {
	t.Helper()
	parts := map[string]string{
		opc.PartContentTypes: baseContentTypes,
		opc.PartDocumentRels: baseRels,
		opc.PartDocument:     documentHeader + body + documentFooter,
	}
	for name, content := range extra {
		parts[name] = content
	}
	return buildArchive(t, parts)
}

// parseBody parses a package built from the given body.
func parseBody(t *testing.T, body string, extra map[string]string) *Document {
	t.Helper()
	doc, err := Parse(buildDocx(t, body, extra))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

// readTokenText concatenates the character data of every t and delText
// element using the stdlib decoder, independent of the tree walker.
func readTokenText(t *testing.T, markup []byte) string {
	t.Helper()
	dec := stdxml.NewDecoder(bytes.NewReader(markup))
	var b bytes.Buffer
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decode document: %v", err)
		}
		switch el := tok.(type) {
		case stdxml.StartElement:
			if el.Name.Local == "t" || el.Name.Local == "delText" {
				depth++
			}
		case stdxml.EndElement:
			if el.Name.Local == "t" || el.Name.Local == "delText" {
				depth--
			}
		case stdxml.CharData:
			if depth > 0 {
				b.Write(el)
			}
		}
	}
	return b.String()
}

// eventConcat joins the text of all non-comment events.
func eventConcat(p *Paragraph) string {
	var out string
	for _, ev := range p.Events {
		if ev.Kind != EventComment {
			out += ev.Text
		}
	}
	return out
}
