package docx

import (
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/opc"
	"github.com/FocuswithJustin/redline/core/xml"
)

// Parse opens a package from raw bytes and extracts its document.
// Recoverable conditions (dangling comment ranges, unknown comment ids)
// become Warnings on the result; structural failures abort.
func Parse(data []byte) (*Document, error) {
	pkg, err := opc.Open(data)
	if err != nil {
		return nil, err
	}
	return ParsePackage(pkg)
}

// ParsePackage extracts the document from an open package.
func ParsePackage(pkg *opc.Package) (*Document, error) {
	comments, err := LoadComments(pkg)
	if err != nil {
		return nil, err
	}

	body, err := pkg.Part(opc.PartDocument)
	if err != nil {
		return nil, err
	}
	tree, err := xml.Parse(body)
	if err != nil {
		return nil, &errors.MarkupError{Part: opc.PartDocument, Paragraph: -1, Message: err.Error(), Err: errors.ErrMalformedMarkup}
	}

	nodes, err := tree.Query("//w:body/w:p")
	if err != nil {
		return nil, &errors.MarkupError{Part: opc.PartDocument, Paragraph: -1, Message: err.Error(), Err: errors.ErrMalformedMarkup}
	}

	doc := &Document{Paragraphs: make([]Paragraph, 0, len(nodes))}
	for i, node := range nodes {
		para, err := walkParagraph(i, node, comments, &doc.Warnings)
		if err != nil {
			return nil, err
		}
		doc.Paragraphs = append(doc.Paragraphs, para)
	}
	return doc, nil
}

// blockCtx is the revision context a run is seen under. Author and date come
// from the enclosing block's own attributes, never from siblings.
type blockCtx struct {
	kind   EventKind
	dir    MoveDirection
	author string
	date   string
}

// commentSpan is an open comment range inside one paragraph.
type commentSpan struct {
	id    string
	start int // rune offset into the displayed text at open
	buf   strings.Builder
}

type paraWalker struct {
	index    int
	comments *CommentSet
	warnings *[]Warning

	events   []Event
	pending  *Event
	flat     strings.Builder
	flatLen  int // rune length of flat
	spans    []*commentSpan
}

func walkParagraph(index int, node *xml.Node, comments *CommentSet, warnings *[]Warning) (Paragraph, error) {
	w := &paraWalker{index: index, comments: comments, warnings: warnings}

	if err := w.walk(node, blockCtx{kind: EventRun}); err != nil {
		return Paragraph{}, err
	}
	w.flush()

	// Unclosed ranges are closed at paragraph end with a warning.
	for _, span := range w.spans {
		*w.warnings = append(*w.warnings, Warning{
			Kind:      WarnPartialRange,
			Paragraph: index,
			CommentID: span.id,
			Message:   "comment range not closed; closed at paragraph end",
		})
		w.emitComment(span)
	}
	w.spans = nil

	events := w.events
	if events == nil {
		events = []Event{}
	}
	flat := w.flat.String()
	return Paragraph{
		Index:  index,
		Text:   strings.TrimSpace(flat),
		List:   listInfo(node),
		Events: events,
		flat:   flat,
	}, nil
}

func (w *paraWalker) walk(node *xml.Node, ctx blockCtx) error {
	for _, child := range node.Elements() {
		switch child.Name() {
		case "pPr", "rPr":
			// properties carry no document text
		case "ins":
			inner := blockCtx{kind: EventInsert, author: child.Attr("w:author"), date: child.Attr("w:date")}
			w.open(inner)
			if err := w.walk(child, inner); err != nil {
				return err
			}
		case "del":
			inner := blockCtx{kind: EventDelete, author: child.Attr("w:author"), date: child.Attr("w:date")}
			w.open(inner)
			if err := w.walk(child, inner); err != nil {
				return err
			}
		case "moveFrom":
			inner := blockCtx{kind: EventMove, dir: MoveSource, author: child.Attr("w:author"), date: child.Attr("w:date")}
			w.open(inner)
			if err := w.walk(child, inner); err != nil {
				return err
			}
		case "moveTo":
			inner := blockCtx{kind: EventMove, dir: MoveDestination, author: child.Attr("w:author"), date: child.Attr("w:date")}
			w.open(inner)
			if err := w.walk(child, inner); err != nil {
				return err
			}
		case "commentRangeStart":
			if err := w.openSpan(child); err != nil {
				return err
			}
		case "commentRangeEnd":
			w.closeSpan(child)
		case "commentReference":
			// the range end marker drives comment events
		case "t", "delText":
			w.text(ctx, child.Text())
		default:
			// runs, hyperlinks and anything unrecognized: descend, same context
			if err := w.walk(child, ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// open starts (or coalesces into) an event for a revision block, so empty
// blocks still surface as events.
func (w *paraWalker) open(ctx blockCtx) {
	w.text(ctx, "")
}

// text feeds run text into the current event, the displayed text, and every
// open comment span. Contiguous runs under equal kind/author/date coalesce
// into one event; a producer fragmenting an edit across runs for formatting
// reasons must not yield separate events.
func (w *paraWalker) text(ctx blockCtx, text string) {
	if w.pending == nil || !w.matches(ctx) {
		w.flush()
		w.pending = &Event{
			Kind:      ctx.kind,
			Direction: ctx.dir,
			Author:    ctx.author,
			Date:      ctx.date,
		}
	}
	if text == "" {
		return
	}
	w.pending.Text += text

	if ctx.kind != EventDelete && ctx.dir != MoveSource {
		w.flat.WriteString(text)
		w.flatLen += utf8.RuneCountInString(text)
	}
	// Comment spans accumulate both sides of every revision.
	for _, span := range w.spans {
		span.buf.WriteString(text)
	}
}

func (w *paraWalker) matches(ctx blockCtx) bool {
	p := w.pending
	return p.Kind == ctx.kind && p.Direction == ctx.dir && p.Author == ctx.author && p.Date == ctx.date
}

func (w *paraWalker) flush() {
	if w.pending == nil {
		return
	}
	// Plain runs that never accumulated text are dropped; revision blocks
	// are kept even when empty.
	if w.pending.Kind != EventRun || w.pending.Text != "" {
		w.events = append(w.events, *w.pending)
	}
	w.pending = nil
}

func (w *paraWalker) openSpan(marker *xml.Node) error {
	id := marker.Attr("w:id")
	if id == "" {
		return nil
	}
	for _, span := range w.spans {
		if span.id == id {
			return &errors.MarkupError{
				Part:      opc.PartDocument,
				Paragraph: w.index,
				Path:      marker.Path(),
				Message:   "overlapping comment ranges share id " + id,
				Err:       errors.ErrMalformedMarkup,
			}
		}
	}
	w.spans = append(w.spans, &commentSpan{id: id, start: w.flatLen})
	return nil
}

func (w *paraWalker) closeSpan(marker *xml.Node) {
	id := marker.Attr("w:id")
	if id == "" {
		return
	}
	for i, span := range w.spans {
		if span.id == id {
			w.spans = append(w.spans[:i], w.spans[i+1:]...)
			w.emitComment(span)
			return
		}
	}
	*w.warnings = append(*w.warnings, Warning{
		Kind:      WarnPartialRange,
		Paragraph: w.index,
		CommentID: id,
		Message:   "comment range end without matching start",
	})
}

// emitComment closes a span into a comment event, after any pending text
// event so document order is preserved.
func (w *paraWalker) emitComment(span *commentSpan) {
	w.flush()
	ev := Event{
		Kind:      EventComment,
		Text:      span.buf.String(),
		CommentID: span.id,
	}
	if c, err := w.comments.Lookup(span.id); err == nil {
		ev.CommentText = c.Body
		ev.Author = c.Author
		ev.Date = c.Date
	} else {
		*w.warnings = append(*w.warnings, Warning{
			Kind:      WarnUnknownComment,
			Paragraph: w.index,
			CommentID: span.id,
			Message:   "comment id has no entry in the comments part",
		})
	}
	w.events = append(w.events, ev)
}

// listInfo reads raw numbering metadata off the paragraph properties.
// Values stay opaque; resolving them against the numbering part is out of
// scope.
func listInfo(p *xml.Node) *ListInfo {
	pPr := childByName(p, "pPr")
	if pPr == nil {
		return nil
	}
	numPr := childByName(pPr, "numPr")
	if numPr == nil {
		return nil
	}
	info := &ListInfo{}
	if numID := childByName(numPr, "numId"); numID != nil {
		info.NumID = numID.Attr("w:val")
	}
	if ilvl := childByName(numPr, "ilvl"); ilvl != nil {
		info.Ilvl = ilvl.Attr("w:val")
	}
	return info
}

// childByName returns the first child element with the given local name,
// regardless of prefix.
func childByName(n *xml.Node, local string) *xml.Node {
	for _, child := range n.Elements() {
		if child.Name() == local {
			return child
		}
	}
	return nil
}
