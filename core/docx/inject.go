package docx

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/opc"
	"github.com/FocuswithJustin/redline/core/xml"
)

// Range is a half-open rune range over a paragraph's flattened text.
type Range struct {
	Start int
	End   int
}

// CommentRequest asks for one comment to be anchored into the document.
// A nil Range covers the whole paragraph. Date is ISO-8601; empty means now.
type CommentRequest struct {
	ParagraphIndex int
	Range          *Range
	Author         string
	Initials       string
	Date           string
	Body           string
}

// InjectResult is the outcome of a successful injection batch.
type InjectResult struct {
	Output []byte   // the complete new archive
	IDs    []string // allocated comment ids, in request order
}

// commentsTemplate is the minimal valid comments part synthesized when the
// package has none.
const commentsTemplate = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:comments xmlns:w="` + nsW + `" xmlns:w14="` + nsW14 + `"></w:comments>`

const relsTemplate = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="` + nsRel + `"></Relationships>`

// Inject anchors the requested comments into the document and returns a new
// archive. Ids are allocated strictly above the current maximum and stay
// monotonic across repeated invocations. In-memory mutation proceeds per
// request, but the archive is written only when the whole batch succeeds;
// nothing partial ever reaches the output.
func Inject(src []byte, reqs []CommentRequest) (*InjectResult, error) {
	pkg, err := opc.Open(src)
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
	paragraphs, err := tree.Query("//w:body/w:p")
	if err != nil {
		return nil, &errors.MarkupError{Part: opc.PartDocument, Paragraph: -1, Message: err.Error(), Err: errors.ErrMalformedMarkup}
	}

	hadComments := pkg.Has(opc.PartComments)
	commentsTree, err := loadCommentsTree(pkg, hadComments)
	if err != nil {
		return nil, err
	}
	commentsRoot := commentsTree.Root()

	nextID := maxCommentID(commentsRoot) + 1
	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if req.ParagraphIndex < 0 || req.ParagraphIndex >= len(paragraphs) {
			return nil, errors.NewParagraphIndex(req.ParagraphIndex, len(paragraphs))
		}
		id := strconv.Itoa(nextID)
		nextID++
		if err := anchorRange(paragraphs[req.ParagraphIndex], req, id); err != nil {
			return nil, err
		}
		appendCommentNode(commentsRoot, id, req)
		ids = append(ids, id)
	}

	pkg.Replace(opc.PartDocument, tree.Serialize())
	pkg.Replace(opc.PartComments, commentsTree.Serialize())
	if err := declareCommentsPart(pkg); err != nil {
		return nil, err
	}

	out, err := pkg.Write()
	if err != nil {
		return nil, err
	}
	return &InjectResult{Output: out, IDs: ids}, nil
}

func loadCommentsTree(pkg *opc.Package, exists bool) (*xml.Document, error) {
	if !exists {
		return xml.Parse([]byte(commentsTemplate))
	}
	data, err := pkg.Part(opc.PartComments)
	if err != nil {
		return nil, err
	}
	tree, err := xml.Parse(data)
	if err != nil {
		return nil, &errors.MarkupError{Part: opc.PartComments, Paragraph: -1, Message: err.Error(), Err: errors.ErrMalformedMarkup}
	}
	return tree, nil
}

func maxCommentID(commentsRoot *xml.Node) int {
	max := 0
	for _, c := range commentsRoot.Elements() {
		if c.Name() != "comment" {
			continue
		}
		if n, err := strconv.Atoi(c.Attr("w:id")); err == nil && n > max {
			max = n
		}
	}
	return max
}

// textAtom is one displayed text element together with its enclosing run.
type textAtom struct {
	run  *xml.Node // the w:r element
	t    *xml.Node // the w:t element inside run
	text []rune
}

// anchorRange splits the covering runs at the request's boundaries and
// inserts the range markers and reference run into the live tree.
func anchorRange(p *xml.Node, req CommentRequest, id string) error {
	atoms := displayedAtoms(p)
	total := 0
	for _, a := range atoms {
		total += len(a.text)
	}

	start, end := 0, total
	if req.Range != nil {
		start, end = req.Range.Start, req.Range.End
		if start < 0 || end < start || end > total {
			return errors.NewRange(start, end, total)
		}
	}

	rangeStart := markerNode("commentRangeStart", id)
	rangeEnd := markerNode("commentRangeEnd", id)
	refRun := referenceRun(id)

	if len(atoms) == 0 {
		// No displayed runs: the markers delimit an empty range at the end
		// of the paragraph content.
		p.AppendChild(rangeStart)
		p.AppendChild(rangeEnd)
		p.AppendChild(refRun)
		return nil
	}

	atoms = splitBoundary(atoms, start)
	atoms = splitBoundary(atoms, end)

	startIdx := atomIndexAt(atoms, start)
	endIdx := atomIndexAt(atoms, end)

	if start == end {
		if startIdx < len(atoms) {
			anchor := atoms[startIdx].run
			parent := anchor.Parent()
			parent.InsertBefore(rangeStart, anchor)
			parent.InsertBefore(rangeEnd, anchor)
			parent.InsertBefore(refRun, anchor)
		} else {
			last := atoms[len(atoms)-1].run
			parent := last.Parent()
			parent.InsertAfter(rangeStart, last)
			parent.InsertAfter(rangeEnd, rangeStart)
			parent.InsertAfter(refRun, rangeEnd)
		}
		return nil
	}

	first := atoms[startIdx].run
	first.Parent().InsertBefore(rangeStart, first)

	last := atoms[endIdx-1].run
	parent := last.Parent()
	parent.InsertAfter(rangeEnd, last)
	parent.InsertAfter(refRun, rangeEnd)
	return nil
}

// displayedAtoms walks the paragraph collecting w:t elements that contribute
// to the displayed text, skipping deleted and move-source subtrees.
func displayedAtoms(p *xml.Node) []textAtom {
	var atoms []textAtom
	var walk func(n *xml.Node)
	walk = func(n *xml.Node) {
		for _, child := range n.Elements() {
			switch child.Name() {
			case "pPr", "del", "moveFrom", "commentRangeStart", "commentRangeEnd":
				// nothing displayed below these
			case "r":
				for _, rc := range child.Elements() {
					if rc.Name() == "t" {
						atoms = append(atoms, textAtom{run: child, t: rc, text: []rune(rc.Text())})
					}
				}
			default:
				walk(child)
			}
		}
	}
	walk(p)
	return atoms
}

// splitBoundary ensures offset falls on an atom boundary, splitting the
// covering run in two when it does not. Every formatting attribute is
// preserved on both fragments.
func splitBoundary(atoms []textAtom, offset int) []textAtom {
	pos := 0
	for i, a := range atoms {
		if offset <= pos {
			return atoms
		}
		if offset < pos+len(a.text) {
			left, right := splitRun(a, offset-pos)
			// Later atoms of the split run moved into the new run node.
			for j := i + 1; j < len(atoms); j++ {
				if atoms[j].run.Same(a.run) {
					atoms[j].run = right.run
				}
			}
			out := make([]textAtom, 0, len(atoms)+1)
			out = append(out, atoms[:i]...)
			out = append(out, left, right)
			out = append(out, atoms[i+1:]...)
			return out
		}
		pos += len(a.text)
	}
	return atoms
}

// atomIndexAt returns the index of the first atom starting at offset, or
// len(atoms) when offset is the total length.
func atomIndexAt(atoms []textAtom, offset int) int {
	pos := 0
	for i, a := range atoms {
		if pos >= offset {
			return i
		}
		pos += len(a.text)
	}
	return len(atoms)
}

// splitRun splits an atom's run at rune offset k (0 < k < len). The second
// run clones the first's properties and takes the text tail plus everything
// after the split point.
func splitRun(a textAtom, k int) (textAtom, textAtom) {
	run, t := a.run, a.t

	newRun := run.Clone()
	// Strip the clone's children back to properties only, then rebuild.
	for _, c := range newRun.Children() {
		newRun.RemoveChild(c)
	}
	if rPr := childByName(run, "rPr"); rPr != nil {
		newRun.AppendChild(rPr.Clone())
	}

	newT := t.Clone()
	setTextContent(newT, string(a.text[k:]))
	newRun.AppendChild(newT)

	// Move the siblings after the split t into the new run.
	var moving []*xml.Node
	seen := false
	for _, c := range run.Children() {
		if seen {
			moving = append(moving, c)
		}
		if c.Same(t) {
			seen = true
		}
	}
	for _, c := range moving {
		run.RemoveChild(c)
		newRun.AppendChild(c)
	}

	setTextContent(t, string(a.text[:k]))
	run.Parent().InsertAfter(newRun, run)

	return textAtom{run: run, t: t, text: a.text[:k]},
		textAtom{run: newRun, t: newT, text: a.text[k:]}
}

// setTextContent replaces the element's children with a single text node,
// preserving significant whitespace.
func setTextContent(el *xml.Node, text string) {
	for _, c := range el.Children() {
		el.RemoveChild(c)
	}
	el.AppendChild(xml.NewText(text))
	if strings.TrimSpace(text) != text {
		el.SetAttr("xml:space", "preserve")
	}
}

func markerNode(local, id string) *xml.Node {
	n := xml.NewElement("w:"+local, nsW)
	n.SetAttr("w:id", id)
	return n
}

// referenceRun builds the w:r carrying the visible comment reference mark.
func referenceRun(id string) *xml.Node {
	run := xml.NewElement("w:r", nsW)
	rPr := xml.NewElement("w:rPr", nsW)
	style := xml.NewElement("w:rStyle", nsW)
	style.SetAttr("w:val", "CommentReference")
	rPr.AppendChild(style)
	run.AppendChild(rPr)
	ref := xml.NewElement("w:commentReference", nsW)
	ref.SetAttr("w:id", id)
	run.AppendChild(ref)
	return run
}

// appendCommentNode appends a new w:comment entry to the comments tree.
// Each body line becomes one paragraph with a durable w14:paraId.
func appendCommentNode(commentsRoot *xml.Node, id string, req CommentRequest) {
	date := req.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02T15:04:05Z")
	}

	comment := xml.NewElement("w:comment", nsW)
	comment.SetAttr("w:id", id)
	if req.Author != "" {
		comment.SetAttr("w:author", req.Author)
	}
	if req.Initials != "" {
		comment.SetAttr("w:initials", req.Initials)
	}
	comment.SetAttr("w:date", date)

	lines := strings.Split(req.Body, "\n")
	for i, line := range lines {
		p := xml.NewElement("w:p", nsW)
		p.SetAttr("w14:paraId", newParaID())
		if i == 0 {
			p.AppendChild(annotationRefRun())
		}
		run := xml.NewElement("w:r", nsW)
		t := xml.NewElement("w:t", nsW)
		setTextContent(t, line)
		run.AppendChild(t)
		p.AppendChild(run)
		comment.AppendChild(p)
	}
	commentsRoot.AppendChild(comment)
}

// annotationRefRun is the conventional leading run of a comment paragraph.
func annotationRefRun() *xml.Node {
	run := xml.NewElement("w:r", nsW)
	rPr := xml.NewElement("w:rPr", nsW)
	style := xml.NewElement("w:rStyle", nsW)
	style.SetAttr("w:val", "CommentReference")
	rPr.AppendChild(style)
	run.AppendChild(rPr)
	run.AppendChild(xml.NewElement("w:annotationRef", nsW))
	return run
}

// newParaID derives an 8-hex-digit durable paragraph id from a random UUID.
// Word requires the value to be below 0x80000000.
func newParaID() string {
	u := uuid.New()
	b := u[:4]
	b[0] &= 0x7F
	return strings.ToUpper(hex.EncodeToString(b))
}

// declareCommentsPart adds the relationship and content-type entries for the
// comments part when absent. Parts already declaring it are left untouched
// so they pass through byte-identical.
func declareCommentsPart(pkg *opc.Package) error {
	// Relationship entry on the document part.
	var relsTree *xml.Document
	var err error
	if pkg.Has(opc.PartDocumentRels) {
		data, perr := pkg.Part(opc.PartDocumentRels)
		if perr != nil {
			return perr
		}
		relsTree, err = xml.Parse(data)
		if err != nil {
			return &errors.MarkupError{Part: opc.PartDocumentRels, Paragraph: -1, Message: err.Error(), Err: errors.ErrMalformedMarkup}
		}
	} else {
		relsTree, err = xml.Parse([]byte(relsTemplate))
		if err != nil {
			return err
		}
	}
	relsRoot := relsTree.Root()
	declared := false
	maxRel := 0
	for _, rel := range relsRoot.Elements() {
		if rel.Name() != "Relationship" {
			continue
		}
		if rel.Attr("Type") == relTypeComments {
			declared = true
		}
		idAttr := rel.Attr("Id")
		if n, convErr := strconv.Atoi(strings.TrimPrefix(idAttr, "rId")); convErr == nil && n > maxRel {
			maxRel = n
		}
	}
	if !declared {
		rel := xml.NewElement("Relationship", nsRel)
		rel.SetAttr("Id", "rId"+strconv.Itoa(maxRel+1))
		rel.SetAttr("Type", relTypeComments)
		rel.SetAttr("Target", "comments.xml")
		relsRoot.AppendChild(rel)
		pkg.Replace(opc.PartDocumentRels, relsTree.Serialize())
	}

	// Content-type override.
	data, err := pkg.Part(opc.PartContentTypes)
	if err != nil {
		return err
	}
	ctTree, err := xml.Parse(data)
	if err != nil {
		return &errors.MarkupError{Part: opc.PartContentTypes, Paragraph: -1, Message: err.Error(), Err: errors.ErrMalformedMarkup}
	}
	ctRoot := ctTree.Root()
	for _, o := range ctRoot.Elements() {
		if o.Name() == "Override" && o.Attr("PartName") == "/"+opc.PartComments {
			return nil
		}
	}
	override := xml.NewElement("Override", nsCT)
	override.SetAttr("PartName", "/"+opc.PartComments)
	override.SetAttr("ContentType", contentTypeComment)
	ctRoot.AppendChild(override)
	pkg.Replace(opc.PartContentTypes, ctTree.Serialize())
	return nil
}
