// Package docx recovers the ordered text and editorial history of a
// WordprocessingML document: paragraphs, tracked insertions/deletions/moves,
// and reviewer comments anchored to text ranges. The reverse direction
// merges new comments back into the package; see Inject.
package docx

import "encoding/json"

// Namespace URIs used across the package.
const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsW14 = "http://schemas.microsoft.com/office/word/2010/wordml"
	nsRel = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsCT  = "http://schemas.openxmlformats.org/package/2006/content-types"

	relTypeComments    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
	contentTypeComment = "application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"
)

// EventKind classifies a paragraph event.
type EventKind string

const (
	// EventRun is plain text untouched by any revision.
	EventRun EventKind = "run"
	// EventInsert is a tracked insertion.
	EventInsert EventKind = "add"
	// EventDelete is a tracked deletion.
	EventDelete EventKind = "delete"
	// EventMove is one side of a tracked move.
	EventMove EventKind = "move"
	// EventComment is a resolved comment range.
	EventComment EventKind = "comment"
)

// MoveDirection distinguishes the two sides of a tracked move.
type MoveDirection string

const (
	// MoveSource is the text's original location (moveFrom).
	MoveSource MoveDirection = "from"
	// MoveDestination is where the text landed (moveTo).
	MoveDestination MoveDirection = "to"
)

// Event is one editorial event inside a paragraph. Concatenating the text of
// run, add, delete and move events in order reproduces the paragraph's full
// text with both sides of every revision; accept/reject is never resolved.
// Comment events carry the covered range's text and do not contribute to the
// concatenation.
type Event struct {
	Kind        EventKind     `json:"kind"`
	Direction   MoveDirection `json:"direction,omitempty"`
	Text        string        `json:"text"`
	Author      string        `json:"author,omitempty"`
	Date        string        `json:"date,omitempty"`
	CommentID   string        `json:"comment_id,omitempty"`
	CommentText string        `json:"comment_text,omitempty"`
}

// ListInfo carries a paragraph's raw numbering metadata, verbatim and
// unresolved against the numbering definitions part.
type ListInfo struct {
	NumID string `json:"num_id"`
	Ilvl  string `json:"ilvl"`
}

// IsListItem reports whether both numbering attributes are present.
func (l *ListInfo) IsListItem() bool {
	return l != nil && l.NumID != "" && l.Ilvl != ""
}

// Paragraph is one parsed body paragraph. Text is the displayed text
// (deleted and move-source text excluded), trimmed of surrounding
// whitespace.
type Paragraph struct {
	Index  int       `json:"index"`
	Text   string    `json:"text"`
	List   *ListInfo `json:"list"`
	Events []Event   `json:"events"`

	flat string // untrimmed displayed text; anchor offsets are rune offsets into this
}

// FlatText returns the paragraph's untrimmed displayed text. Comment anchors
// and injection ranges are rune offsets into this string.
func (p *Paragraph) FlatText() string {
	return p.flat
}

// WarningKind classifies a recoverable extraction diagnostic.
type WarningKind string

const (
	// WarnPartialRange marks a comment range without a matching end marker,
	// heuristically closed at paragraph end.
	WarnPartialRange WarningKind = "partial_range_mismatch"
	// WarnUnknownComment marks a comment reference with no entry in the
	// comments part; the event is kept with an empty body.
	WarnUnknownComment WarningKind = "unknown_comment"
)

// Warning is a recoverable diagnostic attached to an otherwise successful
// extraction.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	Paragraph int         `json:"paragraph"`
	CommentID string      `json:"comment_id,omitempty"`
	Message   string      `json:"message"`
}

// Document is the ordered result of one parse. It is immutable once built;
// injection works on a freshly opened package, never on this snapshot.
type Document struct {
	Paragraphs []Paragraph `json:"paragraphs"`
	Warnings   []Warning   `json:"warnings,omitempty"`
}

// Paragraph returns the paragraph at index, or nil when out of range.
func (d *Document) Paragraph(index int) *Paragraph {
	if index < 0 || index >= len(d.Paragraphs) {
		return nil
	}
	return &d.Paragraphs[index]
}

// JSON renders the document as indented JSON in the report shape.
func (d *Document) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
