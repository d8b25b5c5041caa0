// Package errors provides standardized error types and helpers for the Redline codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy
var (
	// ErrCorruptArchive indicates the package container could not be read
	ErrCorruptArchive = errors.New("corrupt archive")
	// ErrMissingPart indicates a required package part is absent
	ErrMissingPart = errors.New("missing part")
	// ErrMalformedMarkup indicates ill-formed or structurally illegal markup
	ErrMalformedMarkup = errors.New("malformed markup")
	// ErrUnknownComment indicates a reference to a comment id with no entry
	ErrUnknownComment = errors.New("unknown comment")
	// ErrIndexOutOfRange indicates a paragraph index or character range outside the document
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ArchiveError represents a container-level read or write failure
type ArchiveError struct {
	Op      string // Operation being performed (e.g., "open", "write")
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ArchiveError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("archive %s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("archive %s failed: %v", e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrCorruptArchive
}

// PartError represents a missing or unreadable package part
type PartError struct {
	Part string // Part name (e.g., "word/document.xml")
	Err  error  // Underlying error, if any
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part not found: %s", e.Part)
}

func (e *PartError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMissingPart
}

// MarkupError represents ill-formed markup or an illegal markup structure,
// with enough context to locate the offending node.
type MarkupError struct {
	Part      string // Part name the markup came from
	Paragraph int    // Paragraph index, -1 when not paragraph-scoped
	Path      string // Node path (e.g., "/w:document/w:body/w:p[3]")
	Message   string // Human-readable error message
	Err       error  // Underlying error, if any
}

func (e *MarkupError) Error() string {
	switch {
	case e.Path != "":
		return fmt.Sprintf("malformed markup in %s at %s: %s", e.Part, e.Path, e.Message)
	case e.Paragraph >= 0:
		return fmt.Sprintf("malformed markup in %s, paragraph %d: %s", e.Part, e.Paragraph, e.Message)
	default:
		return fmt.Sprintf("malformed markup in %s: %s", e.Part, e.Message)
	}
}

func (e *MarkupError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedMarkup
}

// CommentError represents a dangling comment id reference
type CommentError struct {
	ID string // Comment id that has no entry in the comments part
}

func (e *CommentError) Error() string {
	return fmt.Sprintf("unknown comment id: %s", e.ID)
}

func (e *CommentError) Unwrap() error {
	return ErrUnknownComment
}

// IndexError represents a paragraph index or character range outside the document
type IndexError struct {
	Kind  string // What the index addresses (e.g., "paragraph", "range")
	Index int    // Offending index (start offset for ranges)
	End   int    // End offset for ranges, 0 otherwise
	Limit int    // Exclusive upper bound that was violated
}

func (e *IndexError) Error() string {
	if e.Kind == "range" {
		return fmt.Sprintf("range [%d,%d) out of bounds (limit %d)", e.Index, e.End, e.Limit)
	}
	return fmt.Sprintf("%s index %d out of bounds (limit %d)", e.Kind, e.Index, e.Limit)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

// Helper functions for creating common errors

// NewArchive creates an ArchiveError
func NewArchive(op string, err error) *ArchiveError {
	return &ArchiveError{Op: op, Err: err}
}

// NewPart creates a PartError
func NewPart(part string, err error) *PartError {
	return &PartError{Part: part, Err: err}
}

// NewMarkup creates a MarkupError
func NewMarkup(part string, paragraph int, path, message string) *MarkupError {
	return &MarkupError{Part: part, Paragraph: paragraph, Path: path, Message: message}
}

// NewComment creates a CommentError
func NewComment(id string) *CommentError {
	return &CommentError{ID: id}
}

// NewParagraphIndex creates an IndexError for a paragraph index
func NewParagraphIndex(index, limit int) *IndexError {
	return &IndexError{Kind: "paragraph", Index: index, Limit: limit}
}

// NewRange creates an IndexError for a character range
func NewRange(start, end, limit int) *IndexError {
	return &IndexError{Kind: "range", Index: start, End: end, Limit: limit}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
