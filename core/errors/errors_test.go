package errors

import (
	"testing"
)

// TestSentinelUnwrapping verifies every typed error unwraps to its sentinel.
func TestSentinelUnwrapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"archive", NewArchive("open", nil), ErrCorruptArchive},
		{"part", NewPart("word/document.xml", nil), ErrMissingPart},
		{"markup", NewMarkup("word/document.xml", 3, "", "bad structure"), ErrMalformedMarkup},
		{"comment", NewComment("7"), ErrUnknownComment},
		{"paragraph index", NewParagraphIndex(9, 4), ErrIndexOutOfRange},
		{"range", NewRange(2, 10, 5), ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Is(tt.err, tt.sentinel) {
				t.Errorf("Is(%v, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

// TestWrappedUnderlyingError verifies an explicit cause takes precedence over
// the sentinel while staying reachable through Is.
func TestWrappedUnderlyingError(t *testing.T) {
	cause := NewComment("3")
	err := NewPart("word/comments.xml", cause)

	if !Is(err, ErrUnknownComment) {
		t.Error("wrapped cause should be reachable through Is")
	}
	var ce *CommentError
	if !As(err, &ce) {
		t.Fatal("As should find the CommentError cause")
	}
	if ce.ID != "3" {
		t.Errorf("CommentError.ID = %q, want 3", ce.ID)
	}
}

// TestMarkupErrorMessage verifies location context appears in the message.
func TestMarkupErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *MarkupError
		want string
	}{
		{
			"with path",
			&MarkupError{Part: "word/document.xml", Paragraph: 2, Path: "/w:document/w:body/w:p[3]", Message: "dup id"},
			"malformed markup in word/document.xml at /w:document/w:body/w:p[3]: dup id",
		},
		{
			"with paragraph",
			&MarkupError{Part: "word/document.xml", Paragraph: 2, Message: "dup id"},
			"malformed markup in word/document.xml, paragraph 2: dup id",
		},
		{
			"bare",
			&MarkupError{Part: "word/comments.xml", Paragraph: -1, Message: "no root"},
			"malformed markup in word/comments.xml: no root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestIndexErrorMessage verifies range and index errors render distinctly.
func TestIndexErrorMessage(t *testing.T) {
	idx := NewParagraphIndex(9, 4)
	if got := idx.Error(); got != "paragraph index 9 out of bounds (limit 4)" {
		t.Errorf("index message = %q", got)
	}
	rng := NewRange(2, 10, 5)
	if got := rng.Error(); got != "range [2,10) out of bounds (limit 5)" {
		t.Errorf("range message = %q", got)
	}
}

// TestWrapNil verifies wrapping nil stays nil.
func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

// TestWrapAddsContext verifies the wrapped chain keeps the original error.
func TestWrapAddsContext(t *testing.T) {
	err := Wrap(ErrMissingPart, "loading comments")
	if !Is(err, ErrMissingPart) {
		t.Error("wrapped error lost its cause")
	}
	if err.Error() != "loading comments: missing part" {
		t.Errorf("message = %q", err.Error())
	}
}
