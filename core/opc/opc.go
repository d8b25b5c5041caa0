// Package opc provides read/replace/write access to OPC packages, the zip
// containers used by Office documents. Untouched parts pass through to the
// output without recompression, so their bytes are identical to the input.
package opc

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/redline/core/errors"
)

// Conventional part names inside a WordprocessingML package.
const (
	PartDocument     = "word/document.xml"
	PartComments     = "word/comments.xml"
	PartDocumentRels = "word/_rels/document.xml.rels"
	PartContentTypes = "[Content_Types].xml"
)

// Package is an open OPC container. A handle is good for one read-then-write
// cycle; callers re-open rather than holding a handle across suspensions.
type Package struct {
	reader *zip.Reader
	staged map[string][]byte // replacements and additions, by part name
	added  []string          // names of staged parts not present in the source, in order
}

// Open opens a package from its raw bytes.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewArchive("open", err)
	}
	return &Package{
		reader: zr,
		staged: make(map[string][]byte),
	}, nil
}

// Has reports whether the package contains the named part, either in the
// source archive or staged.
func (p *Package) Has(name string) bool {
	if _, ok := p.staged[name]; ok {
		return true
	}
	return p.find(name) != nil
}

// Parts returns the part names in archive order, with staged additions last.
func (p *Package) Parts() []string {
	names := make([]string, 0, len(p.reader.File)+len(p.added))
	for _, f := range p.reader.File {
		names = append(names, f.Name)
	}
	names = append(names, p.added...)
	return names
}

// Part returns the current content of the named part. Staged replacements
// shadow the source archive.
func (p *Package) Part(name string) ([]byte, error) {
	if data, ok := p.staged[name]; ok {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	f := p.find(name)
	if f == nil {
		return nil, errors.NewPart(name, nil)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.NewPart(name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.NewPart(name, err)
	}
	return data, nil
}

// Replace stages new content for a part. A part absent from the source
// archive is appended after the original entries on write.
func (p *Package) Replace(name string, data []byte) {
	if _, staged := p.staged[name]; !staged && p.find(name) == nil {
		p.added = append(p.added, name)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	p.staged[name] = buf
}

// Digest returns the BLAKE3 hex digest of the named part's current content.
func (p *Package) Digest(name string) (string, error) {
	data, err := p.Part(name)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Write emits the package with every original part in original order.
// Unstaged parts are copied raw (same compressed bytes, same method);
// staged parts are rewritten, and staged additions go last.
func (p *Package) Write() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range p.reader.File {
		if data, ok := p.staged[f.Name]; ok {
			if err := writePart(zw, f.Name, f.Method, data); err != nil {
				return nil, errors.NewArchive("write", err)
			}
			continue
		}
		if err := copyRaw(zw, f); err != nil {
			return nil, errors.NewArchive("write", err)
		}
	}
	for _, name := range p.added {
		if err := writePart(zw, name, zip.Deflate, p.staged[name]); err != nil {
			return nil, errors.NewArchive("write", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errors.NewArchive("write", err)
	}
	return buf.Bytes(), nil
}

func (p *Package) find(name string) *zip.File {
	for _, f := range p.reader.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func writePart(zw *zip.Writer, name string, method uint16, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func copyRaw(zw *zip.Writer, f *zip.File) error {
	header := f.FileHeader
	w, err := zw.CreateRaw(&header)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}
	rc, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	return nil
}
