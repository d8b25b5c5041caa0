// Package bundle packages an analysis run into a single compressed archive.
// A bundle is a tar.gz or tar.xz file holding the source document, the
// extraction JSON, and a manifest describing both.
package bundle

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz"
)

// Entry names inside a bundle.
const (
	ManifestName   = "manifest.json"
	SourceName     = "source.docx"
	ExtractionName = "extraction.json"
)

// Manifest describes the contents of a bundle.
type Manifest struct {
	ID         string `json:"id"`
	SourcePath string `json:"source_path"`
	Digest     string `json:"digest"`
	Paragraphs int    `json:"paragraphs"`
	Warnings   int    `json:"warnings"`
	CreatedAt  string `json:"created_at"`
}

// NewManifest builds a manifest with a fresh id and the current time.
func NewManifest(sourcePath, digest string, paragraphs, warnings int) Manifest {
	return Manifest{
		ID:         uuid.New().String(),
		SourcePath: sourcePath,
		Digest:     digest,
		Paragraphs: paragraphs,
		Warnings:   warnings,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
}

// Write creates a bundle at dstPath. Compression is chosen from the path
// suffix: .tar.xz uses xz, everything else gzip.
func Write(dstPath string, manifest Manifest, source, extraction []byte) error {
	outFile, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create bundle file: %w", err)
	}
	defer outFile.Close()

	var compressor io.WriteCloser
	if strings.HasSuffix(dstPath, ".tar.xz") {
		xzw, err := xz.NewWriter(outFile)
		if err != nil {
			return fmt.Errorf("xz writer: %w", err)
		}
		compressor = xzw
	} else {
		compressor = gzip.NewWriter(outFile)
	}

	tw := tar.NewWriter(compressor)

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	now := time.Now()
	entries := []struct {
		name string
		data []byte
	}{
		{ManifestName, manifestData},
		{SourceName, source},
		{ExtractionName, extraction},
	}
	for _, e := range entries {
		header := &tar.Header{
			Name:    e.name,
			Mode:    0644,
			Size:    int64(len(e.data)),
			ModTime: now,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write header %s: %w", e.name, err)
		}
		if _, err := tw.Write(e.data); err != nil {
			return fmt.Errorf("write entry %s: %w", e.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}
	return nil
}

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader opens a bundle for reading. It detects .tar.xz and .tar.gz
// compression from the path suffix.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}

	var reader io.Reader = f
	var decompressor io.Closer

	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
		decompressor = nil // xz reader doesn't need closing
	case strings.HasSuffix(path, ".tar.gz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported bundle format: %s", path)
	}

	return &Reader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the bundle reader and any underlying decompressors.
func (r *Reader) Close() error {
	var errs []error
	if r.decompressor != nil {
		if err := r.decompressor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// ReadFile reads one named entry from a bundle.
func ReadFile(bundlePath, name string) ([]byte, error) {
	r, err := NewReader(bundlePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if header.Name == name {
			return io.ReadAll(r)
		}
	}
	return nil, fmt.Errorf("entry not found: %s", name)
}

// ReadManifest reads and decodes a bundle's manifest.
func ReadManifest(bundlePath string) (Manifest, error) {
	data, err := ReadFile(bundlePath, ManifestName)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
