package opc

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/FocuswithJustin/redline/core/errors"
)

// buildZip assembles an in-memory archive from name/content pairs, in order.
func buildZip(t *testing.T, parts [][2]string) []byte {
	t.Helper()
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

func testPackage(t *testing.T) []byte {
	t.Helper()
	return buildZip(t, [][2]string{
		{PartContentTypes, `<Types/>`},
		{PartDocument, `<w:document/>`},
		{"word/styles.xml", `<w:styles/>`},
	})
}

// TestOpenCorruptArchive verifies non-zip input fails with the archive sentinel.
func TestOpenCorruptArchive(t *testing.T) {
	_, err := Open([]byte("not a zip file"))
	if err == nil {
		t.Fatal("Open should fail for non-zip input")
	}
	if !errors.Is(err, errors.ErrCorruptArchive) {
		t.Errorf("error should be ErrCorruptArchive, got %v", err)
	}
}

// TestPartAccess verifies reads, missing-part errors and Has.
func TestPartAccess(t *testing.T) {
	pkg, err := Open(testPackage(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	data, err := pkg.Part(PartDocument)
	if err != nil {
		t.Fatalf("Part failed: %v", err)
	}
	if string(data) != `<w:document/>` {
		t.Errorf("Part content = %q", data)
	}

	if !pkg.Has(PartDocument) || pkg.Has(PartComments) {
		t.Error("Has answered wrong for present/absent parts")
	}

	_, err = pkg.Part(PartComments)
	if !errors.Is(err, errors.ErrMissingPart) {
		t.Errorf("missing part error = %v, want ErrMissingPart", err)
	}
}

// TestReplaceShadowsSource verifies staged content wins over the archive and
// the returned slice is a private copy.
func TestReplaceShadowsSource(t *testing.T) {
	pkg, err := Open(testPackage(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	pkg.Replace(PartDocument, []byte(`<w:document><w:body/></w:document>`))

	data, err := pkg.Part(PartDocument)
	if err != nil {
		t.Fatalf("Part failed: %v", err)
	}
	if string(data) != `<w:document><w:body/></w:document>` {
		t.Errorf("staged content not returned: %q", data)
	}

	data[0] = 'X'
	again, _ := pkg.Part(PartDocument)
	if again[0] == 'X' {
		t.Error("Part should return a copy, not the staged buffer")
	}
}

// TestWritePreservesUntouchedParts verifies unstaged entries keep their exact
// compressed bytes through a write cycle.
func TestWritePreservesUntouchedParts(t *testing.T) {
	src := testPackage(t)
	pkg, err := Open(src)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	pkg.Replace(PartDocument, []byte(`<w:document><w:body/></w:document>`))

	out, err := pkg.Write()
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	srcZip, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		t.Fatalf("reread source: %v", err)
	}
	outZip, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("reread output: %v", err)
	}

	rawBytes := func(f *zip.File) []byte {
		rc, err := f.OpenRaw()
		if err != nil {
			t.Fatalf("open raw %s: %v", f.Name, err)
		}
		var b bytes.Buffer
		if _, err := b.ReadFrom(rc); err != nil {
			t.Fatalf("read raw %s: %v", f.Name, err)
		}
		return b.Bytes()
	}
	find := func(zr *zip.Reader, name string) *zip.File {
		for _, f := range zr.File {
			if f.Name == name {
				return f
			}
		}
		t.Fatalf("part %s not found", name)
		return nil
	}

	for _, name := range []string{PartContentTypes, "word/styles.xml"} {
		a, b := find(srcZip, name), find(outZip, name)
		if !bytes.Equal(rawBytes(a), rawBytes(b)) {
			t.Errorf("untouched part %s changed compressed bytes", name)
		}
		if a.CRC32 != b.CRC32 || a.Method != b.Method {
			t.Errorf("untouched part %s changed header fields", name)
		}
	}
}

// TestWriteKeepsOrderAndAppendsAdditions verifies part ordering on write.
func TestWriteKeepsOrderAndAppendsAdditions(t *testing.T) {
	pkg, err := Open(testPackage(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	pkg.Replace(PartComments, []byte(`<w:comments/>`))

	names := pkg.Parts()
	want := []string{PartContentTypes, PartDocument, "word/styles.xml", PartComments}
	if len(names) != len(want) {
		t.Fatalf("Parts = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Parts = %v, want %v", names, want)
		}
	}

	out, err := pkg.Write()
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	outZip, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatalf("reread output: %v", err)
	}
	for i, f := range outZip.File {
		if f.Name != want[i] {
			t.Errorf("entry %d = %s, want %s", i, f.Name, want[i])
		}
	}
}

// TestDigest verifies digests are stable and content-sensitive.
func TestDigest(t *testing.T) {
	pkg, err := Open(testPackage(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	d1, err := pkg.Digest(PartDocument)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if len(d1) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(d1))
	}

	d2, _ := pkg.Digest(PartDocument)
	if d1 != d2 {
		t.Error("digest should be deterministic")
	}

	pkg.Replace(PartDocument, []byte(`changed`))
	d3, _ := pkg.Digest(PartDocument)
	if d1 == d3 {
		t.Error("digest should change with content")
	}
}
