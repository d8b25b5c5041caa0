// Command redline is the CLI tool for Redline.
// It extracts tracked changes and comments from DOCX documents and injects
// new review comments back into them.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/redline/core/docx"
	"github.com/FocuswithJustin/redline/core/opc"
	"github.com/FocuswithJustin/redline/core/review"
	"github.com/FocuswithJustin/redline/core/sqlite"
	"github.com/FocuswithJustin/redline/internal/bundle"
	"github.com/FocuswithJustin/redline/internal/logging"
)

const version = "0.2.0"

// CLI defines the command-line interface for redline.
var CLI struct {
	// Global flags
	Verbose   bool   `short:"v" help:"Enable debug logging"`
	LogFormat string `help:"Log output format (text or json)" enum:"text,json" default:"text"`

	Extract ExtractCmd `cmd:"" help:"Extract paragraphs, tracked changes and comments from a DOCX"`
	Inject  InjectCmd  `cmd:"" help:"Inject review comments into a DOCX"`
	Review  ReviewCmd  `cmd:"" help:"Resolve reviewer notes against a DOCX without writing it"`
	Verify  VerifyCmd  `cmd:"" help:"Compare two DOCX packages part by part"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ExtractCmd extracts the editorial history of a document.
type ExtractCmd struct {
	Path   string `arg:"" help:"Path to DOCX file" type:"existingfile"`
	JSON   string `help:"Write the extraction JSON to this path instead of stdout" type:"path"`
	DB     string `help:"Also record the extraction in this SQLite store" type:"path"`
	Bundle string `help:"Also write an analysis bundle (.tar.gz or .tar.xz)" type:"path"`
}

func (c *ExtractCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	pkg, err := opc.Open(data)
	if err != nil {
		return err
	}
	doc, err := docx.ParsePackage(pkg)
	if err != nil {
		return err
	}
	for _, w := range doc.Warnings {
		logging.ParseWarning(string(w.Kind), w.Paragraph, w.CommentID, w.Message)
	}

	out, err := doc.JSON()
	if err != nil {
		return fmt.Errorf("encode extraction: %w", err)
	}

	if c.JSON != "" {
		if err := os.WriteFile(c.JSON, out, 0644); err != nil {
			return fmt.Errorf("write extraction: %w", err)
		}
		logging.Info("extraction written", "path", c.JSON, "paragraphs", len(doc.Paragraphs))
	} else {
		fmt.Println(string(out))
	}

	digest, err := pkg.Digest(opc.PartDocument)
	if err != nil {
		return err
	}

	if c.DB != "" {
		store, err := sqlite.OpenStore(c.DB)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.SaveAnalysis(context.Background(), c.Path, digest, doc)
		if err != nil {
			return err
		}
		logging.Info("analysis recorded", "db", c.DB, "document_id", id)
	}

	if c.Bundle != "" {
		manifest := bundle.NewManifest(c.Path, digest, len(doc.Paragraphs), len(doc.Warnings))
		if err := bundle.Write(c.Bundle, manifest, data, out); err != nil {
			return err
		}
		logging.Info("bundle written", "path", c.Bundle, "id", manifest.ID)
	}

	return nil
}

// InjectCmd adds review comments to a document.
type InjectCmd struct {
	Path string `arg:"" help:"Path to DOCX file" type:"existingfile"`
	Out  string `required:"" help:"Output DOCX path" type:"path"`

	Comment []string `help:"Comment spec 'N=body' or 'N:start,end=body' (repeatable)"`
	Notes   string   `help:"Reviewer notes file; lines like '- [para 3] \"quoted target\" remark'" type:"existingfile"`

	Author   string `default:"Redline" help:"Comment author name"`
	Initials string `default:"RL" help:"Comment author initials"`
	Date     string `help:"Comment timestamp (RFC 3339); defaults to now"`
}

func (c *InjectCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	var reqs []docx.CommentRequest
	for _, spec := range c.Comment {
		req, err := parseCommentSpec(spec)
		if err != nil {
			return err
		}
		req.Author = c.Author
		req.Initials = c.Initials
		req.Date = c.Date
		reqs = append(reqs, req)
	}

	if c.Notes != "" {
		notesText, err := os.ReadFile(c.Notes)
		if err != nil {
			return fmt.Errorf("read notes: %w", err)
		}
		doc, err := docx.Parse(data)
		if err != nil {
			return err
		}
		notes := review.ParseNotes(string(notesText))
		resolved, skipped := review.Resolve(doc, notes, c.Author, c.Initials)
		for _, n := range skipped {
			logging.Warn("note skipped", "paragraph", n.Paragraph, "comment", n.Comment)
		}
		for i := range resolved {
			resolved[i].Date = c.Date
		}
		reqs = append(reqs, resolved...)
	}

	if len(reqs) == 0 {
		return fmt.Errorf("nothing to inject: pass --comment or --notes")
	}

	result, err := docx.Inject(data, reqs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Out, result.Output, 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	fmt.Printf("Injected %d comment(s) into %s\n", len(result.IDs), c.Out)
	for _, id := range result.IDs {
		fmt.Printf("  comment id: %s\n", id)
	}
	return nil
}

// parseCommentSpec parses 'N=body' or 'N:start,end=body'.
func parseCommentSpec(spec string) (docx.CommentRequest, error) {
	var req docx.CommentRequest
	eq := strings.Index(spec, "=")
	if eq < 0 {
		return req, fmt.Errorf("invalid comment spec %q: missing '='", spec)
	}
	locator, body := spec[:eq], spec[eq+1:]
	if body == "" {
		return req, fmt.Errorf("invalid comment spec %q: empty body", spec)
	}
	req.Body = body

	idx := locator
	if colon := strings.Index(locator, ":"); colon >= 0 {
		idx = locator[:colon]
		parts := strings.SplitN(locator[colon+1:], ",", 2)
		if len(parts) != 2 {
			return req, fmt.Errorf("invalid comment spec %q: range must be start,end", spec)
		}
		start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return req, fmt.Errorf("invalid comment spec %q: bad range start", spec)
		}
		end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return req, fmt.Errorf("invalid comment spec %q: bad range end", spec)
		}
		req.Range = &docx.Range{Start: start, End: end}
	}

	n, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil {
		return req, fmt.Errorf("invalid comment spec %q: bad paragraph index", spec)
	}
	req.ParagraphIndex = n
	return req, nil
}

// ReviewCmd previews how reviewer notes resolve against a document.
type ReviewCmd struct {
	Path  string `arg:"" help:"Path to DOCX file" type:"existingfile"`
	Notes string `arg:"" help:"Reviewer notes file" type:"existingfile"`
}

func (c *ReviewCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	notesText, err := os.ReadFile(c.Notes)
	if err != nil {
		return fmt.Errorf("read notes: %w", err)
	}

	doc, err := docx.Parse(data)
	if err != nil {
		return err
	}
	notes := review.ParseNotes(string(notesText))
	resolved, skipped := review.Resolve(doc, notes, "", "")

	fmt.Printf("Parsed %d note(s), %d resolvable, %d skipped\n", len(notes), len(resolved), len(skipped))
	for _, req := range resolved {
		target := "whole paragraph"
		if req.Range != nil {
			target = fmt.Sprintf("runes %d-%d", req.Range.Start, req.Range.End)
		}
		fmt.Printf("  paragraph %d (%s): %s\n", req.ParagraphIndex, target, req.Body)
	}
	for _, n := range skipped {
		fmt.Printf("  skipped: paragraph %d out of range\n", n.Paragraph)
	}
	return nil
}

// VerifyCmd compares two DOCX packages part by part using content digests.
type VerifyCmd struct {
	A string `arg:"" help:"First DOCX file" type:"existingfile"`
	B string `arg:"" help:"Second DOCX file" type:"existingfile"`
}

func (c *VerifyCmd) Run() error {
	pkgA, err := openPackage(c.A)
	if err != nil {
		return err
	}
	pkgB, err := openPackage(c.B)
	if err != nil {
		return err
	}

	names := map[string]bool{}
	for _, n := range pkgA.Parts() {
		names[n] = true
	}
	for _, n := range pkgB.Parts() {
		names[n] = true
	}

	identical := true
	for _, name := range sortedKeys(names) {
		switch {
		case !pkgA.Has(name):
			fmt.Printf("  only in %s: %s\n", c.B, name)
			identical = false
		case !pkgB.Has(name):
			fmt.Printf("  only in %s: %s\n", c.A, name)
			identical = false
		default:
			da, err := pkgA.Digest(name)
			if err != nil {
				return err
			}
			db, err := pkgB.Digest(name)
			if err != nil {
				return err
			}
			if da != db {
				fmt.Printf("  differs: %s\n", name)
				identical = false
			}
		}
	}

	if identical {
		fmt.Println("Packages are identical")
		return nil
	}
	return fmt.Errorf("packages differ")
}

func openPackage(path string) (*opc.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return opc.Open(data)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Printf("redline version %s (sqlite driver: %s)\n", version, info.DriverType)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("redline"),
		kong.Description("Redline - DOCX tracked-changes extraction and comment injection"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	level := logging.LevelWarn
	if CLI.Verbose {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
