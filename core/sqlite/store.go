package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/FocuswithJustin/redline/core/docx"
	"github.com/FocuswithJustin/redline/core/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	path        TEXT NOT NULL,
	digest      TEXT NOT NULL,
	paragraphs  INTEGER NOT NULL,
	warnings    INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS paragraphs (
	document_id INTEGER NOT NULL REFERENCES documents(id),
	idx         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	num_id      TEXT,
	ilvl        TEXT,
	PRIMARY KEY (document_id, idx)
);

CREATE TABLE IF NOT EXISTS events (
	document_id INTEGER NOT NULL REFERENCES documents(id),
	paragraph   INTEGER NOT NULL,
	ordinal     INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	direction   TEXT,
	text        TEXT NOT NULL,
	author      TEXT,
	date        TEXT,
	comment_id  TEXT,
	comment_text TEXT,
	PRIMARY KEY (document_id, paragraph, ordinal)
);
`

// Store persists extraction results so repeated analyses of a document set
// can be queried without re-parsing the archives.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) an extraction store at path and applies the
// schema.
func OpenStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open extraction store")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply extraction store schema")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DocumentRecord describes one saved analysis run.
type DocumentRecord struct {
	ID         int64  `json:"id"`
	Path       string `json:"path"`
	Digest     string `json:"digest"`
	Paragraphs int    `json:"paragraphs"`
	Warnings   int    `json:"warnings"`
	CreatedAt  string `json:"created_at"`
}

// SaveAnalysis stores a parsed document under the given source path and
// digest. The whole analysis is written in one transaction.
func (s *Store) SaveAnalysis(ctx context.Context, path, digest string, doc *docx.Document) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin analysis transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (path, digest, paragraphs, warnings, created_at) VALUES (?, ?, ?, ?, ?)`,
		path, digest, len(doc.Paragraphs), len(doc.Warnings), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, errors.Wrap(err, "insert document record")
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "document record id")
	}

	paraStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO paragraphs (document_id, idx, text, num_id, ilvl) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "prepare paragraph insert")
	}
	defer paraStmt.Close()

	eventStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (document_id, paragraph, ordinal, kind, direction, text, author, date, comment_id, comment_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "prepare event insert")
	}
	defer eventStmt.Close()

	for _, p := range doc.Paragraphs {
		var numID, ilvl any
		if p.List != nil {
			numID, ilvl = p.List.NumID, p.List.Ilvl
		}
		if _, err := paraStmt.ExecContext(ctx, docID, p.Index, p.Text, numID, ilvl); err != nil {
			return 0, errors.Wrapf(err, "insert paragraph %d", p.Index)
		}
		for ord, ev := range p.Events {
			if _, err := eventStmt.ExecContext(ctx, docID, p.Index, ord,
				string(ev.Kind), string(ev.Direction), ev.Text,
				ev.Author, ev.Date, ev.CommentID, ev.CommentText); err != nil {
				return 0, errors.Wrapf(err, "insert event %d of paragraph %d", ord, p.Index)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit analysis transaction")
	}
	return docID, nil
}

// Documents lists saved analysis runs, newest first.
func (s *Store) Documents(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, digest, paragraphs, warnings, created_at FROM documents ORDER BY id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "query documents")
	}
	defer rows.Close()

	var records []DocumentRecord
	for rows.Next() {
		var r DocumentRecord
		if err := rows.Scan(&r.ID, &r.Path, &r.Digest, &r.Paragraphs, &r.Warnings, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan document record")
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Paragraphs returns the stored paragraphs for one analysis run, with events
// reattached in their original order.
func (s *Store) Paragraphs(ctx context.Context, documentID int64) ([]docx.Paragraph, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, text, num_id, ilvl FROM paragraphs WHERE document_id = ? ORDER BY idx`, documentID)
	if err != nil {
		return nil, errors.Wrap(err, "query paragraphs")
	}
	defer rows.Close()

	var paras []docx.Paragraph
	for rows.Next() {
		var p docx.Paragraph
		var numID, ilvl sql.NullString
		if err := rows.Scan(&p.Index, &p.Text, &numID, &ilvl); err != nil {
			return nil, errors.Wrap(err, "scan paragraph")
		}
		if numID.Valid {
			p.List = &docx.ListInfo{NumID: numID.String, Ilvl: ilvl.String}
		}
		paras = append(paras, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	evRows, err := s.db.QueryContext(ctx,
		`SELECT paragraph, kind, direction, text, author, date, comment_id, comment_text
		 FROM events WHERE document_id = ? ORDER BY paragraph, ordinal`, documentID)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer evRows.Close()

	byIndex := make(map[int]int, len(paras))
	for i, p := range paras {
		byIndex[p.Index] = i
	}
	for evRows.Next() {
		var idx int
		var kind, direction string
		var ev docx.Event
		if err := evRows.Scan(&idx, &kind, &direction, &ev.Text,
			&ev.Author, &ev.Date, &ev.CommentID, &ev.CommentText); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		ev.Kind = docx.EventKind(kind)
		ev.Direction = docx.MoveDirection(direction)
		if i, ok := byIndex[idx]; ok {
			paras[i].Events = append(paras[i].Events, ev)
		}
	}
	return paras, evRows.Err()
}
