package pgdocs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// documents are stored as one jsonb row per (path, id); the hierarchical
// collection path is kept opaque, exactly as the client SDK sees it.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    path       TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    fields     JSONB       NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (path, id)
);`

// DB is the Postgres-backed core.DocumentStore used outside DEV.
type DB struct {
	db *sqlx.DB
}

var _ core.DocumentStore = (*DB)(nil)

func Open(conf *core.Config) (*DB, error) {
	db, err := sqlx.Open("postgres", conf.DocstoreDSN)
	if err != nil {
		return nil, errors.Wrap(err, "docstore: opening connection")
	}
	if err := ping(db); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "docstore: ensuring schema")
	}
	return &DB{db: db}, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}
	if err != nil {
		return errors.Wrap(err, "docstore: ping timeout")
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) GetDocument(ctx context.Context, path, id string) (core.Document, error) {
	var raw []byte
	err := d.db.QueryRowxContext(ctx,
		`SELECT fields FROM documents WHERE path = $1 AND id = $2`, path, id,
	).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Document{}, core.ErrDocNotFound
		}
		return core.Document{}, wrap(err, "getting document")
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return core.Document{}, err
	}
	return core.Document{ID: id, Fields: fields}, nil
}

func (d *DB) QueryCollection(ctx context.Context, path string, filters []core.Filter, order ...core.Ordering) ([]core.Document, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, fields FROM documents WHERE path = $1`)
	args := []interface{}{path}

	for _, f := range filters {
		op, ok := filterOps[f.Op]
		if !ok {
			return nil, errors.Errorf("docstore: unsupported filter op %q", f.Op)
		}
		args = append(args, f.Field, fmt.Sprint(f.Value))
		// json text comparison; numeric fields should be zero-padded or
		// filtered client-side
		fmt.Fprintf(&sb, " AND fields->>$%d %s $%d", len(args)-1, op, len(args))
	}
	for _, ord := range order {
		dir := "DESC"
		if ord.Ascending {
			dir = "ASC"
		}
		args = append(args, ord.Field)
		fmt.Fprintf(&sb, " ORDER BY fields->>$%d %s", len(args), dir)
		break // single ordering field, like the remote store
	}

	rows, err := d.db.QueryxContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrap(err, "querying collection")
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, wrap(err, "scanning document")
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, core.Document{ID: id, Fields: fields})
	}
	return docs, wrap(rows.Err(), "iterating collection")
}

func (d *DB) AddDocument(ctx context.Context, path string, fields map[string]interface{}) (string, error) {
	id := newDocID()
	raw, err := encodeFields(fields)
	if err != nil {
		return "", err
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO documents (path, id, fields) VALUES ($1, $2, $3)`, path, id, raw)
	if err != nil {
		return "", wrap(err, "adding document")
	}
	return id, nil
}

func (d *DB) SetDocument(ctx context.Context, path, id string, fields map[string]interface{}, merge bool) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}
	set := `fields = EXCLUDED.fields`
	if merge {
		set = `fields = documents.fields || EXCLUDED.fields`
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO documents (path, id, fields, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (path, id) DO UPDATE SET `+set+`, updated_at = now()`,
		path, id, raw)
	return wrap(err, "setting document")
}

func (d *DB) DeleteDocument(ctx context.Context, path, id string) error {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM documents WHERE path = $1 AND id = $2`, path, id)
	if err != nil {
		return wrap(err, "deleting document")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrDocNotFound
	}
	return nil
}

func newDocID() string {
	return uuid.New().String()
}

var filterOps = map[string]string{
	"==": "=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

func encodeFields(fields map[string]interface{}) ([]byte, error) {
	raw, err := json.Marshal(fields)
	return raw, errors.Wrap(err, "docstore: encoding fields")
}

func decodeFields(raw []byte) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "docstore: decoding fields")
	}
	return fields, nil
}

// wrap converts driver errors to the store's error taxonomy.
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "42501" { // insufficient_privilege
		return core.ErrPermissionDenied
	}
	return errors.Wrap(err, "docstore: "+msg)
}
