package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/randytsao24/trafficintel/internal/store/migrations"
)

var _ Gateway = (*SQLiteStore)(nil)

// SQLiteStore keeps every collection in a single documents table with the
// record body stored as JSON.
type SQLiteStore struct {
	db   *sql.DB
	name string
	path string
}

// OpenSQLite opens (creating if needed) the SQLite database at path
func OpenSQLite(path, name string) (*SQLiteStore, error) {
	if path == "" {
		return nil, storageErr("open", "", fmt.Errorf("empty database path"))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("open", "", fmt.Errorf("creating data directory: %w", err))
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, storageErr("open", "", fmt.Errorf("opening database: %w", err))
	}

	s := &SQLiteStore{db: db, name: name, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, storageErr("open", "", fmt.Errorf("running migrations: %w", err))
	}
	return s, nil
}

// migrate applies the embedded *.up.sql files newer than the recorded version
func (s *SQLiteStore) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, collection string, doc Document) (string, error) {
	body := make(Document, len(doc))
	for k, v := range doc {
		if k == FieldID || k == FieldCreatedAt || k == FieldUpdatedAt {
			continue
		}
		body[k] = v
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", storageErr("create", collection, fmt.Errorf("encoding document: %w", err))
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, collection, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, collection, string(data), now, now,
	)
	if err != nil {
		return "", storageErr("create", collection, err)
	}
	return id, nil
}

func (s *SQLiteStore) GetDocuments(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	if err := checkFilter(filter); err != nil {
		return nil, storageErr("find", collection, err)
	}
	if limit <= 0 {
		return []Document{}, nil
	}

	query := strings.Builder{}
	query.WriteString(`SELECT id, body, created_at, updated_at FROM documents WHERE collection = ?`)
	args := []any{collection}

	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	slices.Sort(fields)
	for _, field := range fields {
		// field names are checked identifiers
		query.WriteString(` AND json_extract(body, '$.` + field + `') = ?`)
		args = append(args, filter[field])
	}
	query.WriteString(` ORDER BY seq LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, storageErr("find", collection, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id, body, created, updated string
		if err := rows.Scan(&id, &body, &created, &updated); err != nil {
			return nil, storageErr("find", collection, fmt.Errorf("scanning row: %w", err))
		}

		doc, err := decodeBody(body)
		if err != nil {
			return nil, storageErr("find", collection, fmt.Errorf("decoding document %s: %w", id, err))
		}
		doc[FieldID] = id
		if doc[FieldCreatedAt], err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, storageErr("find", collection, fmt.Errorf("parsing created_at: %w", err))
		}
		if doc[FieldUpdatedAt], err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, storageErr("find", collection, fmt.Errorf("parsing updated_at: %w", err))
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("find", collection, err)
	}
	return docs, nil
}

func (s *SQLiteStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, storageErr("list collections", "", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageErr("list collections", "", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list collections", "", err)
	}
	return names, nil
}

func (s *SQLiteStore) Name() string { return s.name }

// Path returns the database file path
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeBody(body string) (Document, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
