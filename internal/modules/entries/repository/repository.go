package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/tkfj/hass-dewpoint/internal/entry"
)

//go:embed sql/list-entries.sql
var listEntriesSQL string

//go:embed sql/get-entry.sql
var getEntrySQL string

//go:embed sql/insert-entry.sql
var insertEntrySQL string

//go:embed sql/update-entry-options.sql
var updateEntryOptionsSQL string

//go:embed sql/update-entry-data.sql
var updateEntryDataSQL string

//go:embed sql/delete-entry.sql
var deleteEntrySQL string

type EntryRepository interface {
	List(ctx context.Context) ([]entry.Entry, error)
	Get(ctx context.Context, id string) (entry.Entry, error)
	Insert(ctx context.Context, e entry.Entry) error
	UpdateOptions(ctx context.Context, id string, options *entry.Settings, at time.Time) error
	UpdateData(ctx context.Context, id string, title string, data entry.Settings, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) EntryRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) List(ctx context.Context) ([]entry.Entry, error) {
	rows, err := r.db.QueryContext(ctx, listEntriesSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close entries rows", "error", err)
		}
	}()

	var out []entry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) Get(ctx context.Context, id string) (entry.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, getEntrySQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return entry.Entry{}, fmt.Errorf("%w: %q", entry.ErrNotFound, id)
	}
	return e, err
}

func (r *repositoryImpl) Insert(ctx context.Context, e entry.Entry) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	options, err := marshalOptions(e.Options)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, insertEntrySQL,
		e.ID,
		e.Title,
		e.Source,
		string(data),
		options,
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %q", entry.ErrExists, e.ID)
		}
		return fmt.Errorf("insert entry %q: %w", e.ID, err)
	}
	return nil
}

func (r *repositoryImpl) UpdateOptions(ctx context.Context, id string, options *entry.Settings, at time.Time) error {
	opts, err := marshalOptions(options)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, updateEntryOptionsSQL, opts, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update options %q: %w", id, err)
	}
	return requireRow(res, id)
}

func (r *repositoryImpl) UpdateData(ctx context.Context, id string, title string, data entry.Settings, at time.Time) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	res, err := r.db.ExecContext(ctx, updateEntryDataSQL, title, string(b), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update data %q: %w", id, err)
	}
	return requireRow(res, id)
}

func (r *repositoryImpl) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteEntrySQL, id)
	if err != nil {
		return fmt.Errorf("delete entry %q: %w", id, err)
	}
	return requireRow(res, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (entry.Entry, error) {
	var (
		e                    entry.Entry
		data                 string
		options              sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Source, &data, &options, &createdAt, &updatedAt); err != nil {
		return entry.Entry{}, err
	}
	if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
		return entry.Entry{}, fmt.Errorf("entry %q: decode data: %w", e.ID, err)
	}
	if options.Valid {
		var o entry.Settings
		if err := json.Unmarshal([]byte(options.String), &o); err != nil {
			return entry.Entry{}, fmt.Errorf("entry %q: decode options: %w", e.ID, err)
		}
		e.Options = &o
	}

	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return entry.Entry{}, fmt.Errorf("entry %q: %w", e.ID, err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return entry.Entry{}, fmt.Errorf("entry %q: %w", e.ID, err)
	}
	return e, nil
}

func marshalOptions(o *entry.Settings) (sql.NullString, error) {
	if o == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal options: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", entry.ErrNotFound, id)
	}
	return nil
}

// timeLayout keeps a fixed width so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", s, err, err2)
		}
	}
	return t, nil
}

func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
