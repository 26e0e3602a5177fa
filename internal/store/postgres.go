package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxis-lms/praxis/internal/platform/db"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store on PostgreSQL. It is tenant-unaware; scoping
// lives entirely in the decorator.
type PGStore struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewPGStore constructs the unscoped PostgreSQL store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool, pool: pool}
}

var _ Store = (*PGStore)(nil)

func (s *PGStore) FindByID(ctx context.Context, model, id string) (Record, error) {
	return s.FindFirst(ctx, model, Filter{IDColumn: id})
}

func (s *PGStore) FindFirst(ctx context.Context, model string, filter Filter) (Record, error) {
	pol, err := Policy(model)
	if err != nil {
		return nil, err
	}
	where, args := buildWhere(filter)
	rows, err := s.db.Query(ctx, "SELECT * FROM "+quoteIdent(pol.Table)+where+" LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("store: find %s: %w", model, err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("store: find %s: %w", model, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

func (s *PGStore) List(ctx context.Context, model string, filter Filter) ([]Record, error) {
	pol, err := Policy(model)
	if err != nil {
		return nil, err
	}
	where, args := buildWhere(filter)
	rows, err := s.db.Query(ctx, "SELECT * FROM "+quoteIdent(pol.Table)+where, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", model, err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", model, err)
	}
	return records, nil
}

func (s *PGStore) Count(ctx context.Context, model string, filter Filter) (int64, error) {
	pol, err := Policy(model)
	if err != nil {
		return 0, err
	}
	where, args := buildWhere(filter)
	var count int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdent(pol.Table)+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: count %s: %w", model, err)
	}
	return count, nil
}

func (s *PGStore) Create(ctx context.Context, model string, data Record) (Record, error) {
	pol, err := Policy(model)
	if err != nil {
		return nil, err
	}
	cols, placeholders, args := buildInsert(data)
	sql := "INSERT INTO " + quoteIdent(pol.Table) + " (" + cols + ") VALUES (" + placeholders + ") RETURNING *"
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: create %s: %w", model, err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("store: create %s: %w", model, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("store: create %s: no row returned", model)
	}
	return records[0], nil
}

func (s *PGStore) CreateMany(ctx context.Context, model string, rowsIn []Record) (int64, error) {
	pol, err := Policy(model)
	if err != nil {
		return 0, err
	}
	var created int64
	for _, data := range rowsIn {
		cols, placeholders, args := buildInsert(data)
		tag, err := s.db.Exec(ctx, "INSERT INTO "+quoteIdent(pol.Table)+" ("+cols+") VALUES ("+placeholders+")", args...)
		if err != nil {
			return created, fmt.Errorf("store: create many %s: %w", model, err)
		}
		created += tag.RowsAffected()
	}
	return created, nil
}

func (s *PGStore) Update(ctx context.Context, model string, filter Filter, data Record) (int64, error) {
	pol, err := Policy(model)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	set, args := buildSet(data)
	where, whereArgs := buildWhereOffset(filter, len(args))
	tag, err := s.db.Exec(ctx, "UPDATE "+quoteIdent(pol.Table)+" SET "+set+where, append(args, whereArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("store: update %s: %w", model, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) Delete(ctx context.Context, model string, filter Filter) (int64, error) {
	pol, err := Policy(model)
	if err != nil {
		return 0, err
	}
	where, args := buildWhere(filter)
	tag, err := s.db.Exec(ctx, "DELETE FROM "+quoteIdent(pol.Table)+where, args...)
	if err != nil {
		return 0, fmt.Errorf("store: delete %s: %w", model, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStore) Upsert(ctx context.Context, model string, filter Filter, create, update Record) (Record, error) {
	var result Record
	err := s.WithTx(ctx, func(ctx context.Context, tx Store) error {
		affected, err := tx.Update(ctx, model, filter, update)
		if err != nil {
			return err
		}
		if affected > 0 {
			result, err = tx.FindFirst(ctx, model, filter)
			return err
		}
		result, err = tx.Create(ctx, model, create)
		return err
	})
	return result, err
}

func (s *PGStore) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := s.db.Exec(ctx, sql, args...)
	return err
}

// WithTx runs fn against a store bound to a single transaction. Nested
// calls on the transactional store reuse the same transaction.
func (s *PGStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.pool == nil {
		// already inside a transaction
		return fn(ctx, s)
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGStore{db: tx})
	})
}

// --- SQL assembly helpers ---

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildWhere(filter Filter) (string, []any) {
	return buildWhereOffset(filter, 0)
}

func buildWhereOffset(filter Filter, offset int) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	conditions := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	pos := offset + 1
	for _, col := range sortedKeys(filter) {
		value := filter[col]
		if value == nil {
			conditions = append(conditions, quoteIdent(col)+" IS NULL")
			continue
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", quoteIdent(col), pos))
		args = append(args, value)
		pos++
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func buildSet(data Record) (string, []any) {
	assignments := make([]string, 0, len(data))
	args := make([]any, 0, len(data))
	pos := 1
	for _, col := range sortedKeys(data) {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", quoteIdent(col), pos))
		args = append(args, data[col])
		pos++
	}
	return strings.Join(assignments, ", "), args
}

func buildInsert(data Record) (cols, placeholders string, args []any) {
	names := make([]string, 0, len(data))
	holders := make([]string, 0, len(data))
	args = make([]any, 0, len(data))
	pos := 1
	for _, col := range sortedKeys(data) {
		names = append(names, quoteIdent(col))
		holders = append(holders, fmt.Sprintf("$%d", pos))
		args = append(args, data[col])
		pos++
	}
	return strings.Join(names, ", "), strings.Join(holders, ", "), args
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	var records []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		fields := rows.FieldDescriptions()
		record := make(Record, len(fields))
		for i, fd := range fields {
			record[string(fd.Name)] = values[i]
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return records, nil
}
