package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB records statements and serves schema_migrations rows from memory.
type fakeDB struct {
	applied   map[int]time.Time
	execs     []string
	failOn    string
	beginErr  error
	commits   int
	rollbacks int
}

func newFakeDB() *fakeDB {
	return &fakeDB{applied: make(map[int]time.Time)}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	rows := &fakeRows{idx: -1}
	for v, at := range f.applied {
		rows.data = append(rows.data, []interface{}{v, at})
	}
	return rows, nil
}

func (f *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &fakeTx{db: f}, nil
}

type fakeTx struct {
	pgx.Tx
	db      *fakeDB
	pending []interface{}
	done    bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if t.db.failOn != "" && sql == t.db.failOn {
		return pgconn.CommandTag{}, errors.New("syntax error")
	}
	t.db.execs = append(t.db.execs, sql)
	if len(args) == 2 {
		t.pending = append(t.pending, args[0])
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	for _, v := range t.pending {
		t.db.applied[v.(int)] = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	}
	t.db.commits++
	t.done = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.db.rollbacks++
	t.done = true
	return nil
}

type fakeRows struct {
	pgx.Rows
	data [][]interface{}
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.data[r.idx]
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = row[i].(int)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return fmt.Errorf("unsupported scan type %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}
