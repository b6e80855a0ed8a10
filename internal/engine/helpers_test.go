package engine

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"db-shuttle/internal/database"
	"db-shuttle/internal/dialect"
)

var (
	sourceDesc = database.Descriptor{Driver: "mysql", Host: "src.local", Port: 3306, Database: "shop", User: "root"}
	destDesc   = database.Descriptor{Driver: "mysql", Host: "dst.local", Port: 3306, Database: "shop_copy", User: "root"}
)

func newSession(t *testing.T, desc database.Descriptor) (*database.Session, sqlmock.Sqlmock) {
	t.Helper()
	return newDialectSession(t, &dialect.MysqlDialect{}, desc)
}

func newDialectSession(t *testing.T, d dialect.Dialect, desc database.Descriptor) (*database.Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	s, err := database.NewSession(context.Background(), db, d, desc)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mock
}

// fakeConnector hands out pre-built sessions in the order they were added
// and records every connection attempt.
type fakeConnector struct {
	t        *testing.T
	sessions map[string][]*database.Session
	calls    []string
}

func newFakeConnector(t *testing.T) *fakeConnector {
	return &fakeConnector{t: t, sessions: make(map[string][]*database.Session)}
}

func connKey(desc database.Descriptor, server bool) string {
	if server {
		return desc.Host + "/server"
	}
	return desc.Host + "/" + desc.Database
}

func (c *fakeConnector) add(desc database.Descriptor, server bool) sqlmock.Sqlmock {
	s, mock := newSession(c.t, desc)
	key := connKey(desc, server)
	c.sessions[key] = append(c.sessions[key], s)
	return mock
}

func (c *fakeConnector) connect(_ context.Context, desc database.Descriptor, server bool) (*database.Session, error) {
	key := connKey(desc, server)
	c.calls = append(c.calls, key)
	queue := c.sessions[key]
	if len(queue) == 0 {
		return nil, fmt.Errorf("%w: no session for %s", database.ErrConnection, key)
	}
	c.sessions[key] = queue[1:]
	return queue[0], nil
}

// recorder is a Reporter that keeps every notification.
type recorder struct {
	mu        sync.Mutex
	connected []string
	dbCreated []string
	presence  map[string]bool
	created   []CreateResult
	started   map[string]int64
	progress  map[string][]int64
	finished  []TableResult

	onRows func(table string, copied int64)
}

func newRecorder() *recorder {
	return &recorder{
		presence: make(map[string]bool),
		started:  make(map[string]int64),
		progress: make(map[string][]int64),
	}
}

func (r *recorder) Connected(role string, _ database.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, role)
}

func (r *recorder) DatabaseCreated(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbCreated = append(r.dbCreated, name)
}

func (r *recorder) TablePresence(table string, exists bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence[table] = exists
}

func (r *recorder) TableCreated(res CreateResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, res)
}

func (r *recorder) TableStarted(table string, expected int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[table] = expected
}

func (r *recorder) RowsCopied(table string, copied int64) {
	r.mu.Lock()
	r.progress[table] = append(r.progress[table], copied)
	hook := r.onRows
	r.mu.Unlock()
	if hook != nil {
		hook(table, copied)
	}
}

func (r *recorder) TableFinished(res TableResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res)
}

// fakeUsers builds n rows of (id, name, email) fixtures.
func fakeUsers(seed int64, n int) [][]driver.Value {
	faker := gofakeit.New(seed)
	rows := make([][]driver.Value, n)
	for i := range rows {
		rows[i] = []driver.Value{int64(i + 1), faker.Name(), faker.Email()}
	}
	return rows
}

func rowsOf(cols []string, values [][]driver.Value) *sqlmock.Rows {
	rows := sqlmock.NewRows(cols)
	for _, v := range values {
		rows.AddRow(v...)
	}
	return rows
}

func showColumns(names ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"})
	for i, n := range names {
		if i == 0 {
			rows.AddRow(n, "int", "NO", "PRI", nil, "auto_increment")
			continue
		}
		rows.AddRow(n, "varchar(255)", "YES", "", nil, "")
	}
	return rows
}

func countRows(n int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(n)
}

func names(col string, values ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{col})
	for _, v := range values {
		rows.AddRow(v)
	}
	return rows
}

// expectCopy registers the destination side of a successful table copy.
func expectCopy(mock sqlmock.Sqlmock, table string, cols []string, values [][]driver.Value) {
	d := &dialect.MysqlDialect{}
	mock.ExpectQuery("SHOW COLUMNS FROM " + d.QuoteIdentifier(table)).WillReturnRows(showColumns(cols...))
	mock.ExpectQuery(d.RowCountQuery(table)).WillReturnRows(countRows(0))
	mock.ExpectBegin()
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(d.InsertQuery(table, cols))
	for _, v := range values {
		prep.ExpectExec().WithArgs(v...).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
}

