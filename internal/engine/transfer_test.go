package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-shuttle/internal/database"
	"db-shuttle/internal/dialect"
	"db-shuttle/internal/schema"
)

var userCols = []string{"id", "name", "email"}

func TestTransferTableCopiesRows(t *testing.T) {
	src, srcMock := newSession(t, sourceDesc)
	dst, dstMock := newSession(t, destDesc)
	users := fakeUsers(1, 5)

	srcMock.ExpectQuery("SELECT `id`, `name`, `email` FROM `users`").WillReturnRows(rowsOf(userCols, users))
	expectCopy(dstMock, "users", userCols, users)

	rec := newRecorder()
	res := TransferTable(context.Background(), src, dst, "users", userCols, Options{ProgressEvery: 2}, rec)

	require.NoError(t, res.Err)
	assert.Equal(t, int64(5), res.Copied)
	assert.Equal(t, int64(-1), res.Expected)
	assert.Equal(t, []int64{2, 4, 5}, rec.progress["users"])
	assert.Equal(t, int64(-1), rec.started["users"])
	require.NoError(t, srcMock.ExpectationsWereMet())
	require.NoError(t, dstMock.ExpectationsWereMet())
}

func TestTransferTableCountsSourceRows(t *testing.T) {
	src, srcMock := newSession(t, sourceDesc)
	dst, dstMock := newSession(t, destDesc)
	users := fakeUsers(2, 3)

	srcMock.ExpectQuery("SELECT COUNT(*) FROM `users`").WillReturnRows(countRows(3))
	srcMock.ExpectQuery("SELECT `id`, `name`, `email` FROM `users`").WillReturnRows(rowsOf(userCols, users))
	expectCopy(dstMock, "users", userCols, users)

	rec := newRecorder()
	res := TransferTable(context.Background(), src, dst, "users", userCols, Options{CountRows: true}, rec)

	require.NoError(t, res.Err)
	assert.Equal(t, int64(3), res.Expected)
	assert.Equal(t, int64(3), rec.started["users"])
	assert.Equal(t, []int64{3}, rec.progress["users"])
}

func TestTransferTableRollsBackOnInsertError(t *testing.T) {
	src, srcMock := newSession(t, sourceDesc)
	dst, dstMock := newSession(t, destDesc)
	users := fakeUsers(3, 3)

	srcMock.ExpectQuery("SELECT `id`, `name`, `email` FROM `users`").WillReturnRows(rowsOf(userCols, users))

	dstMock.ExpectQuery("SHOW COLUMNS FROM `users`").WillReturnRows(showColumns(userCols...))
	dstMock.ExpectQuery("SELECT COUNT(*) FROM `users`").WillReturnRows(countRows(0))
	dstMock.ExpectBegin()
	dstMock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := dstMock.ExpectPrepare("INSERT INTO `users` (`id`, `name`, `email`) VALUES (?, ?, ?)")
	prep.ExpectExec().WithArgs(users[0]...).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(users[1]...).WillReturnError(errors.New("Duplicate entry '2' for key 'PRIMARY'"))
	dstMock.ExpectRollback()
	// FK checks are session state and must be switched back on after the rollback.
	dstMock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))

	res := TransferTable(context.Background(), src, dst, "users", userCols, Options{}, NopReporter{})

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrTransfer)
	assert.Contains(t, res.Err.Error(), "failed to insert row 2")
	assert.Equal(t, int64(1), res.Copied)
	require.NoError(t, dstMock.ExpectationsWereMet())
}

func TestTransferRestoresIdentityInsertAfterFailedTable(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	srcDesc := database.Descriptor{Driver: "sqlserver", Host: "src.local", Database: "shop", User: "sa"}
	dstDesc := database.Descriptor{Driver: "sqlserver", Host: "dst.local", Database: "shop_copy", User: "sa"}
	src, srcMock := newDialectSession(t, d, srcDesc)
	dst, dstMock := newDialectSession(t, d, dstDesc)
	plan := &schema.Plan{
		Tables:  []string{"customers", "invoices"},
		Columns: schema.ColumnSelection{"customers": {"id"}, "invoices": {"id"}},
	}
	identityColumn := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_KEY", "COLUMN_DEFAULT", "EXTRA"}).
			AddRow("id", "int", "NO", "PRI", nil, "identity")
	}

	srcMock.ExpectQuery("SELECT [id] FROM [customers]").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	srcMock.ExpectQuery("SELECT [id] FROM [invoices]").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	for _, table := range plan.Tables {
		query, _ := d.ColumnsQuery(table)
		dstMock.ExpectQuery(query).WithArgs(table).WillReturnRows(identityColumn())
		dstMock.ExpectQuery(d.RowCountQuery(table)).WillReturnRows(countRows(0))
		dstMock.ExpectBegin()
		dstMock.ExpectExec("SET IDENTITY_INSERT [" + table + "] ON").WillReturnResult(sqlmock.NewResult(0, 0))
		prep := dstMock.ExpectPrepare("INSERT INTO [" + table + "] ([id]) VALUES (@p1)")
		if table == "customers" {
			prep.ExpectExec().WithArgs(int64(1)).WillReturnError(errors.New("Cannot insert duplicate key"))
			dstMock.ExpectRollback()
			dstMock.ExpectExec("SET IDENTITY_INSERT [customers] OFF").WillReturnResult(sqlmock.NewResult(0, 0))
			continue
		}
		prep.ExpectExec().WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
		dstMock.ExpectExec("SET IDENTITY_INSERT [invoices] OFF").WillReturnResult(sqlmock.NewResult(0, 0))
		dstMock.ExpectCommit()
	}

	results, err := Transfer(context.Background(), src, dst, plan, Options{}, NopReporter{})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, ErrTransfer)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, int64(1), results[1].Copied)
	require.NoError(t, srcMock.ExpectationsWereMet())
	require.NoError(t, dstMock.ExpectationsWereMet())
}

func TestTransferTableMissingDestinationColumn(t *testing.T) {
	src, srcMock := newSession(t, sourceDesc)
	dst, dstMock := newSession(t, destDesc)

	dstMock.ExpectQuery("SHOW COLUMNS FROM `users`").WillReturnRows(showColumns("id", "name"))

	res := TransferTable(context.Background(), src, dst, "users", userCols, Options{}, NopReporter{})

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrTransfer)
	assert.Contains(t, res.Err.Error(), "column email does not exist")
	require.NoError(t, srcMock.ExpectationsWereMet())
	require.NoError(t, dstMock.ExpectationsWereMet())
}

func TestTransferTableCancelledMidTable(t *testing.T) {
	src, srcMock := newSession(t, sourceDesc)
	dst, dstMock := newSession(t, destDesc)
	users := fakeUsers(4, 4)

	srcMock.ExpectQuery("SELECT `id`, `name`, `email` FROM `users`").WillReturnRows(rowsOf(userCols, users))
	dstMock.ExpectQuery("SHOW COLUMNS FROM `users`").WillReturnRows(showColumns(userCols...))
	dstMock.ExpectQuery("SELECT COUNT(*) FROM `users`").WillReturnRows(countRows(0))
	dstMock.ExpectBegin()
	dstMock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := dstMock.ExpectPrepare("INSERT INTO `users` (`id`, `name`, `email`) VALUES (?, ?, ?)")
	prep.ExpectExec().WithArgs(users[0]...).WillReturnResult(sqlmock.NewResult(1, 1))
	dstMock.ExpectRollback()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := newRecorder()
	rec.onRows = func(string, int64) { cancel() }

	res := TransferTable(ctx, src, dst, "users", userCols, Options{ProgressEvery: 1}, rec)

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.NotErrorIs(t, res.Err, ErrTransfer)
	assert.Equal(t, int64(1), res.Copied)
}

func TestTransferContinuesAfterFailedTable(t *testing.T) {
	src, srcMock := newSession(t, sourceDesc)
	dst, dstMock := newSession(t, destDesc)
	users := fakeUsers(5, 2)
	plan := &schema.Plan{
		Tables:  []string{"orders", "users"},
		Columns: schema.ColumnSelection{"orders": {"id"}, "users": userCols},
	}

	dstMock.ExpectQuery("SHOW COLUMNS FROM `orders`").WillReturnError(errors.New("table is locked"))
	srcMock.ExpectQuery("SELECT `id`, `name`, `email` FROM `users`").WillReturnRows(rowsOf(userCols, users))
	expectCopy(dstMock, "users", userCols, users)

	rec := newRecorder()
	results, err := Transfer(context.Background(), src, dst, plan, Options{}, rec)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, ErrTransfer)
	assert.Equal(t, StatusFailed, results[0].Status())
	assert.NoError(t, results[1].Err)
	assert.Equal(t, int64(2), results[1].Copied)
	assert.Len(t, rec.finished, 2)
	require.NoError(t, dstMock.ExpectationsWereMet())
}

func TestTransferStopOnError(t *testing.T) {
	src, srcMock := newSession(t, sourceDesc)
	dst, dstMock := newSession(t, destDesc)
	plan := &schema.Plan{
		Tables:  []string{"orders", "users"},
		Columns: schema.ColumnSelection{"orders": {"id"}, "users": userCols},
	}

	dstMock.ExpectQuery("SHOW COLUMNS FROM `orders`").WillReturnError(errors.New("table is locked"))

	results, err := Transfer(context.Background(), src, dst, plan, Options{StopOnError: true}, NopReporter{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransfer)
	assert.Len(t, results, 1)
	require.NoError(t, srcMock.ExpectationsWereMet())
	require.NoError(t, dstMock.ExpectationsWereMet())
}

func TestTransferCancelledBetweenTables(t *testing.T) {
	src, _ := newSession(t, sourceDesc)
	dst, dstMock := newSession(t, destDesc)
	plan := &schema.Plan{Tables: []string{"users"}, Columns: schema.ColumnSelection{"users": userCols}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := Transfer(ctx, src, dst, plan, Options{}, NopReporter{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	require.NoError(t, dstMock.ExpectationsWereMet())
}

func TestCheckColumns(t *testing.T) {
	cols := []*schema.Column{
		{Name: "id", AutoIncrement: true},
		{Name: "name"},
	}

	identity, err := checkColumns(cols, []string{"name"})
	require.NoError(t, err)
	assert.False(t, identity)

	identity, err = checkColumns(cols, []string{"id", "name"})
	require.NoError(t, err)
	assert.True(t, identity)

	_, err = checkColumns(cols, []string{"name", "email"})
	require.Error(t, err)
}

func TestTableResultStatus(t *testing.T) {
	tests := []struct {
		name string
		res  TableResult
		want string
	}{
		{"ok", TableResult{}, StatusOK},
		{"failed", TableResult{Err: ErrTransfer}, StatusFailed},
		{"verified", TableResult{Verified: true}, StatusVerified},
		{"mismatch", TableResult{VerifyErr: errors.New("x")}, StatusMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Status())
		})
	}
}
