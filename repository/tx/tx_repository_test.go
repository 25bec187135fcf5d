package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const insertThing = "INSERT INTO things (name, qty) VALUES (?, ?)"

func newMockDB(t *testing.T, driver string) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, driver), mock
}

func TestInsertID(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		mockCall func(mock sqlmock.Sqlmock)
		want     uint64
		wantErr  bool
	}{
		{
			name:   "success: mysql uses LastInsertId",
			driver: "mysql",
			mockCall: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(insertThing).WithArgs("kettle", 2).WillReturnResult(sqlmock.NewResult(42, 1))
			},
			want: 42,
		},
		{
			name:   "success: postgres uses RETURNING id",
			driver: "pgx",
			mockCall: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("INSERT INTO things (name, qty) VALUES ($1, $2) RETURNING id").
					WithArgs("kettle", 2).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
			},
			want: 7,
		},
		{
			name:   "error: mysql exec fails",
			driver: "mysql",
			mockCall: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(insertThing).WithArgs("kettle", 2).WillReturnError(errors.New("duplicate"))
			},
			wantErr: true,
		},
		{
			name:   "error: mysql driver without LastInsertId",
			driver: "mysql",
			mockCall: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(insertThing).WithArgs("kettle", 2).
					WillReturnResult(sqlmock.NewErrorResult(errors.New("not supported")))
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t, tt.driver)
			tt.mockCall(mock)

			got, err := InsertID(context.Background(), db, insertThing, "kettle", 2)
			if (err != nil) != tt.wantErr {
				t.Fatalf("InsertID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIn(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "mysql keeps question marks",
			driver:   "mysql",
			wantSQL:  "DELETE FROM cart_items WHERE user_id = ? AND product_id IN (?, ?, ?)",
			wantArgs: []interface{}{uint64(1), uint64(4), uint64(5), uint64(6)},
		},
		{
			name:     "pgx numbers placeholders after expansion",
			driver:   "pgx",
			wantSQL:  "DELETE FROM cart_items WHERE user_id = $1 AND product_id IN ($2, $3, $4)",
			wantArgs: []interface{}{uint64(1), uint64(4), uint64(5), uint64(6)},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			db, _ := newMockDB(t, tt.driver)
			query, args, err := In(db, "DELETE FROM cart_items WHERE user_id = ? AND product_id IN (?)", uint64(1), []uint64{4, 5, 6})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}

	db, _ := newMockDB(t, "mysql")
	_, _, err := In(db, "SELECT 1 FROM t WHERE id IN (?)", []uint64{})
	assert.Error(t, err, "an empty IN list must be rejected before it reaches the database")
}

func TestTxRepository(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := NewTxRepository(db)
	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.CommitTx(tx))

	tx, err = repo.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.RollbackTx(tx))

	assert.True(t, IsPostgres(sqlx.NewDb(nil, "pgx")))
	assert.False(t, IsPostgres(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
