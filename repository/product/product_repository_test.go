package product

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecofinds/marketplace/constant"
)

func newMockDB(t *testing.T, driver string) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, driver), mock
}

func TestSQL_UpdateStatusTx(t *testing.T) {
	type args struct {
		ids  []uint64
		to   constant.ProductStatus
		from []constant.ProductStatus
	}
	tests := []struct {
		name     string
		driver   string
		args     args
		mockCall func(mock sqlmock.Sqlmock)
		want     int64
		wantErr  bool
	}{
		{
			name:   "success: reserve only rows still active",
			driver: "mysql",
			args:   args{ids: []uint64{3, 5}, to: constant.ProductStatusReserved, from: []constant.ProductStatus{constant.ProductStatusActive}},
			mockCall: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN (?, ?) AND status IN (?)").
					WithArgs("reserved", 3, 5, "active").
					WillReturnResult(sqlmock.NewResult(0, 2))
			},
			want: 2,
		},
		{
			name:   "success: a row taken by another order is not counted",
			driver: "mysql",
			args:   args{ids: []uint64{3, 5}, to: constant.ProductStatusReserved, from: []constant.ProductStatus{constant.ProductStatusActive}},
			mockCall: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN (?, ?) AND status IN (?)").
					WithArgs("reserved", 3, 5, "active").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: 1,
		},
		{
			name:   "success: postgres placeholders are rebound",
			driver: "pgx",
			args:   args{ids: []uint64{4}, to: constant.ProductStatusActive, from: []constant.ProductStatus{constant.ProductStatusReserved}},
			mockCall: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id IN ($2) AND status IN ($3)").
					WithArgs("active", 4, "reserved").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: 1,
		},
		{
			name:   "success: no from set updates unconditionally",
			driver: "mysql",
			args:   args{ids: []uint64{4, 9}, to: constant.ProductStatusSold},
			mockCall: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN (?, ?)").
					WithArgs("sold", 4, 9).
					WillReturnResult(sqlmock.NewResult(0, 2))
			},
			want: 2,
		},
		{
			name:   "success: empty id list skips the query",
			driver: "mysql",
			args:   args{to: constant.ProductStatusSold},
			want:   0,
		},
		{
			name:   "error: exec fails",
			driver: "mysql",
			args:   args{ids: []uint64{3}, to: constant.ProductStatusReserved, from: []constant.ProductStatus{constant.ProductStatusActive}},
			mockCall: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE products SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN (?) AND status IN (?)").
					WithArgs("reserved", 3, "active").
					WillReturnError(errors.New("deadlock"))
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t, tt.driver)
			mock.ExpectBegin()
			if tt.mockCall != nil {
				tt.mockCall(mock)
			}

			tx, err := db.Beginx()
			require.NoError(t, err)

			repo := NewProductRepository(db)
			got, err := repo.UpdateStatusTx(context.Background(), tx, tt.args.ids, tt.args.to, tt.args.from...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UpdateStatusTx() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQL_LockByIDsTx(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(strings.Replace(lockProducts, "IN (?)", "IN (?, ?)", 1)).
		WithArgs(2, 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_id", "title", "description", "category", "item_condition", "image_url", "price", "status", "created_at"}).
			AddRow(2, 9, "Lamp", "Brass", "home", "good", "", "25.00", "active", created).
			AddRow(7, 9, "Rug", "Wool", "home", "fair", "", "40.50", "reserved", created))

	tx, err := db.Beginx()
	require.NoError(t, err)

	got, err := NewProductRepository(db).LockByIDsTx(context.Background(), tx, []uint64{2, 7})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "good", got[0].Condition)
	assert.Equal(t, "40.5", got[1].Price.String())
	assert.Equal(t, constant.ProductStatusReserved, got[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
