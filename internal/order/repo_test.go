package order

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ecom-saas/internal/product"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	for _, code := range []string{"40001", "40P01"} {
		err := classify(fmt.Errorf("commit: %w", &pgconn.PgError{Code: code, Message: "conflict"}))
		assert.ErrorIs(t, err, ErrTxConflict, code)
	}

	unique := &pgconn.PgError{Code: "23505"}
	assert.Same(t, unique, classify(unique))

	plain := errors.New("boom")
	assert.Same(t, plain, classify(plain))

	ise := &InsufficientStockError{ProductName: "x"}
	assert.ErrorIs(t, classify(ise), ErrInsufficientStock)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "insufficient stock for Lamp", (&InsufficientStockError{ProductName: "Lamp"}).Error())
	assert.Equal(t, "items: at least one item is required", invalid("items", "at least one item is required").Error())
	assert.ErrorIs(t, invalid("x", "y"), ErrValidation)
}

const (
	decrementSQL = `UPDATE products\s+SET stock = stock - \$3`
	lookupSQL    = `SELECT name, stock, status FROM products`
)

// mockTx opens a transaction on a pgxmock connection and wraps it the way
// WithinTx does.
func mockTx(t *testing.T) (*pgTx, pgxmock.PgxConnIface) {
	t.Helper()
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mock.Close(context.Background()) })

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	return &pgTx{tx: tx}, mock
}

func TestDecrementStock_Returning(t *testing.T) {
	tx, mock := mockTx(t)
	storeID, productID := uuid.NewString(), uuid.NewString()

	mock.ExpectQuery(decrementSQL).
		WithArgs(productID, storeID, 2).
		WillReturnRows(pgxmock.NewRows([]string{"name", "price", "stock"}).AddRow("Lamp", "19.90", 3))

	line, err := tx.DecrementStock(context.Background(), storeID, productID, 2)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", line.Name)
	assert.True(t, line.Price.Equal(decimal.RequireFromString("19.9")))
	assert.Equal(t, 3, line.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStock_NoRow(t *testing.T) {
	storeID, productID := uuid.NewString(), uuid.NewString()

	t.Run("missing", func(t *testing.T) {
		tx, mock := mockTx(t)
		mock.ExpectQuery(decrementSQL).WithArgs(productID, storeID, 1).
			WillReturnRows(pgxmock.NewRows([]string{"name", "price", "stock"}))
		mock.ExpectQuery(lookupSQL).WithArgs(productID, storeID).
			WillReturnRows(pgxmock.NewRows([]string{"name", "stock", "status"}))

		_, err := tx.DecrementStock(context.Background(), storeID, productID, 1)
		assert.ErrorIs(t, err, product.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inactive", func(t *testing.T) {
		tx, mock := mockTx(t)
		mock.ExpectQuery(decrementSQL).WithArgs(productID, storeID, 1).
			WillReturnRows(pgxmock.NewRows([]string{"name", "price", "stock"}))
		mock.ExpectQuery(lookupSQL).WithArgs(productID, storeID).
			WillReturnRows(pgxmock.NewRows([]string{"name", "stock", "status"}).AddRow("Lamp", 40, "DRAFT"))

		_, err := tx.DecrementStock(context.Background(), storeID, productID, 1)
		assert.ErrorIs(t, err, product.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short", func(t *testing.T) {
		tx, mock := mockTx(t)
		mock.ExpectQuery(decrementSQL).WithArgs(productID, storeID, 5).
			WillReturnRows(pgxmock.NewRows([]string{"name", "price", "stock"}))
		mock.ExpectQuery(lookupSQL).WithArgs(productID, storeID).
			WillReturnRows(pgxmock.NewRows([]string{"name", "stock", "status"}).AddRow("Lamp", 2, "ACTIVE"))

		_, err := tx.DecrementStock(context.Background(), storeID, productID, 5)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		var ise *InsufficientStockError
		require.ErrorAs(t, err, &ise)
		assert.Equal(t, productID, ise.ProductID)
		assert.Equal(t, "Lamp", ise.ProductName)
		assert.Equal(t, 5, ise.Requested)
		assert.Equal(t, 2, ise.Available)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDecrementStock_Deadlock(t *testing.T) {
	tx, mock := mockTx(t)
	storeID, productID := uuid.NewString(), uuid.NewString()

	mock.ExpectQuery(decrementSQL).WithArgs(productID, storeID, 1).
		WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})

	_, err := tx.DecrementStock(context.Background(), storeID, productID, 1)
	assert.NotErrorIs(t, err, product.ErrNotFound)
	assert.ErrorIs(t, classify(err), ErrTxConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
