package repository

import (
	"errors"
	"testing"

	"salonshop/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestOrderRepository_MarkPaid(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectExec("UPDATE `orders` SET .*`status`=.* WHERE \\(id = \\? AND status = \\? AND payment_reference = \\?\\)").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.MarkPaid("order-1", "ws_CO_1", "ABC123", "M-Pesa receipt ABC123")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_MarkPaidAlreadyApplied(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectExec("UPDATE `orders` SET").WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.MarkPaid("order-1", "ws_CO_1", "ABC123", "M-Pesa receipt ABC123")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_AttachCheckoutRequestMissingOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectExec("UPDATE `orders` SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AttachCheckoutRequest("missing", "ws_CO_1", "STK push sent")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListCountFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `orders` WHERE user_id = \\?").
		WillReturnError(errors.New("connection reset"))

	list, total, err := repo.ListByUser(3, 1, 20)
	assert.EqualError(t, err, "connection reset")
	assert.Zero(t, total)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByPaymentReference(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	rows := sqlmock.NewRows([]string{"id", "status", "payment_method", "payment_reference", "total_amount"}).
		AddRow("order-1", domain.OrderStatusPending, domain.PaymentMethodMpesa, "ws_CO_1", "1500.00")
	mock.ExpectQuery("SELECT \\* FROM `orders` WHERE payment_reference = \\?").WillReturnRows(rows)

	o, err := repo.GetByPaymentReference("ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, "1500", o.TotalAmount.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryRepository_AssignUnavailable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeliveryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET `status`=").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Assign("order-1", 7)
	assert.ErrorIs(t, err, ErrOrderUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryRepository_Assign(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeliveryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET `status`=").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `delivery_assignments`").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	a, err := repo.Assign("order-1", 7)
	require.NoError(t, err)
	assert.Equal(t, uint(3), a.ID)
	assert.Equal(t, domain.DeliveryAssigned, a.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
