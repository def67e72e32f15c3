package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"cnom/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const settleSQL = `UPDATE "payments" SET .+ WHERE id = \$\d+ AND payment_status = \$\d+`

func TestPaymentRepository_FindByTransactionID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	query := regexp.QuoteMeta(`SELECT * FROM "payments" WHERE transaction_id = $1 ORDER BY "payments"."id" LIMIT $2`)

	tests := []struct {
		name         string
		txID         string
		mockBehavior func()
		wantStatus   int
	}{
		{
			name: "Success",
			txID: "TX1",
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "transaction_id", "profile_id", "payment_type", "payment_status"}).
					AddRow("pay-1", "TX1", "prof-1", "inscription", "pending")
				mock.ExpectQuery(query).WithArgs("TX1", 1).WillReturnRows(rows)
			},
		},
		{
			name: "Not Found",
			txID: "TX404",
			mockBehavior: func() {
				mock.ExpectQuery(query).WithArgs("TX404", 1).WillReturnError(gorm.ErrRecordNotFound)
			},
			wantStatus: 404,
		},
		{
			name: "Database Error",
			txID: "TX500",
			mockBehavior: func() {
				mock.ExpectQuery(query).WithArgs("TX500", 1).WillReturnError(errors.New("connection reset"))
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			payment, err := repo.FindByTransactionID(ctx, tt.txID)
			if tt.wantStatus != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantStatus, models.StatusForError(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "pay-1", payment.ID)
				assert.Equal(t, models.PaymentTypeInscription, payment.PaymentType)
				assert.Equal(t, models.PaymentStatusPending, payment.PaymentStatus)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPaymentRepository_Settle_ConditionalUpdate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	now := time.Now()
	outcome := models.PaymentOutcome{Status: models.PaymentStatusCompleted, PaidAt: &now, ProviderStatusCode: "TS"}

	t.Run("Pending row updated", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(settleSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := repo.Settle(ctx, "pay-1", outcome)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already terminal", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(settleSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		ok, err := repo.Settle(ctx, "pay-1", outcome)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Write failure", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(settleSQL).WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		ok, err := repo.Settle(ctx, "pay-1", outcome)
		require.Error(t, err)
		assert.False(t, ok)
		assert.Equal(t, 500, models.StatusForError(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func seedPayment(t *testing.T, db *gorm.DB, p models.Payment) models.Payment {
	t.Helper()
	require.NoError(t, NewPaymentRepository(db).Create(context.Background(), &p))
	return p
}

func TestPaymentRepository_SettleOnce(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	p := seedPayment(t, db, models.Payment{TransactionID: "TX1", ProfileID: "prof-1", PaymentType: models.PaymentTypeInscription, Amount: 25000})
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.PaymentStatusPending, p.PaymentStatus)
	assert.Equal(t, models.DefaultCurrency, p.Currency)

	paidAt := time.Now().UTC().Truncate(time.Second)
	ok, err := repo.Settle(ctx, p.ID, models.PaymentOutcome{
		Status:             models.PaymentStatusCompleted,
		PaidAt:             &paidAt,
		ProviderReference:  "AM-778",
		ProviderStatusCode: "TS",
		ProviderMessage:    "Transaction Successful",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// A second settle must not overwrite the terminal row.
	ok, err = repo.Settle(ctx, p.ID, models.PaymentOutcome{Status: models.PaymentStatusFailed, ProviderStatusCode: "TF"})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByTransactionID(ctx, "TX1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, got.PaymentStatus)
	require.NotNil(t, got.PaidAt)
	assert.True(t, paidAt.Equal(got.PaidAt.UTC()))
	assert.Equal(t, "AM-778", got.ProviderReference)
	assert.Equal(t, "TS", got.ProviderStatusCode)
}

func TestPaymentRepository_CreateDuplicate(t *testing.T) {
	db := setupSQLite(t)
	seedPayment(t, db, models.Payment{TransactionID: "TX1", ProfileID: "prof-1", PaymentType: models.PaymentTypeInscription})

	err := NewPaymentRepository(db).Create(context.Background(), &models.Payment{TransactionID: "TX1", ProfileID: "prof-2", PaymentType: models.PaymentTypeInscription})
	require.Error(t, err)
	assert.Equal(t, 400, models.StatusForError(err))
}

func TestPaymentRepository_ListAndStale(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	seedPayment(t, db, models.Payment{TransactionID: "TX1", ProfileID: "prof-1", PaymentType: models.PaymentTypeInscription, CreatedAt: old})
	seedPayment(t, db, models.Payment{TransactionID: "TX2", ProfileID: "prof-1", PaymentType: models.PaymentTypeCotisationAnnuelle})
	seedPayment(t, db, models.Payment{TransactionID: "TX3", ProfileID: "prof-2", PaymentType: models.PaymentTypeInscription, PaymentStatus: models.PaymentStatusFailed, CreatedAt: old})

	all, err := repo.List(ctx, models.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "TX2", all[0].TransactionID, "newest first")

	pending, err := repo.List(ctx, models.PaymentFilter{Status: models.PaymentStatusPending, Type: models.PaymentTypeInscription})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "TX1", pending[0].TransactionID)

	mine, err := repo.List(ctx, models.PaymentFilter{ProfileID: "prof-2"})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	paged, err := repo.List(ctx, models.PaymentFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, paged, 1)

	stale, err := repo.CountStalePending(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stale)
}
