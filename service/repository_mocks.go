package service

import (
	"context"
	"time"

	"casino/events"
	"casino/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockProfileRepository is a mock implementation of ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) Create(ctx context.Context, email, username string, demoBalance int64) (*models.Profile, error) {
	args := m.Called(ctx, email, username, demoBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) CreditBalance(ctx context.Context, id uuid.UUID, amount int64, isDemo bool) error {
	args := m.Called(ctx, id, amount, isDemo)
	return args.Error(0)
}

func (m *MockProfileRepository) DebitBalance(ctx context.Context, id uuid.UUID, amount int64, isDemo bool) error {
	args := m.Called(ctx, id, amount, isDemo)
	return args.Error(0)
}

func (m *MockProfileRepository) SetDemoBalance(ctx context.Context, id uuid.UUID, amount int64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockProfileRepository) SetBalance(ctx context.Context, id uuid.UUID, amount int64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockProfileRepository) SetMode(ctx context.Context, id uuid.UUID, isDemo bool) error {
	args := m.Called(ctx, id, isDemo)
	return args.Error(0)
}

func (m *MockProfileRepository) SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error {
	args := m.Called(ctx, id, suspended)
	return args.Error(0)
}

func (m *MockProfileRepository) GetAll(ctx context.Context) ([]*models.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Profile), args.Error(1)
}

// MockBetRepository is a mock implementation of BetRepository
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Create(ctx context.Context, bet *models.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) Settle(ctx context.Context, id uuid.UUID, multiplier float64, payout int64, status models.BetStatus, settledAt time.Time) error {
	args := m.Called(ctx, id, multiplier, payout, status, settledAt)
	return args.Error(0)
}

func (m *MockBetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *MockBetRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Bet, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) GetStats(ctx context.Context, userID uuid.UUID) (*models.BetStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BetStats), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Transaction, error) {
	args := m.Called(ctx, checkoutRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Complete(ctx context.Context, id uuid.UUID, receiptNumber *string, completedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, receiptNumber, completedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) Fail(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, completedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetPendingWithdrawals(ctx context.Context) ([]*models.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository
// getters hand back whatever SetRepositories installed rather than going
// through mock expectations.
type MockUnitOfWork struct {
	mock.Mock

	profileRepo ProfileRepository
	betRepo     BetRepository
	txRepo      TransactionRepository
	historyRepo BalanceHistoryRepository
	eventBus    EventPublisher
}

// SetRepositories installs the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(
	profileRepo ProfileRepository,
	betRepo BetRepository,
	txRepo TransactionRepository,
	historyRepo BalanceHistoryRepository,
	eventBus EventPublisher,
) {
	m.profileRepo = profileRepo
	m.betRepo = betRepo
	m.txRepo = txRepo
	m.historyRepo = historyRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) ProfileRepository() ProfileRepository {
	return m.profileRepo
}

func (m *MockUnitOfWork) BetRepository() BetRepository {
	return m.betRepo
}

func (m *MockUnitOfWork) TransactionRepository() TransactionRepository {
	return m.txRepo
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return m.historyRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockLedger is a mock implementation of Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) RecordPlacement(bet models.Bet, balanceBefore, balanceAfter int64) {
	m.Called(bet, balanceBefore, balanceAfter)
}

func (m *MockLedger) RecordSettlement(bet models.Bet, balanceBefore, balanceAfter int64) {
	m.Called(bet, balanceBefore, balanceAfter)
}

func (m *MockLedger) RecordRefill(userID uuid.UUID, balanceBefore, amount int64) {
	m.Called(userID, balanceBefore, amount)
}

func (m *MockLedger) RecordModeChange(userID uuid.UUID, isDemo bool) {
	m.Called(userID, isDemo)
}

// MockPaymentGateway is a mock implementation of PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) InitiateSTKPush(ctx context.Context, phoneNumber string, amountCents int64, accountReference string) (string, string, error) {
	args := m.Called(ctx, phoneNumber, amountCents, accountReference)
	return args.String(0), args.String(1), args.Error(2)
}
