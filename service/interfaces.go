package service

import (
	"context"
	"time"

	"casino/events"
	"casino/models"
	"github.com/google/uuid"
)

// ProfileRepository defines the interface for profile data access
type ProfileRepository interface {
	// GetByID retrieves a profile by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)

	// GetByEmail retrieves a profile by email
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)

	// Create creates a new profile with the given initial demo balance
	Create(ctx context.Context, email, username string, demoBalance int64) (*models.Profile, error)

	// CreditBalance adds to the real or demo balance atomically
	CreditBalance(ctx context.Context, id uuid.UUID, amount int64, isDemo bool) error

	// DebitBalance deducts from the real or demo balance atomically,
	// failing if the balance would go negative
	DebitBalance(ctx context.Context, id uuid.UUID, amount int64, isDemo bool) error

	// SetDemoBalance sets the demo balance to an absolute value
	SetDemoBalance(ctx context.Context, id uuid.UUID, amount int64) error

	// SetBalance sets the real balance to an absolute value
	SetBalance(ctx context.Context, id uuid.UUID, amount int64) error

	// SetMode flips the active-balance selector
	SetMode(ctx context.Context, id uuid.UUID, isDemo bool) error

	// SetSuspended marks a profile as suspended or active
	SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error

	// GetAll returns all profiles
	GetAll(ctx context.Context) ([]*models.Profile, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create inserts a pending bet record
	Create(ctx context.Context, bet *models.Bet) error

	// Settle finalizes a pending bet record; idempotent on replays
	Settle(ctx context.Context, id uuid.UUID, multiplier float64, payout int64, status models.BetStatus, settledAt time.Time) error

	// GetByID retrieves a bet by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bet, error)

	// GetByUser returns the most recent bets for a user
	GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Bet, error)

	// GetStats returns betting statistics for a user
	GetStats(ctx context.Context, userID uuid.UUID) (*models.BetStats, error)
}

// TransactionRepository defines the interface for payment transaction data access
type TransactionRepository interface {
	// Create inserts a new transaction record
	Create(ctx context.Context, tx *models.Transaction) error

	// GetByID retrieves a transaction by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)

	// GetByCheckoutRequestID retrieves a transaction by the gateway's checkout request ID
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Transaction, error)

	// Complete transitions a pending transaction to completed; reports
	// whether this call performed the transition
	Complete(ctx context.Context, id uuid.UUID, receiptNumber *string, completedAt time.Time) (bool, error)

	// Fail transitions a pending transaction to failed
	Fail(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error)

	// GetByUser returns the most recent transactions for a user
	GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error)

	// GetPendingWithdrawals returns all withdrawals awaiting operator action
	GetPendingWithdrawals(ctx context.Context) ([]*models.Transaction, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns balance history for a specific user
	GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	ProfileRepository() ProfileRepository
	BetRepository() BetRepository
	TransactionRepository() TransactionRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}

// Ledger receives wallet transitions for durable recording. Submissions
// are fire-and-forget: gameplay never blocks on them and failures are
// logged, not surfaced.
type Ledger interface {
	// RecordPlacement persists a pending bet and its stake deduction
	RecordPlacement(bet models.Bet, balanceBefore, balanceAfter int64)

	// RecordSettlement persists a bet's terminal state and its payout credit
	RecordSettlement(bet models.Bet, balanceBefore, balanceAfter int64)

	// RecordRefill persists a demo balance reset
	RecordRefill(userID uuid.UUID, balanceBefore, amount int64)

	// RecordModeChange persists the active-balance selector
	RecordModeChange(userID uuid.UUID, isDemo bool)
}

// PaymentGateway defines the narrow boundary to the mobile-money provider
type PaymentGateway interface {
	// InitiateSTKPush asks the provider to prompt the given phone for
	// amountCents and returns the provider's request identifiers
	InitiateSTKPush(ctx context.Context, phoneNumber string, amountCents int64, accountReference string) (checkoutRequestID, merchantRequestID string, err error)
}

// ProfileService defines the interface for profile bootstrap operations
type ProfileService interface {
	// GetOrCreateProfile retrieves an existing profile or creates a new
	// one with the default demo balance
	GetOrCreateProfile(ctx context.Context, email, username string) (*models.Profile, error)
}

// PaymentService defines the interface for deposit/withdrawal operations
type PaymentService interface {
	// Deposit initiates a mobile-money deposit for the user
	Deposit(ctx context.Context, userID uuid.UUID, phoneNumber string, amount int64) (*models.Transaction, error)

	// HandleCallback processes an asynchronous gateway confirmation
	HandleCallback(ctx context.Context, result CallbackResult) error

	// Withdraw deducts the amount and creates a withdrawal awaiting
	// operator approval
	Withdraw(ctx context.Context, userID uuid.UUID, phoneNumber string, amount int64) (*models.Transaction, error)
}

// CallbackResult is the gateway-agnostic outcome of a payment confirmation
type CallbackResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDescription string
	ReceiptNumber     *string
}

// AdminService defines the interface for privileged operator mutations
type AdminService interface {
	// SetBalance force-sets a user's real balance
	SetBalance(ctx context.Context, userID uuid.UUID, amount int64) error

	// SetSuspended suspends or reinstates a user
	SetSuspended(ctx context.Context, userID uuid.UUID, suspended bool) error

	// ApproveWithdrawal completes a pending withdrawal
	ApproveWithdrawal(ctx context.Context, transactionID uuid.UUID) error

	// RejectWithdrawal fails a pending withdrawal and credits the amount back
	RejectWithdrawal(ctx context.Context, transactionID uuid.UUID) error
}
