package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/moodbloom/metrics"
	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/utils"
)

var (
	// ErrInsufficientBalance is returned when a spend exceeds the wallet balance.
	ErrInsufficientBalance = errors.New("insufficient token balance")
	// ErrInvalidEntry is returned for entries with a non-positive amount or unknown type/source.
	ErrInvalidEntry = errors.New("invalid token entry")
	// ErrUserNotFound is returned when the wallet owner does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Entry is a token movement to apply to a user's wallet.
type Entry struct {
	Amount      int
	Type        string
	Source      string
	Description string
}

// AwardResult reports a granted award and the balance after it.
type AwardResult struct {
	Amount     int    `json:"amount"`
	Reason     string `json:"reason"`
	NewBalance int    `json:"newBalance"`
}

// CheckInResult is what a recorded check-in produced.
type CheckInResult struct {
	CheckIn       models.CheckIn `json:"checkIn"`
	Streak        models.Streak  `json:"streak"`
	TokensAwarded *AwardResult   `json:"tokensAwarded"`
}

// Ledger owns every mutation of a user's streak and token wallet. Each
// operation runs in one transaction holding the user row lock, and calls for
// the same user are additionally serialized in-process.
type Ledger struct {
	db    *gorm.DB
	locks *utils.KeyedMutex
	now   func() time.Time
}

// NewLedger creates a ledger over db using the wall clock.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, locks: &utils.KeyedMutex{}, now: time.Now}
}

// SetClock replaces the time source. Intended for tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Apply appends entry to the user's ledger and updates the wallet.
func (l *Ledger) Apply(ctx context.Context, userID uint, entry Entry) (*models.TokenTransaction, models.TokenWallet, error) {
	return l.ApplyWith(ctx, userID, entry, nil)
}

// ApplyWith runs guard and entry in one transaction while the user row is
// locked. guard makes the state change the award is for; when it reports
// false the entry is skipped and the current wallet is returned with a nil
// transaction. A guard error rolls back both. A nil guard always applies.
func (l *Ledger) ApplyWith(ctx context.Context, userID uint, entry Entry, guard func(tx *gorm.DB) (bool, error)) (*models.TokenTransaction, models.TokenWallet, error) {
	if err := validateEntry(entry); err != nil {
		return nil, models.TokenWallet{}, err
	}

	var txn *models.TokenTransaction
	var wallet models.TokenWallet
	err := l.withLockedUser(ctx, userID, func(tx *gorm.DB, user *models.User) error {
		if guard != nil {
			ok, err := guard(tx)
			if err != nil {
				return err
			}
			if !ok {
				wallet = user.Tokens
				return nil
			}
		}
		var err error
		txn, err = applyEntry(tx, user, entry, l.now())
		wallet = user.Tokens
		return err
	})
	if err != nil {
		return nil, models.TokenWallet{}, err
	}
	if txn != nil {
		metrics.RecordTokens(entry.Type, entry.Source, entry.Amount)
	}
	return txn, wallet, nil
}

// Earn is shorthand for applying an earned entry.
func (l *Ledger) Earn(ctx context.Context, userID uint, amount int, source, description string) (models.TokenWallet, error) {
	_, wallet, err := l.Apply(ctx, userID, Entry{Amount: amount, Type: models.TokenEarned, Source: source, Description: description})
	return wallet, err
}

// RecordCheckIn persists checkIn, advances the streak and grants the streak award.
func (l *Ledger) RecordCheckIn(ctx context.Context, checkIn *models.CheckIn) (*CheckInResult, error) {
	result := &CheckInResult{}
	var granted *Entry

	err := l.withLockedUser(ctx, checkIn.UserID, func(tx *gorm.DB, user *models.User) error {
		now := l.now()
		checkIn.CreatedAt = now
		if err := tx.Create(checkIn).Error; err != nil {
			return fmt.Errorf("create check-in: %w", err)
		}

		outcome := NextStreak(user.Streak, now)
		if outcome.Changed {
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
				"streak_count":         outcome.Streak.Count,
				"streak_last_check_in": outcome.Streak.LastCheckIn,
				"streak_plant_level":   outcome.Streak.PlantLevel,
			}).Error; err != nil {
				return fmt.Errorf("update streak: %w", err)
			}
			user.Streak = outcome.Streak
		}

		if outcome.Award != nil && outcome.Award.Amount > 0 {
			entry := Entry{
				Amount:      outcome.Award.Amount,
				Type:        models.TokenEarned,
				Source:      models.SourceStreak,
				Description: outcome.Award.Reason,
			}
			if _, err := applyEntry(tx, user, entry, now); err != nil {
				return err
			}
			granted = &entry
			result.TokensAwarded = &AwardResult{
				Amount:     entry.Amount,
				Reason:     entry.Description,
				NewBalance: user.Tokens.Balance,
			}
		}

		result.CheckIn = *checkIn
		result.Streak = user.Streak
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordCheckIn(checkIn.Method)
	if granted != nil {
		metrics.RecordTokens(granted.Type, granted.Source, granted.Amount)
	}
	return result, nil
}

// Reconcile recomputes balance and lifetime from the transactions of a user.
func (l *Ledger) Reconcile(ctx context.Context, userID uint) (models.TokenWallet, error) {
	type sums struct {
		Earned int
		Spent  int
	}
	var s sums
	err := l.db.WithContext(ctx).Model(&models.TokenTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END),0) AS earned, COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END),0) AS spent", models.TokenEarned, models.TokenSpent).
		Where("user_id = ?", userID).
		Scan(&s).Error
	if err != nil {
		return models.TokenWallet{}, fmt.Errorf("sum transactions: %w", err)
	}
	return models.TokenWallet{Balance: s.Earned - s.Spent, Lifetime: s.Earned}, nil
}

func (l *Ledger) withLockedUser(ctx context.Context, userID uint, fn func(tx *gorm.DB, user *models.User) error) error {
	unlock := l.locks.Lock(userID)
	defer unlock()

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		return fn(tx, &user)
	})
}

func validateEntry(e Entry) error {
	if e.Amount <= 0 || e.Description == "" || !models.ValidTokenSource(e.Source) {
		return ErrInvalidEntry
	}
	if e.Type != models.TokenEarned && e.Type != models.TokenSpent {
		return ErrInvalidEntry
	}
	return nil
}

// applyEntry must run inside a transaction that holds the user row lock.
func applyEntry(tx *gorm.DB, user *models.User, e Entry, now time.Time) (*models.TokenTransaction, error) {
	wallet := user.Tokens
	switch e.Type {
	case models.TokenEarned:
		wallet.Balance += e.Amount
		wallet.Lifetime += e.Amount
	case models.TokenSpent:
		if wallet.Balance < e.Amount {
			return nil, ErrInsufficientBalance
		}
		wallet.Balance -= e.Amount
	default:
		return nil, ErrInvalidEntry
	}
	wallet.LastUpdated = &now

	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"tokens_balance":      wallet.Balance,
		"tokens_lifetime":     wallet.Lifetime,
		"tokens_last_updated": wallet.LastUpdated,
	}).Error; err != nil {
		return nil, fmt.Errorf("update wallet: %w", err)
	}

	txn := &models.TokenTransaction{
		UserID:      user.ID,
		Amount:      e.Amount,
		Type:        e.Type,
		Source:      e.Source,
		Description: e.Description,
		CreatedAt:   now,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}
	user.Tokens = wallet
	return txn, nil
}
