package approval

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/allowly/allowly-api/internal/domain/ledger"
	"github.com/allowly/allowly-api/internal/domain/limits"
	"github.com/allowly/allowly-api/internal/domain/policy"
	"github.com/allowly/allowly-api/internal/pkg/clock"
)

const (
	opTimeout  = 5 * time.Second
	sweepBatch = 100
)

// Service orchestrates spending checks and the request lifecycle.
// Every mutation runs inside one transaction opened here and starts by
// taking the child's settings row lock, which serializes all
// governance operations for that child.
type Service struct {
	db       *sqlx.DB
	repo     *Repository
	policies *policy.Repository
	trackers *limits.Repository
	ledger   Ledger
	notifier Notifier
	clock    clock.Clock
}

func NewService(db *sqlx.DB, repo *Repository, policies *policy.Repository, trackers *limits.Repository, ldg Ledger, notifier Notifier, clk clock.Clock) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		policies: policies,
		trackers: trackers,
		ledger:   ldg,
		notifier: notifier,
		clock:    clk,
	}
}

// CreateInput carries a child's request for a purchase above their
// auto-approval ceiling.
type CreateInput struct {
	ChildID     uuid.UUID
	FamilyID    uuid.UUID
	Amount      int64
	Description string
	CategoryID  *string
	GoalItemID  uuid.NullUUID
}

// CheckSpending evaluates a proposed spend without reserving anything.
// The lazily created window trackers are the only persisted effect.
func (s *Service) CheckSpending(ctx context.Context, childID uuid.UUID, amount int64, categoryID *string) (*CheckResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapTransient("check begin", err)
	}
	defer tx.Rollback()

	settings, err := s.policies.LockForChildTx(ctx, tx, childID)
	if err != nil {
		return nil, wrapTransient("check load settings", err)
	}

	trackers, err := s.trackers.SnapshotTx(ctx, tx, childID, settings.LimitConfigs(), s.clock.Now())
	if err != nil {
		return nil, wrapTransient("check snapshot trackers", err)
	}

	result := Evaluate(settings, trackers, amount, categoryID)

	if err := tx.Commit(); err != nil {
		return nil, wrapTransient("check commit", err)
	}
	return &result, nil
}

// Create evaluates the spend and, when approval is required, records a
// pending request and reserves the amount against every limit that
// tracks pending spend. Reservation and insert commit together.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, ErrDescriptionRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapTransient("create begin", err)
	}
	defer tx.Rollback()

	settings, err := s.policies.LockForChildTx(ctx, tx, in.ChildID)
	if err != nil {
		return nil, wrapTransient("create load settings", err)
	}

	now := s.clock.Now()
	cfgs := settings.LimitConfigs()

	trackers, err := s.trackers.SnapshotTx(ctx, tx, in.ChildID, cfgs, now)
	if err != nil {
		return nil, wrapTransient("create snapshot trackers", err)
	}

	result := Evaluate(settings, trackers, in.Amount, in.CategoryID)
	if !result.CanSpend {
		return nil, &BlockedError{Reason: result.BlockReason}
	}
	if !result.RequiresApproval {
		return nil, ErrApprovalNotRequired
	}

	expiration := settings.RequestExpirationHours
	if expiration <= 0 {
		expiration = policy.DefaultRequestExpirationHours
	}

	req := &Request{
		ID:          uuid.New(),
		ChildID:     in.ChildID,
		FamilyID:    in.FamilyID,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		CategoryID:  in.CategoryID,
		GoalItemID:  in.GoalItemID,
		Status:      StatusPending,
		ExpiresAt:   now.Add(time.Duration(expiration) * time.Hour),
	}

	if err := s.repo.CreateTx(ctx, tx, req); err != nil {
		return nil, wrapTransient("create insert request", err)
	}

	if err := s.trackers.ReserveTx(ctx, tx, in.ChildID, cfgs, in.Amount, now); err != nil {
		return nil, wrapTransient("create reserve", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTransient("create commit", err)
	}

	log.Info().
		Str("request_id", req.ID.String()).
		Str("child_id", in.ChildID.String()).
		Int64("amount", in.Amount).
		Msg("spending request created")

	s.notifier.NotifyApprovalRequested(ctx, in.FamilyID, in.ChildID, req.ID, in.Amount)
	for _, warning := range result.Warnings {
		s.notifier.NotifyLimitWarning(ctx, in.ChildID, warning)
	}

	return req, nil
}

// Respond resolves a pending request with a parent's decision. On
// approval the wallet debit, the tracker commit, and the status change
// succeed or fail as one transaction; insufficient funds rolls
// everything back and the request stays pending with its reservation.
func (s *Service) Respond(ctx context.Context, requestID, parentID, familyID uuid.UUID, approved bool, comment string, learningMoment bool) (*Request, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Unlocked read to learn which child's critical section to enter.
	// ChildID is immutable, so the value cannot go stale.
	peek, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if peek.FamilyID != familyID {
		return nil, ErrRequestNotFound
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapTransient("respond begin", err)
	}
	defer tx.Rollback()

	settings, err := s.policies.LockForChildTx(ctx, tx, peek.ChildID)
	if err != nil {
		return nil, wrapTransient("respond load settings", err)
	}

	req, err := s.repo.GetForUpdateTx(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, ErrNotPending
	}

	now := s.clock.Now()
	cfgs := settings.LimitConfigs()

	// Release unconditionally first; ReleaseTx floors at zero so a
	// reservation lost to a window rollover cannot go negative.
	if err := s.trackers.ReleaseTx(ctx, tx, req.ChildID, cfgs, req.Amount, now); err != nil {
		return nil, wrapTransient("respond release", err)
	}

	status := StatusDenied
	var txnID uuid.NullUUID
	if approved {
		txn, err := s.ledger.DebitTx(ctx, tx, req.ChildID, req.Amount, req.Description, req.CategoryID, req.ID.String())
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				return nil, err
			}
			return nil, wrapTransient("respond debit", err)
		}
		if err := s.trackers.CommitTx(ctx, tx, req.ChildID, cfgs, req.Amount, now); err != nil {
			return nil, wrapTransient("respond commit trackers", err)
		}
		status = StatusApproved
		txnID = uuid.NullUUID{UUID: txn.ID, Valid: true}
	}

	if err := s.repo.MarkRespondedTx(ctx, tx, req.ID, status, parentID, now, comment, learningMoment, txnID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTransient("respond commit", err)
	}

	log.Info().
		Str("request_id", req.ID.String()).
		Str("parent_id", parentID.String()).
		Bool("approved", approved).
		Msg("spending request resolved")

	s.notifier.NotifyRequestResolved(ctx, req.ChildID, req.ID, approved, comment)

	return s.repo.GetByID(ctx, requestID)
}

// Cancel lets the requesting child withdraw a pending request.
func (s *Service) Cancel(ctx context.Context, requestID, childID uuid.UUID) (*Request, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	peek, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if peek.ChildID != childID {
		return nil, ErrNotRequestOwner
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapTransient("cancel begin", err)
	}
	defer tx.Rollback()

	settings, err := s.policies.LockForChildTx(ctx, tx, childID)
	if err != nil {
		return nil, wrapTransient("cancel load settings", err)
	}

	req, err := s.repo.GetForUpdateTx(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, ErrNotPending
	}

	now := s.clock.Now()
	if err := s.trackers.ReleaseTx(ctx, tx, childID, settings.LimitConfigs(), req.Amount, now); err != nil {
		return nil, wrapTransient("cancel release", err)
	}
	if err := s.repo.MarkCancelledTx(ctx, tx, req.ID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTransient("cancel commit", err)
	}

	log.Info().Str("request_id", requestID.String()).Msg("spending request cancelled")

	return s.repo.GetByID(ctx, requestID)
}

// Expire transitions one overdue request. A request that already left
// Pending, or is not yet past its deadline, is left alone without
// error so sweeper retries and response races stay quiet.
func (s *Service) Expire(ctx context.Context, requestID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	peek, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil
		}
		return err
	}
	if peek.Status != StatusPending {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapTransient("expire begin", err)
	}
	defer tx.Rollback()

	settings, err := s.policies.LockForChildTx(ctx, tx, peek.ChildID)
	if err != nil {
		return wrapTransient("expire load settings", err)
	}

	req, err := s.repo.GetForUpdateTx(ctx, tx, requestID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if req.Status != StatusPending || req.ExpiresAt.After(now) {
		return nil
	}

	if err := s.trackers.ReleaseTx(ctx, tx, req.ChildID, settings.LimitConfigs(), req.Amount, now); err != nil {
		return wrapTransient("expire release", err)
	}
	if err := s.repo.MarkExpiredTx(ctx, tx, req.ID, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapTransient("expire commit", err)
	}

	log.Info().Str("request_id", requestID.String()).Msg("spending request expired")

	s.notifier.NotifyRequestExpired(ctx, req.ChildID, req.ID)

	return nil
}

// SweepExpired expires every overdue pending request, one transition
// per transaction. Returns how many were expired.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpiredPending(ctx, s.clock.Now(), sweepBatch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if err := s.Expire(ctx, id); err != nil {
			log.Error().Err(err).Str("request_id", id.String()).Msg("failed to expire request")
			continue
		}
		expired++
	}
	return expired, nil
}

// DirectSpend executes an immediate purchase that passes evaluation
// without needing approval. Debit and tracker commit are atomic.
func (s *Service) DirectSpend(ctx context.Context, childID uuid.UUID, amount int64, description string, categoryID *string, referenceID string) (*ledger.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(description) == "" {
		return nil, ErrDescriptionRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapTransient("spend begin", err)
	}
	defer tx.Rollback()

	settings, err := s.policies.LockForChildTx(ctx, tx, childID)
	if err != nil {
		return nil, wrapTransient("spend load settings", err)
	}

	now := s.clock.Now()
	cfgs := settings.LimitConfigs()

	trackers, err := s.trackers.SnapshotTx(ctx, tx, childID, cfgs, now)
	if err != nil {
		return nil, wrapTransient("spend snapshot trackers", err)
	}

	result := Evaluate(settings, trackers, amount, categoryID)
	if !result.CanSpend {
		return nil, &BlockedError{Reason: result.BlockReason}
	}
	if result.RequiresApproval {
		return nil, ErrApprovalRequired
	}

	txn, err := s.ledger.DebitTx(ctx, tx, childID, amount, description, categoryID, referenceID)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) || errors.Is(err, ledger.ErrDuplicateReference) {
			return nil, err
		}
		return nil, wrapTransient("spend debit", err)
	}

	if err := s.trackers.CommitTx(ctx, tx, childID, cfgs, amount, now); err != nil {
		return nil, wrapTransient("spend commit trackers", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTransient("spend commit", err)
	}

	log.Info().
		Str("child_id", childID.String()).
		Int64("amount", amount).
		Msg("direct spend completed")

	for _, warning := range result.Warnings {
		s.notifier.NotifyLimitWarning(ctx, childID, warning)
	}

	return txn, nil
}

// GetLimitStatuses returns the current-window usage for every
// configured limit, materializing fresh windows as needed.
func (s *Service) GetLimitStatuses(ctx context.Context, childID uuid.UUID) ([]limits.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapTransient("limit status begin", err)
	}
	defer tx.Rollback()

	settings, err := s.policies.LockForChildTx(ctx, tx, childID)
	if err != nil {
		return nil, wrapTransient("limit status load settings", err)
	}

	cfgs := settings.LimitConfigs()
	trackers, err := s.trackers.SnapshotTx(ctx, tx, childID, cfgs, s.clock.Now())
	if err != nil {
		return nil, wrapTransient("limit status snapshot", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapTransient("limit status commit", err)
	}

	statuses := make([]limits.Status, 0, len(trackers))
	for i := range trackers {
		t := &trackers[i]
		statuses = append(statuses, limits.Status{
			Period:          t.Period,
			WindowStart:     t.WindowStart,
			WindowEnd:       t.WindowEnd,
			LimitAmount:     t.LimitAmount,
			SpentAmount:     t.SpentAmount,
			PendingAmount:   t.PendingAmount,
			RemainingAmount: t.Remaining(),
			PercentUsed:     t.PercentUsed(),
			IncludesPending: cfgs[i].IncludesPending,
		})
	}
	return statuses, nil
}

// ListByChild returns a child's own requests.
func (s *Service) ListByChild(ctx context.Context, childID uuid.UUID, limit, offset int) ([]Request, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByChild(ctx, childID, limit, offset)
}

// ListPendingByFamily returns the family's open requests for parents.
func (s *Service) ListPendingByFamily(ctx context.Context, familyID uuid.UUID) ([]Request, error) {
	return s.repo.ListPendingByFamily(ctx, familyID)
}

// GetByID returns a request visible to members of its family.
func (s *Service) GetByID(ctx context.Context, requestID, familyID uuid.UUID) (*Request, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.FamilyID != familyID {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// wrapTransient classifies storage failures. Context expiry and
// anything non-domain coming back from the database is retryable from
// the caller's point of view.
func wrapTransient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}
