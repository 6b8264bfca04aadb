package policy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/allowly/allowly-api/internal/domain/limits"
)

const (
	settingsCachePrefix = "policy:settings:"
	settingsCacheTTL    = 5 * time.Minute
)

// Service owns approval settings, category rules and spending limits.
// The cache client may be nil; reads then always hit Postgres.
type Service struct {
	repo  *Repository
	cache *redis.Client
}

func NewService(repo *Repository, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache}
}

// GetSettings returns the child's settings, creating defaults lazily on
// first access.
func (s *Service) GetSettings(ctx context.Context, childID uuid.UUID) (*Settings, error) {
	if cached := s.fromCache(ctx, childID); cached != nil {
		return cached, nil
	}

	settings, err := s.repo.GetSettings(ctx, childID)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, settings)
	return settings, nil
}

// UpdateSettingsInput carries the editable scalar policy fields.
type UpdateSettingsInput struct {
	IsEnabled                    bool
	ApprovalThreshold            int64
	MaxSinglePurchase            *int64
	AutoApproveUnderThreshold    bool
	AutoApproveTrustedCategories bool
	TrustedCategories            []string
	RequestExpirationHours       int
}

// UpdateSettings validates and writes the scalar policy fields.
func (s *Service) UpdateSettings(ctx context.Context, childID uuid.UUID, in UpdateSettingsInput) (*Settings, error) {
	if in.ApprovalThreshold < 0 {
		return nil, ErrNegativeThreshold
	}
	if in.MaxSinglePurchase != nil && *in.MaxSinglePurchase <= 0 {
		return nil, ErrInvalidMaxPurchase
	}
	if in.RequestExpirationHours <= 0 {
		return nil, ErrInvalidExpiration
	}

	settings := &Settings{
		ChildID:                      childID,
		IsEnabled:                    in.IsEnabled,
		ApprovalThreshold:            in.ApprovalThreshold,
		MaxSinglePurchase:            nullInt64(in.MaxSinglePurchase),
		AutoApproveUnderThreshold:    in.AutoApproveUnderThreshold,
		AutoApproveTrustedCategories: in.AutoApproveTrustedCategories,
		TrustedCategories:            in.TrustedCategories,
		RequestExpirationHours:       in.RequestExpirationHours,
	}
	if settings.TrustedCategories == nil {
		settings.TrustedCategories = []string{}
	}

	if err := s.repo.UpdateSettings(ctx, settings); err != nil {
		return nil, err
	}
	s.invalidate(ctx, childID)

	log.Info().Str("child_id", childID.String()).Int64("approval_threshold", in.ApprovalThreshold).Msg("approval settings updated")
	return s.repo.GetSettings(ctx, childID)
}

// SetPaused pauses the child's spending with a user-facing reason.
func (s *Service) SetPaused(ctx context.Context, childID uuid.UUID, reason string) error {
	if reason == "" {
		return ErrPauseReasonRequired
	}
	if err := s.repo.SetPaused(ctx, childID, reason); err != nil {
		return err
	}
	s.invalidate(ctx, childID)
	log.Info().Str("child_id", childID.String()).Str("reason", reason).Msg("spending paused")
	return nil
}

// Resume lifts a pause.
func (s *Service) Resume(ctx context.Context, childID uuid.UUID) error {
	if err := s.repo.Resume(ctx, childID); err != nil {
		return err
	}
	s.invalidate(ctx, childID)
	log.Info().Str("child_id", childID.String()).Msg("spending resumed")
	return nil
}

// CategoryRuleInput describes a rule upsert.
type CategoryRuleInput struct {
	CategoryID        string
	Restriction       Restriction
	CategoryThreshold *int64
	Reason            string
}

// UpsertCategoryRule creates or replaces the rule for a category.
func (s *Service) UpsertCategoryRule(ctx context.Context, childID uuid.UUID, in CategoryRuleInput) (*CategoryRule, error) {
	switch in.Restriction {
	case RestrictionAllowed, RestrictionRequiresApproval, RestrictionBlocked:
	default:
		return nil, ErrInvalidRestriction
	}
	if in.CategoryThreshold != nil && *in.CategoryThreshold < 0 {
		return nil, ErrNegativeThreshold
	}

	rule := &CategoryRule{
		ChildID:           childID,
		CategoryID:        in.CategoryID,
		Restriction:       in.Restriction,
		CategoryThreshold: nullInt64(in.CategoryThreshold),
		Reason:            in.Reason,
	}
	if err := s.repo.UpsertCategoryRule(ctx, rule); err != nil {
		return nil, err
	}
	s.invalidate(ctx, childID)
	return rule, nil
}

// RemoveCategoryRule deletes the rule for a category.
func (s *Service) RemoveCategoryRule(ctx context.Context, childID uuid.UUID, categoryID string) error {
	if err := s.repo.RemoveCategoryRule(ctx, childID, categoryID); err != nil {
		return err
	}
	s.invalidate(ctx, childID)
	return nil
}

// SpendingLimitInput describes a limit upsert.
type SpendingLimitInput struct {
	Period          limits.Period
	LimitAmount     int64
	IncludesPending bool
}

// UpsertSpendingLimit creates or replaces the limit for a period.
func (s *Service) UpsertSpendingLimit(ctx context.Context, childID uuid.UUID, in SpendingLimitInput) (*SpendingLimit, error) {
	if !in.Period.Valid() {
		return nil, ErrInvalidPeriod
	}
	if in.LimitAmount <= 0 {
		return nil, ErrInvalidLimitAmount
	}

	limit := &SpendingLimit{
		ChildID:         childID,
		Period:          in.Period,
		LimitAmount:     in.LimitAmount,
		IncludesPending: in.IncludesPending,
	}
	if err := s.repo.UpsertSpendingLimit(ctx, limit); err != nil {
		return nil, err
	}
	s.invalidate(ctx, childID)
	return limit, nil
}

// RemoveSpendingLimit deletes the limit for a period.
func (s *Service) RemoveSpendingLimit(ctx context.Context, childID uuid.UUID, period limits.Period) error {
	if !period.Valid() {
		return ErrInvalidPeriod
	}
	if err := s.repo.RemoveSpendingLimit(ctx, childID, string(period)); err != nil {
		return err
	}
	s.invalidate(ctx, childID)
	return nil
}

// Repo exposes the repository for callers that need the per-child
// critical section (LockForChildTx).
func (s *Service) Repo() *Repository {
	return s.repo
}

func (s *Service) fromCache(ctx context.Context, childID uuid.UUID) *Settings {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, settingsCachePrefix+childID.String()).Bytes()
	if err != nil {
		return nil
	}
	var settings Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil
	}
	return &settings
}

func (s *Service) toCache(ctx context.Context, settings *Settings) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, settingsCachePrefix+settings.ChildID.String(), raw, settingsCacheTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to cache approval settings")
	}
}

func (s *Service) invalidate(ctx context.Context, childID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, settingsCachePrefix+childID.String()).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate settings cache")
	}
}
