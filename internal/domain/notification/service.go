package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service delivers in-app notifications. Delivery is best-effort:
// governance correctness never depends on it, so failures are logged
// and swallowed.
type Service struct {
	repo *Repository
	hub  *Hub
}

// NewService creates notification service. hub may be nil.
func NewService(repo *Repository, hub *Hub) *Service {
	return &Service{repo: repo, hub: hub}
}

// Create persists a notification and pushes it to any live stream.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, notifType Type, title, body string, data *Data) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}
	if body != "" {
		n.Body = sql.NullString{String: body, Valid: true}
	}
	n.SetData(data)

	if err := s.repo.Create(ctx, n); err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Str("type", string(notifType)).Msg("failed to store notification")
		return
	}

	if s.hub != nil {
		s.hub.SendToUser(userID, map[string]interface{}{
			"type": "notification:new",
			"data": n,
		})
	}
}

// List returns notifications for user
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// GetUnreadCount returns unread count
func (s *Service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead marks single notification as read
func (s *Service) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

// MarkAllAsRead marks all notifications as read
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// --- Governance notification helpers ---

// NotifyApprovalRequested tells every parent in the family that a child
// is waiting on a spending decision.
func (s *Service) NotifyApprovalRequested(ctx context.Context, familyID, childID, requestID uuid.UUID, amount int64) {
	parents, err := s.repo.ListFamilyParents(ctx, familyID)
	if err != nil {
		log.Error().Err(err).Str("family_id", familyID.String()).Msg("failed to resolve family parents")
		return
	}

	data := &Data{RequestID: &requestID, ChildID: &childID, Amount: &amount}
	for _, parentID := range parents {
		s.Create(ctx, parentID, TypeApprovalRequested,
			"Spending approval needed",
			fmt.Sprintf("A purchase of %s is waiting for your approval", formatCents(amount)),
			data,
		)
	}
}

// NotifyRequestResolved tells the child the outcome of their request.
func (s *Service) NotifyRequestResolved(ctx context.Context, childID, requestID uuid.UUID, approved bool, comment string) {
	if approved {
		s.Create(ctx, childID, TypeRequestApproved,
			"Your request was approved!",
			comment,
			&Data{RequestID: &requestID},
		)
		return
	}
	s.Create(ctx, childID, TypeRequestDenied,
		"Your request was denied",
		comment,
		&Data{RequestID: &requestID},
	)
}

// NotifyRequestExpired tells the child their request timed out.
func (s *Service) NotifyRequestExpired(ctx context.Context, childID, requestID uuid.UUID) {
	s.Create(ctx, childID, TypeRequestExpired,
		"Your request expired",
		"Nobody responded in time. You can ask again.",
		&Data{RequestID: &requestID},
	)
}

// NotifyLimitWarning warns the child a spending limit is nearly used.
func (s *Service) NotifyLimitWarning(ctx context.Context, childID uuid.UUID, message string) {
	s.Create(ctx, childID, TypeLimitWarning,
		"Spending limit warning",
		message,
		nil,
	)
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
