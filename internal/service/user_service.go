package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/eventhub/internal/apperr"
	"github.com/iliyamo/eventhub/internal/clock"
	"github.com/iliyamo/eventhub/internal/logger"
	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/repository"
)

// UserService implements admin user management. Disabling or deleting a
// user revokes all of that user's sessions.
type UserService struct {
	users  IdentityStore
	ledger SessionLedger
	clock  clock.Clock
}

func NewUserService(users IdentityStore, ledger SessionLedger, clk clock.Clock) *UserService {
	if clk == nil {
		clk = clock.System{}
	}
	return &UserService{users: users, ledger: ledger, clock: clk}
}

func (s *UserService) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]model.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}

// SetStatus changes the account status. DISABLED also ends every session.
func (s *UserService) SetStatus(ctx context.Context, id, status string) (model.UserSummary, error) {
	st, err := model.ParseStatus(status)
	if err != nil {
		return model.UserSummary{}, apperr.Validation("invalid status")
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.UserSummary{}, err
	}
	now := s.clock.Now()
	u.Status = st
	u.UpdatedAt = now
	if err := s.users.Save(ctx, &u); err != nil {
		return model.UserSummary{}, fmt.Errorf("save user: %w", err)
	}
	if st == model.StatusDisabled {
		n, err := s.ledger.RevokeByUserID(ctx, id, now)
		if err != nil {
			return model.UserSummary{}, fmt.Errorf("revoke user sessions: %w", err)
		}
		logger.Info().Str("user_id", id).Int64("revoked", n).Msg("user disabled")
	}
	return u.Summary(), nil
}

func (s *UserService) SetRole(ctx context.Context, id, role string) (model.UserSummary, error) {
	r, err := model.ParseRole(role)
	if err != nil {
		return model.UserSummary{}, apperr.Validation("invalid role")
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.UserSummary{}, err
	}
	u.Role = r
	u.UpdatedAt = s.clock.Now()
	if err := s.users.Save(ctx, &u); err != nil {
		return model.UserSummary{}, fmt.Errorf("save user: %w", err)
	}
	return u.Summary(), nil
}

// DeleteUser revokes the user's sessions and then removes the record.
// An admin cannot delete their own account.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return repository.ErrForbidden
	}
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return err
	}
	if _, err := s.ledger.RevokeByUserID(ctx, id, s.clock.Now()); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	if err := s.users.DeleteByID(ctx, id); err != nil {
		return err
	}
	logger.Info().Str("user_id", id).Str("actor_id", actorID).Msg("user deleted")
	return nil
}
