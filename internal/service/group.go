package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

// inviteCodeAttempts bounds the retry loop on invite code collisions. With
// 8 hex characters a collision is already unlikely; five tries in a row
// failing means something else is wrong.
const inviteCodeAttempts = 5

type GroupService struct {
	tx          TxRunner
	groups      GroupStore
	dues        DueStore
	obligations ObligationStore
}

func NewGroupService(tx TxRunner, groups GroupStore, dues DueStore, obligations ObligationStore) *GroupService {
	return &GroupService{tx: tx, groups: groups, dues: dues, obligations: obligations}
}

type CreateGroupInput struct {
	Name       string
	BudgetGoal decimal.Decimal

	MaxIntraLoanPerMember decimal.Decimal
	MaxInterLoanLimit     decimal.Decimal
	IntraLoanFee          decimal.Decimal
}

// Create makes a new group with a fresh invite code, placing the creator in
// it as admin. Code collisions retry with a new code a bounded number of
// times.
func (s *GroupService) Create(ctx context.Context, creatorID uuid.UUID, in CreateGroupInput) (*domain.Group, error) {
	if in.Name == "" {
		return nil, domain.Invalidf("group name is required")
	}
	if in.BudgetGoal.IsNegative() || in.MaxIntraLoanPerMember.IsNegative() ||
		in.MaxInterLoanLimit.IsNegative() || in.IntraLoanFee.IsNegative() {
		return nil, domain.Invalidf("group amounts must be non-negative")
	}

	var group *domain.Group
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		creator, err := s.groups.GetMember(ctx, creatorID)
		if err != nil {
			return err
		}
		if creator.GroupID != nil {
			return domain.Conflictf("member already belongs to a group")
		}

		for attempt := 0; ; attempt++ {
			code, err := newInviteCode()
			if err != nil {
				return err
			}
			now := time.Now()
			g := &domain.Group{
				ID:                    uuid.New(),
				Name:                  in.Name,
				InviteCode:            code,
				BudgetGoal:            in.BudgetGoal,
				MaxIntraLoanPerMember: in.MaxIntraLoanPerMember,
				MaxInterLoanLimit:     in.MaxInterLoanLimit,
				IntraLoanFee:          in.IntraLoanFee,
				CreatedAt:             now,
				UpdatedAt:             now,
			}
			err = s.groups.Create(ctx, g)
			if err == nil {
				group = g
				break
			}
			if !errors.Is(err, domain.ErrConflict) || attempt+1 >= inviteCodeAttempts {
				return err
			}
		}

		now := time.Now()
		if err := s.groups.SetMemberGroup(ctx, creatorID, group.ID, now); err != nil {
			return err
		}
		return s.groups.SetMemberRole(ctx, creatorID, domain.RoleAdmin, now)
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Register creates a member account with no group attachment.
func (s *GroupService) Register(ctx context.Context, fullName string) (*domain.Member, error) {
	if fullName == "" {
		return nil, domain.Invalidf("full name is required")
	}
	now := time.Now()
	m := &domain.Member{
		ID:        uuid.New(),
		FullName:  fullName,
		Role:      domain.RoleMember,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.groups.CreateMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Join attaches a member to the group behind the invite code and, in the same
// transaction, backfills an obligation for every due that is still open, so a
// late joiner owes the same outstanding dues as everyone else.
func (s *GroupService) Join(ctx context.Context, memberID uuid.UUID, inviteCode string) (*domain.Group, error) {
	if inviteCode == "" {
		return nil, domain.Invalidf("invite code is required")
	}

	var group *domain.Group
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		member, err := s.groups.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		if member.GroupID != nil {
			return domain.Conflictf("member already belongs to a group")
		}

		g, err := s.groups.GetByInviteCode(ctx, inviteCode)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalidf("invalid invite code")
		}
		if err != nil {
			return err
		}

		now := time.Now()
		if err := s.groups.SetMemberGroup(ctx, memberID, g.ID, now); err != nil {
			return err
		}

		open, err := s.dues.ListOpenByGroup(ctx, g.ID, now)
		if err != nil {
			return err
		}
		for _, d := range open {
			due := d
			o := &domain.Obligation{
				ID:            uuid.New(),
				MemberID:      memberID,
				GroupID:       g.ID,
				Kind:          domain.KindDue,
				SourceID:      due.ID,
				BaseAmountDue: due.Amount,
				Penalty:       decimal.Zero,
				AmountPaid:    decimal.Zero,
				Status:        domain.ObligationUnpaid,
				DueDate:       &due.DueDate,
				CreatedAt:     now,
			}
			if err := s.obligations.Create(ctx, o); err != nil {
				return err
			}
		}

		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Get returns a group to its own members.
func (s *GroupService) Get(ctx context.Context, actorID, groupID uuid.UUID) (*domain.Group, error) {
	actor, err := s.groups.GetMember(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.InGroup(groupID) {
		return nil, domain.Unauthorizedf("group membership required")
	}
	return s.groups.GetByID(ctx, groupID)
}

func (s *GroupService) Members(ctx context.Context, actorID, groupID uuid.UUID) ([]domain.Member, error) {
	if _, err := s.Get(ctx, actorID, groupID); err != nil {
		return nil, err
	}
	return s.groups.ListActiveMembers(ctx, groupID)
}

func newInviteCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
