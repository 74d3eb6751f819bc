package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

type GroupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

const groupColumns = `id, name, invite_code, budget_goal, max_intra_loan_per_member, max_inter_loan_limit, intra_loan_fee, created_at, updated_at`

func scanGroup(row *sql.Row) (*domain.Group, error) {
	var g domain.Group
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.InviteCode,
		&g.BudgetGoal,
		&g.MaxIntraLoanPerMember,
		&g.MaxInterLoanLimit,
		&g.IntraLoanFee,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}
	return &g, nil
}

func (r *GroupRepository) Create(ctx context.Context, g *domain.Group) error {
	query := `
		INSERT INTO groups (id, name, invite_code, budget_goal, max_intra_loan_per_member, max_inter_loan_limit, intra_loan_fee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err := q(ctx, r.db).ExecContext(ctx, query,
		g.ID, g.Name, g.InviteCode, g.BudgetGoal,
		g.MaxIntraLoanPerMember, g.MaxInterLoanLimit, g.IntraLoanFee, g.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.Conflictf("invite code %q already taken", g.InviteCode)
	}
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (r *GroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`
	return scanGroup(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetForUpdate locks the group row for the duration of the transaction.
// Loan approval relies on this to serialize balance reads per group.
func (r *GroupRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1 FOR UPDATE`
	return scanGroup(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *GroupRepository) GetByInviteCode(ctx context.Context, code string) (*domain.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE invite_code = $1`
	return scanGroup(q(ctx, r.db).QueryRowContext(ctx, query, code))
}

const memberColumns = `id, group_id, full_name, role, active, created_at, updated_at`

func scanMember(row *sql.Row) (*domain.Member, error) {
	var m domain.Member
	var groupID uuid.NullUUID
	err := row.Scan(&m.ID, &groupID, &m.FullName, &m.Role, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("member not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan member: %w", err)
	}
	if groupID.Valid {
		m.GroupID = &groupID.UUID
	}
	return &m, nil
}

func (r *GroupRepository) GetMember(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	return scanMember(q(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *GroupRepository) CreateMember(ctx context.Context, m *domain.Member) error {
	query := `
		INSERT INTO members (id, group_id, full_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	var groupID any
	if m.GroupID != nil {
		groupID = *m.GroupID
	}
	_, err := q(ctx, r.db).ExecContext(ctx, query, m.ID, groupID, m.FullName, m.Role, m.Active, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// SetMemberGroup attaches a member to a group. Obligation backfill for open
// dues happens in the same transaction, in the service layer.
func (r *GroupRepository) SetMemberGroup(ctx context.Context, memberID, groupID uuid.UUID, at time.Time) error {
	query := `UPDATE members SET group_id = $2, updated_at = $3 WHERE id = $1`
	res, err := q(ctx, r.db).ExecContext(ctx, query, memberID, groupID, at)
	if err != nil {
		return fmt.Errorf("set member group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("member not found")
	}
	return nil
}

func (r *GroupRepository) SetMemberRole(ctx context.Context, memberID uuid.UUID, role domain.Role, at time.Time) error {
	query := `UPDATE members SET role = $2, updated_at = $3 WHERE id = $1`
	res, err := q(ctx, r.db).ExecContext(ctx, query, memberID, role, at)
	if err != nil {
		return fmt.Errorf("set member role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("member not found")
	}
	return nil
}

func (r *GroupRepository) CountActiveMembers(ctx context.Context, groupID uuid.UUID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM members WHERE group_id = $1 AND active`
	if err := q(ctx, r.db).QueryRowContext(ctx, query, groupID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active members: %w", err)
	}
	return n, nil
}

func (r *GroupRepository) ListActiveMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE group_id = $1 AND active ORDER BY full_name`
	rows, err := q(ctx, r.db).QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		var m domain.Member
		var groupID uuid.NullUUID
		if err := rows.Scan(&m.ID, &groupID, &m.FullName, &m.Role, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if groupID.Valid {
			m.GroupID = &groupID.UUID
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
