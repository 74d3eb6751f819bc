package postgres

import (
	"database/sql"
	"fmt"
)

// Migrate creates the schema if it does not exist. Statements are idempotent;
// the ledger is small enough that versioned migrations would be overhead.
func Migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS groups (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		invite_code TEXT NOT NULL UNIQUE,
		budget_goal NUMERIC(14,2) NOT NULL DEFAULT 0,
		max_intra_loan_per_member NUMERIC(14,2) NOT NULL DEFAULT 0,
		max_inter_loan_limit NUMERIC(14,2) NOT NULL DEFAULT 0,
		intra_loan_fee NUMERIC(14,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (budget_goal >= 0),
		CHECK (max_intra_loan_per_member >= 0),
		CHECK (max_inter_loan_limit >= 0),
		CHECK (intra_loan_fee >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS members (
		id UUID PRIMARY KEY,
		group_id UUID REFERENCES groups(id),
		full_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (role IN ('member', 'finance_coordinator', 'treasurer', 'admin'))
	)`,

	`CREATE TABLE IF NOT EXISTS contribution_weeks (
		id UUID PRIMARY KEY,
		group_id UUID NOT NULL REFERENCES groups(id),
		start_date DATE NOT NULL,
		base_amount NUMERIC(14,2) NOT NULL,
		penalty NUMERIC(14,2) NOT NULL DEFAULT 0,
		due_date DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CHECK (base_amount > 0),
		CHECK (penalty >= 0),
		UNIQUE (group_id, start_date)
	)`,

	`CREATE TABLE IF NOT EXISTS dues (
		id UUID PRIMARY KEY,
		group_id UUID NOT NULL REFERENCES groups(id),
		name TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		due_date DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CHECK (amount > 0)
	)`,

	`CREATE TABLE IF NOT EXISTS expenses (
		id UUID PRIMARY KEY,
		group_id UUID NOT NULL REFERENCES groups(id),
		description TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		is_distributed BOOLEAN NOT NULL DEFAULT FALSE,
		per_member_share NUMERIC(14,2),
		created_by UUID NOT NULL REFERENCES members(id),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (amount > 0)
	)`,

	`CREATE TABLE IF NOT EXISTS obligations (
		id UUID PRIMARY KEY,
		member_id UUID NOT NULL REFERENCES members(id),
		group_id UUID NOT NULL REFERENCES groups(id),
		kind TEXT NOT NULL,
		source_id UUID NOT NULL,
		base_amount_due NUMERIC(14,2) NOT NULL,
		penalty NUMERIC(14,2) NOT NULL DEFAULT 0,
		amount_paid NUMERIC(14,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'unpaid',
		due_date DATE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (kind IN ('contribution', 'due', 'expense_share')),
		CHECK (status IN ('unpaid', 'pending_verification', 'partially_paid', 'paid', 'overdue')),
		CHECK (amount_paid >= 0),
		CHECK (amount_paid <= base_amount_due + penalty),
		UNIQUE (member_id, kind, source_id)
	)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		payer_id UUID NOT NULL REFERENCES members(id),
		group_id UUID NOT NULL REFERENCES groups(id),
		amount NUMERIC(14,2) NOT NULL,
		method TEXT NOT NULL,
		reference_id TEXT NOT NULL DEFAULT '',
		proof_url TEXT,
		purpose TEXT NOT NULL,
		loan_id UUID,
		status TEXT NOT NULL DEFAULT 'pending_verification',
		verifier_id UUID REFERENCES members(id),
		verified_at TIMESTAMPTZ,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (amount > 0),
		CHECK (purpose IN ('contribution', 'due', 'expense_share', 'loan_repayment')),
		CHECK (status IN ('pending_verification', 'verified', 'rejected'))
	)`,

	`CREATE TABLE IF NOT EXISTS allocations (
		id UUID PRIMARY KEY,
		payment_id UUID NOT NULL REFERENCES payments(id),
		obligation_id UUID NOT NULL REFERENCES obligations(id),
		amount NUMERIC(14,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CHECK (amount > 0)
	)`,

	`CREATE TABLE IF NOT EXISTS loans (
		id UUID PRIMARY KEY,
		type TEXT NOT NULL,
		requester_id UUID NOT NULL REFERENCES members(id),
		requesting_group UUID NOT NULL REFERENCES groups(id),
		providing_group UUID NOT NULL REFERENCES groups(id),
		amount_requested NUMERIC(14,2) NOT NULL,
		amount_approved NUMERIC(14,2),
		fee_applied NUMERIC(14,2) NOT NULL DEFAULT 0,
		total_repaid NUMERIC(14,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'requested',
		rejection_reason TEXT,
		disburse_proof_url TEXT,
		disburse_ref TEXT,
		due_date DATE NOT NULL,
		requested_at TIMESTAMPTZ NOT NULL,
		approved_at TIMESTAMPTZ,
		rejected_at TIMESTAMPTZ,
		disbursed_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (type IN ('intra_group', 'inter_group')),
		CHECK (status IN ('requested', 'approved', 'rejected', 'disbursed', 'partially_repaid', 'fully_repaid')),
		CHECK (amount_requested > 0),
		CHECK (total_repaid >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS loan_repayments (
		id UUID PRIMARY KEY,
		loan_id UUID NOT NULL REFERENCES loans(id),
		payment_id UUID REFERENCES payments(id),
		amount NUMERIC(14,2) NOT NULL,
		recorded_by UUID NOT NULL REFERENCES members(id),
		created_at TIMESTAMPTZ NOT NULL,
		CHECK (amount > 0)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_obligations_member ON obligations (member_id)`,
	`CREATE INDEX IF NOT EXISTS idx_obligations_group_status ON obligations (group_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_group_status ON payments (group_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_allocations_payment ON allocations (payment_id)`,
	`CREATE INDEX IF NOT EXISTS idx_allocations_obligation ON allocations (obligation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_providing_status ON loans (providing_group, status)`,
	`CREATE INDEX IF NOT EXISTS idx_loan_repayments_loan ON loan_repayments (loan_id)`,
}
