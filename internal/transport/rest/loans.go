package rest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
	"github.com/Meixii/thesis-production-sub001/internal/service"
	"github.com/Meixii/thesis-production-sub001/internal/transport/auth"
)

type rawRequestLoanRequest struct {
	Type    string      `json:"type"`
	Amount  interface{} `json:"amount"`
	DueDate interface{} `json:"due_date"`

	ProvidingGroupID interface{} `json:"providing_group_id"`
}

func validateRequestLoanRequest(r *http.Request) (*service.RequestLoanInput, error) {
	var raw rawRequestLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, &ValidationError{Message: "invalid JSON"}
	}

	amount, err := toDecimal(raw.Amount, "amount")
	if err != nil {
		return nil, err
	}
	dueDate, err := toDate(raw.DueDate, "due_date")
	if err != nil {
		return nil, err
	}
	providingGroup, err := toUUIDPtr(raw.ProvidingGroupID, "providing_group_id")
	if err != nil {
		return nil, err
	}

	return &service.RequestLoanInput{
		Type:             domain.LoanType(raw.Type),
		Amount:           amount,
		DueDate:          dueDate,
		ProvidingGroupID: providingGroup,
	}, nil
}

func (h *Handler) requestLoan(w http.ResponseWriter, r *http.Request) {
	in, err := validateRequestLoanRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	loan, err := h.loans.Request(r.Context(), principal.MemberID, *in)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	SuccessCreated(w, "loan requested", loan)
}

func (h *Handler) getLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := urlUUID(r, "loan_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	loan, err := h.loans.Get(r.Context(), principal.MemberID, loanID)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "loan", loan)
}

type approveLoanRequest struct {
	Amount interface{} `json:"amount"`
}

func (h *Handler) approveLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := urlUUID(r, "loan_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	var raw approveLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && r.ContentLength > 0 {
		ErrorBadRequest(w, "invalid JSON")
		return
	}
	// Absent amount approves the requested amount in full.
	amount, err := toDecimalPtr(raw.Amount, "amount")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	loan, err := h.loans.Approve(r.Context(), principal.MemberID, loanID, amount)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "loan approved", loan)
}

type rejectLoanRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) rejectLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := urlUUID(r, "loan_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	var req rejectLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	loan, err := h.loans.Reject(r.Context(), principal.MemberID, loanID, req.Reason)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "loan rejected", loan)
}

type disburseLoanRequest struct {
	ExternalRef interface{} `json:"external_ref"`

	ProofFileName string `json:"proof_file_name"`
	ProofBase64   string `json:"proof_base64"`
	ProofType     string `json:"proof_content_type"`
}

func (h *Handler) disburseLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := urlUUID(r, "loan_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	var raw disburseLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && r.ContentLength > 0 {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	in := service.DisburseInput{
		ProofFileName: raw.ProofFileName,
		ProofType:     raw.ProofType,
	}
	if in.ExternalRef, err = toStringPtr(raw.ExternalRef, "external_ref"); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	if raw.ProofBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(raw.ProofBase64)
		if err != nil {
			ErrorBadRequest(w, "proof_base64 must be valid base64")
			return
		}
		in.ProofData = data
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	loan, err := h.loans.Disburse(r.Context(), principal.MemberID, loanID, in)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "loan disbursed", loan)
}

type recordRepaymentRequest struct {
	Amount interface{} `json:"amount"`
}

func (h *Handler) recordRepayment(w http.ResponseWriter, r *http.Request) {
	loanID, err := urlUUID(r, "loan_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	var raw recordRepaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}
	amount, err := toDecimal(raw.Amount, "amount")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	loan, err := h.loans.RecordRepayment(r.Context(), principal.MemberID, loanID, amount)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "repayment recorded", loan)
}

func (h *Handler) listRepayments(w http.ResponseWriter, r *http.Request) {
	loanID, err := urlUUID(r, "loan_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	repayments, err := h.loans.Repayments(r.Context(), principal.MemberID, loanID)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "repayments", repayments)
}
