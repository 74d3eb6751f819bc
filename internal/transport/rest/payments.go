package rest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
	"github.com/Meixii/thesis-production-sub001/internal/service"
	"github.com/Meixii/thesis-production-sub001/internal/transport/auth"
)

type rawSubmitPaymentRequest struct {
	Amount      interface{} `json:"amount"`
	Method      string      `json:"method"`
	ReferenceID string      `json:"reference_id"`
	Purpose     string      `json:"purpose"`

	WeekStart    interface{} `json:"week_start_date"`
	ObligationID interface{} `json:"obligation_id"`
	LoanID       interface{} `json:"loan_id"`

	ProofFileName string `json:"proof_file_name"`
	ProofBase64   string `json:"proof_base64"`
	ProofType     string `json:"proof_content_type"`
}

func validateSubmitPaymentRequest(r *http.Request) (*service.SubmitPaymentInput, error) {
	var raw rawSubmitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, &ValidationError{Message: "invalid JSON"}
	}

	amount, err := toDecimal(raw.Amount, "amount")
	if err != nil {
		return nil, err
	}

	in := &service.SubmitPaymentInput{
		Amount:        amount,
		Method:        raw.Method,
		ReferenceID:   raw.ReferenceID,
		Purpose:       domain.PaymentPurpose(raw.Purpose),
		ProofFileName: raw.ProofFileName,
		ProofType:     raw.ProofType,
	}

	if in.WeekStart, err = toDatePtr(raw.WeekStart, "week_start_date"); err != nil {
		return nil, err
	}
	if in.ObligationID, err = toUUIDPtr(raw.ObligationID, "obligation_id"); err != nil {
		return nil, err
	}
	if in.LoanID, err = toUUIDPtr(raw.LoanID, "loan_id"); err != nil {
		return nil, err
	}

	if raw.ProofBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(raw.ProofBase64)
		if err != nil {
			return nil, &ValidationError{Field: "proof_base64", Message: "proof_base64 must be valid base64"}
		}
		in.ProofData = data
	}

	return in, nil
}

func toUUIDPtr(v interface{}, field string) (*uuid.UUID, error) {
	s, err := toStringPtr(v, field)
	if err != nil || s == nil {
		return nil, err
	}
	id, parseErr := uuid.Parse(*s)
	if parseErr != nil {
		return nil, &ValidationError{Field: field, Message: field + " must be a UUID"}
	}
	return &id, nil
}

func (h *Handler) submitPayment(w http.ResponseWriter, r *http.Request) {
	in, err := validateSubmitPaymentRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	payment, err := h.payments.Submit(r.Context(), principal.MemberID, *in)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	SuccessCreated(w, "payment submitted for verification", payment)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := urlUUID(r, "payment_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	payment, err := h.payments.Get(r.Context(), principal.MemberID, paymentID)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "payment", payment)
}

type reviewPaymentRequest struct {
	Notes *string `json:"notes"`
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	h.reviewPayment(w, r, h.payments.Verify, "payment verified")
}

func (h *Handler) rejectPayment(w http.ResponseWriter, r *http.Request) {
	h.reviewPayment(w, r, h.payments.Reject, "payment rejected")
}

func (h *Handler) reviewPayment(
	w http.ResponseWriter,
	r *http.Request,
	act func(ctx context.Context, verifierID, paymentID uuid.UUID, notes *string) (*domain.Payment, error),
	message string,
) {
	paymentID, err := urlUUID(r, "payment_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	var req reviewPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && r.ContentLength > 0 {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	payment, err := act(r.Context(), principal.MemberID, paymentID, req.Notes)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, message, payment)
}
