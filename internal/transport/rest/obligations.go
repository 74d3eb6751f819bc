package rest

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/service"
	"github.com/Meixii/thesis-production-sub001/internal/transport/auth"
)

type rawCreateWeekRequest struct {
	StartDate  interface{} `json:"start_date"`
	BaseAmount interface{} `json:"base_amount"`
	Penalty    interface{} `json:"penalty"`
	DueDate    interface{} `json:"due_date"`
}

func validateCreateWeekRequest(r *http.Request) (*service.CreateWeekInput, error) {
	var raw rawCreateWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, &ValidationError{Message: "invalid JSON"}
	}

	start, err := toDate(raw.StartDate, "start_date")
	if err != nil {
		return nil, err
	}
	base, err := toDecimal(raw.BaseAmount, "base_amount")
	if err != nil {
		return nil, err
	}
	penalty := decimal.Zero
	if raw.Penalty != nil {
		if penalty, err = toDecimal(raw.Penalty, "penalty"); err != nil {
			return nil, err
		}
	}
	due, err := toDate(raw.DueDate, "due_date")
	if err != nil {
		return nil, err
	}

	return &service.CreateWeekInput{
		StartDate:  start,
		BaseAmount: base,
		Penalty:    penalty,
		DueDate:    due,
	}, nil
}

func (h *Handler) createWeek(w http.ResponseWriter, r *http.Request) {
	in, err := validateCreateWeekRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	week, err := h.obligations.CreateWeek(r.Context(), principal.MemberID, *in)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	SuccessCreated(w, "contribution week created", week)
}

type rawCreateDueRequest struct {
	Name    string      `json:"name"`
	Amount  interface{} `json:"amount"`
	DueDate interface{} `json:"due_date"`
}

func (h *Handler) createDue(w http.ResponseWriter, r *http.Request) {
	var raw rawCreateDueRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	amount, err := toDecimal(raw.Amount, "amount")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	dueDate, err := toDate(raw.DueDate, "due_date")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	due, err := h.obligations.CreateDue(r.Context(), principal.MemberID, service.CreateDueInput{
		Name:    raw.Name,
		Amount:  amount,
		DueDate: dueDate,
	})
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	SuccessCreated(w, "due created", due)
}

func (h *Handler) listOwnObligations(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	obligations, err := h.obligations.ListForMember(r.Context(), principal.MemberID, principal.MemberID)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "obligations", obligations)
}

func (h *Handler) listMemberObligations(w http.ResponseWriter, r *http.Request) {
	memberID, err := urlUUID(r, "member_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	obligations, err := h.obligations.ListForMember(r.Context(), principal.MemberID, memberID)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "obligations", obligations)
}

func (h *Handler) resetObligation(w http.ResponseWriter, r *http.Request) {
	obligationID, err := urlUUID(r, "obligation_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.obligations.Reset(r.Context(), principal.MemberID, obligationID); err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "obligation removed", nil)
}
