package rest

import (
	"encoding/json"
	"net/http"

	"github.com/Meixii/thesis-production-sub001/internal/transport/auth"
)

type rawExpenseRequest struct {
	Description string      `json:"description"`
	Amount      interface{} `json:"amount"`
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var raw rawExpenseRequest
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

	expense, err := h.expenses.Create(r.Context(), principal.MemberID, raw.Description, amount)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	SuccessCreated(w, "expense recorded", expense)
}

func (h *Handler) getExpense(w http.ResponseWriter, r *http.Request) {
	expenseID, err := urlUUID(r, "expense_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	expense, err := h.expenses.Get(r.Context(), principal.MemberID, expenseID)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "expense", expense)
}

func (h *Handler) distributeExpense(w http.ResponseWriter, r *http.Request) {
	expenseID, err := urlUUID(r, "expense_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	expense, err := h.expenses.Distribute(r.Context(), principal.MemberID, expenseID)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "expense distributed", expense)
}

type updateExpenseAmountRequest struct {
	Amount interface{} `json:"amount"`
}

func (h *Handler) updateExpenseAmount(w http.ResponseWriter, r *http.Request) {
	expenseID, err := urlUUID(r, "expense_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	var raw updateExpenseAmountRequest
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

	expense, err := h.expenses.UpdateAmount(r.Context(), principal.MemberID, expenseID, amount)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "expense amount updated", expense)
}
