package rest

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/internal/service"
	"github.com/Meixii/thesis-production-sub001/internal/transport/auth"
)

type registerRequest struct {
	FullName string `json:"full_name"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	member, err := h.groups.Register(r.Context(), req.FullName)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	token, err := auth.IssueToken(h.jwtSecret, member, h.tokenTTL)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	SuccessCreated(w, "member registered", map[string]interface{}{
		"member": member,
		"token":  token,
	})
}

type createGroupRequest struct {
	Name       string `json:"name"`
	BudgetGoal interface{} `json:"budget_goal"`

	MaxIntraLoanPerMember interface{} `json:"max_intra_loan_per_member"`
	MaxInterLoanLimit     interface{} `json:"max_inter_loan_limit"`
	IntraLoanFee          interface{} `json:"intra_loan_fee"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var raw createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	in := service.CreateGroupInput{Name: raw.Name}
	var err error
	if in.BudgetGoal, err = optionalAmount(raw.BudgetGoal, "budget_goal"); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	if in.MaxIntraLoanPerMember, err = optionalAmount(raw.MaxIntraLoanPerMember, "max_intra_loan_per_member"); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	if in.MaxInterLoanLimit, err = optionalAmount(raw.MaxInterLoanLimit, "max_inter_loan_limit"); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	if in.IntraLoanFee, err = optionalAmount(raw.IntraLoanFee, "intra_loan_fee"); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	group, err := h.groups.Create(r.Context(), principal.MemberID, in)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	SuccessCreated(w, "group created", group)
}

// optionalAmount treats a missing field as zero, which disables the limit.
func optionalAmount(v interface{}, field string) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	return toDecimal(v, field)
}

type joinGroupRequest struct {
	InviteCode string `json:"invite_code"`
}

func (h *Handler) joinGroup(w http.ResponseWriter, r *http.Request) {
	var req joinGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	group, err := h.groups.Join(r.Context(), principal.MemberID, req.InviteCode)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "joined group", group)
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := urlUUID(r, "group_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	group, err := h.groups.Get(r.Context(), principal.MemberID, groupID)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "group", group)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	groupID, err := urlUUID(r, "group_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	members, err := h.groups.Members(r.Context(), principal.MemberID, groupID)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "members", members)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	groupID, err := urlUUID(r, "group_id")
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	// Balance is visible to members of the group only.
	if _, err := h.groups.Get(r.Context(), principal.MemberID, groupID); err != nil {
		ErrorFrom(w, err)
		return
	}

	balance, err := h.balance.AvailableCached(r.Context(), groupID)
	if err != nil {
		ErrorFrom(w, err)
		return
	}

	Success(w, "balance", map[string]interface{}{
		"group_id":  groupID,
		"available": balance,
	})
}
