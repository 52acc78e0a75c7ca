package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/ledger"
)

// CreateEscrowRequest opens an escrow.
type CreateEscrowRequest struct {
	BuyerID    string   `json:"buyer_id"`
	SellerID   string   `json:"seller_id"`
	AgentID    string   `json:"agent_id,omitempty"`
	ListingID  string   `json:"listing_id,omitempty"`
	Amount     int64    `json:"amount"`
	Milestones []string `json:"milestones,omitempty"`
}

// FundRequest deposits the buyer's funds.
type FundRequest struct {
	Amount int64 `json:"amount"`
}

// AddMilestoneRequest adds a release condition.
type AddMilestoneRequest struct {
	Title string `json:"title"`
}

// RefundRequest returns the funds to the buyer.
type RefundRequest struct {
	Reason string `json:"reason"`
}

// EscrowResponse is an account with its milestones and balance.
type EscrowResponse struct {
	*ledger.Account
	Milestones []*ledger.Milestone `json:"milestones"`
	Balance    int64               `json:"balance"`
}

func (a *API) createEscrow(w http.ResponseWriter, r *http.Request) {
	var req CreateEscrowRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	acct, err := a.ledger.Create(r.Context(), ledger.CreateInput{
		BuyerID:    req.BuyerID,
		SellerID:   req.SellerID,
		AgentID:    req.AgentID,
		ListingID:  req.ListingID,
		Amount:     req.Amount,
		Milestones: req.Milestones,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeEscrow(w, r, http.StatusCreated, acct)
}

func (a *API) getEscrow(w http.ResponseWriter, r *http.Request) {
	escrowID, ok := a.escrowID(w, r)
	if !ok {
		return
	}
	acct, err := a.ledger.Get(r.Context(), escrowID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeEscrow(w, r, http.StatusOK, acct)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	escrowID, ok := a.escrowID(w, r)
	if !ok {
		return
	}
	txs, err := a.ledger.Transactions(r.Context(), escrowID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*ledger.Transaction{}
	}
	a.writeJSON(w, http.StatusOK, txs)
}

func (a *API) fundEscrow(w http.ResponseWriter, r *http.Request) {
	escrowID, ok := a.escrowID(w, r)
	if !ok {
		return
	}
	var req FundRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	acct, err := a.ledger.Fund(r.Context(), escrowID, req.Amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeEscrow(w, r, http.StatusOK, acct)
}

func (a *API) addMilestone(w http.ResponseWriter, r *http.Request) {
	escrowID, ok := a.escrowID(w, r)
	if !ok {
		return
	}
	var req AddMilestoneRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	ms, err := a.ledger.AddMilestone(r.Context(), escrowID, req.Title)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, ms)
}

func (a *API) completeMilestone(w http.ResponseWriter, r *http.Request) {
	msID, err := id.ParseMilestoneID(chi.URLParam(r, "milestoneID"))
	if err != nil {
		a.writeError(w, r, badID("milestone", err))
		return
	}
	ms, err := a.ledger.CompleteMilestone(r.Context(), msID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, ms)
}

func (a *API) releaseEscrow(w http.ResponseWriter, r *http.Request) {
	escrowID, ok := a.escrowID(w, r)
	if !ok {
		return
	}
	acct, err := a.ledger.Release(r.Context(), escrowID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeEscrow(w, r, http.StatusOK, acct)
}

func (a *API) refundEscrow(w http.ResponseWriter, r *http.Request) {
	escrowID, ok := a.escrowID(w, r)
	if !ok {
		return
	}
	var req RefundRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	acct, err := a.ledger.Refund(r.Context(), escrowID, req.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeEscrow(w, r, http.StatusOK, acct)
}

// ── helpers ──

func (a *API) escrowID(w http.ResponseWriter, r *http.Request) (id.EscrowID, bool) {
	escrowID, err := id.ParseEscrowID(chi.URLParam(r, "escrowID"))
	if err != nil {
		a.writeError(w, r, badID("escrow", err))
		return escrowID, false
	}
	return escrowID, true
}

func (a *API) writeEscrow(w http.ResponseWriter, r *http.Request, status int, acct *ledger.Account) {
	ms, err := a.ledger.Milestones(r.Context(), acct.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	totals, err := a.ledger.Balance(r.Context(), acct.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if ms == nil {
		ms = []*ledger.Milestone{}
	}
	a.writeJSON(w, status, EscrowResponse{Account: acct, Milestones: ms, Balance: totals.Balance()})
}
