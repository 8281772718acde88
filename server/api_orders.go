package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// POST /api/orders {company_id, from_address, to_address, move_date, notes?}
func (a *api) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	acct, err := a.currentAccount(r)
	if err != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	if acct.Role != RoleUser {
		writeError(w, 403, "forbidden")
		return
	}
	var req struct {
		CompanyID   int64  `json:"company_id" validate:"required"`
		FromAddress string `json:"from_address" validate:"required"`
		ToAddress   string `json:"to_address" validate:"required"`
		MoveDate    string `json:"move_date" validate:"required"`
		Notes       string `json:"notes"`
	}
	if err := a.readValidJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	moveDate, err := time.Parse(time.RFC3339, req.MoveDate)
	if err != nil {
		writeError(w, 400, "bad move_date")
		return
	}
	company, err := a.store.CompanyByID(r.Context(), req.CompanyID)
	if err != nil || !company.IsApproved {
		writeError(w, 404, "company not found")
		return
	}
	ref := ulid.Make().String()
	o, err := a.store.CreateOrder(r.Context(), ref, acct.ID, company.ID,
		strings.TrimSpace(req.FromAddress), strings.TrimSpace(req.ToAddress), moveDate, req.Notes)
	if err != nil {
		a.log.Error("create order", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 201, o)
	// The write has committed; notification delivery is best-effort from here.
	a.notifier.emit(EvOrderCreated, EventPayload{
		OrderID:      o.Ref,
		CompanyID:    idStr(company.AccountID),
		AccountID:    idStr(acct.ID),
		CustomerName: acct.Name,
	})
}

// GET /api/orders — the caller's own orders, by role
func (a *api) handleListOrders(w http.ResponseWriter, r *http.Request) {
	acct, err := a.currentAccount(r)
	if err != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	var items []Order
	switch acct.Role {
	case RoleCompany:
		c, e := a.store.CompanyByAccount(r.Context(), acct.ID)
		if e != nil {
			writeError(w, 404, "not found")
			return
		}
		items, err = a.store.OrdersByCompany(r.Context(), c.ID)
	default:
		items, err = a.store.OrdersByCustomer(r.Context(), acct.ID)
	}
	if err != nil {
		a.log.Error("list orders", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, items)
}

// GET /api/orders/{id}
func (a *api) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	acct, err := a.currentAccount(r)
	if err != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	o, err := a.store.OrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, 404, "not found")
			return
		}
		a.log.Error("get order", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	if !a.canSeeOrder(r, acct, o) {
		writeError(w, 403, "forbidden")
		return
	}
	writeJSON(w, 200, o)
}

func (a *api) canSeeOrder(r *http.Request, acct *Account, o Order) bool {
	switch acct.Role {
	case RoleAdmin:
		return true
	case RoleCompany:
		c, err := a.store.CompanyByAccount(r.Context(), acct.ID)
		return err == nil && c.ID == o.CompanyID
	default:
		return acct.ID == o.CustomerID
	}
}

// POST /api/orders/{id}/confirm — company accepts the booking
func (a *api) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	acct, err := a.currentAccount(r)
	if err != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	if acct.Role != RoleCompany {
		writeError(w, 403, "forbidden")
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	o, err := a.store.OrderByID(r.Context(), id)
	if err != nil {
		writeError(w, 404, "not found")
		return
	}
	c, err := a.store.CompanyByAccount(r.Context(), acct.ID)
	if err != nil || c.ID != o.CompanyID {
		writeError(w, 403, "forbidden")
		return
	}
	o, err = a.store.UpdateOrderStatus(r.Context(), id, OrderConfirmed)
	if err != nil {
		if errors.Is(err, ErrBadTransition) {
			writeError(w, 409, "order is not pending")
			return
		}
		a.log.Error("confirm order", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, o)
	a.notifier.emit(EvOrderConfirmed, EventPayload{
		OrderID:     o.Ref,
		AccountID:   idStr(o.CustomerID),
		CompanyID:   idStr(acct.ID),
		CompanyName: c.Name,
	})
}

// POST /api/orders/{id}/cancel — customer or the booked company
func (a *api) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	acct, err := a.currentAccount(r)
	if err != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	o, err := a.store.OrderByID(r.Context(), id)
	if err != nil {
		writeError(w, 404, "not found")
		return
	}
	if !a.canSeeOrder(r, acct, o) || acct.Role == RoleAdmin {
		writeError(w, 403, "forbidden")
		return
	}
	o, err = a.store.UpdateOrderStatus(r.Context(), id, OrderCancelled)
	if err != nil {
		if errors.Is(err, ErrBadTransition) {
			writeError(w, 409, "order already cancelled")
			return
		}
		a.log.Error("cancel order", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, o)
	a.notifier.emit(EvOrderCancelled, EventPayload{
		OrderID:   o.Ref,
		AccountID: idStr(o.CustomerID),
	})
}
