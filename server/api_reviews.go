package main

import (
	"errors"
	"net/http"
	"strings"
)

// POST /api/orders/{id}/review {rating, comment?}
// Reviews hang off a confirmed order; one per order.
func (a *api) handleCreateReview(w http.ResponseWriter, r *http.Request) {
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
	if o.CustomerID != acct.ID {
		writeError(w, 403, "forbidden")
		return
	}
	if o.Status != OrderConfirmed {
		writeError(w, 409, "order not confirmed")
		return
	}
	if taken, err := a.store.HasReviewForOrder(r.Context(), id); err != nil {
		a.log.Error("review lookup", "err", err)
		writeError(w, 500, "internal error")
		return
	} else if taken {
		writeError(w, 409, "order already reviewed")
		return
	}
	var req struct {
		Rating  int    `json:"rating" validate:"required,min=1,max=5"`
		Comment string `json:"comment"`
	}
	if err := a.readValidJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	rv, err := a.store.CreateReview(r.Context(), o.ID, o.CompanyID, acct.ID, req.Rating, strings.TrimSpace(req.Comment))
	if err != nil {
		a.log.Error("create review", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 201, rv)
	company, err := a.store.CompanyByID(r.Context(), o.CompanyID)
	if err != nil {
		a.log.Warn("review notification skipped", "err", err)
		return
	}
	a.notifier.emit(EvReviewSubmitted, EventPayload{
		ReviewID:     idStr(rv.ID),
		OrderID:      o.Ref,
		CompanyID:    idStr(company.AccountID),
		CustomerName: acct.Name,
		Rating:       rv.Rating,
	})
}

// GET /api/companies/{id}/reviews
func (a *api) handleCompanyReviews(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if _, err := a.store.CompanyByID(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, 404, "not found")
			return
		}
		a.log.Error("get company", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	items, err := a.store.ReviewsByCompany(r.Context(), id)
	if err != nil {
		a.log.Error("company reviews", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, items)
}
