package main

import (
	"errors"
	"net/http"
)

// GET /api/companies?q=&city=
func (a *api) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	city := r.URL.Query().Get("city")
	items, err := a.store.ListCompanies(r.Context(), q, city)
	if err != nil {
		a.log.Error("list companies", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, items)
}

// GET /api/companies/{id}
func (a *api) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	c, err := a.store.CompanyByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, 404, "not found")
			return
		}
		a.log.Error("get company", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, c)
}

// PATCH /api/companies/me — owner updates their own profile
func (a *api) handleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	acct, err := a.currentAccount(r)
	if err != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	if acct.Role != RoleCompany {
		writeError(w, 403, "forbidden")
		return
	}
	c, err := a.store.CompanyByAccount(r.Context(), acct.ID)
	if err != nil {
		writeError(w, 404, "not found")
		return
	}
	var req struct {
		Description *string `json:"description"`
		Services    *string `json:"services"`
		City        *string `json:"city"`
		PriceHourly *int64  `json:"price_hourly" validate:"omitempty,gte=0"`
	}
	if err := a.readValidJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if err := a.store.UpdateCompany(r.Context(), c.ID, req.Description, req.Services, req.City, req.PriceHourly); err != nil {
		a.log.Error("update company", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}
