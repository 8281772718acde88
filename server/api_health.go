package main

import (
	"net/http"
	"time"
)

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.handleHealth)

	// Auth
	mux.HandleFunc("POST /api/auth/register", a.withRateLimit("auth", 20, time.Minute, a.handleRegister))
	mux.HandleFunc("POST /api/auth/login", a.withRateLimit("auth", 30, time.Minute, a.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	mux.HandleFunc("GET /api/auth/me", a.handleMe)

	// Companies (public browse, owner update)
	mux.HandleFunc("GET /api/companies", a.handleListCompanies)
	mux.HandleFunc("GET /api/companies/{id}", a.handleGetCompany)
	mux.HandleFunc("GET /api/companies/{id}/reviews", a.handleCompanyReviews)
	mux.HandleFunc("PATCH /api/companies/me", a.requireAuth(a.handleUpdateCompany))

	// Orders
	mux.HandleFunc("POST /api/orders", a.requireAuth(a.handleCreateOrder))
	mux.HandleFunc("GET /api/orders", a.requireAuth(a.handleListOrders))
	mux.HandleFunc("GET /api/orders/{id}", a.requireAuth(a.handleGetOrder))
	mux.HandleFunc("POST /api/orders/{id}/confirm", a.requireAuth(a.handleConfirmOrder))
	mux.HandleFunc("POST /api/orders/{id}/cancel", a.requireAuth(a.handleCancelOrder))
	mux.HandleFunc("POST /api/orders/{id}/review", a.requireAuth(a.handleCreateReview))

	// Admin moderation
	mux.HandleFunc("GET /api/admin/accounts", a.requireAdmin(a.handleAdminListAccounts))
	mux.HandleFunc("POST /api/admin/accounts/{id}/active", a.requireAdmin(a.handleAdminSetAccountActive))
	mux.HandleFunc("POST /api/admin/companies/{id}/approve", a.requireAdmin(a.handleAdminApproveCompany))
	mux.HandleFunc("GET /api/admin/orders", a.requireAdmin(a.handleAdminListOrders))
	mux.HandleFunc("DELETE /api/admin/reviews/{id}", a.requireAdmin(a.handleAdminDeleteReview))
}
