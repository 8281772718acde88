package main

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// POST /api/auth/register {email, password, name, role, company_name?}
func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email" validate:"required,email"`
		Password    string `json:"password" validate:"required,min=6"`
		Name        string `json:"name" validate:"required"`
		Role        string `json:"role" validate:"required,oneof=user company"`
		CompanyName string `json:"company_name" validate:"required_if=Role company"`
	}
	if err := a.readValidJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.log.Error("bcrypt", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	acct, err := a.store.CreateAccount(r.Context(), strings.TrimSpace(req.Email), string(hashBytes), strings.TrimSpace(req.Name), req.Role)
	if err != nil {
		a.log.Error("register", "err", err)
		writeError(w, 400, "cannot create account")
		return
	}
	if req.Role == RoleCompany {
		if _, err := a.store.CreateCompany(r.Context(), acct.ID, strings.TrimSpace(req.CompanyName)); err != nil {
			a.log.Error("create company profile", "err", err)
			writeError(w, 500, "internal error")
			return
		}
	}
	token, exp, err := a.store.CreateSession(r.Context(), acct.ID, a.sessionTTL())
	if err != nil {
		a.log.Error("create session", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	a.setSessionCookie(w, token, exp)
	writeJSON(w, 201, map[string]any{"ok": true, "account": acct})
}

// POST /api/auth/login {email, password}
func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, Password string }
	if err := readJSON(w, r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	acct, err := a.store.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, 401, "invalid credentials")
		return
	}
	token, exp, err := a.store.CreateSession(r.Context(), acct.ID, a.sessionTTL())
	if err != nil {
		a.log.Error("create session", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	a.setSessionCookie(w, token, exp)
	writeJSON(w, 200, map[string]any{"ok": true, "account": acct})
}

// POST /api/auth/logout
func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(a.sessionCookieName()); err == nil && c.Value != "" {
		_ = a.store.DeleteSession(r.Context(), c.Value)
	}
	a.clearSessionCookie(w)
	writeJSON(w, 200, map[string]any{"ok": true})
}

// GET /api/auth/me
func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, err := a.currentAccount(r)
	if err != nil {
		// Anonymous gets 200 with account: null to avoid noisy 401s on public pages
		writeJSON(w, 200, map[string]any{"account": nil})
		return
	}
	out := map[string]any{"account": acct}
	if acct.Role == RoleCompany {
		if c, err := a.store.CompanyByAccount(r.Context(), acct.ID); err == nil {
			out["company"] = c
		}
	}
	writeJSON(w, 200, out)
}
