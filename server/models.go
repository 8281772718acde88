package main

import "time"

// Account roles. Companies and admins are accounts too; the role decides
// which endpoints are allowed and which rooms a socket registration joins.
const (
	RoleUser    = "user"
	RoleCompany = "company"
	RoleAdmin   = "admin"
)

type Account struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Company struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Services    string `json:"services,omitempty"`
	City        string `json:"city,omitempty"`
	PriceHourly int64  `json:"price_hourly,omitempty"`
	IsApproved  bool   `json:"is_approved"`
	// Rating aggregates are derived from reviews at query time
	Rating      float64   `json:"rating"`
	ReviewCount int64     `json:"review_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Order statuses
const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderCancelled = "cancelled"
)

type Order struct {
	ID          int64     `json:"id"`
	Ref         string    `json:"ref"`
	CustomerID  int64     `json:"customer_id"`
	CompanyID   int64     `json:"company_id"`
	CompanyName string    `json:"company_name,omitempty"`
	Status      string    `json:"status"`
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	MoveDate    time.Time `json:"move_date"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Review struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"order_id"`
	CompanyID    int64     `json:"company_id"`
	CustomerID   int64     `json:"customer_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
