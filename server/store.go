package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Accounts & auth

func (s *Store) CreateAccount(ctx context.Context, email, passwordHash, name, role string) (Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx, `insert into accounts(email, password_hash, name, role) values($1,$2,$3,$4)
		returning id, email, name, role, is_active, created_at`, email, passwordHash, name, role).
		Scan(&a.ID, &a.Email, &a.Name, &a.Role, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

// accountCredsByEmail returns the account plus its password hash.
func (s *Store) accountCredsByEmail(ctx context.Context, email string) (Account, string, error) {
	var a Account
	var hash string
	err := s.db.QueryRowContext(ctx, `select id, email, name, role, is_active, created_at, password_hash
		from accounts where lower(email)=lower($1)`, email).
		Scan(&a.ID, &a.Email, &a.Name, &a.Role, &a.IsActive, &a.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, "", ErrNotFound
	}
	return a, hash, err
}

func (s *Store) Authenticate(ctx context.Context, email, password string) (Account, error) {
	a, hash, err := s.accountCredsByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	if !a.IsActive {
		return Account{}, ErrNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (s *Store) CreateSession(ctx context.Context, accountID int64, ttl time.Duration) (string, time.Time, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	exp := time.Now().Add(ttl)
	_, err := s.db.ExecContext(ctx, `insert into sessions(account_id, token, expires_at) values($1,$2,$3)`,
		accountID, token, exp)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where token=$1`, token)
	return err
}

func (s *Store) AccountBySession(ctx context.Context, token string) (Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx, `select a.id, a.email, a.name, a.role, a.is_active, a.created_at
		from sessions s join accounts a on a.id=s.account_id
		where s.token=$1 and s.expires_at > now() and a.is_active`, token).
		Scan(&a.ID, &a.Email, &a.Name, &a.Role, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

func (s *Store) SetAccountActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `update accounts set is_active=$1 where id=$2`, active, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, q string, limit int) ([]Account, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `select id, email, name, role, is_active, created_at from accounts
		where ($1 = '' or email ilike '%'||$1||'%' or name ilike '%'||$1||'%')
		order by id limit $2`, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.Role, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Companies

const companySelect = `select c.id, c.account_id, c.name, coalesce(c.description,''), coalesce(c.services,''),
	coalesce(c.city,''), c.price_hourly, c.is_approved, c.created_at,
	coalesce(avg(r.rating), 0), count(r.id)
	from companies c left join reviews r on r.company_id=c.id`

func scanCompany(row interface{ Scan(...any) error }) (Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Description, &c.Services,
		&c.City, &c.PriceHourly, &c.IsApproved, &c.CreatedAt, &c.Rating, &c.ReviewCount)
	return c, err
}

func (s *Store) CreateCompany(ctx context.Context, accountID int64, name string) (Company, error) {
	var c Company
	err := s.db.QueryRowContext(ctx, `insert into companies(account_id, name) values($1,$2)
		returning id, account_id, name, coalesce(description,''), coalesce(services,''), coalesce(city,''),
		price_hourly, is_approved, created_at`, accountID, name).
		Scan(&c.ID, &c.AccountID, &c.Name, &c.Description, &c.Services, &c.City,
			&c.PriceHourly, &c.IsApproved, &c.CreatedAt)
	return c, err
}

func (s *Store) CompanyByID(ctx context.Context, id int64) (Company, error) {
	c, err := scanCompany(s.db.QueryRowContext(ctx, companySelect+` where c.id=$1 group by c.id`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

func (s *Store) CompanyByAccount(ctx context.Context, accountID int64) (Company, error) {
	c, err := scanCompany(s.db.QueryRowContext(ctx, companySelect+` where c.account_id=$1 group by c.id`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

// ListCompanies returns approved companies only; q matches name/services, city is exact.
func (s *Store) ListCompanies(ctx context.Context, q, city string) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx, companySelect+`
		where c.is_approved
		and ($1 = '' or c.name ilike '%'||$1||'%' or c.services ilike '%'||$1||'%')
		and ($2 = '' or lower(c.city)=lower($2))
		group by c.id order by avg(r.rating) desc nulls last, c.id`, q, city)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateCompany(ctx context.Context, id int64, description, services, city *string, priceHourly *int64) error {
	if description != nil {
		if _, err := s.db.ExecContext(ctx, `update companies set description=$1 where id=$2`, *description, id); err != nil {
			return err
		}
	}
	if services != nil {
		if _, err := s.db.ExecContext(ctx, `update companies set services=$1 where id=$2`, *services, id); err != nil {
			return err
		}
	}
	if city != nil {
		if _, err := s.db.ExecContext(ctx, `update companies set city=$1 where id=$2`, *city, id); err != nil {
			return err
		}
	}
	if priceHourly != nil {
		if _, err := s.db.ExecContext(ctx, `update companies set price_hourly=$1 where id=$2`, *priceHourly, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SetCompanyApproved(ctx context.Context, id int64, approved bool) error {
	res, err := s.db.ExecContext(ctx, `update companies set is_approved=$1 where id=$2`, approved, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Orders

const orderSelect = `select o.id, o.ref, o.customer_id, o.company_id, c.name, o.status,
	o.from_address, o.to_address, o.move_date, coalesce(o.notes,''), o.created_at, o.updated_at
	from orders o join companies c on c.id=o.company_id`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Ref, &o.CustomerID, &o.CompanyID, &o.CompanyName, &o.Status,
		&o.FromAddress, &o.ToAddress, &o.MoveDate, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (s *Store) CreateOrder(ctx context.Context, ref string, customerID, companyID int64, from, to string, moveDate time.Time, notes string) (Order, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `insert into orders(ref, customer_id, company_id, from_address, to_address, move_date, notes)
		values($1,$2,$3,$4,$5,$6,$7) returning id`, ref, customerID, companyID, from, to, moveDate, notes).Scan(&id); err != nil {
		return Order{}, err
	}
	return s.OrderByID(ctx, id)
}

func (s *Store) OrderByID(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, orderSelect+` where o.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (s *Store) ordersWhere(ctx context.Context, cond string, arg any) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, orderSelect+cond, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) OrdersByCustomer(ctx context.Context, accountID int64) ([]Order, error) {
	return s.ordersWhere(ctx, ` where o.customer_id=$1 order by o.created_at desc`, accountID)
}

func (s *Store) OrdersByCompany(ctx context.Context, companyID int64) ([]Order, error) {
	return s.ordersWhere(ctx, ` where o.company_id=$1 order by o.created_at desc`, companyID)
}

func (s *Store) ListOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.ordersWhere(ctx, ` order by o.created_at desc limit $1`, limit)
}

var ErrBadTransition = errors.New("invalid status transition")

// UpdateOrderStatus enforces pending→confirmed|cancelled and confirmed→cancelled.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status string) (Order, error) {
	var allowed string
	switch status {
	case OrderConfirmed:
		allowed = OrderPending
	case OrderCancelled:
		allowed = "" // pending or confirmed
	default:
		return Order{}, ErrBadTransition
	}
	var res sql.Result
	var err error
	if allowed != "" {
		res, err = s.db.ExecContext(ctx, `update orders set status=$1, updated_at=now() where id=$2 and status=$3`,
			status, id, allowed)
	} else {
		res, err = s.db.ExecContext(ctx, `update orders set status=$1, updated_at=now() where id=$2 and status in ('pending','confirmed')`,
			status, id)
	}
	if err != nil {
		return Order{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, e := s.OrderByID(ctx, id); e != nil {
			return Order{}, e
		}
		return Order{}, ErrBadTransition
	}
	return s.OrderByID(ctx, id)
}

// Reviews

func (s *Store) CreateReview(ctx context.Context, orderID, companyID, customerID int64, rating int, comment string) (Review, error) {
	var rv Review
	err := s.db.QueryRowContext(ctx, `insert into reviews(order_id, company_id, customer_id, rating, comment)
		values($1,$2,$3,$4,$5) returning id, order_id, company_id, customer_id, rating, coalesce(comment,''), created_at`,
		orderID, companyID, customerID, rating, comment).
		Scan(&rv.ID, &rv.OrderID, &rv.CompanyID, &rv.CustomerID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
	return rv, err
}

func (s *Store) ReviewByID(ctx context.Context, id int64) (Review, error) {
	var rv Review
	err := s.db.QueryRowContext(ctx, `select id, order_id, company_id, customer_id, rating, coalesce(comment,''), created_at
		from reviews where id=$1`, id).
		Scan(&rv.ID, &rv.OrderID, &rv.CompanyID, &rv.CustomerID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Review{}, ErrNotFound
	}
	return rv, err
}

func (s *Store) ReviewsByCompany(ctx context.Context, companyID int64) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx, `select r.id, r.order_id, r.company_id, r.customer_id, a.name,
		r.rating, coalesce(r.comment,''), r.created_at
		from reviews r join accounts a on a.id=r.customer_id
		where r.company_id=$1 order by r.created_at desc`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.OrderID, &rv.CompanyID, &rv.CustomerID, &rv.CustomerName,
			&rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (s *Store) DeleteReview(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from reviews where id=$1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasReviewForOrder reports whether the order already carries a review.
func (s *Store) HasReviewForOrder(ctx context.Context, orderID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from reviews where order_id=$1`, orderID).Scan(&n)
	return n > 0, err
}

const schema = `
create table if not exists accounts(
	id bigserial primary key,
	email text unique not null,
	password_hash text not null default '',
	name text not null default '',
	role text not null default 'user' check (role in ('user','company','admin')),
	is_active boolean not null default true,
	created_at timestamptz not null default now()
);

create table if not exists sessions(
	id bigserial primary key,
	account_id bigint not null references accounts(id) on delete cascade,
	token text unique not null,
	created_at timestamptz not null default now(),
	expires_at timestamptz not null
);

create table if not exists companies(
	id bigserial primary key,
	account_id bigint unique not null references accounts(id) on delete cascade,
	name text not null check (length(name) > 0),
	description text,
	services text,
	city text,
	price_hourly bigint not null default 0,
	is_approved boolean not null default false,
	created_at timestamptz not null default now()
);
create index if not exists companies_city_idx on companies(lower(city));

create table if not exists orders(
	id bigserial primary key,
	ref text unique not null,
	customer_id bigint not null references accounts(id) on delete cascade,
	company_id bigint not null references companies(id) on delete cascade,
	status text not null default 'pending' check (status in ('pending','confirmed','cancelled')),
	from_address text not null,
	to_address text not null,
	move_date timestamptz not null,
	notes text,
	created_at timestamptz not null default now(),
	updated_at timestamptz not null default now()
);
create index if not exists orders_customer_idx on orders(customer_id);
create index if not exists orders_company_idx on orders(company_id);

create table if not exists reviews(
	id bigserial primary key,
	order_id bigint unique not null references orders(id) on delete cascade,
	company_id bigint not null references companies(id) on delete cascade,
	customer_id bigint not null references accounts(id) on delete cascade,
	rating int not null check (rating between 1 and 5),
	comment text,
	created_at timestamptz not null default now()
);
create index if not exists reviews_company_idx on reviews(company_id);
`
