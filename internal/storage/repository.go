package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"billremind/internal/core"
)

// Dialect selects the SQL database behind a Repository.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

func (d Dialect) driverName() string {
	return string(d)
}

// ParseDialect maps a DATA_BACKEND value to a dialect.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case SQLite:
		return SQLite, nil
	case Postgres:
		return Postgres, nil
	default:
		return "", core.InvalidInputf("unsupported sql dialect %q", s)
	}
}

// Repository is the SQL store. Queries are written with ? placeholders and
// rebound for the dialect in use.
type Repository struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewSQLiteRepository opens (creating if needed) the database file at dbPath
// and migrates it.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection turns contention into
	// queueing instead of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return open(db, SQLite, dsn)
}

// NewPostgresRepository connects to dsn and migrates the schema.
func NewPostgresRepository(dsn string) (*Repository, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return open(db, Postgres, dsn)
}

func open(db *sqlx.DB, dialect Dialect, dsn string) (*Repository, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Database ready", "component", "storage", "dialect", string(dialect))
	return &Repository{db: db, dialect: dialect}, nil
}

func (r *Repository) Dialect() Dialect {
	return r.dialect
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type accountRow struct {
	ID            int64           `db:"id"`
	ClientID      int64           `db:"client_id"`
	Description   string          `db:"description"`
	Amount        decimal.Decimal `db:"amount"`
	DueDayOfMonth int             `db:"due_day_of_month"`
	Active        bool            `db:"active"`
}

func (a accountRow) toCore() core.BillingAccount {
	return core.BillingAccount{
		ID:            a.ID,
		OwnerID:       a.ClientID,
		Description:   a.Description,
		Amount:        a.Amount,
		DueDayOfMonth: a.DueDayOfMonth,
		Active:        a.Active,
	}
}

type configRow struct {
	AccountID         int64         `db:"account_id"`
	Frequency         string        `db:"frequency"`
	NextBillingDate   core.NullDate `db:"next_billing_date"`
	AdjustForHolidays bool          `db:"adjust_for_holidays"`
}

func (c configRow) toCore() core.ScheduleConfig {
	return core.ScheduleConfig{
		AccountID:         c.AccountID,
		Frequency:         core.Frequency(c.Frequency),
		NextBillingDate:   c.NextBillingDate.Ptr(),
		AdjustForHolidays: c.AdjustForHolidays,
	}
}

type dueRow struct {
	AccountID     int64           `db:"account_id"`
	ClientID      int64           `db:"client_id"`
	ClientName    string          `db:"client_name"`
	ContactRef    string          `db:"contact_ref"`
	Phone         string          `db:"phone"`
	Description   string          `db:"description"`
	DueDayOfMonth int             `db:"due_day_of_month"`
	Amount        decimal.Decimal `db:"amount"`
}

type statusRow struct {
	ClientID        int64         `db:"client_id"`
	Status          string        `db:"status"`
	LastPaymentDate core.NullDate `db:"last_payment_date"`
	ToleranceDays   int           `db:"tolerance_days"`
}

func nullDate(d *core.Date) core.NullDate {
	if d == nil {
		return core.NullDate{}
	}
	return core.NullDate{Date: *d, Valid: true}
}

const accountColumns = `id, client_id, description, amount, due_day_of_month, active`

// CreateClient stores c and returns its id.
func (r *Repository) CreateClient(ctx context.Context, c core.Client) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(
		`INSERT INTO clients (name, contact_ref, phone, email) VALUES (?, ?, ?, ?) RETURNING id`),
		c.Name, c.ContactRef, c.Phone, c.Email)
	if err != nil {
		return 0, core.PersistenceError(err, "create client")
	}
	return id, nil
}

// CreateAccount stores a and returns its id.
func (r *Repository) CreateAccount(ctx context.Context, a core.BillingAccount) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := mustExist(ctx, r.db, "clients", a.OwnerID); err != nil {
		return 0, err
	}

	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(
		`INSERT INTO billing_accounts (client_id, description, amount, due_day_of_month, active)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		a.OwnerID, a.Description, a.Amount, a.DueDayOfMonth, a.Active)
	if err != nil {
		return 0, core.PersistenceError(err, "create account")
	}
	return id, nil
}

func (r *Repository) SetAccountActive(ctx context.Context, accountID int64, active bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE billing_accounts SET active = ? WHERE id = ?`), active, accountID)
	if err != nil {
		return core.PersistenceError(err, "set account active")
	}
	return mustAffect(res, "account %d", accountID)
}

func (r *Repository) UpsertScheduleConfig(ctx context.Context, cfg core.ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return r.upsertConfig(ctx, r.db, cfg)
}

func (r *Repository) upsertConfig(ctx context.Context, q sqlx.ExtContext, cfg core.ScheduleConfig) error {
	if err := mustExist(ctx, q, "billing_accounts", cfg.AccountID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, q.Rebind(
		`INSERT INTO schedule_configs (account_id, frequency, next_billing_date, adjust_for_holidays)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET
		     frequency = excluded.frequency,
		     next_billing_date = excluded.next_billing_date,
		     adjust_for_holidays = excluded.adjust_for_holidays,
		     updated_at = CURRENT_TIMESTAMP`),
		cfg.AccountID, string(cfg.Frequency), nullDate(cfg.NextBillingDate), cfg.AdjustForHolidays)
	if err != nil {
		return core.PersistenceError(err, "save schedule config")
	}
	return nil
}

func (r *Repository) UpsertTemplate(ctx context.Context, t core.MessageTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return core.InvalidInputf("template name is required")
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO message_templates (name, body, active) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET body = excluded.body, active = excluded.active`),
		t.Name, t.Body, t.Active)
	if err != nil {
		return core.PersistenceError(err, "save template")
	}
	return nil
}

func (r *Repository) LoadActiveAccountsMissingSchedule(ctx context.Context) ([]core.BillingAccount, error) {
	var rows []accountRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT a.id, a.client_id, a.description, a.amount, a.due_day_of_month, a.active
		 FROM billing_accounts a
		 LEFT JOIN schedule_configs s ON s.account_id = a.id
		 WHERE a.active AND s.next_billing_date IS NULL
		 ORDER BY a.id`)
	if err != nil {
		return nil, core.PersistenceError(err, "list accounts missing schedule")
	}
	out := make([]core.BillingAccount, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCore())
	}
	return out, nil
}

func (r *Repository) LoadScheduleConfig(ctx context.Context, accountID int64) (*core.ScheduleConfig, error) {
	cfg, err := loadConfig(ctx, r.db, accountID, false)
	if err != nil {
		return nil, core.PersistenceError(err, "load schedule config")
	}
	return cfg, nil
}

func loadConfig(ctx context.Context, q sqlx.ExtContext, accountID int64, forUpdate bool) (*core.ScheduleConfig, error) {
	query := `SELECT account_id, frequency, next_billing_date, adjust_for_holidays
		 FROM schedule_configs WHERE account_id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var row configRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(query), accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := row.toCore()
	return &cfg, nil
}

func (r *Repository) LoadAccount(ctx context.Context, accountID int64) (core.BillingAccount, error) {
	a, err := loadAccount(ctx, r.db, accountID)
	if err != nil {
		return core.BillingAccount{}, core.PersistenceError(err, "load account")
	}
	return a, nil
}

func loadAccount(ctx context.Context, q sqlx.ExtContext, accountID int64) (core.BillingAccount, error) {
	var row accountRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`SELECT `+accountColumns+` FROM billing_accounts WHERE id = ?`), accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillingAccount{}, core.NotFoundf("account %d", accountID)
	}
	if err != nil {
		return core.BillingAccount{}, err
	}
	return row.toCore(), nil
}

func (r *Repository) SaveNextBillingDate(ctx context.Context, accountID int64, date core.Date) error {
	if err := mustExist(ctx, r.db, "billing_accounts", accountID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO schedule_configs (account_id, frequency, next_billing_date, adjust_for_holidays)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET
		     next_billing_date = excluded.next_billing_date,
		     updated_at = CURRENT_TIMESTAMP`),
		accountID, string(core.Monthly), date.String(), true)
	if err != nil {
		return core.PersistenceError(err, "save next billing date")
	}
	slog.DebugContext(ctx, "Next billing date saved",
		"component", "storage",
		"account_id", accountID,
		"next_billing_date", date.String())
	return nil
}

func (r *Repository) LoadAccountsDueOn(ctx context.Context, day core.Date) ([]core.DueAccount, error) {
	var rows []dueRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT a.id AS account_id, c.id AS client_id, c.name AS client_name, c.contact_ref, c.phone,
		        a.description, a.due_day_of_month, a.amount
		 FROM billing_accounts a
		 JOIN clients c ON c.id = a.client_id
		 LEFT JOIN schedule_configs s ON s.account_id = a.id
		 WHERE a.active
		   AND ((s.next_billing_date IS NOT NULL AND s.next_billing_date = ?)
		     OR (s.next_billing_date IS NULL AND a.due_day_of_month = ?))
		 ORDER BY a.id`),
		day.String(), day.Day())
	if err != nil {
		return nil, core.PersistenceError(err, "list due accounts")
	}
	out := make([]core.DueAccount, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.DueAccount(row))
	}
	return out, nil
}

// AdvanceSchedule runs fn inside a transaction. On postgres the config row is
// locked; on sqlite the single connection already serializes writers.
func (r *Repository) AdvanceSchedule(ctx context.Context, accountID int64, fn core.AdvanceFunc) (core.ScheduleConfig, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.ScheduleConfig{}, core.PersistenceError(err, "begin advance")
	}
	defer tx.Rollback()

	account, err := loadAccount(ctx, tx, accountID)
	if err != nil {
		return core.ScheduleConfig{}, core.PersistenceError(err, "advance: load account")
	}
	current, err := loadConfig(ctx, tx, accountID, r.dialect == Postgres)
	if err != nil {
		return core.ScheduleConfig{}, core.PersistenceError(err, "advance: load config")
	}

	next, err := fn(account, current)
	if err != nil {
		return core.ScheduleConfig{}, err
	}
	next.AccountID = accountID
	if err := r.upsertConfig(ctx, tx, next); err != nil {
		return core.ScheduleConfig{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.ScheduleConfig{}, core.PersistenceError(err, "commit advance")
	}
	return next, nil
}

func (r *Repository) LoadClientStatus(ctx context.Context, clientID int64) (*core.ClientStatus, error) {
	var row statusRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(
		`SELECT client_id, status, last_payment_date, tolerance_days FROM client_status WHERE client_id = ?`), clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.PersistenceError(err, "load client status")
	}
	return &core.ClientStatus{
		ClientID:        row.ClientID,
		Status:          core.ClientStatusKind(row.Status),
		LastPaymentDate: row.LastPaymentDate.Ptr(),
		ToleranceDays:   row.ToleranceDays,
	}, nil
}

func (r *Repository) SaveClientStatus(ctx context.Context, st core.ClientStatus) error {
	if err := mustExist(ctx, r.db, "clients", st.ClientID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO client_status (client_id, status, last_payment_date, tolerance_days)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (client_id) DO UPDATE SET
		     status = excluded.status,
		     last_payment_date = excluded.last_payment_date,
		     tolerance_days = excluded.tolerance_days`),
		st.ClientID, string(st.Status), nullDate(st.LastPaymentDate), st.ToleranceDays)
	if err != nil {
		return core.PersistenceError(err, "save client status")
	}
	return nil
}

func (r *Repository) LastPaymentDate(ctx context.Context, clientID int64) (*core.Date, error) {
	var last core.NullDate
	err := r.db.GetContext(ctx, &last, r.db.Rebind(`SELECT MAX(paid_on) FROM payments WHERE client_id = ?`), clientID)
	if err != nil {
		return nil, core.PersistenceError(err, "last payment date")
	}
	return last.Ptr(), nil
}

func (r *Repository) SavePayment(ctx context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := mustExist(ctx, r.db, "clients", p.ClientID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO payments (client_id, amount, paid_on, reference_month) VALUES (?, ?, ?, ?)`),
		p.ClientID, p.Amount, p.PaidOn.String(), p.ReferenceMonth)
	if err != nil {
		return core.PersistenceError(err, "save payment")
	}
	return nil
}

func (r *Repository) ListClientIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM clients ORDER BY id`); err != nil {
		return nil, core.PersistenceError(err, "list clients")
	}
	return ids, nil
}

func (r *Repository) LoadActiveTemplate(ctx context.Context, name string) (*core.MessageTemplate, error) {
	var t struct {
		ID     int64  `db:"id"`
		Name   string `db:"name"`
		Body   string `db:"body"`
		Active bool   `db:"active"`
	}
	err := r.db.GetContext(ctx, &t, r.db.Rebind(
		`SELECT id, name, body, active FROM message_templates WHERE name = ? AND active`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.PersistenceError(err, "load template")
	}
	return &core.MessageTemplate{ID: t.ID, Name: t.Name, Body: t.Body, Active: t.Active}, nil
}

func (r *Repository) SaveReminder(ctx context.Context, rec core.ReminderRecord) error {
	sentAt := rec.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO reminder_history (client_id, account_id, message, status, error_detail, attempts, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		rec.ClientID, rec.AccountID, rec.Message, string(rec.Status), rec.ErrorDetail, rec.Attempts, sentAt.UTC())
	if err != nil {
		return core.PersistenceError(err, "save reminder")
	}
	return nil
}

// CountReminders returns how many attempts with status were recorded for
// accountID.
func (r *Repository) CountReminders(ctx context.Context, accountID int64, status core.ReminderStatus) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(
		`SELECT COUNT(*) FROM reminder_history WHERE account_id = ? AND status = ?`), accountID, string(status))
	if err != nil {
		return 0, core.PersistenceError(err, "count reminders")
	}
	return n, nil
}

// mustExist returns a not-found error unless table has a row with id. table
// is always a constant from this file.
func mustExist(ctx context.Context, q sqlx.ExtContext, table string, id int64) error {
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(`SELECT COUNT(*) FROM `+table+` WHERE id = ?`), id)
	if err != nil {
		return core.PersistenceError(err, "lookup "+table)
	}
	if n == 0 {
		return core.NotFoundf("%s %d", singular[table], id)
	}
	return nil
}

var singular = map[string]string{
	"clients":          "client",
	"billing_accounts": "account",
}

func mustAffect(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return core.PersistenceError(err, "rows affected")
	}
	if n == 0 {
		return core.NotFoundf(format, args...)
	}
	return nil
}
