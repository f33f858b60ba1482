// Package storage is the SQLite remote store: the units, payments and
// services tables behind the remote.Store port.
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

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
)

var _ remote.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY under the worker.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// classify maps driver errors onto the remote error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return remote.Unavailable(err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "constraint") {
		return remote.Rejected(err)
	}
	return remote.Unavailable(err)
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return classify(r.db.PingContext(ctx))
}

func (r *SQLiteRepository) ListUnits(ctx context.Context) ([]remote.UnitRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_scope, category, unit_id, occupant_name, rent_amount, occupied
		FROM units
		ORDER BY category, unit_id`)
	if err != nil {
		return nil, classify(fmt.Errorf("list units: %w", err))
	}
	defer rows.Close()

	var out []remote.UnitRecord
	for rows.Next() {
		var (
			rec      remote.UnitRecord
			category string
			rent     string
		)
		if err := rows.Scan(&rec.UserScope, &category, &rec.UnitID, &rec.OccupantName, &rent, &rec.Occupied); err != nil {
			return nil, classify(fmt.Errorf("scan unit: %w", err))
		}
		rec.Category = core.UnitCategory(category)
		if rec.RentAmount, err = parseMoney(rent); err != nil {
			return nil, fmt.Errorf("unit %s/%d rent: %w", category, rec.UnitID, err)
		}
		out = append(out, rec)
	}
	return out, classify(rows.Err())
}

func (r *SQLiteRepository) UpsertUnit(ctx context.Context, rec remote.UnitRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO units (user_scope, category, unit_id, occupant_name, rent_amount, occupied)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_scope, category, unit_id) DO UPDATE SET
			occupant_name = excluded.occupant_name,
			rent_amount   = excluded.rent_amount,
			occupied      = excluded.occupied,
			updated_at    = CURRENT_TIMESTAMP`,
		rec.UserScope, string(rec.Category), rec.UnitID, rec.OccupantName, rec.RentAmount.String(), rec.Occupied)
	if err != nil {
		return classify(fmt.Errorf("upsert unit %s/%d: %w", rec.Category, rec.UnitID, err))
	}
	slog.DebugContext(ctx, "Unit upserted to SQLite", log.FieldComponent, log.ComponentStorage, log.FieldCategory, rec.Category, log.FieldUnitID, rec.UnitID)
	return nil
}

func (r *SQLiteRepository) ListPayments(ctx context.Context) ([]remote.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_scope, category, unit_id, month_key, paid, paid_date, notes
		FROM payments
		ORDER BY category, unit_id, month_key`)
	if err != nil {
		return nil, classify(fmt.Errorf("list payments: %w", err))
	}
	defer rows.Close()

	var out []remote.PaymentRecord
	for rows.Next() {
		var (
			rec      remote.PaymentRecord
			category string
			month    string
			paidDate sql.NullString
			notes    sql.NullString
		)
		if err := rows.Scan(&rec.UserScope, &category, &rec.UnitID, &month, &rec.Paid, &paidDate, &notes); err != nil {
			return nil, classify(fmt.Errorf("scan payment: %w", err))
		}
		rec.Category = core.UnitCategory(category)
		if rec.MonthKey, err = core.ParseMonthKey(month); err != nil {
			slog.WarnContext(ctx, "Skipping payment row with malformed month", log.FieldComponent, log.ComponentStorage, log.FieldCategory, category, log.FieldUnitID, rec.UnitID, log.FieldMonth, month)
			continue
		}
		if rec.PaidDate, err = core.ParseDate(paidDate.String); err != nil {
			return nil, fmt.Errorf("payment %s/%d %s: %w", category, rec.UnitID, month, err)
		}
		rec.Notes = notes.String
		out = append(out, rec)
	}
	return out, classify(rows.Err())
}

func (r *SQLiteRepository) UpsertPayment(ctx context.Context, rec remote.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (user_scope, category, unit_id, month_key, paid, paid_date, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_scope, category, unit_id, month_key) DO UPDATE SET
			paid       = excluded.paid,
			paid_date  = excluded.paid_date,
			notes      = excluded.notes,
			updated_at = CURRENT_TIMESTAMP`,
		rec.UserScope, string(rec.Category), rec.UnitID, rec.MonthKey.String(), rec.Paid, nullString(rec.PaidDate.String()), nullString(rec.Notes))
	if err != nil {
		return classify(fmt.Errorf("upsert payment %s/%d %s: %w", rec.Category, rec.UnitID, rec.MonthKey, err))
	}
	return nil
}

func (r *SQLiteRepository) DeletePayment(ctx context.Context, key remote.PaymentKey) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM payments WHERE user_scope = '' AND category = ? AND unit_id = ? AND month_key = ?`,
		string(key.Category), key.UnitID, key.MonthKey.String())
	if err != nil {
		return classify(fmt.Errorf("delete payment %s/%d %s: %w", key.Category, key.UnitID, key.MonthKey, err))
	}
	return nil
}

func (r *SQLiteRepository) ListServices(ctx context.Context) ([]remote.ServiceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_scope, id, category, date, cost, quantity, notes
		FROM services
		ORDER BY position`)
	if err != nil {
		return nil, classify(fmt.Errorf("list services: %w", err))
	}
	defer rows.Close()

	var out []remote.ServiceRecord
	for rows.Next() {
		var (
			rec                   remote.ServiceRecord
			category, cost        string
			date, quantity, notes sql.NullString
		)
		if err := rows.Scan(&rec.UserScope, &rec.ID, &category, &date, &cost, &quantity, &notes); err != nil {
			return nil, classify(fmt.Errorf("scan service: %w", err))
		}
		rec.Category = core.ServiceCategory(category)
		rec.Notes = notes.String
		if rec.Date, err = core.ParseDate(date.String); err != nil {
			return nil, fmt.Errorf("service %s date: %w", rec.ID, err)
		}
		if rec.Cost, err = parseMoney(cost); err != nil {
			return nil, fmt.Errorf("service %s cost: %w", rec.ID, err)
		}
		if quantity.Valid && quantity.String != "" {
			q, err := decimal.NewFromString(quantity.String)
			if err != nil {
				return nil, fmt.Errorf("service %s quantity: %w", rec.ID, err)
			}
			rec.Quantity = core.NewQuantity(q)
		}
		out = append(out, rec)
	}
	return out, classify(rows.Err())
}

// ReplaceAllServices deletes and re-inserts every service row in one transaction.
func (r *SQLiteRepository) ReplaceAllServices(ctx context.Context, rs []remote.ServiceRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM services WHERE user_scope = ''`); err != nil {
		return classify(fmt.Errorf("clear services: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO services (user_scope, id, position, category, date, cost, quantity, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return classify(fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	for i, rec := range rs {
		_, err := stmt.ExecContext(ctx,
			rec.UserScope, rec.ID, i, string(rec.Category), nullString(rec.Date.String()),
			rec.Cost.String(), nullString(rec.Quantity.String()), nullString(rec.Notes))
		if err != nil {
			return classify(fmt.Errorf("insert service %s: %w", rec.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit services: %w", err))
	}
	slog.DebugContext(ctx, "Services replaced in SQLite", log.FieldComponent, log.ComponentStorage, "count", len(rs))
	return nil
}

func parseMoney(s string) (core.Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return core.Money{}, err
	}
	return core.MoneyFromDecimal(d), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
