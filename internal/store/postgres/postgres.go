package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/money"
	"apartado/backend/internal/store"
	"apartado/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an existing handle without pinging or migrating.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) NextFolio(ctx context.Context, branchID string) (string, error) {
	if strings.TrimSpace(branchID) == "" {
		return "", store.ErrInvalidRecord
	}
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO branch_folios (branch_id, last_value)
		VALUES ($1, 1)
		ON CONFLICT (branch_id)
		DO UPDATE SET last_value = branch_folios.last_value + 1
		RETURNING last_value
	`, branchID).Scan(&seq)
	if err != nil {
		return "", err
	}
	return store.FormatFolio(branchID, seq), nil
}

func (s *Store) CreateNote(ctx context.Context, note domain.Note) (*domain.Note, error) {
	if strings.TrimSpace(note.BranchID) == "" || strings.TrimSpace(note.Folio) == "" {
		return nil, store.ErrInvalidRecord
	}
	if note.ID == "" {
		note.ID = xid.New("note")
	}
	note.Version = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (
			id, folio, branch_id, client_id, shift_id, created_by, global_discount_cents,
			status, cancel_reason, cancelled_at, fulfilled_at, created_at, updated_at, version
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, note.ID, note.Folio, note.BranchID, note.ClientID, note.ShiftID, note.CreatedBy, note.GlobalDiscount.Cents(),
		note.Status, note.CancelReason, nullTime(note.CancelledAt), nullTime(note.FulfilledAt), note.CreatedAt, note.UpdatedAt, note.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}
	if err := insertItems(ctx, tx, note.ID, note.Items); err != nil {
		return nil, err
	}
	if err := claimShifts(ctx, tx, note.Payments); err != nil {
		return nil, err
	}
	if err := insertPayments(ctx, tx, note.ID, note.Payments, 0); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &note, nil
}

func (s *Store) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	note, err := scanNote(s.db.QueryRowContext(ctx, noteSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadNoteChildren(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// UpdateNote rewrites the note row and its items, and appends payments the
// store has not seen yet. A stale version or a rewritten payment prefix
// aborts the whole write.
func (s *Store) UpdateNote(ctx context.Context, note domain.Note) (*domain.Note, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE notes
		SET client_id = $3, global_discount_cents = $4, status = $5, cancel_reason = $6,
			cancelled_at = $7, fulfilled_at = $8, updated_at = $9, version = version + 1
		WHERE id = $1 AND version = $2
	`, note.ID, note.Version, note.ClientID, note.GlobalDiscount.Cents(), note.Status, note.CancelReason,
		nullTime(note.CancelledAt), nullTime(note.FulfilledAt), note.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, missingOrConflict(ctx, tx, `SELECT 1 FROM notes WHERE id = $1`, note.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_items WHERE note_id = $1`, note.ID); err != nil {
		return nil, err
	}
	if err := insertItems(ctx, tx, note.ID, note.Items); err != nil {
		return nil, err
	}

	storedIDs, err := listIDs(ctx, tx, `SELECT id FROM note_payments WHERE note_id = $1 ORDER BY position`, note.ID)
	if err != nil {
		return nil, err
	}
	if len(storedIDs) > len(note.Payments) {
		return nil, store.ErrInvalidRecord
	}
	for i, id := range storedIDs {
		if note.Payments[i].ID != id {
			return nil, store.ErrInvalidRecord
		}
	}
	if err := claimShifts(ctx, tx, note.Payments[len(storedIDs):]); err != nil {
		return nil, err
	}
	if err := insertPayments(ctx, tx, note.ID, note.Payments[len(storedIDs):], len(storedIDs)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	note.Version++
	return &note, nil
}

func (s *Store) ListNotes(ctx context.Context, filter domain.NoteFilter) ([]domain.Note, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}
	term := strings.TrimSpace(filter.Term)
	rows, err := s.db.QueryContext(ctx, noteSelect+`
		WHERE ($1 = '' OR branch_id = $1)
			AND ($2 = '' OR status = $2)
			AND ($3 = '' OR folio ILIKE '%' || $3 || '%' OR client_id ILIKE '%' || $3 || '%')
		ORDER BY created_at DESC, folio DESC
		LIMIT $4
	`, filter.BranchID, string(filter.Status), term, limit)
	if err != nil {
		return nil, err
	}
	notes := make([]domain.Note, 0, limit)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range notes {
		if err := s.loadNoteChildren(ctx, &notes[i]); err != nil {
			return nil, err
		}
	}
	return notes, nil
}

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.BranchID) == "" || shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrInvalidRecord
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = time.Now().UTC()
	}
	shift.Version = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shifts (id, branch_id, status, opened_at, opened_by, initial_cash_cents, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, shift.ID, shift.BranchID, shift.Status, shift.OpenedAt, shift.OpenedBy, shift.InitialCash.Cents(), shift.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrOpenShiftExists
		}
		return nil, err
	}
	if err := insertMovements(ctx, tx, shift.ID, shift.Movements, 0); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &shift, nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*domain.Shift, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, shiftSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if shift.Movements, err = loadMovements(ctx, s.db, shift.ID); err != nil {
		return nil, err
	}
	return shift, nil
}

func (s *Store) GetOpenShift(ctx context.Context, branchID string) (*domain.Shift, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, shiftSelect+` WHERE branch_id = $1 AND status = 'open'`, branchID))
	if err != nil {
		return nil, err
	}
	if shift.Movements, err = loadMovements(ctx, s.db, shift.ID); err != nil {
		return nil, err
	}
	return shift, nil
}

func (s *Store) UpdateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE shifts
		SET status = $3, closed_at = $4, closed_by = $5, declared_cash_cents = $6,
			expected_cash_cents = $7, difference_cents = $8, difference_pct = $9,
			classification = $10, notes = $11, version = version + 1
		WHERE id = $1 AND version = $2 AND status = 'open'
	`, shift.ID, shift.Version, shift.Status, nullTime(shift.ClosedAt), shift.ClosedBy,
		nullMoney(shift.DeclaredCash), nullMoney(shift.ExpectedCash), nullMoney(shift.Difference),
		shift.DifferencePct, shift.Classification, shift.Notes)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, missingOrConflict(ctx, tx, `SELECT 1 FROM shifts WHERE id = $1`, shift.ID)
	}

	storedIDs, err := listIDs(ctx, tx, `SELECT id FROM cash_movements WHERE shift_id = $1 ORDER BY position`, shift.ID)
	if err != nil {
		return nil, err
	}
	if len(storedIDs) > len(shift.Movements) {
		return nil, store.ErrInvalidRecord
	}
	for i, id := range storedIDs {
		if shift.Movements[i].ID != id {
			return nil, store.ErrInvalidRecord
		}
	}
	if err := insertMovements(ctx, tx, shift.ID, shift.Movements[len(storedIDs):], len(storedIDs)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	shift.Version++
	return &shift, nil
}

func (s *Store) ListShifts(ctx context.Context, branchID string, limit int, offset int) ([]domain.Shift, int, error) {
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM shifts WHERE ($1 = '' OR branch_id = $1)
	`, branchID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, shiftSelect+`
		WHERE ($1 = '' OR branch_id = $1)
		ORDER BY opened_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, branchID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	shifts := make([]domain.Shift, 0, limit)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			_ = rows.Close()
			return nil, 0, err
		}
		shifts = append(shifts, *shift)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, 0, err
	}
	_ = rows.Close()

	for i := range shifts {
		if shifts[i].Movements, err = loadMovements(ctx, s.db, shifts[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return shifts, total, nil
}

func (s *Store) ListShiftPayments(ctx context.Context, shiftID string) ([]domain.ShiftPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.note_id, n.folio, p.id, p.amount_cents, p.method, p.reference, p.shift_id, p.recorded_by, p.created_at
		FROM note_payments p
		JOIN notes n ON n.id = p.note_id
		WHERE p.shift_id = $1
		ORDER BY p.created_at, p.id
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.ShiftPayment, 0, 64)
	for rows.Next() {
		var sp domain.ShiftPayment
		if err := rows.Scan(&sp.NoteID, &sp.Folio, &sp.Payment.ID, (*int64)(&sp.Payment.Amount), &sp.Payment.Method,
			&sp.Payment.Reference, &sp.Payment.ShiftID, &sp.Payment.RecordedBy, &sp.Payment.Timestamp); err != nil {
			return nil, err
		}
		sp.Payment.Timestamp = sp.Payment.Timestamp.UTC()
		payments = append(payments, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, branch_id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.BranchID, entry.ActorID, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR branch_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, branchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.ActorID, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

const noteSelect = `
	SELECT id, folio, branch_id, client_id, shift_id, created_by, global_discount_cents,
		status, cancel_reason, cancelled_at, fulfilled_at, created_at, updated_at, version
	FROM notes`

const shiftSelect = `
	SELECT id, branch_id, status, opened_at, opened_by, initial_cash_cents, closed_at, closed_by,
		declared_cash_cents, expected_cash_cents, difference_cents, difference_pct, classification, notes, version
	FROM shifts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*domain.Note, error) {
	var note domain.Note
	var cancelledAt, fulfilledAt sql.NullTime
	err := row.Scan(
		&note.ID,
		&note.Folio,
		&note.BranchID,
		&note.ClientID,
		&note.ShiftID,
		&note.CreatedBy,
		(*int64)(&note.GlobalDiscount),
		&note.Status,
		&note.CancelReason,
		&cancelledAt,
		&fulfilledAt,
		&note.CreatedAt,
		&note.UpdatedAt,
		&note.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	note.CreatedAt = note.CreatedAt.UTC()
	note.UpdatedAt = note.UpdatedAt.UTC()
	note.CancelledAt = timePtr(cancelledAt)
	note.FulfilledAt = timePtr(fulfilledAt)
	return &note, nil
}

func scanShift(row rowScanner) (*domain.Shift, error) {
	var shift domain.Shift
	var closedAt sql.NullTime
	var declared, expected, difference sql.NullInt64
	err := row.Scan(
		&shift.ID,
		&shift.BranchID,
		&shift.Status,
		&shift.OpenedAt,
		&shift.OpenedBy,
		(*int64)(&shift.InitialCash),
		&closedAt,
		&shift.ClosedBy,
		&declared,
		&expected,
		&difference,
		&shift.DifferencePct,
		&shift.Classification,
		&shift.Notes,
		&shift.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	shift.ClosedAt = timePtr(closedAt)
	shift.DeclaredCash = moneyPtr(declared)
	shift.ExpectedCash = moneyPtr(expected)
	shift.Difference = moneyPtr(difference)
	return &shift, nil
}

func (s *Store) loadNoteChildren(ctx context.Context, note *domain.Note) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, nature, item_ref, name, quantity, unit_price_cents, discount_cents,
			fulfillment, delivered, delivered_at
		FROM note_items
		WHERE note_id = $1
		ORDER BY position
	`, note.ID)
	if err != nil {
		return err
	}
	note.Items = make([]domain.LineItem, 0, 8)
	for rows.Next() {
		var item domain.LineItem
		var deliveredAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.Kind, &item.Nature, &item.ItemRef, &item.Name, &item.Quantity,
			(*int64)(&item.UnitPrice), (*int64)(&item.Discount), &item.Fulfillment, &item.Delivered, &deliveredAt); err != nil {
			_ = rows.Close()
			return err
		}
		item.DeliveredAt = timePtr(deliveredAt)
		note.Items = append(note.Items, item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	payRows, err := s.db.QueryContext(ctx, `
		SELECT id, amount_cents, method, reference, shift_id, recorded_by, created_at
		FROM note_payments
		WHERE note_id = $1
		ORDER BY position
	`, note.ID)
	if err != nil {
		return err
	}
	defer payRows.Close()
	note.Payments = make([]domain.Payment, 0, 4)
	for payRows.Next() {
		var p domain.Payment
		if err := payRows.Scan(&p.ID, (*int64)(&p.Amount), &p.Method, &p.Reference, &p.ShiftID, &p.RecordedBy, &p.Timestamp); err != nil {
			return err
		}
		p.Timestamp = p.Timestamp.UTC()
		note.Payments = append(note.Payments, p)
	}
	return payRows.Err()
}

func loadMovements(ctx context.Context, q querier, shiftID string) ([]domain.CashMovement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, type, amount_cents, method, subtype, description, created_by, created_at
		FROM cash_movements
		WHERE shift_id = $1
		ORDER BY position
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.CashMovement, 0, 8)
	for rows.Next() {
		var m domain.CashMovement
		if err := rows.Scan(&m.ID, &m.Type, (*int64)(&m.Amount), &m.Method, &m.Subtype, &m.Description, &m.CreatedBy, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Timestamp = m.Timestamp.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func insertItems(ctx context.Context, q querier, noteID string, items []domain.LineItem) error {
	for i, item := range items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO note_items (
				note_id, id, position, kind, nature, item_ref, name, quantity,
				unit_price_cents, discount_cents, fulfillment, delivered, delivered_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`, noteID, item.ID, i, item.Kind, item.Nature, item.ItemRef, item.Name, item.Quantity,
			item.UnitPrice.Cents(), item.Discount.Cents(), item.Fulfillment, item.Delivered, nullTime(item.DeliveredAt))
		if err != nil {
			return err
		}
	}
	return nil
}

// claimShifts row-locks each shift receiving a new payment and bumps its
// version. A shift that closed first matches no row. A close still in flight
// either waits on the lock or fails its own version check.
func claimShifts(ctx context.Context, q querier, payments []domain.Payment) error {
	seen := make(map[string]struct{}, 1)
	for _, p := range payments {
		if p.ShiftID == "" {
			continue
		}
		if _, ok := seen[p.ShiftID]; ok {
			continue
		}
		seen[p.ShiftID] = struct{}{}
		res, err := q.ExecContext(ctx, `
			UPDATE shifts SET version = version + 1
			WHERE id = $1 AND status = 'open'
		`, p.ShiftID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrShiftNotOpen
		}
	}
	return nil
}

func insertPayments(ctx context.Context, q querier, noteID string, payments []domain.Payment, offset int) error {
	for i, p := range payments {
		_, err := q.ExecContext(ctx, `
			INSERT INTO note_payments (
				id, note_id, position, amount_cents, method, reference, shift_id, recorded_by, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, p.ID, noteID, offset+i, p.Amount.Cents(), p.Method, p.Reference, p.ShiftID, p.RecordedBy, p.Timestamp)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrVersionConflict
			}
			return err
		}
	}
	return nil
}

func insertMovements(ctx context.Context, q querier, shiftID string, movements []domain.CashMovement, offset int) error {
	for i, m := range movements {
		_, err := q.ExecContext(ctx, `
			INSERT INTO cash_movements (
				id, shift_id, position, type, amount_cents, method, subtype, description, created_by, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, m.ID, shiftID, offset+i, m.Type, m.Amount.Cents(), m.Method, m.Subtype, m.Description, m.CreatedBy, m.Timestamp)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrVersionConflict
			}
			return err
		}
	}
	return nil
}

func listIDs(ctx context.Context, q querier, query string, arg string) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// missingOrConflict tells a stale version apart from a missing row after a
// versioned UPDATE matched nothing.
func missingOrConflict(ctx context.Context, q querier, query string, id string) error {
	var one int
	err := q.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrVersionConflict
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullMoney(val *money.Money) any {
	if val == nil {
		return nil
	}
	return val.Cents()
}

func timePtr(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	at := val.Time.UTC()
	return &at
}

func moneyPtr(val sql.NullInt64) *money.Money {
	if !val.Valid {
		return nil
	}
	m := money.FromCents(val.Int64)
	return &m
}
