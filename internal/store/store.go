package store

import (
	"context"
	"errors"
	"fmt"

	"apartado/backend/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrOpenShiftExists = errors.New("open shift already exists for branch")
	ErrInvalidRecord   = errors.New("invalid record")
	// ErrShiftNotOpen rejects a payment whose shift closed before the note
	// write committed. Callers re-resolve the open shift and retry.
	ErrShiftNotOpen = errors.New("payment shift is not open")
)

// Repository persists notes and shifts with optimistic versioning. Update
// calls succeed only when the caller's Version matches the stored one and
// return the record with the bumped version. Payments and cash movements
// are append-only: an update may add entries but never rewrite or drop them.
// A note write that appends payments also bumps the version of each shift
// they belong to, and fails with ErrShiftNotOpen when one of those shifts is
// no longer open, so a close that read the shift earlier loses its update.
type Repository interface {
	NextFolio(ctx context.Context, branchID string) (string, error)
	CreateNote(ctx context.Context, note domain.Note) (*domain.Note, error)
	GetNote(ctx context.Context, id string) (*domain.Note, error)
	UpdateNote(ctx context.Context, note domain.Note) (*domain.Note, error)
	ListNotes(ctx context.Context, filter domain.NoteFilter) ([]domain.Note, error)

	// CreateShift fails with ErrOpenShiftExists when the branch already has
	// an open shift.
	CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	GetShift(ctx context.Context, id string) (*domain.Shift, error)
	GetOpenShift(ctx context.Context, branchID string) (*domain.Shift, error)
	UpdateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	ListShifts(ctx context.Context, branchID string, limit int, offset int) ([]domain.Shift, int, error)
	ListShiftPayments(ctx context.Context, shiftID string) ([]domain.ShiftPayment, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, branchID string, limit int) ([]domain.AuditLog, error)
}

// FormatFolio renders the per-branch note sequence.
func FormatFolio(branchID string, seq int64) string {
	return fmt.Sprintf("%s-%06d", branchID, seq)
}
