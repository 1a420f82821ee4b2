package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/store"
	"apartado/backend/internal/xid"
)

type Store struct {
	mu                sync.RWMutex
	notesByID         map[string]domain.Note
	folioSeq          map[string]int64
	shiftsByID        map[string]domain.Shift
	openShiftByBranch map[string]string
	paymentsByShift   map[string][]domain.ShiftPayment
	auditLogs         []domain.AuditLog
}

func New() *Store {
	return &Store{
		notesByID:         make(map[string]domain.Note),
		folioSeq:          make(map[string]int64),
		shiftsByID:        make(map[string]domain.Shift),
		openShiftByBranch: make(map[string]string),
		paymentsByShift:   make(map[string][]domain.ShiftPayment),
	}
}

func (s *Store) NextFolio(_ context.Context, branchID string) (string, error) {
	if strings.TrimSpace(branchID) == "" {
		return "", store.ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.folioSeq[branchID]++
	return store.FormatFolio(branchID, s.folioSeq[branchID]), nil
}

func (s *Store) CreateNote(_ context.Context, note domain.Note) (*domain.Note, error) {
	if strings.TrimSpace(note.BranchID) == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if note.ID == "" {
		note.ID = xid.New("note")
	}
	if _, exists := s.notesByID[note.ID]; exists {
		return nil, store.ErrInvalidRecord
	}
	for _, existing := range s.notesByID {
		if note.Folio != "" && existing.Folio == note.Folio {
			return nil, store.ErrInvalidRecord
		}
	}
	if err := s.claimShifts(note.Payments); err != nil {
		return nil, err
	}
	note.Version = 1
	s.notesByID[note.ID] = cloneNote(note)
	s.indexPayments(note, 0)

	saved := cloneNote(note)
	return &saved, nil
}

func (s *Store) GetNote(_ context.Context, id string) (*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneNote(note)
	return &dup, nil
}

func (s *Store) UpdateNote(_ context.Context, note domain.Note) (*domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.notesByID[note.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if current.Version != note.Version {
		return nil, store.ErrVersionConflict
	}
	if !isAppendOnly(current.Payments, note.Payments) {
		return nil, store.ErrInvalidRecord
	}
	if err := s.claimShifts(note.Payments[len(current.Payments):]); err != nil {
		return nil, err
	}

	note.Version = current.Version + 1
	s.notesByID[note.ID] = cloneNote(note)
	s.indexPayments(note, len(current.Payments))

	saved := cloneNote(note)
	return &saved, nil
}

func (s *Store) ListNotes(_ context.Context, filter domain.NoteFilter) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(filter.Term))
	result := make([]domain.Note, 0, 32)
	for _, note := range s.notesByID {
		if filter.BranchID != "" && note.BranchID != filter.BranchID {
			continue
		}
		if filter.Status != "" && note.Status != filter.Status {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(note.Folio), term) &&
			!strings.Contains(strings.ToLower(note.ClientID), term) {
			continue
		}
		result = append(result, cloneNote(note))
	}

	slices.SortFunc(result, func(a, b domain.Note) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.Folio, a.Folio)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.BranchID) == "" || shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.openShiftByBranch[shift.BranchID]; exists {
		return nil, store.ErrOpenShiftExists
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = time.Now().UTC()
	}
	shift.Version = 1

	s.shiftsByID[shift.ID] = cloneShift(shift)
	s.openShiftByBranch[shift.BranchID] = shift.ID
	saved := cloneShift(shift)
	return &saved, nil
}

func (s *Store) GetShift(_ context.Context, id string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, ok := s.shiftsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneShift(shift)
	return &dup, nil
}

func (s *Store) GetOpenShift(_ context.Context, branchID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shiftID, exists := s.openShiftByBranch[branchID]
	if !exists {
		return nil, store.ErrNotFound
	}
	shift, exists := s.shiftsByID[shiftID]
	if !exists || shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrNotFound
	}
	dup := cloneShift(shift)
	return &dup, nil
}

func (s *Store) UpdateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.shiftsByID[shift.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if current.Version != shift.Version {
		return nil, store.ErrVersionConflict
	}
	if current.Status == domain.ShiftStatusClosed && shift.Status != domain.ShiftStatusClosed {
		return nil, store.ErrInvalidRecord
	}
	if len(shift.Movements) < len(current.Movements) {
		return nil, store.ErrInvalidRecord
	}
	for i := range current.Movements {
		if current.Movements[i].ID != shift.Movements[i].ID {
			return nil, store.ErrInvalidRecord
		}
	}

	shift.Version = current.Version + 1
	s.shiftsByID[shift.ID] = cloneShift(shift)
	if shift.Status == domain.ShiftStatusClosed && s.openShiftByBranch[shift.BranchID] == shift.ID {
		delete(s.openShiftByBranch, shift.BranchID)
	}
	saved := cloneShift(shift)
	return &saved, nil
}

func (s *Store) ListShifts(_ context.Context, branchID string, limit int, offset int) ([]domain.Shift, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Shift, 0, 16)
	for _, shift := range s.shiftsByID {
		if branchID != "" && shift.BranchID != branchID {
			continue
		}
		all = append(all, shift)
	}
	slices.SortFunc(all, func(a, b domain.Shift) int {
		if a.OpenedAt.Equal(b.OpenedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.OpenedAt.After(b.OpenedAt) {
			return -1
		}
		return 1
	})

	total := len(all)
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.Shift{}, total, nil
	}
	end := min(offset+limit, total)
	page := make([]domain.Shift, 0, end-offset)
	for _, shift := range all[offset:end] {
		page = append(page, cloneShift(shift))
	}
	return page, total, nil
}

func (s *Store) ListShiftPayments(_ context.Context, shiftID string) ([]domain.ShiftPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.ShiftPayment(nil), s.paymentsByShift[shiftID]...), nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, branchID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit < 1 {
		limit = 100
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// claimShifts checks that every shift receiving a new payment is still open
// and bumps its version. Callers hold the write lock.
func (s *Store) claimShifts(payments []domain.Payment) error {
	for _, p := range payments {
		if p.ShiftID == "" {
			continue
		}
		shift, ok := s.shiftsByID[p.ShiftID]
		if !ok || shift.Status != domain.ShiftStatusOpen {
			return store.ErrShiftNotOpen
		}
	}
	for _, p := range payments {
		if p.ShiftID == "" {
			continue
		}
		shift := s.shiftsByID[p.ShiftID]
		shift.Version++
		s.shiftsByID[p.ShiftID] = shift
	}
	return nil
}

// indexPayments attributes payments from position start onward to their
// shifts. Callers hold the write lock.
func (s *Store) indexPayments(note domain.Note, start int) {
	for _, p := range note.Payments[start:] {
		if p.ShiftID == "" {
			continue
		}
		s.paymentsByShift[p.ShiftID] = append(s.paymentsByShift[p.ShiftID], domain.ShiftPayment{
			NoteID:  note.ID,
			Folio:   note.Folio,
			Payment: p,
		})
	}
}

func isAppendOnly(stored []domain.Payment, next []domain.Payment) bool {
	if len(next) < len(stored) {
		return false
	}
	for i := range stored {
		if stored[i].ID != next[i].ID || stored[i].Amount != next[i].Amount || stored[i].Method != next[i].Method {
			return false
		}
	}
	return true
}

func cloneNote(src domain.Note) domain.Note {
	dup := src
	items := make([]domain.LineItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	payments := make([]domain.Payment, len(src.Payments))
	copy(payments, src.Payments)
	dup.Payments = payments
	return dup
}

func cloneShift(src domain.Shift) domain.Shift {
	dup := src
	movements := make([]domain.CashMovement, len(src.Movements))
	copy(movements, src.Movements)
	dup.Movements = movements
	return dup
}
