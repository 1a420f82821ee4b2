package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/money"
	"apartado/backend/internal/store"
	"apartado/backend/internal/till"
	"apartado/backend/internal/xid"
)

// AssertNoOpenShift fails with ShiftAlreadyOpenError when the branch has an
// open shift. Callers that go on to open a shift must hold the branch lock.
func (s *Service) AssertNoOpenShift(ctx context.Context, branchID string) error {
	current, err := s.repo.GetOpenShift(ctx, branchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &domain.ShiftAlreadyOpenError{BranchID: branchID, ShiftID: current.ID}
}

// OpenShift runs the check-then-insert under the branch lock. The store's
// one-open-shift constraint backs it up across processes.
func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.ShiftReport, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	branchID := strings.TrimSpace(req.BranchID)
	if branchID == "" {
		return domain.ShiftReport{}, fmt.Errorf("%w: branch_id is required", domain.ErrInvalidRequest)
	}

	unlock, err := s.locker.Lock(ctx, shiftLockKey(branchID))
	if err != nil {
		return domain.ShiftReport{}, err
	}
	defer unlock()

	if err := s.AssertNoOpenShift(ctx, branchID); err != nil {
		return domain.ShiftReport{}, err
	}
	shift, err := till.Open(xid.New("shift"), branchID, req.InitialCash, actor.UserID, s.clock.Now())
	if err != nil {
		return domain.ShiftReport{}, err
	}
	saved, err := s.repo.CreateShift(ctx, *shift)
	if err != nil {
		if errors.Is(err, store.ErrOpenShiftExists) {
			return domain.ShiftReport{}, fmt.Errorf("%w: branch %s", domain.ErrShiftAlreadyOpen, branchID)
		}
		return domain.ShiftReport{}, err
	}

	s.metrics.ShiftOpened()
	s.logAudit(ctx, branchID, "shift_open", "shift", saved.ID, fmt.Sprintf("initial_cash=%s", saved.InitialCash))
	return till.Report(saved, nil), nil
}

// CurrentShift resolves the branch's open shift.
func (s *Service) CurrentShift(ctx context.Context, branchID string) (*domain.Shift, error) {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return nil, fmt.Errorf("%w: branch_id is required", domain.ErrInvalidRequest)
	}
	shift, err := s.repo.GetOpenShift(ctx, branchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no open shift for branch %s", domain.ErrShiftNotFound, branchID)
		}
		return nil, err
	}
	return shift, nil
}

// CurrentReport returns running totals for the branch's open shift.
func (s *Service) CurrentReport(ctx context.Context, branchID string) (domain.ShiftReport, error) {
	shift, err := s.CurrentShift(ctx, branchID)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	payments, err := s.repo.ListShiftPayments(ctx, shift.ID)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	return till.Report(shift, payments), nil
}

func (s *Service) ShiftReport(ctx context.Context, shiftID string) (domain.ShiftReport, error) {
	shift, err := s.getShift(ctx, shiftID)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	payments, err := s.repo.ListShiftPayments(ctx, shift.ID)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	return till.Report(shift, payments), nil
}

// CloseShift closes whatever shift is currently open for the branch.
func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftReport, error) {
	shift, err := s.CurrentShift(ctx, req.BranchID)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	return s.closeShift(ctx, shift.ID, req)
}

// CloseShiftByID closes a specific shift, typically one left open from an
// earlier day. The branch's current shift is only affected when it is the
// one being closed.
func (s *Service) CloseShiftByID(ctx context.Context, shiftID string, req domain.ShiftCloseRequest) (domain.ShiftReport, error) {
	if strings.TrimSpace(shiftID) == "" {
		return domain.ShiftReport{}, fmt.Errorf("%w: shift id is required", domain.ErrInvalidRequest)
	}
	return s.closeShift(ctx, shiftID, req)
}

func (s *Service) closeShift(ctx context.Context, shiftID string, req domain.ShiftCloseRequest) (domain.ShiftReport, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ShiftReport{}, err
	}

	var report domain.ShiftReport
	err = s.withRetry(ctx, "shift", func() error {
		shift, err := s.getShift(ctx, shiftID)
		if err != nil {
			return err
		}
		payments, err := s.repo.ListShiftPayments(ctx, shift.ID)
		if err != nil {
			return err
		}
		if _, err := till.Close(shift, payments, req.DeclaredCash, req.Notes, actor.UserID, s.thresholds, s.clock.Now()); err != nil {
			return err
		}
		saved, err := s.repo.UpdateShift(ctx, *shift)
		if err != nil {
			return err
		}
		report = till.Report(saved, payments)
		return nil
	})
	if err != nil {
		return domain.ShiftReport{}, err
	}

	closed := report.Shift
	s.metrics.ShiftClosed(closed.Classification, derefMoney(closed.Difference))
	s.logAudit(ctx, closed.BranchID, "shift_close", "shift", closed.ID,
		fmt.Sprintf("declared=%s expected=%s difference=%s (%s%%) %s",
			derefMoney(closed.DeclaredCash), derefMoney(closed.ExpectedCash), derefMoney(closed.Difference),
			closed.DifferencePct, closed.Classification))
	return report, nil
}

// RecordMovement appends a manual cash adjustment to the branch's open shift.
func (s *Service) RecordMovement(ctx context.Context, req domain.MovementRequest) (domain.ShiftReport, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	movement, err := till.NewMovement(xid.New("mov"), req, actor.UserID, s.clock.Now())
	if err != nil {
		return domain.ShiftReport{}, err
	}

	var report domain.ShiftReport
	err = s.withRetry(ctx, "shift", func() error {
		shift, err := s.CurrentShift(ctx, req.BranchID)
		if err != nil {
			return err
		}
		if err := till.RecordMovement(shift, movement); err != nil {
			return err
		}
		saved, err := s.repo.UpdateShift(ctx, *shift)
		if err != nil {
			return err
		}
		payments, err := s.repo.ListShiftPayments(ctx, saved.ID)
		if err != nil {
			return err
		}
		report = till.Report(saved, payments)
		return nil
	})
	if err != nil {
		return domain.ShiftReport{}, err
	}

	s.logAudit(ctx, report.Shift.BranchID, "cash_movement", "shift", report.Shift.ID,
		fmt.Sprintf("%s %s %s: %s", movement.Type, movement.Method, movement.Amount, movement.Description))
	return report, nil
}

func (s *Service) ShiftHistory(ctx context.Context, branchID string, page int, limit int) (domain.ShiftHistory, error) {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return domain.ShiftHistory{}, fmt.Errorf("%w: branch_id is required", domain.ErrInvalidRequest)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	shifts, total, err := s.repo.ListShifts(ctx, branchID, limit, (page-1)*limit)
	if err != nil {
		return domain.ShiftHistory{}, err
	}
	return domain.ShiftHistory{Shifts: shifts, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) getShift(ctx context.Context, shiftID string) (*domain.Shift, error) {
	shift, err := s.repo.GetShift(ctx, shiftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrShiftNotFound, shiftID)
		}
		return nil, err
	}
	return shift, nil
}

func shiftLockKey(branchID string) string {
	return "branch:" + branchID + ":shift"
}

func derefMoney(m *money.Money) money.Money {
	if m == nil {
		return 0
	}
	return *m
}
