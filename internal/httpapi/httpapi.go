package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"apartado/backend/internal/domain"
	"apartado/backend/internal/obs"
	"apartado/backend/internal/service"
)

const requestIDHeader = "X-Request-ID"

type API struct {
	service       *service.Service
	identity      *Identity
	metrics       *obs.Metrics
	allowedOrigin string
	pinLimiter    *attemptLimiter
}

func New(svc *service.Service, identity *Identity, metrics *obs.Metrics, allowedOrigin string) *API {
	return &API{
		service:       svc,
		identity:      identity,
		metrics:       metrics,
		allowedOrigin: allowedOrigin,
		pinLimiter:    newAttemptLimiter(8, time.Minute),
	}
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	staff := []string{"cashier", "manager", "admin"}

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.Handle("GET /metrics", a.metrics.Handler())

	mux.HandleFunc("POST /api/v1/shifts/open", a.requireAuth(a.handleShiftOpen, staff...))
	mux.HandleFunc("GET /api/v1/shifts/current", a.requireAuth(a.handleShiftCurrent, staff...))
	mux.HandleFunc("POST /api/v1/shifts/close", a.requireAuth(a.handleShiftClose, staff...))
	mux.HandleFunc("GET /api/v1/shifts/history", a.requireAuth(a.handleShiftHistory, staff...))
	mux.HandleFunc("POST /api/v1/shifts/movements", a.requireAuth(a.handleMovement, staff...))
	mux.HandleFunc("GET /api/v1/shifts/{id}", a.requireAuth(a.handleShiftReport, staff...))
	mux.HandleFunc("POST /api/v1/shifts/{id}/close", a.requireAuth(a.handleShiftCloseByID, "manager", "admin"))

	mux.HandleFunc("POST /api/v1/notes", a.requireAuth(a.handleCheckout, staff...))
	mux.HandleFunc("GET /api/v1/notes", a.requireAuth(a.handleListNotes, staff...))
	mux.HandleFunc("POST /api/v1/notes/drafts", a.requireAuth(a.handleCreateDraft, staff...))
	mux.HandleFunc("GET /api/v1/notes/{id}", a.requireAuth(a.handleGetNote, staff...))
	mux.HandleFunc("POST /api/v1/notes/{id}/payments", a.requireAuth(a.handleAddPayment, staff...))
	mux.HandleFunc("POST /api/v1/notes/{id}/items", a.requireAuth(a.handleAddItem, staff...))
	mux.HandleFunc("DELETE /api/v1/notes/{id}/items/{itemID}", a.requireAuth(a.handleRemoveItem, staff...))
	mux.HandleFunc("POST /api/v1/notes/{id}/items/{itemID}/fulfillment", a.requireAuth(a.handleSetFulfillment, staff...))
	mux.HandleFunc("POST /api/v1/notes/{id}/discount", a.requireAuth(a.handleDiscount, staff...))
	mux.HandleFunc("POST /api/v1/notes/{id}/fulfill", a.requireAuth(a.handleFulfill, staff...))
	mux.HandleFunc("POST /api/v1/notes/{id}/cancel", a.requireAuth(a.handleCancel, staff...))

	mux.HandleFunc("GET /api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, "manager", "admin"))

	return a.withMiddleware(a.metrics.Instrument(mux))
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.identity.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleShiftOpen(w http.ResponseWriter, r *http.Request) {
	var req domain.ShiftOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.OpenShift(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleShiftCurrent(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.CurrentReport(r.Context(), r.URL.Query().Get("branch_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftReport(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.ShiftReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftClose(w http.ResponseWriter, r *http.Request) {
	var req domain.ShiftCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.CloseShift(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftCloseByID(w http.ResponseWriter, r *http.Request) {
	var req domain.ShiftCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.CloseShiftByID(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := parsePositiveLimit(query.Get("page"), 1, 0)
	limit := parsePositiveLimit(query.Get("limit"), 20, 100)

	resp, err := a.service.ShiftHistory(r.Context(), query.Get("branch_id"), page, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMovement(w http.ResponseWriter, r *http.Request) {
	var req domain.MovementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.RecordMovement(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.Checkout(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type draftRequest struct {
	BranchID string `json:"branch_id"`
	ClientID string `json:"client_id"`
}

func (a *API) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.CreateNote(r.Context(), req.BranchID, req.ClientID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListNotes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	notes, err := a.service.ListNotes(r.Context(), domain.NoteFilter{
		BranchID: query.Get("branch_id"),
		Status:   domain.NoteStatus(strings.TrimSpace(query.Get("status"))),
		Term:     query.Get("term"),
		Limit:    parsePositiveLimit(query.Get("limit"), 50, 200),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (a *API) handleGetNote(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.GetNote(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.AddPayment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.AddItem(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSetFulfillment(w http.ResponseWriter, r *http.Request) {
	var req domain.SetFulfillmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.SetItemFulfillment(r.Context(), r.PathValue("id"), r.PathValue("itemID"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.DiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.ApplyDiscount(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleFulfill(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.Fulfill(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req domain.CancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.pinLimiter.Allow("pin:cancel:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	if !a.identity.ValidateManagerPIN(req.PIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	resp, err := a.service.CancelLedger(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	logs, err := a.service.ListAuditLogs(r.Context(), query.Get("branch_id"), parsePositiveLimit(query.Get("limit"), 100, 500))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[http] %s %s %s %s", r.Method, r.URL.Path, requestID, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// statusFor maps core error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoteNotFound), errors.Is(err, domain.ErrShiftNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrShiftAlreadyOpen),
		errors.Is(err, domain.ErrLedgerImmutable),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrShiftClosed),
		errors.Is(err, domain.ErrNoOpenShift),
		errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidItem),
		errors.Is(err, domain.ErrInvalidDiscount),
		errors.Is(err, domain.ErrInvalidPayment),
		errors.Is(err, domain.ErrInsufficientPayment),
		errors.Is(err, domain.ErrInvalidFulfillmentState),
		errors.Is(err, domain.ErrInvalidMovement):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientPaymentError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":          err.Error(),
			"required_cents": insufficient.Required,
			"offered_cents":  insufficient.Offered,
		})
		return
	}
	writeError(w, statusFor(err), err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause goes to the log only.
	msg := err.Error()
	if status >= 500 {
		log.Printf("[http] ERROR: internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
