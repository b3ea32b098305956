package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/domain"
	"github.com/RaikyD/merch-pickup-service/internal/logger"
	"github.com/RaikyD/merch-pickup-service/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SessionState string

const (
	StateIdle     SessionState = "idle"
	StateMatched  SessionState = "matched"
	StateVerified SessionState = "verified"
)

// Session is one in-progress pickup attempt at a counter. Callers own it
// and pass it to every ReleaseVerifier call.
type Session struct {
	ID uuid.UUID

	mu                  sync.Mutex
	attempt             uint64
	enteredOrderCode    string
	enteredIdentityCode string
	matched             *domain.Order
	identityVerified    bool
}

func NewSession() *Session {
	return &Session{ID: uuid.New()}
}

func (s *Session) reset() {
	s.enteredOrderCode = ""
	s.enteredIdentityCode = ""
	s.matched = nil
	s.identityVerified = false
}

// SessionView is a point-in-time copy of a session for display.
type SessionView struct {
	ID                  uuid.UUID     `json:"id"`
	State               SessionState  `json:"state"`
	EnteredOrderCode    string        `json:"entered_order_code,omitempty"`
	EnteredIdentityCode string        `json:"entered_identity_code,omitempty"`
	Order               *domain.Order `json:"order,omitempty"`
	IdentityVerified    bool          `json:"identity_verified"`
	BalanceWarning      bool          `json:"balance_warning"`
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SessionView{
		ID:                  s.ID,
		State:               s.stateLocked(),
		EnteredOrderCode:    s.enteredOrderCode,
		EnteredIdentityCode: s.enteredIdentityCode,
		Order:               s.matched.Clone(),
		IdentityVerified:    s.identityVerified,
	}
	if s.matched != nil {
		v.BalanceWarning = s.matched.HasBalance()
	}
	return v
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() SessionState {
	switch {
	case s.matched == nil:
		return StateIdle
	case s.identityVerified:
		return StateVerified
	default:
		return StateMatched
	}
}

// ReleaseNotifier is told about every committed release.
type ReleaseNotifier interface {
	PublishRelease(ctx context.Context, rec domain.ReleaseRecord) error
}

// Observer receives workflow outcomes, the metrics registry implements it.
type Observer interface {
	ObserveLookup(outcome string)
	ObserveVerify(outcome string)
	ObserveRelease(withBalance bool)
}

type nopObserver struct{}

func (nopObserver) ObserveLookup(string) {}
func (nopObserver) ObserveVerify(string) {}
func (nopObserver) ObserveRelease(bool)  {}

type VerifyResult struct {
	Order      *domain.Order
	BalanceDue decimal.Decimal
}

type ReleaseResult struct {
	Record     domain.ReleaseRecord
	Order      *domain.Order
	BalanceDue decimal.Decimal
}

// ReleaseVerifier gates merchandise hand-off on a matching order code and
// owner identity code.
type ReleaseVerifier struct {
	store    repository.OrderRepo
	notifier ReleaseNotifier
	obs      Observer
	now      func() time.Time
}

func NewReleaseVerifier(store repository.OrderRepo, notifier ReleaseNotifier, obs Observer) *ReleaseVerifier {
	if obs == nil {
		obs = nopObserver{}
	}
	return &ReleaseVerifier{
		store:    store,
		notifier: notifier,
		obs:      obs,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// LookupOrder starts a new attempt for code. A successful lookup leaves the
// session matched and unverified; any failure leaves it idle.
func (v *ReleaseVerifier) LookupOrder(ctx context.Context, s *Session, code string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt++
	return v.lookupLocked(ctx, s, code)
}

// ScanOrder is LookupOrder after the scanner latency. If the session moved on
// to another attempt while waiting, the result is dropped with ErrStaleScan
// and the session is left alone.
func (v *ReleaseVerifier) ScanOrder(ctx context.Context, s *Session, code string, delay time.Duration) (*domain.Order, error) {
	s.mu.Lock()
	s.attempt++
	ticket := s.attempt
	s.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != ticket {
		v.obs.ObserveLookup("stale")
		return nil, ErrStaleScan
	}
	return v.lookupLocked(ctx, s, code)
}

func (v *ReleaseVerifier) lookupLocked(ctx context.Context, s *Session, raw string) (*domain.Order, error) {
	code := domain.NormalizeCode(raw)
	if code == "" {
		v.obs.ObserveLookup("missing_input")
		return nil, fmt.Errorf("%w: order code", ErrMissingInput)
	}

	s.reset()
	s.enteredOrderCode = code

	o, err := v.store.GetOrderByCode(ctx, code)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		v.obs.ObserveLookup("invalid_code")
		return nil, fmt.Errorf("%w: %s", ErrInvalidCode, code)
	case err != nil:
		v.obs.ObserveLookup("error")
		return nil, fmt.Errorf("lookup %s: %w", code, err)
	case o.Status == domain.StatusCompleted:
		v.obs.ObserveLookup("already_released")
		return nil, fmt.Errorf("%w: %s", ErrAlreadyReleased, code)
	case o.Status != domain.StatusReadyForPickup:
		v.obs.ObserveLookup("invalid_code")
		return nil, fmt.Errorf("%w: %s has status %s", ErrInvalidCode, code, o.Status)
	}

	s.matched = o
	v.obs.ObserveLookup("matched")
	logger.Info("order matched for pickup", "session", s.ID, "code", code)
	return o.Clone(), nil
}

// VerifyIdentity compares the entered identity code with the owner of the
// matched order. It may be called any number of times; each call decides
// the verified flag from scratch. It never touches the order itself.
func (v *ReleaseVerifier) VerifyIdentity(_ context.Context, s *Session, identityCode string) (VerifyResult, error) {
	code := domain.NormalizeCode(identityCode)
	if code == "" {
		v.obs.ObserveVerify("missing_input")
		return VerifyResult{}, fmt.Errorf("%w: identity code", ErrMissingInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matched == nil {
		v.obs.ObserveVerify("no_session")
		return VerifyResult{}, ErrNoActiveSession
	}

	s.enteredIdentityCode = code
	if code != s.matched.OwnerIdentityCode {
		s.identityVerified = false
		v.obs.ObserveVerify("mismatch")
		return VerifyResult{}, &MismatchError{Entered: code, Expected: s.matched.OwnerIdentityCode}
	}

	s.identityVerified = true
	v.obs.ObserveVerify("verified")
	return VerifyResult{Order: s.matched.Clone(), BalanceDue: s.matched.RemainingBalance}, nil
}

// Release completes the matched order once identity is verified. An unpaid
// balance is reported back but does not block the release.
func (v *ReleaseVerifier) Release(ctx context.Context, s *Session) (ReleaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.matched == nil {
		return ReleaseResult{}, ErrNoActiveSession
	}
	if !s.identityVerified {
		return ReleaseResult{}, ErrIdentityNotVerified
	}

	o := s.matched
	rec, err := v.store.MarkReleased(ctx, o.OrderCode, v.now())
	switch {
	case errors.Is(err, repository.ErrOrderNotReady):
		s.reset()
		s.attempt++
		return ReleaseResult{}, fmt.Errorf("%w: %s", ErrAlreadyReleased, o.OrderCode)
	case errors.Is(err, repository.ErrOrderNotFound):
		s.reset()
		s.attempt++
		return ReleaseResult{}, fmt.Errorf("%w: %s", ErrInvalidCode, o.OrderCode)
	case err != nil:
		return ReleaseResult{}, fmt.Errorf("release %s: %w", o.OrderCode, err)
	}

	released := o.Clone()
	at := rec.ReleasedAt
	released.Status = domain.StatusCompleted
	released.PickupDate = &at

	s.reset()
	s.attempt++

	if o.HasBalance() {
		logger.Warn("order released with outstanding balance",
			"code", rec.OrderCode, "balance", o.RemainingBalance.StringFixed(2))
	}
	logger.Info("order released", "session", s.ID, "code", rec.OrderCode, "order_id", rec.OrderID)
	v.obs.ObserveRelease(o.HasBalance())

	if v.notifier != nil {
		if err := v.notifier.PublishRelease(ctx, rec); err != nil {
			logger.Warn("release notification failed", "code", rec.OrderCode, "err", err)
		}
	}

	return ReleaseResult{Record: rec, Order: released, BalanceDue: o.RemainingBalance}, nil
}

// Cancel drops the current attempt without touching any order.
func (v *ReleaseVerifier) Cancel(s *Session) {
	s.mu.Lock()
	s.reset()
	s.attempt++
	s.mu.Unlock()
}
