package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/domain"
	"github.com/RaikyD/merch-pickup-service/internal/fixtures"
	"github.com/RaikyD/merch-pickup-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type recordingNotifier struct {
	mu   sync.Mutex
	recs []domain.ReleaseRecord
	err  error
}

func (n *recordingNotifier) PublishRelease(_ context.Context, rec domain.ReleaseRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recs = append(n.recs, rec)
	return n.err
}

type countingObserver struct {
	mu       sync.Mutex
	lookups  map[string]int
	verifies map[string]int
	releases int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{lookups: map[string]int{}, verifies: map[string]int{}}
}

func (o *countingObserver) ObserveLookup(outcome string) {
	o.mu.Lock()
	o.lookups[outcome]++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveVerify(outcome string) {
	o.mu.Lock()
	o.verifies[outcome]++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveRelease(bool) {
	o.mu.Lock()
	o.releases++
	o.mu.Unlock()
}

type VerifierSuite struct {
	suite.Suite
	ctx      context.Context
	repo     *repository.MemoryRepository
	notifier *recordingNotifier
	obs      *countingObserver
	v        *ReleaseVerifier
	now      time.Time
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 10, 17, 14, 0, 0, 0, time.UTC)
	s.repo = repository.NewMemoryRepository()
	_, err := fixtures.Seed(s.ctx, s.repo, s.now)
	s.Require().NoError(err)

	s.notifier = &recordingNotifier{}
	s.obs = newCountingObserver()
	s.v = NewReleaseVerifier(NewOrdersService(s.repo), s.notifier, s.obs)
	s.v.now = func() time.Time { return s.now }
}

func (s *VerifierSuite) order(code string) *domain.Order {
	o, err := s.repo.GetOrderByCode(s.ctx, code)
	s.Require().NoError(err)
	return o
}

func (s *VerifierSuite) TestLookupEveryReadyOrder() {
	all, err := s.repo.ListOrders(s.ctx, repository.OrderFilter{})
	s.Require().NoError(err)

	for _, o := range all {
		sess := NewSession()
		got, err := s.v.LookupOrder(s.ctx, sess, o.OrderCode)
		switch o.Status {
		case domain.StatusReadyForPickup:
			s.Require().NoError(err, o.OrderCode)
			s.Equal(o.OrderID, got.OrderID)
			s.Equal(StateMatched, sess.State())
		case domain.StatusCompleted:
			s.ErrorIs(err, ErrAlreadyReleased, o.OrderCode)
			s.False(errors.Is(err, ErrInvalidCode))
			s.Equal(StateIdle, sess.State())
		}
	}
}

func (s *VerifierSuite) TestLookupInputHandling() {
	sess := NewSession()

	s.Run("normalizes case and whitespace", func() {
		got, err := s.v.LookupOrder(s.ctx, sess, "  merch-ord002-s024045 ")
		s.Require().NoError(err)
		s.Equal("MERCH-ORD002-S024045", got.OrderCode)
		s.Equal("MERCH-ORD002-S024045", sess.View().EnteredOrderCode)
	})

	s.Run("rejects blank input without lookup", func() {
		_, err := s.v.LookupOrder(s.ctx, NewSession(), " \t ")
		s.ErrorIs(err, ErrMissingInput)
		s.Equal(0, s.obs.lookups["invalid_code"])
	})

	s.Run("unknown code is invalid", func() {
		fresh := NewSession()
		_, err := s.v.LookupOrder(s.ctx, fresh, "MERCH-ORD004-WRONGCODE")
		s.ErrorIs(err, ErrInvalidCode)
		s.Equal(StateIdle, fresh.State())
	})

	s.Run("failed re-scan drops the previous match", func() {
		_, err := s.v.LookupOrder(s.ctx, sess, "MERCH-ORD999")
		s.ErrorIs(err, ErrInvalidCode)
		s.Equal(StateIdle, sess.State())
	})
}

func (s *VerifierSuite) TestRescanReplacesMatch() {
	sess := NewSession()
	_, err := s.v.LookupOrder(s.ctx, sess, "MERCH-ORD002-S024045")
	s.Require().NoError(err)
	_, err = s.v.VerifyIdentity(s.ctx, sess, "S024045")
	s.Require().NoError(err)

	_, err = s.v.LookupOrder(s.ctx, sess, "MERCH-ORD004-S025310")
	s.Require().NoError(err)

	view := sess.View()
	s.Equal(StateMatched, view.State)
	s.Equal("MERCH-ORD004-S025310", view.Order.OrderCode)
	s.False(view.IdentityVerified)
	s.Empty(view.EnteredIdentityCode)
}

func (s *VerifierSuite) TestVerifyIdentity() {
	sess := NewSession()

	s.Run("requires a matched order", func() {
		_, err := s.v.VerifyIdentity(s.ctx, sess, "S024045")
		s.ErrorIs(err, ErrNoActiveSession)
	})

	_, err := s.v.LookupOrder(s.ctx, sess, "MERCH-ORD002-S024045")
	s.Require().NoError(err)
	before := s.order("MERCH-ORD002-S024045")

	s.Run("blank identity", func() {
		_, err := s.v.VerifyIdentity(s.ctx, sess, "   ")
		s.ErrorIs(err, ErrMissingInput)
		s.Equal(StateMatched, sess.State())
	})

	s.Run("case insensitive match", func() {
		res, err := s.v.VerifyIdentity(s.ctx, sess, "s024045")
		s.Require().NoError(err)
		s.Equal("MERCH-ORD002-S024045", res.Order.OrderCode)
		s.Equal(StateVerified, sess.State())
	})

	s.Run("idempotent", func() {
		_, err := s.v.VerifyIdentity(s.ctx, sess, "S024045")
		s.Require().NoError(err)
		s.True(sess.View().IdentityVerified)
		s.Equal(2, s.obs.verifies["verified"])
	})

	s.Run("mismatch demotes to unverified", func() {
		_, err := s.v.VerifyIdentity(s.ctx, sess, "S02404")
		s.ErrorIs(err, ErrMismatch)

		var mm *MismatchError
		s.Require().True(errors.As(err, &mm))
		s.Equal("S024045", mm.Expected)
		s.Equal("S02404", mm.Entered)
		s.Equal(StateMatched, sess.State())
	})

	s.Run("never mutates the order", func() {
		s.Equal(before, s.order("MERCH-ORD002-S024045"))
	})
}

func (s *VerifierSuite) TestReleaseGates() {
	s.Run("without lookup", func() {
		_, err := s.v.Release(s.ctx, NewSession())
		s.ErrorIs(err, ErrNoActiveSession)
	})

	s.Run("after failed verification", func() {
		sess := NewSession()
		_, err := s.v.LookupOrder(s.ctx, sess, "MERCH-ORD002-S024045")
		s.Require().NoError(err)
		_, err = s.v.VerifyIdentity(s.ctx, sess, "S999999")
		s.Require().ErrorIs(err, ErrMismatch)

		_, err = s.v.Release(s.ctx, sess)
		s.ErrorIs(err, ErrIdentityNotVerified)

		o := s.order("MERCH-ORD002-S024045")
		s.Equal(domain.StatusReadyForPickup, o.Status)
		s.Nil(o.PickupDate)
		s.Empty(s.notifier.recs)
	})
}

func (s *VerifierSuite) TestScenarioRelease() {
	sess := NewSession()
	_, err := s.v.LookupOrder(s.ctx, sess, "MERCH-ORD002-S024045")
	s.Require().NoError(err)
	_, err = s.v.VerifyIdentity(s.ctx, sess, "S024045")
	s.Require().NoError(err)

	res, err := s.v.Release(s.ctx, sess)
	s.Require().NoError(err)
	s.Equal("MERCH-ORD002-S024045", res.Record.OrderCode)
	s.Equal(s.now, res.Record.ReleasedAt)
	s.Equal(domain.StatusCompleted, res.Order.Status)

	o := s.order("MERCH-ORD002-S024045")
	s.Equal(domain.StatusCompleted, o.Status)
	s.Require().NotNil(o.PickupDate)
	s.Equal(s.now, *o.PickupDate)

	log, err := s.repo.ListReleases(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().NotEmpty(log)
	s.Equal(o.OrderID, log[0].OrderID)

	s.Equal(StateIdle, sess.State())
	s.Equal(SessionView{ID: sess.ID, State: StateIdle}, sess.View())
	s.Require().Len(s.notifier.recs, 1)
	s.Equal(res.Record, s.notifier.recs[0])

	_, err = s.v.LookupOrder(s.ctx, sess, "MERCH-ORD002-S024045")
	s.ErrorIs(err, ErrAlreadyReleased)

	_, err = s.v.Release(s.ctx, sess)
	s.ErrorIs(err, ErrNoActiveSession)
}

func (s *VerifierSuite) TestBalanceDoesNotBlockRelease() {
	sess := NewSession()
	_, err := s.v.LookupOrder(s.ctx, sess, "MERCH-ORD003-F000001")
	s.Require().NoError(err)
	s.True(sess.View().BalanceWarning)

	vr, err := s.v.VerifyIdentity(s.ctx, sess, "f000001")
	s.Require().NoError(err)
	s.True(vr.BalanceDue.Equal(decimal.RequireFromString("120")))

	res, err := s.v.Release(s.ctx, sess)
	s.Require().NoError(err)
	s.True(res.BalanceDue.Equal(decimal.RequireFromString("120")))
	s.True(s.order("MERCH-ORD003-F000001").RemainingBalance.Equal(decimal.RequireFromString("120")))
}

func (s *VerifierSuite) TestConcurrentSessionsReleaseOnce() {
	a, b := NewSession(), NewSession()
	for _, sess := range []*Session{a, b} {
		_, err := s.v.LookupOrder(s.ctx, sess, "MERCH-ORD004-S025310")
		s.Require().NoError(err)
		_, err = s.v.VerifyIdentity(s.ctx, sess, "S025310")
		s.Require().NoError(err)
	}

	_, err := s.v.Release(s.ctx, a)
	s.Require().NoError(err)

	_, err = s.v.Release(s.ctx, b)
	s.ErrorIs(err, ErrAlreadyReleased)
	s.Equal(StateIdle, b.State())

	log, err := s.repo.ListReleases(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(log, 1)
}

func (s *VerifierSuite) TestNotifierFailureKeepsRelease() {
	s.notifier.err = errors.New("broker down")
	sess := NewSession()
	_, err := s.v.LookupOrder(s.ctx, sess, "MERCH-ORD005-S022987")
	s.Require().NoError(err)
	_, err = s.v.VerifyIdentity(s.ctx, sess, "S022987")
	s.Require().NoError(err)

	_, err = s.v.Release(s.ctx, sess)
	s.Require().NoError(err)
	s.Equal(domain.StatusCompleted, s.order("MERCH-ORD005-S022987").Status)
}

func (s *VerifierSuite) TestCancel() {
	sess := NewSession()
	_, err := s.v.LookupOrder(s.ctx, sess, "MERCH-ORD002-S024045")
	s.Require().NoError(err)
	_, err = s.v.VerifyIdentity(s.ctx, sess, "S024045")
	s.Require().NoError(err)

	s.v.Cancel(sess)
	s.Equal(StateIdle, sess.State())

	_, err = s.v.Release(s.ctx, sess)
	s.ErrorIs(err, ErrNoActiveSession)
	s.Equal(domain.StatusReadyForPickup, s.order("MERCH-ORD002-S024045").Status)
}

func (s *VerifierSuite) TestScanOrder() {
	s.Run("resolves after delay", func() {
		sess := NewSession()
		got, err := s.v.ScanOrder(s.ctx, sess, "MERCH-ORD002-S024045", 5*time.Millisecond)
		s.Require().NoError(err)
		s.Equal("MERCH-ORD002-S024045", got.OrderCode)
		s.Equal(StateMatched, sess.State())
	})

	s.Run("superseded scan is dropped", func() {
		sess := NewSession()
		done := make(chan error, 1)
		go func() {
			_, err := s.v.ScanOrder(s.ctx, sess, "MERCH-ORD002-S024045", 200*time.Millisecond)
			done <- err
		}()

		// wait until the slow scan has taken its ticket
		s.Eventually(func() bool {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			return sess.attempt == 1
		}, time.Second, time.Millisecond)

		_, err := s.v.LookupOrder(s.ctx, sess, "MERCH-ORD004-S025310")
		s.Require().NoError(err)

		s.ErrorIs(<-done, ErrStaleScan)
		s.Equal("MERCH-ORD004-S025310", sess.View().Order.OrderCode)
		s.Equal(1, s.obs.lookups["stale"])
	})

	s.Run("cancelled context", func() {
		sess := NewSession()
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		_, err := s.v.ScanOrder(ctx, sess, "MERCH-ORD002-S024045", time.Second)
		s.ErrorIs(err, context.Canceled)
		s.Equal(StateIdle, sess.State())
	})
}
