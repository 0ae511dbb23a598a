package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"listenline/internal/ledger"
	"listenline/internal/presence"
	"listenline/internal/rates"

	"github.com/google/uuid"
)

var (
	ErrListenerBusy       = errors.New("calls: listener is busy")
	ErrInsufficientCoins  = errors.New("calls: balance does not cover one minute")
	ErrNotParticipant     = errors.New("calls: user is not a participant")
	ErrCallAlreadyEnded   = errors.New("calls: call already ended")
	ErrSelfCallNotAllowed = errors.New("calls: caller and listener must differ")
)

// SlotAcquirer reserves a listener's ongoing-call slot for the busy window.
// Optional; nil skips the reservation.
type SlotAcquirer func(ctx context.Context, listenerID string, ttl time.Duration) (bool, error)

// Service implements the call boundary operations: starting a call and the
// participant-initiated end. Ending a call goes through the same Finalizer
// CAS as the background workers; the handler is just another concurrent
// caller.
type Service struct {
	store     Store
	rates     *rates.Service
	ledger    *ledger.Service
	presence  *presence.Service
	finalizer *Finalizer

	cache       *Cache
	acquireSlot SlotAcquirer

	log   *slog.Logger
	clock func() time.Time
}

func NewService(store Store, rateSvc *rates.Service, ledgerSvc *ledger.Service, presenceSvc *presence.Service, finalizer *Finalizer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		rates:     rateSvc,
		ledger:    ledgerSvc,
		presence:  presenceSvc,
		finalizer: finalizer,
		log:       log,
		clock:     time.Now,
	}
}

// WithCache attaches the Redis call mirror.
func (s *Service) WithCache(c *Cache) *Service { s.cache = c; return s }

// WithSlotAcquirer attaches the listener call-slot reservation hook.
func (s *Service) WithSlotAcquirer(a SlotAcquirer) *Service { s.acquireSlot = a; return s }

type StartCallRequest struct {
	CallerID   string   `json:"caller_id"`
	ListenerID string   `json:"listener_id"`
	CallType   CallType `json:"call_type"`
}

type StartCallResult struct {
	Call Call `json:"call"`

	// AffordableMinutes is how long the caller's balance lasts at the
	// current rate; it also bounds the busy window.
	AffordableMinutes int64 `json:"affordable_minutes"`
	RemainingCoins    int64 `json:"remaining_coins"`
}

// StartCall creates an ongoing call after verifying the caller can afford at
// least one minute and the listener is available. Both participants are
// marked busy until the affordable window runs out; the reconciliation sweep
// uses that window as the missed-termination signal.
func (s *Service) StartCall(ctx context.Context, req StartCallRequest) (StartCallResult, error) {
	if req.CallerID == "" || req.ListenerID == "" || !req.CallType.Valid() {
		return StartCallResult{}, ErrInvalidArgument
	}
	if req.CallerID == req.ListenerID {
		return StartCallResult{}, ErrSelfCallNotAllowed
	}

	now := s.clock().UTC()

	rate, err := s.rates.RateFor(ctx, string(req.CallType), now)
	if err != nil {
		return StartCallResult{}, err
	}

	w, err := s.ledger.BalanceOrZero(ctx, req.CallerID)
	if err != nil {
		return StartCallResult{}, err
	}
	if w.BalanceCoins < rate.MinimumCharge {
		return StartCallResult{}, ErrInsufficientCoins
	}
	affordable := w.BalanceCoins / rate.RatePerMinute

	if st, err := s.presence.Get(ctx, req.ListenerID); err == nil && st.IsBusy {
		return StartCallResult{}, ErrListenerBusy
	}

	busyFor := time.Duration(affordable) * time.Minute
	if s.acquireSlot != nil {
		ok, err := s.acquireSlot(ctx, req.ListenerID, busyFor)
		if err != nil {
			return StartCallResult{}, fmt.Errorf("acquire listener slot: %w", err)
		}
		if !ok {
			return StartCallResult{}, ErrListenerBusy
		}
	}

	c := Call{
		CallID:       uuid.NewString(),
		CallerID:     req.CallerID,
		ListenerID:   req.ListenerID,
		CallType:     req.CallType,
		Status:       CallStatusOngoing,
		StartTime:    now,
		LastBilledAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return StartCallResult{}, fmt.Errorf("create call: %w", err)
	}

	busyUntil := now.Add(busyFor)
	if err := s.presence.SetBothBusy(ctx, req.CallerID, req.ListenerID, true, &busyUntil); err != nil {
		// The call row exists; billing proceeds regardless. Log and go on.
		s.log.Error("busy set failed after call start", "call_id", c.CallID, "err", err)
	}

	if err := s.cache.SetOngoing(ctx, c, busyFor+10*time.Minute); err != nil {
		s.log.Warn("call cache write failed", "call_id", c.CallID, "err", err)
	}

	s.log.Info("call started",
		"call_id", c.CallID,
		"caller_id", c.CallerID,
		"listener_id", c.ListenerID,
		"call_type", string(c.CallType),
		"affordable_minutes", affordable,
	)
	return StartCallResult{
		Call:              c,
		AffordableMinutes: affordable,
		RemainingCoins:    w.BalanceCoins,
	}, nil
}

type EndCallResult struct {
	CallID          string         `json:"call_id"`
	Status          CallStatus     `json:"status"`
	DurationSeconds int            `json:"duration_seconds"`
	CoinsSpent      int64          `json:"coins_spent"`
	Result          FinalizeResult `json:"-"`
}

// EndCall settles a call on behalf of one of its participants. With
// per-minute metering the coins are already deducted; this only runs the
// terminal CAS with the current totals.
func (s *Service) EndCall(ctx context.Context, callID, requestedBy string) (EndCallResult, error) {
	if callID == "" || requestedBy == "" {
		return EndCallResult{}, ErrInvalidArgument
	}

	c, err := s.store.Get(ctx, callID)
	if err != nil {
		return EndCallResult{}, err
	}
	if c.CallerID != requestedBy && c.ListenerID != requestedBy {
		return EndCallResult{}, ErrNotParticipant
	}
	if c.Status.Terminal() {
		return EndCallResult{}, ErrCallAlreadyEnded
	}

	now := s.clock().UTC()
	duration := int(now.Sub(c.StartTime) / time.Second)
	if duration < 0 {
		duration = 0
	}

	res, err := s.finalizer.TryFinalize(ctx, FinalizeRequest{
		CallID:          callID,
		Reason:          EndReasonCompleted,
		CoinsSpent:      c.CoinsSpent,
		DurationSeconds: duration,
	})
	if err != nil {
		return EndCallResult{}, err
	}

	final, err := s.store.Get(ctx, callID)
	if err != nil {
		return EndCallResult{}, err
	}
	return EndCallResult{
		CallID:          final.CallID,
		Status:          final.Status,
		DurationSeconds: final.DurationSeconds,
		CoinsSpent:      final.CoinsSpent,
		Result:          res,
	}, nil
}

// Get returns one call record.
func (s *Service) Get(ctx context.Context, callID string) (Call, error) {
	if callID == "" {
		return Call{}, ErrInvalidArgument
	}
	return s.store.Get(ctx, callID)
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }
