package reporting

import (
	"context"
	"errors"
	"time"

	"listenline/internal/calls"
	"listenline/internal/ledger"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

const defaultHistoryLimit = 50

// Repository abstracts data access for reporting. Implementations read only
// immutable sources: finished call rows and the coin transaction log.
type Repository interface {
	ListCallsByParticipant(ctx context.Context, userID string, from, to time.Time, limit int) ([]calls.Call, error)
	ListCallsByListener(ctx context.Context, listenerID string, from, to time.Time) ([]calls.Call, error)
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]ledger.CoinTransaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallHistory(ctx context.Context, req CallHistoryRequest) ([]CallRecord, error) {
	if req.UserID == "" {
		return nil, ErrInvalidRequest
	}
	if err := validRange(req.Range); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.repo.ListCallsByParticipant(ctx, req.UserID, req.Range.From, req.Range.To, limit)
	if err != nil {
		return nil, err
	}

	out := make([]CallRecord, 0, len(rows))
	for _, c := range rows {
		out = append(out, CallRecord{
			CallID:          c.CallID,
			CallerID:        c.CallerID,
			ListenerID:      c.ListenerID,
			CallType:        string(c.CallType),
			Status:          string(c.Status),
			EndReason:       string(c.EndReason),
			StartTime:       c.StartTime,
			EndTime:         c.EndTime,
			DurationSeconds: c.DurationSeconds,
			CoinsSpent:      c.CoinsSpent,
		})
	}
	return out, nil
}

func (s *Service) EarningsSummary(ctx context.Context, req EarningsSummaryRequest) (EarningsSummary, error) {
	if req.ListenerID == "" {
		return EarningsSummary{}, ErrInvalidRequest
	}
	if err := validRange(req.Range); err != nil {
		return EarningsSummary{}, err
	}

	rows, err := s.repo.ListCallsByListener(ctx, req.ListenerID, req.Range.From, req.Range.To)
	if err != nil {
		return EarningsSummary{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, req.ListenerID, req.Range.From, req.Range.To)
	if err != nil {
		return EarningsSummary{}, err
	}

	out := EarningsSummary{ListenerID: req.ListenerID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusDropped:
			out.DroppedCalls++
		case calls.CallStatusOngoing:
			// still metering; excluded from terminal counts
		}
	}
	for _, tx := range txs {
		if tx.Kind == ledger.TxKindEarn {
			out.CoinsEarned += tx.Amount
		}
	}
	return out, nil
}

func (s *Service) SpendSummary(ctx context.Context, req SpendSummaryRequest) (SpendSummary, error) {
	if req.UserID == "" {
		return SpendSummary{}, ErrInvalidRequest
	}
	if err := validRange(req.Range); err != nil {
		return SpendSummary{}, err
	}

	txs, err := s.repo.ListTransactions(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return SpendSummary{}, err
	}

	out := SpendSummary{UserID: req.UserID}
	for _, tx := range txs {
		out.NetDelta += tx.Amount
		switch tx.Kind {
		case ledger.TxKindPurchase, ledger.TxKindBonus:
			out.CoinsPurchased += tx.Amount
		case ledger.TxKindSpend:
			out.CoinsSpent += -tx.Amount
		case ledger.TxKindEarn:
			out.CoinsEarned += tx.Amount
		case ledger.TxKindWithdrawal:
			// already reflected in NetDelta
		}
	}
	return out, nil
}

func validRange(r TimeRange) error {
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return ErrInvalidRequest
	}
	return nil
}
