package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"listenline/internal/calls"
	"listenline/internal/ledger"
	"listenline/internal/presence"
	"listenline/internal/reporting"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
//
// Identity comes from the X-User-Id header set by the auth gateway in front
// of this service; there is no credential handling here.
type Handlers struct {
	Calls     *calls.Service
	Ledger    *ledger.Service
	Presence  *presence.Service
	Reporting *reporting.Service
}

const userHeader = "X-User-Id"

func callerID(c *gin.Context) (string, bool) {
	id := c.GetHeader(userHeader)
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-User-Id required"})
		return "", false
	}
	return id, true
}

// --- Calls ---

type startCallRequest struct {
	ListenerID string `json:"listener_id"`
	CallType   string `json:"call_type"`
}

func (h Handlers) StartCall(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ListenerID == "" || req.CallType == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "listener_id, call_type required"})
		return
	}

	res, err := h.Calls.StartCall(c.Request.Context(), calls.StartCallRequest{
		CallerID:   userID,
		ListenerID: req.ListenerID,
		CallType:   calls.CallType(req.CallType),
	})
	if err != nil {
		switch {
		case errors.Is(err, calls.ErrInsufficientCoins):
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "insufficient coins"})
		case errors.Is(err, calls.ErrListenerBusy):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "listener busy"})
		case errors.Is(err, calls.ErrSelfCallNotAllowed), errors.Is(err, calls.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call start failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h Handlers) EndCall(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}

	res, err := h.Calls.EndCall(c.Request.Context(), callID, userID)
	if err != nil {
		switch {
		case errors.Is(err, calls.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		case errors.Is(err, calls.ErrNotParticipant):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		case errors.Is(err, calls.ErrCallAlreadyEnded):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already ended"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call end failed"})
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) GetCall(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	callID := c.Param("call_id")
	call, err := h.Calls.Get(c.Request.Context(), callID)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	if call.CallerID != userID && call.ListenerID != userID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}
	c.JSON(http.StatusOK, call)
}

// --- Presence ---

func (h Handlers) Heartbeat(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.Presence.Heartbeat(c.Request.Context(), userID); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "heartbeat failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handlers) GetPresence(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	st, err := h.Presence.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, presence.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "presence not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "presence lookup failed"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// --- Wallet ---

type rechargeRequest struct {
	Amount int64  `json:"amount"`
	Kind   string `json:"kind,omitempty"`
}

// Recharge credits purchased or bonus coins. The payment itself is handled
// upstream; this endpoint records the result in the ledger.
func (h Handlers) Recharge(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req rechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Amount <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	kind := ledger.TxKindPurchase
	if req.Kind != "" {
		kind = ledger.TxKind(req.Kind)
		if kind != ledger.TxKindPurchase && kind != ledger.TxKindBonus {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "kind must be purchase or bonus"})
			return
		}
	}

	wallet, tx, err := h.Ledger.ApplyDelta(c.Request.Context(), userID, req.Amount, kind, "")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "recharge failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": wallet, "transaction": tx})
}

func (h Handlers) GetBalance(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	wallet, err := h.Ledger.BalanceOrZero(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}
	c.JSON(http.StatusOK, wallet)
}

// --- Reporting ---

func (h Handlers) CallHistory(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	records, err := h.Reporting.CallHistory(c.Request.Context(), reporting.CallHistoryRequest{
		UserID: userID,
		Range:  rng,
		Limit:  limit,
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": records})
}

func (h Handlers) EarningsSummary(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}

	summary, err := h.Reporting.EarningsSummary(c.Request.Context(), reporting.EarningsSummaryRequest{
		ListenerID: userID,
		Range:      rng,
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "earnings lookup failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h Handlers) SpendSummary(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		return
	}

	summary, err := h.Reporting.SpendSummary(c.Request.Context(), reporting.SpendSummaryRequest{
		UserID: userID,
		Range:  rng,
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "spend lookup failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// parseRange reads from/to query params as RFC 3339 timestamps, defaulting
// to the trailing 30 days.
func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.AddDate(0, 0, -30), To: now}

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return reporting.TimeRange{}, false
		}
		rng.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return reporting.TimeRange{}, false
		}
		rng.To = t
	}
	return rng, true
}
