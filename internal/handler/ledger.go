package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/hashledger/internal/hashledger"
	"go.uber.org/zap"
)

// LedgerHandler exposes HTTP endpoints for inspecting a hash ledger.
type LedgerHandler struct {
	ledger          *hashledger.Ledger
	logger          *zap.Logger
	allowTamper     bool
	recoveryTimeout time.Duration
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger *hashledger.Ledger, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger, recoveryTimeout: 30 * time.Second}
}

// SetAllowTamper enables PUT /ledger/entries/:idx/payload, which overwrites a
// payload without updating its commitment. Only for demonstrations.
func (h *LedgerHandler) SetAllowTamper(allow bool) { h.allowTamper = allow }

// SetRecoveryTimeout bounds how long a single recovery request may search.
func (h *LedgerHandler) SetRecoveryTimeout(d time.Duration) { h.recoveryTimeout = d }

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/entries", h.ListEntries)
		l.POST("/entries", h.AppendEntry)
		l.GET("/entries/:idx", h.GetEntry)
		l.POST("/entries/:idx/recover", h.Recover)
		if h.allowTamper {
			l.PUT("/entries/:idx/payload", h.Tamper)
		}
	}
}

type payloadRequest struct {
	Payload []int `json:"payload" binding:"required"`
}

// Overview handles GET /ledger — returns the chain length and current root.
func (h *LedgerHandler) Overview(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"id":        h.ledger.ID().String(),
		"algorithm": h.ledger.Algorithm().String(),
		"entries":   h.ledger.Len(),
		"root":      h.ledger.Root(),
	})
}

// Verify handles GET /ledger/verify — recomputes the chain and reports the
// first divergence, if any.
func (h *LedgerHandler) Verify(c *gin.Context) {
	if h.ledger.Verify() {
		c.JSON(http.StatusOK, gin.H{"valid": true})
		return
	}

	resp := gin.H{"valid": false}
	if d, ok := h.ledger.LocateDivergence(); ok {
		h.logger.Warn("ledger integrity check failed", zap.Int("position", d.Position))
		resp["divergence"] = gin.H{
			"position": d.Position,
			"trusted":  d.Trusted,
			"actual":   d.Actual,
			"payload":  d.Payload,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ListEntries handles GET /ledger/entries — returns every record in chain order.
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": h.ledger.Entries()})
}

// AppendEntry handles POST /ledger/entries — appends a payload.
func (h *LedgerHandler) AppendEntry(c *gin.Context) {
	var req payloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"payload\": [int, ...]}"})
		return
	}

	c.JSON(http.StatusCreated, h.ledger.AppendEntry(req.Payload))
}

// GetEntry handles GET /ledger/entries/:idx — returns a single record.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	idx, ok := parseIdx(c)
	if !ok {
		return
	}

	entry, err := h.ledger.EntryAt(idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Recover handles POST /ledger/entries/:idx/recover — searches for the
// ordering of the record's payload that matches its trusted commitment.
// With ?repair=true the recovered payload is written back.
func (h *LedgerHandler) Recover(c *gin.Context) {
	idx, ok := parseIdx(c)
	if !ok {
		return
	}
	if _, err := h.ledger.Get(idx); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.recoveryTimeout)
	defer cancel()

	repair := c.Query("repair") == "true"
	var (
		payload []int
		err     error
	)
	if repair {
		payload, err = h.ledger.Repair(ctx, idx)
	} else {
		payload, err = h.ledger.RecoverAt(ctx, idx)
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "recovered", "payload": payload, "repaired": repair})
	case errors.Is(err, hashledger.ErrRecoveryFailed):
		c.JSON(http.StatusOK, gin.H{"status": "failed", "error": err.Error()})
	case errors.Is(err, hashledger.ErrRecoveryInconclusive):
		c.JSON(http.StatusOK, gin.H{"status": "inconclusive", "error": err.Error()})
	case errors.Is(err, hashledger.ErrPayloadChanged):
		c.JSON(http.StatusConflict, gin.H{"status": "conflict", "error": err.Error()})
	default:
		h.logger.Error("ledger recovery", zap.Int("position", idx), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recovery failed unexpectedly"})
	}
}

// Tamper handles PUT /ledger/entries/:idx/payload — overwrites a payload
// without recomputing its commitment.
func (h *LedgerHandler) Tamper(c *gin.Context) {
	idx, ok := parseIdx(c)
	if !ok {
		return
	}
	var req payloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"payload\": [int, ...]}"})
		return
	}

	entry, err := h.ledger.Overwrite(idx, req.Payload)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func parseIdx(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return 0, false
	}
	return idx, true
}
