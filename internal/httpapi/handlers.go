package httpapi

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"autodialer/internal/audit"
	"autodialer/internal/calls"
	"autodialer/internal/command"
	"autodialer/internal/dispatch"
	"autodialer/internal/numbers"
	"autodialer/internal/reconcile"
	"autodialer/internal/telephony"
	"autodialer/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	maxListLimit = 1000
	exportLimit  = 100000
)

type CommandRunner interface {
	Execute(ctx context.Context, prompt, script, ip string) (command.Result, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Numbers    numbers.Repository
	Importer   *numbers.Importer
	Calls      calls.Repository
	Dispatcher command.Dispatcher
	Fetcher    telephony.CallFetcher
	Reconciler telephony.StatusApplier
	Commands   CommandRunner
	Stats      command.StatsReporter
	Audit      *audit.Service
}

// --- Numbers ---

type importTextRequest struct {
	Numbers string `json:"numbers"`
}

type updateNumberRequest struct {
	Status string `json:"status"`
}

func (h Handlers) ListNumbers(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	rows, err := h.Numbers.List(c.Request.Context(), limit)
	if err != nil {
		h.storeError(c, "list numbers", err)
		return
	}
	counts, err := h.Numbers.Counts(c.Request.Context())
	if err != nil {
		h.storeError(c, "count numbers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"numbers": rows, "counts": counts})
}

// ImportNumbers accepts newline separated numbers pasted by the operator.
func (h Handlers) ImportNumbers(c *gin.Context) {
	var req importTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Importer.ImportText(c.Request.Context(), req.Numbers)
	if err != nil {
		h.storeError(c, "import numbers", err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeImport, IPAddress: c.ClientIP(), Message: "paste import"}, res)
	c.JSON(http.StatusOK, res)
}

// ImportNumbersCSV accepts a multipart upload in field csv_file with a phone_number column.
func (h Handlers) ImportNumbersCSV(c *gin.Context) {
	fh, err := c.FormFile("csv_file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "csv_file required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer f.Close()

	res, err := h.Importer.ImportCSV(c.Request.Context(), f)
	var parseErr *csv.ParseError
	switch {
	case errors.Is(err, numbers.ErrMissingCSVColumn), errors.As(err, &parseErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.storeError(c, "import csv", err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeImport, IPAddress: c.ClientIP(), Message: "csv import " + fh.Filename}, res)
	c.JSON(http.StatusOK, res)
}

func (h Handlers) UpdateNumber(c *gin.Context) {
	var req updateNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	n, err := h.Numbers.UpdateStatus(c.Request.Context(), c.Param("id"), numbers.Status(req.Status))
	switch {
	case errors.Is(err, numbers.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "number not found"})
		return
	case errors.Is(err, numbers.ErrInvalidStatus), errors.Is(err, numbers.ErrInvalidFormat):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.storeError(c, "update number", err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{
		Type:          audit.EventTypeNumberStatus,
		IPAddress:     c.ClientIP(),
		PhoneNumberID: n.ID,
		Message:       "status " + string(n.Status),
	}, nil)
	c.JSON(http.StatusOK, n)
}

func (h Handlers) DeleteNumber(c *gin.Context) {
	id := c.Param("id")
	err := h.Numbers.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, numbers.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "number not found"})
		return
	case err != nil:
		h.storeError(c, "delete number", err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeNumberDeleted, IPAddress: c.ClientIP(), PhoneNumberID: id}, nil)
	c.Status(http.StatusNoContent)
}

// --- Calls ---

type startCallsRequest struct {
	PhoneNumberID string `json:"phone_number_id"`
	VoiceScript   string `json:"voice_script"`
}

func (h Handlers) ListCalls(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	f := calls.ListFilter{Status: calls.CallStatus(c.Query("status")), Limit: limit}
	if f.Status != "" && !f.Status.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	rows, err := h.Calls.List(c.Request.Context(), f)
	if err != nil {
		h.storeError(c, "list calls", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

func (h Handlers) GetCall(c *gin.Context) {
	call, err := h.Calls.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	case err != nil:
		h.storeError(c, "get call", err)
		return
	}
	c.JSON(http.StatusOK, call)
}

// StartCalls dials one number when phone_number_id is set, otherwise every
// active number. The batch keeps running if the client goes away.
func (h Handlers) StartCalls(c *gin.Context) {
	var req startCallsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	ctx := context.WithoutCancel(c.Request.Context())

	if req.PhoneNumberID != "" {
		n, err := h.Numbers.FindByID(ctx, req.PhoneNumberID)
		switch {
		case errors.Is(err, numbers.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "number not found"})
			return
		case err != nil:
			h.storeError(c, "find number", err)
			return
		}
		out, err := h.Dispatcher.DispatchOne(ctx, n, req.VoiceScript)
		if err != nil {
			h.storeError(c, "dispatch call", err)
			return
		}
		h.Audit.Record(ctx, audit.Event{Type: audit.EventTypeCallPlaced, IPAddress: c.ClientIP(), PhoneNumberID: n.ID, CallID: out.CallID}, out)
		if !out.Success {
			c.JSON(http.StatusUnprocessableEntity, out)
			return
		}
		c.JSON(http.StatusCreated, out)
		return
	}

	targets, err := h.Numbers.ListActive(ctx)
	if err != nil {
		h.storeError(c, "list active numbers", err)
		return
	}
	out, err := h.Dispatcher.DispatchBatch(ctx, targets, req.VoiceScript)
	switch {
	case errors.Is(err, dispatch.ErrNoTargets):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "no targets available"})
		return
	case err != nil:
		h.storeError(c, "dispatch batch", err)
		return
	}
	h.Audit.Record(ctx, audit.Event{
		Type:      audit.EventTypeBatch,
		IPAddress: c.ClientIP(),
		Message:   fmt.Sprintf("%d of %d dialed", out.SuccessCount, out.Attempted),
	}, out)
	c.JSON(http.StatusOK, gin.H{"batch": out, "partial": out.Partial()})
}

func (h Handlers) StopCalls(c *gin.Context) {
	n, err := h.Dispatcher.StopAll(c.Request.Context())
	if err != nil {
		h.storeError(c, "stop calls", err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeStop, IPAddress: c.ClientIP(), Message: fmt.Sprintf("%d stopped", n)}, nil)
	c.JSON(http.StatusOK, gin.H{"stopped": n})
}

func (h Handlers) ExportCalls(c *gin.Context) {
	rows, err := h.Calls.List(c.Request.Context(), calls.ListFilter{Limit: exportLimit})
	if err != nil {
		h.storeError(c, "export calls", err)
		return
	}
	name := fmt.Sprintf("calls-%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Status(http.StatusOK)
	if err := calls.WriteCSV(c.Writer, rows); err != nil {
		logger.FromGin(c).Error("write csv export", "err", err)
	}
}

// SyncCall pulls the provider's view of a call and feeds it to the reconciler.
func (h Handlers) SyncCall(c *gin.Context) {
	ctx := c.Request.Context()
	call, err := h.Calls.Get(ctx, c.Param("id"))
	switch {
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	case err != nil:
		h.storeError(c, "get call", err)
		return
	}
	if call.ProviderCallID == "" {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call has no provider id"})
		return
	}

	details, err := h.Fetcher.FetchCall(ctx, call.ProviderCallID)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, telephony.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		logger.FromGin(c).Warn("fetch provider call failed", "call_sid", call.ProviderCallID, "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Reconciler.ApplyStatusEvent(ctx, reconcile.StatusEvent{
		ProviderCallID:  details.ProviderCallID,
		StatusCode:      details.Status,
		DurationSeconds: details.DurationSeconds,
	})
	if err != nil {
		h.storeError(c, "reconcile call", err)
		return
	}
	updated, err := h.Calls.Get(ctx, call.ID)
	if err != nil {
		h.storeError(c, "get call", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "provider": details, "call": updated})
}

// --- Commands & stats ---

type commandRequest struct {
	Prompt      string `json:"prompt"`
	VoiceScript string `json:"voice_script"`
}

func (h Handlers) RunCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Prompt == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "prompt required"})
		return
	}
	res, err := h.Commands.Execute(context.WithoutCancel(c.Request.Context()), req.Prompt, req.VoiceScript, c.ClientIP())
	if err != nil {
		h.storeError(c, "run command", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) GetStats(c *gin.Context) {
	s, err := h.Stats.Stats(c.Request.Context())
	if err != nil {
		h.storeError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) storeError(c *gin.Context, op string, err error) {
	logger.FromGin(c).Error(op+" failed", "err", err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": op + " failed"})
}

func parseLimit(c *gin.Context) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return 100, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}
