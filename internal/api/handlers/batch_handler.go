package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"freshchain-ledger-server/internal/ledger"
	"freshchain-ledger-server/internal/s3"

	"github.com/gin-gonic/gin"
)

type BatchHandler struct {
	Ledger *ledger.Ledger
	// S3Uploader may be nil; exports then answer 503.
	S3Uploader *s3.Uploader
}

type CreateBatchRequest struct {
	BatchID     uint64 `json:"batchId" binding:"required"`
	ProductName string `json:"productName" binding:"required"`
	Quantity    uint64 `json:"quantity" binding:"required"`
}

type AddSensorDataRequest struct {
	Temperature *int64 `json:"temperature" binding:"required,min=-10,max=40"`
	Humidity    *int64 `json:"humidity" binding:"required,min=0,max=40"`
	Location    string `json:"location" binding:"required"`
}

type TransferRequest struct {
	NewOwner string `json:"newOwner" binding:"required,eth_addr"`
}

type ArrivalRequest struct {
	PassedInspection *bool `json:"passedInspection" binding:"required"`
}

// CreateBatch handles the API endpoint for creating a new batch owned by the caller.
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	n, err := h.Ledger.CreateBatch(c.Request.Context(), caller, req.BatchID, req.ProductName, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "event": n})
}

func (h *BatchHandler) AddSensorData(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	var req AddSensorDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	n, err := h.Ledger.AddSensorData(c.Request.Context(), caller, batchID, *req.Temperature, *req.Humidity, req.Location)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "event": n})
}

func (h *BatchHandler) TransferOwnership(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	newOwner, err := ledger.ParseAddress(req.NewOwner)
	if err != nil {
		respondError(c, err)
		return
	}

	n, err := h.Ledger.TransferOwnership(c.Request.Context(), caller, batchID, newOwner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "event": n})
}

func (h *BatchHandler) MarkAsArrived(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	var req ArrivalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	n, err := h.Ledger.MarkAsArrived(c.Request.Context(), caller, batchID, *req.PassedInspection)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "event": n})
}

// GetBatch returns the batch record; unknown ids answer 200 with exists=false.
func (h *BatchHandler) GetBatch(c *gin.Context) {
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Ledger.GetBatch(batchID))
}

func (h *BatchHandler) GetBatchHistory(c *gin.Context) {
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Ledger.GetBatchHistory(batchID))
}

func (h *BatchHandler) GetCounts(c *gin.Context) {
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Ledger.GetCounts(batchID))
}

// HistoryExport is the document written to S3 by ExportHistory.
type HistoryExport struct {
	ExportedAt time.Time           `json:"exportedAt"`
	ExportedBy ledger.Address      `json:"exportedBy"`
	History    ledger.BatchHistory `json:"history"`
}

// ExportHistory stores a snapshot of the batch history in S3 and returns its URL.
func (h *BatchHandler) ExportHistory(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	if h.S3Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Export storage is not configured"})
		return
	}
	history := h.Ledger.GetBatchHistory(batchID)
	if !history.Batch.Exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch does not exist", "kind": "NOT_FOUND"})
		return
	}

	body, err := json.Marshal(HistoryExport{ExportedAt: time.Now().UTC(), ExportedBy: caller, History: history})
	if err != nil {
		respondError(c, err)
		return
	}
	key := s3.ExportKey(batchID)
	url, err := h.S3Uploader.Upload(c.Request.Context(), bytes.NewReader(body), key, "application/json")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "key": key, "url": url})
}
