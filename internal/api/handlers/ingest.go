package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bank-api/internal/domain"
	"bank-api/internal/pkg/idempotency"
	"bank-api/internal/pkg/logging"
	"bank-api/internal/pkg/telemetry"
	"bank-api/internal/worker"
)

type ingestRequest struct {
	Action          domain.CommandAction `json:"action" binding:"required"`
	InstanceAddress string               `json:"instance_address" binding:"required"`
	Source          string               `json:"source" binding:"required"`
	SourceIdempk    string               `json:"source_idempk" binding:"required"`
	UpdateSource    string               `json:"update_source"`
	UpdateIdempk    string               `json:"update_idempk"`
	Payload         json.RawMessage      `json:"payload" binding:"required"`
}

// MakeIngestHandler serves POST /v1/commands. mode=sync (the default)
// ingests the command and runs it through the dispatcher inline, claiming
// it first so the result reflects the same claim/dispatch/mark-outcome path
// the per-tenant scheduler uses. mode=enqueue only persists the command and
// returns 202, leaving execution to the scheduler's next tick.
func MakeIngestHandler(deps HandlerDependencies) gin.HandlerFunc {
	store := deps.GetStore()
	dispatcher := deps.GetDispatcher()
	cfg := deps.GetLedgerConfig()

	return func(c *gin.Context) {
		var req ingestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_request", "message": err.Error()})
			return
		}

		instance, err := store.GetInstanceByAddress(c.Request.Context(), req.InstanceAddress)
		if err != nil {
			status := httpStatusForErr(err)
			c.JSON(status, gin.H{"code": errorCode(status, err), "message": err.Error()})
			return
		}

		var updateSourcePtr, updateIdempkPtr *string
		if req.UpdateSource != "" {
			updateSourcePtr = &req.UpdateSource
		}
		if req.UpdateIdempk != "" {
			updateIdempkPtr = &req.UpdateIdempk
		}

		hash := idempotency.Fingerprint(
			[]byte(cfg.IdempotencySecret),
			string(req.Action), req.InstanceAddress, req.Source, req.SourceIdempk,
			req.UpdateSource, req.UpdateIdempk,
		)

		cmd := domain.Command{
			InstanceID:      instance.ID,
			Action:          req.Action,
			Source:          req.Source,
			SourceIdempk:    req.SourceIdempk,
			UpdateSource:    updateSourcePtr,
			UpdateIdempk:    updateIdempkPtr,
			Payload:         req.Payload,
			IdempotencyHash: hash,
		}

		mode := c.DefaultQuery("mode", "sync")

		ingested, err := store.IngestCommand(c.Request.Context(), cmd)
		if err != nil {
			var dup *domain.DuplicateCommand
			if errors.As(err, &dup) {
				telemetry.DuplicateCommandsTotal.WithLabelValues(string(req.Action)).Inc()
				c.JSON(http.StatusOK, gin.H{
					"command_id": dup.ExistingCommandID,
					"status":     "duplicate",
				})
				return
			}
			status := httpStatusForErr(err)
			c.JSON(status, gin.H{"code": errorCode(status, err), "message": err.Error()})
			return
		}
		telemetry.CommandsIngestedTotal.WithLabelValues(string(req.Action), mode).Inc()

		if mode == "enqueue" {
			c.JSON(http.StatusAccepted, gin.H{
				"command_id": ingested.ID.String(),
				"status":     string(domain.QueuePending),
			})
			return
		}

		claimed, item, ok, err := store.ClaimNext(c.Request.Context(), instance.ID, cfg.ProcessorName+"-sync")
		if err != nil || !ok {
			// The claim failed, or another processor (the monitor-driven
			// scheduler) won it first; the command is still durably enqueued,
			// so report it as accepted rather than erroring the request.
			c.JSON(http.StatusAccepted, gin.H{
				"command_id": ingested.ID.String(),
				"status":     string(domain.QueuePending),
			})
			return
		}
		if claimed.ID != ingested.ID {
			// An older queued command of this instance was claimed instead of
			// the one just ingested: run it to its outcome so it does not stay
			// in processing, and report this request's command as pending.
			worker.RunClaimed(c.Request.Context(), store, dispatcher, cfg, claimed, item)
			c.JSON(http.StatusAccepted, gin.H{
				"command_id": ingested.ID.String(),
				"status":     string(domain.QueuePending),
			})
			return
		}

		queueStatus, result, dispatchErr := worker.RunClaimed(c.Request.Context(), store, dispatcher, cfg, claimed, item)
		if dispatchErr != nil {
			logging.Warn("synchronous command projection failed", map[string]interface{}{
				"request_id": requestID(c),
				"command_id": claimed.ID.String(),
				"action":     string(claimed.Action),
				"error":      dispatchErr.Error(),
			})
			status := httpStatusForErr(dispatchErr)
			c.JSON(status, gin.H{
				"code":       errorCode(status, dispatchErr),
				"message":    dispatchErr.Error(),
				"command_id": claimed.ID.String(),
				"status":     string(queueStatus),
			})
			return
		}

		body := gin.H{
			"command_id": claimed.ID.String(),
			"status":     string(queueStatus),
		}
		if result.Transaction != nil {
			body["transaction"] = toTransactionSnapshot(*result.Transaction)
		}
		if result.Account != nil {
			body["account"] = toAccountSnapshot(*result.Account)
		}
		c.JSON(http.StatusOK, body)
	}
}
