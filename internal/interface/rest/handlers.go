package restservice

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/vault-network/vault/internal/core/application"
	"github.com/vault-network/vault/internal/core/domain"
)

type amountRequest struct {
	Amount  uint64  `json:"amount" binding:"required"`
	FeeRate float64 `json:"feeRate"`
}

type amountsRequest struct {
	Amounts []uint64 `json:"amounts" binding:"required"`
	FeeRate float64  `json:"feeRate"`
}

type startDepositRequest struct {
	Depositor string   `json:"depositor" binding:"required"`
	Amounts   []uint64 `json:"amounts" binding:"required"`
	FeeRate   float64  `json:"feeRate"`
}

type handler struct {
	appSvc application.Service
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) getInfo(c *gin.Context) {
	info, err := h.appSvc.GetInfo(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"network":             info.Network,
		"address":             info.Address,
		"publicKey":           info.PublicKey,
		"vaultProvider":       info.VaultProvider,
		"vaultProviderPubkey": info.VaultProviderPubkey,
		"vaultKeepers":        info.VaultKeepers,
		"feeRates":            info.FeeRates,
	})
}

func (h *handler) getFeeRates(c *gin.Context) {
	schedule, err := h.appSvc.GetFeeRates(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func (h *handler) estimatePeginFee(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	fee, err := h.appSvc.EstimatePeginFee(c.Request.Context(), req.Amount, req.FeeRate)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee": fee})
}

func (h *handler) planAllocation(c *gin.Context) {
	var req amountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	plan, err := h.appSvc.PlanAllocation(c.Request.Context(), req.Amounts, req.FeeRate)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *handler) buildPeginTx(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	peginTx, err := h.appSvc.BuildPeginTx(c.Request.Context(), req.Amount, req.FeeRate)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, peginTx)
}

func (h *handler) startDeposit(c *gin.Context) {
	var req startDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.appSvc.StartDeposit(c.Request.Context(), application.DepositRequest{
		Depositor: req.Depositor,
		Amounts:   req.Amounts,
		FeeRate:   req.FeeRate,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *handler) listDeposits(c *gin.Context) {
	depositor := c.Query("depositor")
	if len(depositor) <= 0 {
		badRequest(c, fmt.Errorf("missing depositor"))
		return
	}
	deposits, err := h.appSvc.ListDeposits(c.Request.Context(), depositor)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposits": deposits})
}

func (h *handler) getDeposit(c *gin.Context) {
	deposit, err := h.appSvc.GetDeposit(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, deposit)
}

// streamDeposit pushes the deposit states as server-sent events until the
// deposit is closed or completed, or the client goes away.
func (h *handler) streamDeposit(c *gin.Context) {
	ctx := c.Request.Context()
	ch, unsubscribe, err := h.appSvc.Subscribe(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	defer unsubscribe()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case state, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("deposit", state)
			return !state.Completed
		}
	})
}

func (h *handler) retryDeposit(c *gin.Context) {
	if err := h.appSvc.RetryDeposit(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *handler) getArtifacts(c *gin.Context) {
	id := c.Param("id")
	artifacts, err := h.appSvc.GetArtifacts(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=deposit-%s.json", id))
	c.Data(http.StatusOK, "application/json", artifacts)
}

func (h *handler) confirmArtifacts(c *gin.Context) {
	if err := h.appSvc.ConfirmArtifacts(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *handler) closeDeposit(c *gin.Context) {
	if err := h.appSvc.CloseDeposit(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func fail(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, domain.ErrDepositNotFound) {
		status = http.StatusNotFound
	}
	log.WithError(err).Debugf("%s %s failed", c.Request.Method, c.FullPath())
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
