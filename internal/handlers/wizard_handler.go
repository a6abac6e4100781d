package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
	"github.com/akylbek/payment-system/mandate-console/internal/service"
)

type WizardHandler struct {
	manager *service.WizardManager
}

func NewWizardHandler(manager *service.WizardManager) *WizardHandler {
	return &WizardHandler{manager: manager}
}

type phoneRequest struct {
	Phone string `json:"phone"`
	// Immediate skips the debounce and waits for the lookup result.
	Immediate bool `json:"immediate"`
}

type otpRequest struct {
	Code string `json:"code" binding:"required"`
}

type paymentRequest struct {
	Reference string `json:"reference" binding:"required"`
}

func (h *WizardHandler) wizard(c *gin.Context) (*service.Wizard, bool) {
	w, err := h.manager.Get(sessionFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return nil, false
	}
	return w, true
}

func (h *WizardHandler) Create(c *gin.Context) {
	w, err := h.manager.Create(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, w.Snapshot())
}

func (h *WizardHandler) Get(c *gin.Context) {
	w, ok := h.wizard(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w.Snapshot())
}

// GetJournal returns the persisted stage history of a session.
func (h *WizardHandler) GetJournal(c *gin.Context) {
	sessionID := c.Param("id")

	info, err := h.manager.Journal(c.Request.Context(), sessionFrom(c), sessionID)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":      sessionID,
		"stage":           info.Stage,
		"previous_stage":  info.PreviousStage,
		"subscription_id": info.SubscriptionID,
		"payment_id":      info.PaymentID,
		"created_at":      info.CreatedAt,
		"updated_at":      info.UpdatedAt,
	})
}

func (h *WizardHandler) Discard(c *gin.Context) {
	if err := h.manager.Discard(sessionFrom(c), c.Param("id")); err != nil {
		respondError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *WizardHandler) Reset(c *gin.Context) {
	w, ok := h.wizard(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w.Reset(c.Request.Context()))
}

func (h *WizardHandler) EnterPhone(c *gin.Context) {
	w, ok := h.wizard(c)
	if !ok {
		return
	}
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.Immediate {
		if _, err := w.LookupCustomer(c.Request.Context(), req.Phone); err != nil {
			respondError(c, err, gin.H{"wizard": w.Snapshot()})
			return
		}
		c.JSON(http.StatusOK, w.Snapshot())
		return
	}

	snap, err := w.EnterPhone(req.Phone)
	if err != nil {
		respondError(c, err, gin.H{"wizard": snap})
		return
	}
	status := http.StatusOK
	if snap.LookupPending {
		status = http.StatusAccepted
	}
	c.JSON(status, snap)
}

func (h *WizardHandler) CreateMandate(c *gin.Context) {
	w, ok := h.wizard(c)
	if !ok {
		return
	}
	var fields models.MandateFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if _, err := w.CreateMandate(c.Request.Context(), fields); err != nil {
		respondError(c, err, gin.H{"wizard": w.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, w.Snapshot())
}

func (h *WizardHandler) AuthorizeOTP(c *gin.Context) {
	w, ok := h.wizard(c)
	if !ok {
		return
	}
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &models.ValidationError{Field: "otp", Message: "OTP code is required"}, nil)
		return
	}
	if err := w.AuthorizeOTP(c.Request.Context(), req.Code); err != nil {
		respondError(c, err, gin.H{"wizard": w.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, w.Snapshot())
}

func (h *WizardHandler) ResendOTP(c *gin.Context) {
	w, ok := h.wizard(c)
	if !ok {
		return
	}
	if _, err := w.ResendOTP(c.Request.Context()); err != nil {
		respondError(c, err, gin.H{"wizard": w.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, w.Snapshot())
}

func (h *WizardHandler) RequestFirstPayment(c *gin.Context) {
	w, ok := h.wizard(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &models.ValidationError{Field: "reference", Message: "reference is required"}, nil)
		return
	}
	if _, err := w.RequestFirstPayment(c.Request.Context(), req.Reference); err != nil {
		respondError(c, err, gin.H{"wizard": w.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, w.Snapshot())
}

func (h *WizardHandler) RefreshSettlement(c *gin.Context) {
	w, ok := h.wizard(c)
	if !ok {
		return
	}
	if _, err := w.RefreshSettlement(c.Request.Context()); err != nil {
		respondError(c, err, gin.H{"wizard": w.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, w.Snapshot())
}
