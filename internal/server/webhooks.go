package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paycore/internal/apperr"
	webhookdomain "github.com/railzwaylabs/paycore/internal/webhook/domain"
)

const maxWebhookBody = 1 << 20

// @Summary      Receive Processor Webhook
// @Description  Verify and apply a processor event. Duplicates and unmatched events are acknowledged.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        provider  path  string  true  "dwolla or stripe"
// @Success      200  {object}  DataResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /webhooks/{provider} [post]
func (s *Server) ReceiveWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, apperr.Invalid("body", "too large"))
			return
		}
		AbortWithError(c, invalidRequestError(err))
		return
	}

	res, err := s.webhookSvc.Ingest(c.Request.Context(), c.Param("provider"), payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, res)
}

// @Summary      Create Webhook Subscription
// @Description  Register a webhook endpoint at the processor. The signing secret is sealed before storage.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        request  body  webhookdomain.CreateRequest  true  "Subscription"
// @Success      201  {object}  DataResponse
// @Router       /api/v1/webhook-subscriptions [post]
func (s *Server) CreateWebhookSubscription(c *gin.Context) {
	var req webhookdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	if req.URL == "" && s.cfg.Server.PublicURL != "" {
		provider := req.Provider
		if provider == "" {
			provider = s.cfg.Payment.Provider
		}
		req.URL = s.cfg.Server.PublicURL + "/webhooks/" + provider
	}

	sub, err := s.webhookSvc.CreateSubscription(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, sub)
}

func (s *Server) ListWebhookSubscriptions(c *gin.Context) {
	items, err := s.webhookSvc.ListSubscriptions(c.Request.Context(), c.Query("provider"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

type setPausedRequest struct {
	Paused *bool `json:"paused" binding:"required"`
}

func (s *Server) SetWebhookSubscriptionPaused(c *gin.Context) {
	var req setPausedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	sub, err := s.webhookSvc.SetPaused(c.Request.Context(), c.Param("id"), *req.Paused)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

func (s *Server) DeleteWebhookSubscription(c *gin.Context) {
	if err := s.webhookSvc.DeleteSubscription(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListWebhookEvents(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.webhookSvc.ListEvents(c.Request.Context(), c.Query("provider"), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

func (s *Server) GetWebhookEventPayload(c *gin.Context) {
	payload, err := s.webhookSvc.EventPayload(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}
