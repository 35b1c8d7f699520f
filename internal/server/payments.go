package server

import (
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
)

// @Summary      Initiate Payment
// @Description  Charge a one-off payment through the single payment processor
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                       false  "Idempotency Key"
// @Param        request          body    ledgerdomain.PaymentRequest  true   "Payment Request"
// @Success      201  {object}  DataResponse
// @Router       /api/v1/payments [post]
func (s *Server) InitiatePayment(c *gin.Context) {
	var req ledgerdomain.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	key, err := idempotencyKeyFromHeader(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req.IdempotencyKey = key

	payment, err := s.ledgerSvc.InitiatePayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, payment)
}

func (s *Server) GetPayment(c *gin.Context) {
	payment, err := s.ledgerSvc.RetrievePayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, payment)
}

func (s *Server) UpdatePayment(c *gin.Context) {
	var req ledgerdomain.PaymentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	payment, err := s.ledgerSvc.UpdatePayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, payment)
}
