package server

import (
	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/railzwaylabs/paycore/internal/subscription/domain"
)

// @Summary      Create Subscription
// @Description  Create a subscription and its installment schedule
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                            false  "Idempotency Key"
// @Param        request          body    subscriptiondomain.CreateRequest  true   "Create Subscription Request"
// @Success      201  {object}  DataResponse
// @Router       /api/v1/subscriptions [post]
func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateRequest
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

	sub, err := s.subscriptionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, sub)
}

// @Summary      Create Subscription Schedule
// @Description  Create a subscription that starts at the processor on a future date
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                                    false  "Idempotency Key"
// @Param        request          body    subscriptiondomain.CreateScheduleRequest  true   "Create Schedule Request"
// @Success      201  {object}  DataResponse
// @Router       /api/v1/subscriptions/schedules [post]
func (s *Server) CreateSubscriptionSchedule(c *gin.Context) {
	var req subscriptiondomain.CreateScheduleRequest
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

	sub, err := s.subscriptionSvc.CreateSchedule(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, sub)
}

// @Summary      List Subscriptions
// @Tags         subscriptions
// @Produce      json
// @Param        payer_identity_id     query  string  false  "Payer identity"
// @Param        receiver_identity_id  query  string  false  "Receiver identity"
// @Param        status                query  string  false  "created, active or cancelled"
// @Param        limit                 query  int     false  "Limit"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/subscriptions [get]
func (s *Server) ListSubscriptions(c *gin.Context) {
	var filter subscriptiondomain.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	items, err := s.subscriptionSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

func (s *Server) GetSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

func (s *Server) ActivateSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

func (s *Server) CancelScheduledSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.CancelScheduled(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

func (s *Server) SetSubscriptionFundingSources(c *gin.Context) {
	var req subscriptiondomain.FundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	sub, err := s.subscriptionSvc.SetFundingSources(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

func (s *Server) ListSubscriptionInstallments(c *gin.Context) {
	items, err := s.subscriptionSvc.ListInstallments(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

func (s *Server) ListSubscriptionTransactions(c *gin.Context) {
	items, err := s.subscriptionSvc.ListTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

// @Summary      Payable Balance
// @Description  Remaining amount owed: unpaid installments times the plan cost
// @Tags         subscriptions
// @Produce      json
// @Param        id  path  string  true  "Subscription ID"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/subscriptions/{id}/balance [get]
func (s *Server) GetSubscriptionBalance(c *gin.Context) {
	balance, err := s.subscriptionSvc.PayableBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, balance)
}
