package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
	"github.com/railzwaylabs/paycore/internal/config"
	feedomain "github.com/railzwaylabs/paycore/internal/fee/domain"
	fundingdomain "github.com/railzwaylabs/paycore/internal/fundingsource/domain"
	installmentdomain "github.com/railzwaylabs/paycore/internal/installment/domain"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
	plandomain "github.com/railzwaylabs/paycore/internal/plan/domain"
	subscriptiondomain "github.com/railzwaylabs/paycore/internal/subscription/domain"
	webhookdomain "github.com/railzwaylabs/paycore/internal/webhook/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	DB     *gorm.DB
	Redis  *redis.Client `optional:"true"`

	Identities     identitydomain.Service
	FundingSources fundingdomain.Service
	Ledger         ledgerdomain.Service
	Fees           feedomain.Service
	Plans          plandomain.Service
	Subscriptions  subscriptiondomain.Service
	Installments   installmentdomain.Service
	Webhooks       webhookdomain.Service
}

type Server struct {
	cfg    config.Config
	log    *zap.Logger
	db     *gorm.DB
	redis  *redis.Client
	engine *gin.Engine

	identitySvc     identitydomain.Service
	fundingSvc      fundingdomain.Service
	ledgerSvc       ledgerdomain.Service
	feeSvc          feedomain.Service
	planSvc         plandomain.Service
	subscriptionSvc subscriptiondomain.Service
	installmentSvc  installmentdomain.Service
	webhookSvc      webhookdomain.Service
}

func New(p Params) *Server {
	if p.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:             p.Config,
		log:             p.Log.Named("server"),
		db:              p.DB,
		redis:           p.Redis,
		identitySvc:     p.Identities,
		fundingSvc:      p.FundingSources,
		ledgerSvc:       p.Ledger,
		feeSvc:          p.Fees,
		planSvc:         p.Plans,
		subscriptionSvc: p.Subscriptions,
		installmentSvc:  p.Installments,
		webhookSvc:      p.Webhooks,
	}

	engine := gin.New()
	engine.Use(s.RequestID(), s.AccessLog(), s.Recovery())
	engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, errRouteNotFound)
	})
	s.engine = engine
	s.RegisterRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) RegisterRoutes() {
	s.engine.GET("/health", s.Health)
	s.engine.GET("/ready", s.Readiness)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.POST("/webhooks/:provider", s.ReceiveWebhook)

	api := s.engine.Group("/api/v1")

	identities := api.Group("/identities")
	identities.POST("/resolve", s.ResolveIdentity)
	identities.GET("/:id", s.GetIdentity)
	identities.PATCH("/:id/profile", s.UpdateIdentityProfile)
	identities.POST("/:id/default", s.SetDefaultIdentity)
	identities.POST("/:id/offboard", s.OffboardIdentity)
	identities.GET("/:id/funding-sources", s.ListFundingSources)
	identities.GET("/:id/transfers", s.ListCustomerTransfers)

	parties := api.Group("/parties/:party_id")
	parties.GET("/identities", s.ListPartyIdentities)
	parties.GET("/identities/default", s.GetDefaultIdentity)

	funding := api.Group("/funding-sources")
	funding.POST("", s.CreateFundingSource)
	funding.GET("/:id", s.GetFundingSource)
	funding.PATCH("/:id", s.UpdateFundingSource)
	funding.POST("/:id/microdeposits", s.VerifyMicrodeposit)
	funding.GET("/:id/balance", s.GetFundingSourceBalance)
	funding.POST("/:id/refresh", s.RefreshFundingSource)

	transfers := api.Group("/transfers")
	transfers.POST("", s.InitiateTransfer)
	transfers.GET("", s.ListTransfers)
	transfers.GET("/:id", s.GetTransfer)
	transfers.POST("/:id/cancel", s.CancelTransfer)
	transfers.GET("/:id/fees", s.ListTransferFees)
	transfers.POST("/:id/fees/sync", s.SyncTransferFees)

	api.GET("/descriptors", s.ListDescriptors)
	api.PUT("/descriptors", s.UpsertDescriptor)

	fees := api.Group("/fees")
	fees.POST("/sync", s.SyncRecentFees)
	fees.GET("/profiles", s.ListFeeProfiles)
	fees.POST("/profiles", s.CreateFeeProfile)
	fees.PATCH("/profiles/:id", s.SetFeeProfileEnabled)

	plans := api.Group("/plans")
	plans.POST("", s.CreatePlan)
	plans.GET("", s.ListPlans)
	plans.GET("/:id", s.GetPlan)
	plans.PATCH("/:id", s.UpdatePlan)

	subscriptions := api.Group("/subscriptions")
	subscriptions.POST("", s.CreateSubscription)
	subscriptions.POST("/schedules", s.CreateSubscriptionSchedule)
	subscriptions.GET("", s.ListSubscriptions)
	subscriptions.GET("/:id", s.GetSubscription)
	subscriptions.POST("/:id/activate", s.ActivateSubscription)
	subscriptions.POST("/:id/cancel", s.CancelSubscription)
	subscriptions.POST("/:id/cancel-schedule", s.CancelScheduledSubscription)
	subscriptions.PUT("/:id/funding-sources", s.SetSubscriptionFundingSources)
	subscriptions.GET("/:id/installments", s.ListSubscriptionInstallments)
	subscriptions.GET("/:id/transactions", s.ListSubscriptionTransactions)
	subscriptions.GET("/:id/balance", s.GetSubscriptionBalance)

	installments := api.Group("/installments")
	installments.GET("/:id", s.GetInstallment)
	installments.POST("/:id/charge", s.ChargeInstallment)
	installments.POST("/:id/settle", s.SettleInstallment)
	installments.POST("/:id/notify", s.NotifyInstallment)

	payments := api.Group("/payments")
	payments.POST("", s.InitiatePayment)
	payments.GET("/:id", s.GetPayment)
	payments.PATCH("/:id", s.UpdatePayment)

	webhooks := api.Group("/webhook-subscriptions")
	webhooks.POST("", s.CreateWebhookSubscription)
	webhooks.GET("", s.ListWebhookSubscriptions)
	webhooks.PATCH("/:id", s.SetWebhookSubscriptionPaused)
	webhooks.DELETE("/:id", s.DeleteWebhookSubscription)

	events := api.Group("/webhook-events")
	events.GET("", s.ListWebhookEvents)
	events.GET("/:id/payload", s.GetWebhookEventPayload)
}
