package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	feedomain "github.com/railzwaylabs/paycore/internal/fee/domain"
	ledgerdomain "github.com/railzwaylabs/paycore/internal/ledger/domain"
)

// @Summary      Initiate Transfer
// @Description  Move money between two funding sources. The correlation id, or the Idempotency-Key header when it is empty, makes the call idempotent.
// @Tags         transfers
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                              false  "Idempotency Key"
// @Param        request          body    ledgerdomain.TransferRequest  true   "Transfer Request"
// @Success      201  {object}  DataResponse
// @Router       /api/v1/transfers [post]
func (s *Server) InitiateTransfer(c *gin.Context) {
	var req ledgerdomain.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	if req.CorrelationID == "" {
		key, err := idempotencyKeyFromHeader(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.CorrelationID = key
	}

	txn, err := s.ledgerSvc.InitiateTransfer(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, txn)
}

// @Summary      List Transfers
// @Tags         transfers
// @Produce      json
// @Param        provider                 query  string  false  "Provider"
// @Param        source_identity_id       query  string  false  "Source identity"
// @Param        destination_identity_id  query  string  false  "Destination identity"
// @Param        status                   query  string  false  "Status"
// @Param        subscription_id          query  string  false  "Subscription"
// @Param        installment_id           query  string  false  "Installment"
// @Param        type                     query  string  false  "Payment type"
// @Param        limit                    query  int     false  "Limit"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/transfers [get]
func (s *Server) ListTransfers(c *gin.Context) {
	var filter ledgerdomain.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	items, err := s.ledgerSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

// GetTransfer reads the local record, or the processor's view with
// ?refresh=true.
func (s *Server) GetTransfer(c *gin.Context) {
	var (
		txn *ledgerdomain.Transaction
		err error
	)
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		txn, err = s.ledgerSvc.RetrieveTransfer(c.Request.Context(), c.Param("id"))
	} else {
		txn, err = s.ledgerSvc.Get(c.Request.Context(), c.Param("id"))
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, txn)
}

func (s *Server) CancelTransfer(c *gin.Context) {
	txn, err := s.ledgerSvc.CancelTransfer(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, txn)
}

func (s *Server) ListTransferFees(c *gin.Context) {
	logs, err := s.feeSvc.ListLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, logs)
}

func (s *Server) SyncTransferFees(c *gin.Context) {
	res, err := s.feeSvc.SyncFeesForTransfer(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, res)
}

func (s *Server) ListDescriptors(c *gin.Context) {
	items, err := s.ledgerSvc.ListDescriptors(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

// @Summary      Set Payment Descriptor
// @Description  Set the statement descriptor sent with transfers of a payment type
// @Tags         transfers
// @Accept       json
// @Produce      json
// @Param        request  body  ledgerdomain.DescriptorRequest  true  "Descriptor"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/descriptors [put]
func (s *Server) UpsertDescriptor(c *gin.Context) {
	var req ledgerdomain.DescriptorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	descriptor, err := s.ledgerSvc.UpsertDescriptor(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, descriptor)
}

func (s *Server) SyncRecentFees(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	res, err := s.feeSvc.SyncRecent(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, res)
}

func (s *Server) ListFeeProfiles(c *gin.Context) {
	items, err := s.feeSvc.ListProfiles(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

func (s *Server) CreateFeeProfile(c *gin.Context) {
	var req feedomain.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	profile, err := s.feeSvc.CreateProfile(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, profile)
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) SetFeeProfileEnabled(c *gin.Context) {
	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	profile, err := s.feeSvc.SetProfileEnabled(c.Request.Context(), c.Param("id"), *req.Enabled)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, profile)
}
