package server

import (
	"github.com/gin-gonic/gin"
	fundingdomain "github.com/railzwaylabs/paycore/internal/fundingsource/domain"
)

// @Summary      Link Funding Source
// @Description  Attach a bank account or card to a billing identity
// @Tags         funding-sources
// @Accept       json
// @Produce      json
// @Param        request  body  fundingdomain.CreateRequest  true  "Create Request"
// @Success      201  {object}  DataResponse
// @Router       /api/v1/funding-sources [post]
func (s *Server) CreateFundingSource(c *gin.Context) {
	var req fundingdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	source, err := s.fundingSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, source)
}

func (s *Server) GetFundingSource(c *gin.Context) {
	source, err := s.fundingSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, source)
}

// @Summary      List Funding Sources
// @Description  List the sources of an identity, reconciled with the processor when it supports listing
// @Tags         funding-sources
// @Produce      json
// @Param        id  path  string  true  "Identity ID"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/identities/{id}/funding-sources [get]
func (s *Server) ListFundingSources(c *gin.Context) {
	items, err := s.fundingSvc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

func (s *Server) UpdateFundingSource(c *gin.Context) {
	var req fundingdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	source, err := s.fundingSvc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, source)
}

// @Summary      Verify Microdeposits
// @Description  Send microdeposits, or confirm them when both amounts are given
// @Tags         funding-sources
// @Accept       json
// @Produce      json
// @Param        id       path  string                             true  "Funding Source ID"
// @Param        request  body  fundingdomain.MicrodepositRequest  true  "Amounts"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/funding-sources/{id}/microdeposits [post]
func (s *Server) VerifyMicrodeposit(c *gin.Context) {
	var req fundingdomain.MicrodepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	source, err := s.fundingSvc.VerifyMicrodeposit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, source)
}

func (s *Server) GetFundingSourceBalance(c *gin.Context) {
	balance, err := s.fundingSvc.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, balance)
}

func (s *Server) RefreshFundingSource(c *gin.Context) {
	source, err := s.fundingSvc.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, source)
}
