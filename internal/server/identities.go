package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	identitydomain "github.com/railzwaylabs/paycore/internal/billingidentity/domain"
)

// @Summary      Resolve Billing Identity
// @Description  Find the processor identity of a party, optionally registering it
// @Tags         identities
// @Accept       json
// @Produce      json
// @Param        request  body  identitydomain.ResolveRequest  true  "Resolve Request"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/identities/resolve [post]
func (s *Server) ResolveIdentity(c *gin.Context) {
	var req identitydomain.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	req.PartyID = strings.TrimSpace(req.PartyID)

	identity, err := s.identitySvc.Resolve(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, identity)
}

// @Summary      Get Billing Identity
// @Tags         identities
// @Produce      json
// @Param        id  path  string  true  "Identity ID"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/identities/{id} [get]
func (s *Server) GetIdentity(c *gin.Context) {
	identity, err := s.identitySvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, identity)
}

func (s *Server) ListPartyIdentities(c *gin.Context) {
	items, err := s.identitySvc.ListByParty(c.Request.Context(), c.Param("party_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

func (s *Server) GetDefaultIdentity(c *gin.Context) {
	identity, err := s.identitySvc.DefaultBilling(c.Request.Context(), c.Param("party_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, identity)
}

func (s *Server) SetDefaultIdentity(c *gin.Context) {
	identity, err := s.identitySvc.SetDefault(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, identity)
}

// @Summary      Update Identity Profile
// @Description  Push profile changes to the processor and store them
// @Tags         identities
// @Accept       json
// @Produce      json
// @Param        id       path  string                   true  "Identity ID"
// @Param        request  body  identitydomain.Profile   true  "Profile"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/identities/{id}/profile [patch]
func (s *Server) UpdateIdentityProfile(c *gin.Context) {
	var req identitydomain.Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	identity, err := s.identitySvc.UpdateProfile(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, identity)
}

// @Summary      Offboard Billing Identity
// @Description  Remove the party at the processor where supported and deactivate the identity
// @Tags         identities
// @Produce      json
// @Param        id  path  string  true  "Identity ID"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/identities/{id}/offboard [post]
func (s *Server) OffboardIdentity(c *gin.Context) {
	res, err := s.identitySvc.Offboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, res)
}

func (s *Server) ListCustomerTransfers(c *gin.Context) {
	items, err := s.ledgerSvc.ListCustomerTransfers(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}
