package server

import (
	"github.com/gin-gonic/gin"
	plandomain "github.com/railzwaylabs/paycore/internal/plan/domain"
)

// @Summary      Create Plan
// @Description  Register a plan and its cost, mirrored as a processor product when recurring billing is supported
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        request  body  plandomain.CreateRequest  true  "Plan"
// @Success      201  {object}  DataResponse
// @Router       /api/v1/plans [post]
func (s *Server) CreatePlan(c *gin.Context) {
	var req plandomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	cost, err := s.planSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, cost)
}

func (s *Server) ListPlans(c *gin.Context) {
	items, err := s.planSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

func (s *Server) GetPlan(c *gin.Context) {
	cost, err := s.planSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, cost)
}

// @Summary      Update Plan
// @Description  Change the processor product first, then the stored plan and cost
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        id       path  string                    true  "Plan Cost ID"
// @Param        request  body  plandomain.UpdateRequest  true  "Changes"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/plans/{id} [patch]
func (s *Server) UpdatePlan(c *gin.Context) {
	var req plandomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError(err))
		return
	}
	cost, err := s.subscriptionSvc.UpdatePlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, cost)
}
