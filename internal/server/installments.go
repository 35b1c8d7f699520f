package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) GetInstallment(c *gin.Context) {
	inst, err := s.installmentSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, inst)
}

// @Summary      Charge Installment
// @Description  Charge one payable installment now instead of waiting for the scheduler
// @Tags         installments
// @Produce      json
// @Param        id  path  string  true  "Installment ID"
// @Success      200  {object}  DataResponse
// @Router       /api/v1/installments/{id}/charge [post]
func (s *Server) ChargeInstallment(c *gin.Context) {
	txn, err := s.subscriptionSvc.ChargeInstallment(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, txn)
}

func (s *Server) SettleInstallment(c *gin.Context) {
	inst, err := s.subscriptionSvc.SettleInstallment(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, inst)
}

func (s *Server) NotifyInstallment(c *gin.Context) {
	inst, err := s.installmentSvc.Notify(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, inst)
}
