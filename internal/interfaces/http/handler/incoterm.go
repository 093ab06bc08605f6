package handler

import (
	tradeapp "github.com/cardshellz/echelon/internal/application/trade"
	"github.com/cardshellz/echelon/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// IncotermHandler serves the incoterm reference table
type IncotermHandler struct {
	BaseHandler
}

// NewIncotermHandler creates a new IncotermHandler
func NewIncotermHandler() *IncotermHandler {
	return &IncotermHandler{}
}

// Routes returns the /incoterms route group
func (h *IncotermHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("incoterms", "/incoterms").GET("", h.List)
}

// List godoc
// @ID           listIncoterms
// @Summary      List incoterms
// @Description  Every supported incoterm with whether the buyer may carry tax and shipping charges under it
// @Tags         reference
// @Produce      json
// @Success      200 {object} APIResponse[[]tradeapp.IncotermResponse]
// @Router       /incoterms [get]
func (h *IncotermHandler) List(c *gin.Context) {
	h.Success(c, tradeapp.IncotermTable())
}
