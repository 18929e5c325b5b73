package httpapi

import "github.com/gin-gonic/gin"

// Mount registers the operator API on g.
func (h Handlers) Mount(g *gin.RouterGroup) {
	nums := g.Group("/numbers")
	{
		nums.GET("", h.ListNumbers)
		nums.POST("", h.ImportNumbers)
		nums.POST("/import", h.ImportNumbersCSV)
		nums.PATCH("/:id", h.UpdateNumber)
		nums.DELETE("/:id", h.DeleteNumber)
	}

	cg := g.Group("/calls")
	{
		cg.GET("", h.ListCalls)
		cg.GET("/export.csv", h.ExportCalls)
		cg.GET("/:id", h.GetCall)
		cg.POST("", h.StartCalls)
		cg.POST("/stop", h.StopCalls)
		cg.POST("/:id/sync", h.SyncCall)
	}

	g.POST("/commands", h.RunCommand)
	g.GET("/stats", h.GetStats)
}
