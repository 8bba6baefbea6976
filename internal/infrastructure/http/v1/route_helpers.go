package v1

import (
	"github.com/gin-gonic/gin"
)

// RoleManager may register shops and run maintenance operations.
const RoleManager = "manager"

// OrderRouteHandler defines the order endpoints.
type OrderRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	GetByNumber(c *gin.Context)
	Update(c *gin.Context)
	Execute(c *gin.Context)
	Cancel(c *gin.Context)
	AddPayment(c *gin.Context)
	Recalculate(c *gin.Context)
	History(c *gin.Context)
}

// ShopRouteHandler defines the shop endpoints.
type ShopRouteHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
}

// guard returns the role check for a route. With auth disabled every
// check passes.
type guard func(roles ...string) gin.HandlerFunc

func passThrough(...string) gin.HandlerFunc {
	return func(c *gin.Context) { c.Next() }
}

// RegisterOrderRoutes registers the order routes on group.
func RegisterOrderRoutes(group *gin.RouterGroup, handler OrderRouteHandler, require guard) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/by-number/:number", handler.GetByNumber)
	group.GET("/:id", handler.Get)
	group.PATCH("/:id", handler.Update)
	group.POST("/:id/commands", handler.Execute)
	group.POST("/:id/cancel", handler.Cancel)
	group.POST("/:id/payments", handler.AddPayment)
	group.POST("/:id/recalculate", require(RoleManager), handler.Recalculate)
	group.GET("/:id/history", handler.History)
}

// RegisterShopRoutes registers the shop routes on group.
func RegisterShopRoutes(group *gin.RouterGroup, handler ShopRouteHandler, require guard) {
	group.GET("", handler.List)
	group.GET("/:id", handler.Get)
	group.POST("", require(RoleManager), handler.Create)
}
