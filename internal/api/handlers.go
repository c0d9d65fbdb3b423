package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/query"
	"github.com/example/ec-storefront/internal/readmodel"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader lets clients retry order creation safely.
const IdempotencyKeyHeader = "Idempotency-Key"

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
	}
}

// bindJSON decodes the body into dst. An empty body is accepted when
// optional is set.
func bindJSON(c *gin.Context, dst any, optional bool) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	respondError(c, errInvalidBody)
	return false
}

// Product Handlers

func (h *Handlers) GetProducts(c *gin.Context) {
	products, err := h.queryHandler.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handlers) GetProduct(c *gin.Context) {
	p, err := h.queryHandler.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) GetMyProducts(c *gin.Context) {
	products, err := h.queryHandler.ListProductsByOwner(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handlers) CreateProduct(c *gin.Context) {
	var fields product.Fields
	if !bindJSON(c, &fields, false) {
		return
	}

	p, err := h.cmdHandler.CreateProduct(c.Request.Context(), command.CreateProduct{
		OwnerID: middleware.GetAccountID(c),
		Fields:  fields,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handlers) UpdateProduct(c *gin.Context) {
	var patch product.Patch
	if !bindJSON(c, &patch, false) {
		return
	}

	p, err := h.cmdHandler.UpdateProduct(c.Request.Context(), command.UpdateProduct{
		OwnerID:   middleware.GetAccountID(c),
		ProductID: c.Param("id"),
		Patch:     patch,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) DeleteProduct(c *gin.Context) {
	err := h.cmdHandler.DeleteProduct(c.Request.Context(), command.DeleteProduct{
		OwnerID:   middleware.GetAccountID(c),
		ProductID: c.Param("id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) AdjustStock(c *gin.Context) {
	var cmd command.AdjustStock
	if !bindJSON(c, &cmd, false) {
		return
	}
	cmd.OwnerID = middleware.GetAccountID(c)
	cmd.ProductID = c.Param("id")

	p, err := h.cmdHandler.AdjustStock(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Cart Handlers

func (h *Handlers) GetCart(c *gin.Context) {
	h.respondCart(c, http.StatusOK)
}

// respondCart writes the caller's populated cart after a mutation.
func (h *Handlers) respondCart(c *gin.Context, status int) {
	cart, err := h.queryHandler.GetCart(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, cart)
}

func (h *Handlers) AddToCart(c *gin.Context) {
	var cmd command.AddToCart
	if !bindJSON(c, &cmd, false) {
		return
	}
	cmd.AccountID = middleware.GetAccountID(c)

	if err := h.cmdHandler.AddToCart(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK)
}

func (h *Handlers) IncreaseCartItem(c *gin.Context) {
	if err := h.cmdHandler.IncreaseCartItem(c.Request.Context(), cartItem(c)); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK)
}

func (h *Handlers) DecreaseCartItem(c *gin.Context) {
	if err := h.cmdHandler.DecreaseCartItem(c.Request.Context(), cartItem(c)); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK)
}

func (h *Handlers) RemoveFromCart(c *gin.Context) {
	if err := h.cmdHandler.RemoveCartItem(c.Request.Context(), cartItem(c)); err != nil {
		respondError(c, err)
		return
	}
	h.respondCart(c, http.StatusOK)
}

func (h *Handlers) ClearCart(c *gin.Context) {
	err := h.cmdHandler.ClearCart(c.Request.Context(), command.ClearCart{AccountID: middleware.GetAccountID(c)})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func cartItem(c *gin.Context) command.CartItem {
	return command.CartItem{
		AccountID: middleware.GetAccountID(c),
		ProductID: c.Param("productId"),
	}
}

// Address Handlers

func (h *Handlers) GetAddresses(c *gin.Context) {
	addresses, err := h.queryHandler.ListAddresses(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, addresses)
}

func (h *Handlers) AddAddress(c *gin.Context) {
	var fields account.Address
	if !bindJSON(c, &fields, false) {
		return
	}

	addr, err := h.cmdHandler.AddAddress(c.Request.Context(), command.AddAddress{
		AccountID: middleware.GetAccountID(c),
		Address:   fields,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addr)
}

func (h *Handlers) RemoveAddress(c *gin.Context) {
	err := h.cmdHandler.RemoveAddress(c.Request.Context(), command.RemoveAddress{
		AccountID: middleware.GetAccountID(c),
		AddressID: c.Param("id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Order Handlers

func (h *Handlers) PlaceOrder(c *gin.Context) {
	var cmd command.PlaceOrder
	if !bindJSON(c, &cmd, true) {
		return
	}
	cmd.AccountID = middleware.GetAccountID(c)
	cmd.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	orderID, err := h.cmdHandler.PlaceOrder(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"orderId": orderID})
}

func (h *Handlers) GetOrders(c *gin.Context) {
	orders, err := h.queryHandler.ListOrders(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handlers) GetOrder(c *gin.Context) {
	order, err := h.queryHandler.GetOrder(c.Request.Context(), middleware.GetAccountID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handlers) CancelOrder(c *gin.Context) {
	var cmd command.CancelOrder
	if !bindJSON(c, &cmd, true) {
		return
	}
	cmd.AccountID = middleware.GetAccountID(c)
	cmd.OrderID = c.Param("id")

	cancelled, err := h.cmdHandler.CancelOrder(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": readmodel.NewOrderReadModel(cancelled)})
}

// Admin Handlers

func (h *Handlers) ShipOrder(c *gin.Context) {
	o, err := h.cmdHandler.ShipOrder(c.Request.Context(), command.AdvanceOrder{OrderID: c.Param("id")})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": readmodel.NewOrderReadModel(o)})
}

func (h *Handlers) DeliverOrder(c *gin.Context) {
	o, err := h.cmdHandler.DeliverOrder(c.Request.Context(), command.AdvanceOrder{OrderID: c.Param("id")})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": readmodel.NewOrderReadModel(o)})
}
