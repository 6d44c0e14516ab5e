package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/brixfix/brixfix-go/internal/auth"
)

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// MessageResponse carries a single human-readable message.
type MessageResponse struct {
	Message string `json:"message"`
}

// Register creates an account from a JSON or form body.
func (c *Controller) Register(ctx echo.Context) error {
	var req auth.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	if _, err := c.auth.Register(ctx.Request().Context(), req); err != nil {
		c.metrics.RecordAuth("register", false)
		return c.handleDomainError(ctx, err)
	}

	c.metrics.RecordAuth("register", true)
	return ctx.JSON(http.StatusCreated, MessageResponse{Message: "registration successful"})
}

// Login checks credentials. The API is stateless; the dashboard keeps
// its own session.
func (c *Controller) Login(ctx echo.Context) error {
	var req LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	if _, err := c.auth.Authenticate(ctx.Request().Context(), req.Email, req.Password); err != nil {
		c.metrics.RecordAuth("login", false)
		return c.handleDomainError(ctx, err)
	}

	c.metrics.RecordAuth("login", true)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "login successful"})
}
