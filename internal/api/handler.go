package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Time-Craft/time-crafting-hub/internal/models"
	"github.com/Time-Craft/time-crafting-hub/internal/realtime"
	"github.com/Time-Craft/time-crafting-hub/internal/service"
)

// Handler wires HTTP requests into the lifecycle engine. It holds no
// business logic: it binds input, calls the service, and maps result values
// to responses the client renders as notifications.
type Handler struct {
	service service.Service
	broker  *realtime.Broker
	logger  *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service, broker *realtime.Broker, logger *slog.Logger) *Handler {
	return &Handler{
		service: svc,
		broker:  broker,
		logger:  logger,
	}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/login", h.Login)
	}

	api := router.Group("/api")
	api.Use(AuthMiddleware())
	{
		api.GET("/offers", h.ListOpenOffers)
		api.POST("/offers", h.CreateOffer)
		api.DELETE("/offers/:id", h.DeleteOffer)
		api.POST("/offers/:id/accept", h.AcceptOffer)
		api.POST("/offers/:id/confirm", h.ConfirmOffer)
		api.POST("/offers/:id/decline", h.DeclineOffer)
		api.GET("/pending-offers", h.ListPendingOffers)
		api.GET("/transactions", h.ListTransactions)
		api.GET("/balance", h.GetBalance)
		api.GET("/stats", h.GetStats)
		api.GET("/profiles/:id", h.GetProfile)
		api.GET("/events", h.StreamEvents)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "ok"})
}

func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.service.SignUp(c.Request.Context(), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateOffer(c *gin.Context) {
	var req models.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
		return
	}

	offer, err := h.service.CreateOffer(c.Request.Context(), h.currentUserID(c), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OfferResponse{Status: "success", Offer: offer})
}

func (h *Handler) AcceptOffer(c *gin.Context) {
	offer, err := h.service.AcceptOffer(c.Request.Context(), c.Param("id"), h.currentUserID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OfferResponse{Status: "success", Offer: offer})
}

func (h *Handler) ConfirmOffer(c *gin.Context) {
	if err := h.service.ConfirmOffer(c.Request.Context(), c.Param("id"), h.currentUserID(c)); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "Offer confirmed successfully"})
}

func (h *Handler) DeclineOffer(c *gin.Context) {
	if err := h.service.DeclineOffer(c.Request.Context(), c.Param("id"), h.currentUserID(c)); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "Offer rejected successfully"})
}

func (h *Handler) DeleteOffer(c *gin.Context) {
	if err := h.service.DeleteOffer(c.Request.Context(), c.Param("id"), h.currentUserID(c)); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "Offer deleted successfully"})
}

func (h *Handler) ListOpenOffers(c *gin.Context) {
	offers, err := h.service.ListOpenOffers(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OfferListResponse{Status: "success", Offers: offers})
}

func (h *Handler) ListPendingOffers(c *gin.Context) {
	offers, err := h.service.ListPendingOffers(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TransactionListResponse{Status: "success", Transactions: offers})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	txs, err := h.service.ListUserTransactions(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TransactionListResponse{Status: "success", Transactions: txs})
}

func (h *Handler) GetBalance(c *gin.Context) {
	userID := h.currentUserID(c)
	balance, err := h.service.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.BalanceResponse{Status: "success", UserID: userID, Balance: balance})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StatsResponse{Status: "success", Stats: stats})
}

func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.service.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_FOUND",
			Message: "Profile not found",
		})
		return
	}
	c.JSON(http.StatusOK, models.ProfileResponse{Status: "success", Profile: profile})
}

func (h *Handler) currentUserID(c *gin.Context) string {
	return c.GetString("userId")
}

// renderError maps the engine's tagged failures onto HTTP responses. Nothing
// the engine returns escapes unclassified; unknown errors are logged and
// surfaced generically.
func (h *Handler) renderError(c *gin.Context, err error) {
	var (
		validationErr   *service.ValidationError
		insufficientErr *service.InsufficientBalanceError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "VALIDATION_ERROR",
			Message: validationErr.Error(),
		})
	case errors.Is(err, service.ErrAuthenticationRequired):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "AUTHENTICATION_REQUIRED",
			Message: "Please sign in to continue",
		})
	case errors.Is(err, service.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "SESSION_EXPIRED",
			Message: "Please sign in again to continue",
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_CREDENTIALS",
			Message: "Invalid email or password",
		})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "EMAIL_EXISTS",
			Message: "User with this email already exists",
		})
	case errors.Is(err, service.ErrSelfAcceptForbidden):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Status:  "error",
			Code:    "SELF_ACCEPT_FORBIDDEN",
			Message: "You cannot accept your own offer",
		})
	case errors.As(err, &insufficientErr):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INSUFFICIENT_BALANCE",
			Message: insufficientErr.Error(),
		})
	case errors.Is(err, service.ErrOfferNoLongerAvailable):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "OFFER_UNAVAILABLE",
			Message: "This offer is no longer available",
		})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:  "error",
			Code:    "INTERNAL_ERROR",
			Message: "Something went wrong. Please try again.",
		})
	}
}
