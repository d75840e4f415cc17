package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/handler/middleware"
	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/internal/service"
	"github.com/Tonic56/stock-trading-simulator/internal/websocket"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla_ws "github.com/gorilla/websocket"
)

const refreshCookie = "refreshToken"

type Handler struct {
	trading    service.TradingService
	auth       service.AuthService
	tokens     service.TokenService
	wsManager  *websocket.Manager
	log        *slog.Logger
	jwtSecret  string
	refreshTTL time.Duration
	upgrader   gorilla_ws.Upgrader
}

func NewHandler(
	trading service.TradingService,
	auth service.AuthService,
	tokens service.TokenService,
	wsManager *websocket.Manager,
	log *slog.Logger,
	jwtSecret string,
	refreshTTL time.Duration,
) *Handler {
	return &Handler{
		trading:    trading,
		auth:       auth,
		tokens:     tokens,
		wsManager:  wsManager,
		log:        log,
		jwtSecret:  jwtSecret,
		refreshTTL: refreshTTL,
		upgrader: gorilla_ws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)

	api := router.Group("/api/v1", middleware.NoCache())
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.register)
			auth.POST("/login", h.login)
			auth.POST("/refresh", h.refresh)
			auth.POST("/logout", h.logout)
		}

		trading := api.Group("", middleware.AuthMiddleware(h.jwtSecret, h.log))
		{
			trading.GET("/quote", h.quote)
			trading.GET("/portfolio", h.portfolio)
			trading.POST("/buy", h.buy)
			trading.POST("/sell", h.sell)
			trading.GET("/history", h.history)
			trading.POST("/cash", h.deposit)
			trading.GET("/ws", h.wsConnect)
			trading.POST("/auth/logout-all", h.logoutAll)
		}
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type registerRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password, req.Confirmation)
	if err != nil {
		h.fail(c, err)
		return
	}

	accessToken, refreshToken, err := h.tokens.GenerateTokens(c.Request.Context(), user.ID, user.Username)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.log.Info("user registered", slog.String("userID", user.ID.String()))

	h.setRefreshCookie(c, refreshToken)
	c.JSON(http.StatusCreated, gin.H{
		"user":         user,
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	accessToken, refreshToken, err := h.tokens.GenerateTokens(c.Request.Context(), user.ID, user.Username)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setRefreshCookie(c, refreshToken)
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshTokenFrom reads the token from the body, falling back to the cookie.
func refreshTokenFrom(c *gin.Context) string {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}

	cookie, err := c.Cookie(refreshCookie)
	if err != nil {
		return ""
	}
	return cookie
}

func (h *Handler) refresh(c *gin.Context) {
	token := refreshTokenFrom(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errs.Message(errs.ErrInvalidToken)})
		return
	}

	accessToken, refreshToken, err := h.tokens.RefreshToken(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setRefreshCookie(c, refreshToken)
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

func (h *Handler) logout(c *gin.Context) {
	if token := refreshTokenFrom(c); token != "" {
		if err := h.tokens.Logout(c.Request.Context(), token); err != nil {
			h.fail(c, err)
			return
		}
	}

	c.SetCookie(refreshCookie, "", -1, "/api/v1/auth", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) logoutAll(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	if err := h.tokens.DeleteAllUserSessions(c.Request.Context(), userID); err != nil {
		h.fail(c, err)
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/api/v1/auth", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere"})
}

func (h *Handler) quote(c *gin.Context) {
	q, err := h.trading.Quote(c.Request.Context(), c.Query("symbol"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, q)
}

func (h *Handler) portfolio(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	view, err := h.trading.Portfolio(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

type tradeRequest struct {
	Symbol string          `json:"symbol"`
	Shares json.RawMessage `json:"shares"`
}

type tradeFunc func(ctx context.Context, userID uuid.UUID, symbol string, quantity int64) (*models.TradeResult, error)

func (h *Handler) buy(c *gin.Context) {
	h.trade(c, "bought", h.trading.Buy)
}

func (h *Handler) sell(c *gin.Context) {
	h.trade(c, "sold", h.trading.Sell)
}

func (h *Handler) trade(c *gin.Context, message string, execute tradeFunc) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// shares may arrive as a number or a string; a bad value becomes 0 and
	// the engine reports it in its usual order
	quantity, err := service.ParseQuantity(strings.Trim(string(req.Shares), `"`))
	if err != nil {
		quantity = 0
	}

	result, err := execute(c.Request.Context(), userID, req.Symbol, quantity)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.notify(userID)
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"trade":   result,
	})
}

func (h *Handler) history(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	entries, err := h.trading.History(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries})
}

type depositRequest struct {
	Amount json.RawMessage `json:"amount"`
}

func (h *Handler) deposit(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	amount, err := service.ParseAmount(strings.Trim(string(req.Amount), `"`))
	if err != nil {
		h.fail(c, err)
		return
	}

	cash, err := h.trading.Deposit(c.Request.Context(), userID, amount)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.notify(userID)
	c.JSON(http.StatusOK, gin.H{"cash": cash})
}

func (h *Handler) wsConnect(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if h.wsManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed is disabled"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("failed to upgrade connection", "error", err)
		return
	}

	client := websocket.NewClient(h.wsManager, conn, userID)
	h.wsManager.Register(client)

	go client.Writer()
	go client.Reader()
}

func (h *Handler) userID(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		h.log.Error("handler: userID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Handler) notify(userID uuid.UUID) {
	if h.wsManager != nil {
		h.wsManager.Notify(userID)
	}
}

func (h *Handler) setRefreshCookie(c *gin.Context, token string) {
	c.SetCookie(refreshCookie, token, int(h.refreshTTL/time.Second), "/api/v1/auth", "", false, true)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
	} else {
		h.log.Debug("request rejected", slog.String("path", c.FullPath()), slog.Any("error", err))
	}

	c.JSON(status, gin.H{"error": errs.Message(err)})
}

// statusFor maps err to a response code. Lookup failures are checked first:
// a LookupError may also wrap ErrInvalidSymbol for a delisted holding.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrLookupUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, errs.ErrInvalidSymbol),
		errors.Is(err, errs.ErrInvalidQuantity),
		errors.Is(err, errs.ErrInvalidAmount),
		errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInvalidCredentials),
		errors.Is(err, errs.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists),
		errors.Is(err, errs.ErrInsufficientFunds),
		errors.Is(err, errs.ErrInsufficientShares):
		return http.StatusConflict
	case errors.Is(err, errs.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
