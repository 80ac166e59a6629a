// Package httpapi exposes the payments core over a JSON HTTP facade.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/cashbridge/pkg/payments"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps bundles the domain collaborators the facade serves.
type Deps struct {
	Aggregator *payments.Aggregator
	Workflow   *payments.Workflow
	SendFlow   *payments.SendFlow
	Receive    *payments.ReceiveFlow
	Logger     *zap.Logger
}

// Server is the HTTP facade.
type Server struct {
	cfg     Config
	handler *httpHandler
	router  *gin.Engine
}

// New validates the configuration and builds the facade.
func New(cfg Config, deps Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Aggregator == nil || deps.Workflow == nil || deps.SendFlow == nil || deps.Receive == nil {
		return nil, errors.New("httpapi: all domain collaborators are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := &httpHandler{
		logger:     logger,
		aggregator: deps.Aggregator,
		workflow:   deps.Workflow,
		sendFlow:   deps.SendFlow,
		receive:    deps.Receive,
		cfg:        cfg,
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		router:  setupRouter(cfg, handler),
	}, nil
}

// Router exposes the gin engine, mainly for tests.
func (server *Server) Router() *gin.Engine {
	return server.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.router,
	}

	errCh := make(chan error, 1)
	go func() {
		server.handler.logger.Info("httpapi listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.handler.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(authMiddleware([]byte(cfg.SessionSigningKey), cfg.SessionIssuer))

	api.GET("/session", handler.handleSession)
	api.GET("/activity", handler.handleActivity)
	api.GET("/balance", handler.handleBalance)
	api.POST("/refresh", handler.handleRefresh)
	api.POST("/send", handler.handleSend)
	api.POST("/quotes/mint", handler.handleMintQuote)
	api.POST("/quotes/melt", handler.handleMeltQuote)
	api.POST("/melt", handler.handleMelt)
	api.POST("/import", handler.handleImport)

	return router
}

type httpHandler struct {
	logger     *zap.Logger
	aggregator *payments.Aggregator
	workflow   *payments.Workflow
	sendFlow   *payments.SendFlow
	receive    *payments.ReceiveFlow
	cfg        Config
}

func (handler *httpHandler) handleSession(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	response := gin.H{
		"user_id":      claims.UserID,
		"display_name": claims.DisplayName,
	}
	if claims.ExpiresAt != nil {
		response["expires"] = claims.ExpiresAt.Unix()
	}
	ctx.JSON(http.StatusOK, response)
}

func (handler *httpHandler) handleActivity(ctx *gin.Context) {
	snapshot := handler.aggregator.CurrentSnapshot()
	rows := make([]rowPayload, 0, len(snapshot.View.Rows))
	for _, row := range snapshot.View.Rows {
		payload := rowPayload{Kind: string(row.Kind), Title: row.Title}
		if row.Item != nil {
			payload.Item = &activityItemPayload{
				ID:              row.Item.ID,
				TimestampMs:     row.Item.TimestampMs,
				AmountSats:      row.Item.AmountSats,
				Kind:            string(row.Item.Kind),
				PeerID:          row.Item.PeerID,
				PeerDisplayName: row.Item.PeerDisplayName,
				IsWithdrawal:    row.Item.IsWithdrawal,
			}
		}
		if row.Legacy != nil {
			payload.Legacy = &legacyItemPayload{
				ID:          row.Legacy.ID,
				TimestampMs: row.Legacy.TimestampMs,
				AmountSats:  row.Legacy.AmountSats,
				Description: row.Legacy.Description,
			}
		}
		rows = append(rows, payload)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"rows":         rows,
		"balance_sats": snapshot.SatsBalance,
		"fiat_text":    snapshot.FiatText,
	})
}

func (handler *httpHandler) handleBalance(ctx *gin.Context) {
	snapshot := handler.aggregator.CurrentSnapshot()
	ctx.JSON(http.StatusOK, gin.H{
		"balance_sats": snapshot.SatsBalance,
		"fiat_text":    snapshot.FiatText,
	})
}

func (handler *httpHandler) handleRefresh(ctx *gin.Context) {
	handler.aggregator.RefreshActivity(context.WithoutCancel(ctx.Request.Context()))
	ctx.JSON(http.StatusAccepted, gin.H{"status": "refreshing"})
}

func (handler *httpHandler) handleSend(ctx *gin.Context) {
	var request sendRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	recipient := payments.Recipient{ID: request.RecipientID, DisplayName: request.RecipientName}
	err := handler.sendFlow.ConfirmSend(requestCtx, recipient, request.AmountSats, request.Note)
	if err != nil {
		handler.respondDomainError(ctx, err, "send failed")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (handler *httpHandler) handleMintQuote(ctx *gin.Context) {
	var request mintQuoteRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	quote, err := handler.workflow.RequestMintQuote(requestCtx, request.AmountSats)
	if err != nil {
		handler.respondDomainError(ctx, err, "mint quote failed")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"id":            quote.ID,
		"mint_url":      quote.MintURL,
		"amount_sats":   quote.AmountSats,
		"fee_sats":      quote.FeeSats,
		"total_sats":    quote.TotalSats,
		"expires_at_ms": quote.ExpiresAtMs,
		"invoice":       quote.Invoice,
	})
}

func (handler *httpHandler) handleMeltQuote(ctx *gin.Context) {
	var request meltQuoteRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	quote, err := handler.workflow.RequestMeltQuote(requestCtx, request.Invoice)
	if err != nil {
		handler.respondDomainError(ctx, err, "melt quote failed")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"id":            quote.ID,
		"invoice":       quote.Invoice,
		"amount_sats":   quote.AmountSats,
		"fee_sats":      quote.FeeSats,
		"expires_at_ms": quote.ExpiresAtMs,
	})
}

func (handler *httpHandler) handleMelt(ctx *gin.Context) {
	var request meltRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	quote := payments.MeltQuote{
		ID:          request.ID,
		Invoice:     request.Invoice,
		AmountSats:  request.AmountSats,
		FeeSats:     request.FeeSats,
		ExpiresAtMs: request.ExpiresAtMs,
	}
	paid, err := handler.workflow.ConfirmMelt(requestCtx, quote)
	if err != nil {
		handler.respondDomainError(ctx, err, "melt failed")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"paid": paid})
}

func (handler *httpHandler) handleImport(ctx *gin.Context) {
	var request importRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	token := request.Token
	if token == "" {
		extracted, found := payments.ExtractToken(request.Body)
		if !found {
			ctx.JSON(http.StatusBadRequest, errorResponse("no_token", "no ecash token in message body"))
			return
		}
		token = extracted
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	sender := payments.Recipient{ID: request.SenderID, DisplayName: request.SenderName}
	addedSats, err := handler.receive.ImportToken(requestCtx, sender, token)
	if err != nil {
		handler.respondDomainError(ctx, err, "token import failed")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"added_sats": addedSats})
}

func (handler *httpHandler) respondDomainError(ctx *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, payments.ErrInvalidAmount),
		errors.Is(err, payments.ErrInvalidInvoice),
		errors.Is(err, payments.ErrInvalidRecord),
		errors.Is(err, payments.ErrNoRecipient):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", err.Error()))
	case errors.Is(err, payments.ErrNoQuote):
		ctx.JSON(http.StatusBadGateway, errorResponse("no_quote", err.Error()))
	default:
		handler.logger.Error(message, zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("engine_error", message))
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

type sendRequest struct {
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name"`
	AmountSats    int64  `json:"amount_sats"`
	Note          string `json:"note"`
}

type mintQuoteRequest struct {
	AmountSats int64 `json:"amount_sats"`
}

type meltQuoteRequest struct {
	Invoice string `json:"invoice"`
}

type meltRequest struct {
	ID          string `json:"id"`
	Invoice     string `json:"invoice"`
	AmountSats  int64  `json:"amount_sats"`
	FeeSats     int64  `json:"fee_sats"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

type importRequest struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Token      string `json:"token"`
	Body       string `json:"body"`
}

type rowPayload struct {
	Kind   string               `json:"kind"`
	Title  string               `json:"title,omitempty"`
	Item   *activityItemPayload `json:"item,omitempty"`
	Legacy *legacyItemPayload   `json:"legacy,omitempty"`
}

type activityItemPayload struct {
	ID              string `json:"id"`
	TimestampMs     int64  `json:"timestamp_ms"`
	AmountSats      int64  `json:"amount_sats"`
	Kind            string `json:"kind"`
	PeerID          string `json:"peer_id,omitempty"`
	PeerDisplayName string `json:"peer_display_name,omitempty"`
	IsWithdrawal    bool   `json:"is_withdrawal"`
}

type legacyItemPayload struct {
	ID          string `json:"id"`
	TimestampMs int64  `json:"timestamp_ms"`
	AmountSats  int64  `json:"amount_sats"`
	Description string `json:"description"`
}
