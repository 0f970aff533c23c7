package gateway

import (
	"errors"
	"net/http"

	"papertrade/internal/ledger"
	"papertrade/internal/market/memorystore"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type tradeRequest struct {
	UserID   string          `json:"userId"`
	Symbol   string          `json:"symbol" binding:"required"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// HoldingView adds live valuation to a stored holding.
type HoldingView struct {
	ledger.Holding
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
}

// QuoteView marks how old a snapshot entry is.
type QuoteView struct {
	memorystore.Quote
	AgeSeconds float64 `json:"ageSeconds"`
	Stale      bool    `json:"stale"`
}

func (s *Server) buy(c *gin.Context) {
	req, userID, ok := s.bindTrade(c)
	if !ok {
		return
	}
	trade, err := s.opts.Ledger.Buy(c.Request.Context(), userID, req.Symbol, req.Quantity, req.Price)
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (s *Server) sell(c *gin.Context) {
	req, userID, ok := s.bindTrade(c)
	if !ok {
		return
	}
	trade, err := s.opts.Ledger.Sell(c.Request.Context(), userID, req.Symbol, req.Quantity, req.Price)
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (s *Server) squareOff(c *gin.Context) {
	userID, ok := authorize(c, c.Query("userId"))
	if !ok {
		return
	}
	trade, err := s.opts.Ledger.SquareOff(c.Request.Context(), userID, c.Param("symbol"))
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (s *Server) holdings(c *gin.Context) {
	userID, ok := authorize(c, c.Query("userId"))
	if !ok {
		return
	}
	holdings, err := s.opts.Ledger.Holdings(c.Request.Context(), userID)
	if err != nil {
		s.ledgerError(c, err)
		return
	}

	views := make([]HoldingView, 0, len(holdings))
	for _, h := range holdings {
		current := h.LastPrice
		if q, ok := s.opts.Quotes.Get(h.Symbol); ok && q.LastPrice > 0 {
			current = decimal.NewFromFloat(q.LastPrice)
		}
		views = append(views, HoldingView{
			Holding:       h,
			CurrentPrice:  current,
			UnrealizedPnL: current.Sub(h.AvgPrice).Mul(decimal.NewFromInt(h.Quantity)),
		})
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) orders(c *gin.Context) {
	userID, ok := authorize(c, c.Query("userId"))
	if !ok {
		return
	}
	orders, err := s.opts.Ledger.Orders(c.Request.Context(), userID)
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) snapshot(c *gin.Context) {
	quotes := s.opts.Quotes.All()
	views := make([]QuoteView, 0, len(quotes))
	for _, q := range quotes {
		views = append(views, s.quoteView(q))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) snapshotSymbol(c *gin.Context) {
	q, ok := s.opts.Quotes.Get(ledger.NormalizeSymbol(c.Param("symbol")))
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("not_found", "no quote for "+c.Param("symbol")))
		return
	}
	c.JSON(http.StatusOK, s.quoteView(q))
}

func (s *Server) quoteView(q memorystore.Quote) QuoteView {
	age := s.now().Sub(q.UpdatedAt)
	return QuoteView{
		Quote:      q,
		AgeSeconds: age.Seconds(),
		Stale:      s.opts.StaleAfter > 0 && age > s.opts.StaleAfter,
	}
}

func (s *Server) bindTrade(c *gin.Context) (tradeRequest, string, bool) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return req, "", false
	}
	userID, ok := authorize(c, req.UserID)
	return req, userID, ok
}

func (s *Server) ledgerError(c *gin.Context, err error) {
	code := ledger.Code(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidPrice),
		errors.Is(err, ledger.ErrUnknownInstrument):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNoPosition):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientQuantity):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, errorBody(code, msg))
}

func errorBody(code, message string) gin.H {
	return gin.H{"error": code, "message": message}
}
