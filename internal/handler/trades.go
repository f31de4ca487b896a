package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/cache"
	"github.com/ashmitsharp/tradebook/internal/calculator"
	"github.com/ashmitsharp/tradebook/internal/models"
	"github.com/ashmitsharp/tradebook/internal/query"
	"github.com/ashmitsharp/tradebook/internal/report"
)

const archiveTimeout = 30 * time.Second

// TradeArchiver persists merged query results.
type TradeArchiver interface {
	StoreTrades(ctx context.Context, queryID string, trades []models.Trade) error
}

// TradeHandler serves trade queries, analysis and report export
type TradeHandler struct {
	sessions *Sessions
	service  *query.Service
	analyzer *calculator.Analyzer
	archive  TradeArchiver
	upgrader websocket.Upgrader
	location *time.Location
	logger   *zap.Logger
}

// NewTradeHandler creates a new trade handler. archive may be nil; origins
// governs the progress websocket.
func NewTradeHandler(sessions *Sessions, service *query.Service, analyzer *calculator.Analyzer, archive TradeArchiver, origins *OriginPolicy, loc *time.Location, logger *zap.Logger) *TradeHandler {
	return &TradeHandler{
		sessions: sessions,
		service:  service,
		analyzer: analyzer,
		archive:  archive,
		upgrader: origins.Upgrader(),
		location: loc,
		logger:   logger,
	}
}

// QueryRequest is the body of a multi-account trade query.
type QueryRequest struct {
	Symbol         string `json:"symbol" binding:"required"`
	StartDate      string `json:"start_date" binding:"required"`
	EndDate        string `json:"end_date" binding:"required"`
	ExchangeFilter string `json:"exchange_filter"`
}

// AnalyzeRequest selects trades of the last query by index.
type AnalyzeRequest struct {
	SelectedIndices []int `json:"selected_indices" binding:"required"`
}

// TradesView is the last query's trade list.
type TradesView struct {
	Symbol     string                  `json:"symbol"`
	Trades     []models.FormattedTrade `json:"trades"`
	TotalCount int                     `json:"total_count"`
}

// QueryTrades fetches trades for every account in the session
// @Summary Query trades across accounts
// @Description Fetches the symbol's fills for every registered account concurrently over the inclusive date range and merges them chronologically. Individual account failures are reported in account_stats.
// @Tags trades
// @Accept json
// @Produce json
// @Param request body QueryRequest true "Query parameters"
// @Success 200 {object} models.APIResponse{data=query.Result} "Success"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Router /trades/query [post]
func (h *TradeHandler) QueryTrades(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "symbol, start_date and end_date are required")
		return
	}

	sess := h.sessions.Lookup(c)
	if sess == nil || len(sess.Accounts()) == 0 {
		respondError(c, http.StatusBadRequest, "no_accounts", "Add at least one account before querying")
		return
	}

	result, err := h.run(c.Request.Context(), sess, req, nil)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	respondOK(c, result.Message, result)
}

// run executes a query for sess and records the result in the session.
func (h *TradeHandler) run(ctx context.Context, sess *cache.Session, req QueryRequest, progress query.ProgressFunc) (*query.Result, error) {
	result, err := h.service.QueryAll(ctx, query.Request{
		Symbol:         req.Symbol,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Accounts:       sess.Accounts(),
		ExchangeFilter: req.ExchangeFilter,
	}, progress)
	if err != nil {
		return nil, err
	}

	sess.SetQueryResult(result.Symbol, result.Trades)
	h.archiveTrades(result.Trades)
	return result, nil
}

// archiveTrades stores trades when archiving is enabled. Failures are logged
// and never fail the query.
func (h *TradeHandler) archiveTrades(trades []models.Trade) {
	if h.archive == nil || len(trades) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	queryID := uuid.NewString()
	if err := h.archive.StoreTrades(ctx, queryID, trades); err != nil {
		h.logger.Error("Failed to archive trades",
			zap.String("query_id", queryID),
			zap.Int("trades", len(trades)),
			zap.Error(err))
	}
}

func (h *TradeHandler) respondQueryError(c *gin.Context, err error) {
	if isValidationError(err) {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	h.logger.Error("Trade query failed", zap.Error(err))
	respondError(c, http.StatusInternalServerError, "query_failed", "Trade query failed")
}

// GetTrades returns the last query's trades
// @Summary Get the last query's trades
// @Tags trades
// @Produce json
// @Success 200 {object} models.APIResponse{data=TradesView} "Success"
// @Router /trades [get]
func (h *TradeHandler) GetTrades(c *gin.Context) {
	view := TradesView{Trades: []models.FormattedTrade{}}
	if sess := h.sessions.Lookup(c); sess != nil {
		symbol, trades := sess.QueryResult()
		view.Symbol = symbol
		view.Trades = query.Format(trades, h.location)
		view.TotalCount = len(trades)
	}
	respondOK(c, "", view)
}

// AnalyzeTrades analyzes the selected trades of the last query
// @Summary Analyze selected trades
// @Description Computes volume-weighted buy and sell prices, commissions and a matched-volume profit estimate for the selected trades. Out-of-range indices are ignored.
// @Tags trades
// @Accept json
// @Produce json
// @Param request body AnalyzeRequest true "Selected trade indices"
// @Success 200 {object} models.APIResponse{data=calculator.TradeAnalysis} "Success"
// @Failure 400 {object} models.ErrorResponse "No valid selection"
// @Router /trades/analyze [post]
func (h *TradeHandler) AnalyzeTrades(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.SelectedIndices) == 0 {
		respondError(c, http.StatusBadRequest, "invalid_request", "Select at least one trade to analyze")
		return
	}

	sess := h.sessions.Lookup(c)
	if sess == nil {
		respondError(c, http.StatusBadRequest, "no_trades", "Run a query before analyzing")
		return
	}
	_, trades := sess.QueryResult()
	if len(trades) == 0 {
		respondError(c, http.StatusBadRequest, "no_trades", "Run a query before analyzing")
		return
	}

	selected := query.Select(trades, req.SelectedIndices)
	analysis, err := h.analyzer.Analyze(selected)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_selection", "None of the selected trades exist")
		return
	}

	sess.SetAnalysis(analysis, selected)
	respondOK(c, fmt.Sprintf("Analyzed %d trades", analysis.TotalCount), analysis)
}

// ExportReport downloads the last analysis as CSV
// @Summary Export the analysis report
// @Tags trades
// @Produce text/csv
// @Success 200 {file} file "CSV report"
// @Failure 404 {object} models.ErrorResponse "No analysis available"
// @Router /report.csv [get]
func (h *TradeHandler) ExportReport(c *gin.Context) {
	sess := h.sessions.Lookup(c)
	if sess == nil {
		respondError(c, http.StatusNotFound, "no_analysis", "Analyze trades before exporting")
		return
	}
	analysis, selected, symbol := sess.Analysis()
	if analysis == nil {
		respondError(c, http.StatusNotFound, "no_analysis", "Analyze trades before exporting")
		return
	}

	now := time.Now().In(h.location)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(symbol, now)))
	c.Status(http.StatusOK)
	if err := report.WriteCSV(c.Writer, symbol, analysis, selected, now); err != nil {
		h.logger.Error("Failed to write report", zap.Error(err))
	}
}
