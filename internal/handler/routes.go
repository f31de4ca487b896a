package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the account and trade endpoints on v1.
func RegisterRoutes(v1 *gin.RouterGroup, accounts *AccountHandler, trades *TradeHandler) {
	v1.POST("/accounts", accounts.AddAccount)
	v1.GET("/accounts", accounts.ListAccounts)
	v1.DELETE("/accounts", accounts.ClearAccounts)
	v1.DELETE("/accounts/:name", accounts.RemoveAccount)

	v1.POST("/trades/query", trades.QueryTrades)
	v1.GET("/trades/query/ws", trades.StreamQuery)
	v1.GET("/trades", trades.GetTrades)
	v1.POST("/trades/analyze", trades.AnalyzeTrades)
	v1.GET("/report.csv", trades.ExportReport)
}
