package models

// Trade is the canonical fill shared by every exchange client. Numeric
// fields are decimal strings; Time is epoch milliseconds.
type Trade struct {
	ID              string `json:"id"`
	OrderID         string `json:"orderId"`
	Symbol          string `json:"symbol"`
	Time            string `json:"time"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	QuoteQty        string `json:"quoteQty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	IsBuyer         bool   `json:"isBuyer"`
	IsMaker         bool   `json:"isMaker"`
	AccountName     string `json:"account_name,omitempty"`
	Exchange        string `json:"exchange,omitempty"`
}

// FormattedTrade is the display row built from a merged Trade.
type FormattedTrade struct {
	Index           int    `json:"index"`
	ID              string `json:"id"`
	Account         string `json:"account"`
	Exchange        string `json:"exchange"`
	Time            string `json:"time"`
	Direction       string `json:"direction"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Amount          string `json:"amount"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commission_asset"`
	RawData         Trade  `json:"raw_data"`
}

// AccountQueryResult is the per-account outcome of a multi-account query.
type AccountQueryResult struct {
	AccountName string  `json:"account_name"`
	Exchange    string  `json:"exchange"`
	Trades      []Trade `json:"-"`
	Success     bool    `json:"success"`
	Count       int     `json:"count"`
	Error       string  `json:"error,omitempty"`
}

// QuerySummary aggregates account outcomes of one query.
type QuerySummary struct {
	TotalAccounts      int `json:"total_accounts"`
	SuccessfulAccounts int `json:"successful_accounts"`
	FailedAccounts     int `json:"failed_accounts"`
	TotalTrades        int `json:"total_trades"`
}

// AccountInfo describes a registered account without its secrets.
type AccountInfo struct {
	Name          string `json:"name"`
	Exchange      string `json:"exchange"`
	Testnet       bool   `json:"testnet"`
	HasPassphrase bool   `json:"has_passphrase"`
}

type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Timestamp int64  `json:"timestamp"`
}

type HealthResponse struct {
	Status          string          `json:"status"`
	Version         string          `json:"version"`
	Timestamp       int64           `json:"timestamp"`
	Uptime          int64           `json:"uptime,omitempty"`
	ArchiveEnabled  bool            `json:"archive_enabled"`
	ArchiveHealthy  bool            `json:"archive_healthy,omitempty"`
	SessionHitRatio float64         `json:"session_hit_ratio"`
	Scheduler       *SchedulerStats `json:"scheduler,omitempty"`
}

// SchedulerStats lists the registered background jobs.
type SchedulerStats struct {
	TotalJobs int        `json:"total_jobs"`
	Jobs      []JobStats `json:"jobs"`
}

type JobStats struct {
	Name    string `json:"name"`
	NextRun int64  `json:"next_run,omitempty"`
	PrevRun int64  `json:"prev_run,omitempty"`
}
