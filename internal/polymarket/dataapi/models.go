package dataapi

// Trade represents a trade from the Data API
type Trade struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Pseudonym       string  `json:"pseudonym"` // display handle, empty for hidden profiles
	Side            string  `json:"side"`      // BUY, SELL
	ConditionID     string  `json:"conditionId"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"` // Unix timestamp in seconds
	Outcome         string  `json:"outcome"`   // YES, NO
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	EventSlug       string  `json:"eventSlug"`
	TransactionHash string  `json:"transactionHash"`
	USDCSize        float64 `json:"usdcSize"` // Preferred notional
}

// Activity represents an activity record for a wallet
type Activity struct {
	ProxyWallet string  `json:"proxyWallet"`
	Type        string  `json:"type"` // TRADE, REDEEM, SPLIT, MERGE, ...
	Side        string  `json:"side"` // BUY, SELL (TRADE only)
	ConditionID string  `json:"conditionId"`
	Size        float64 `json:"size"`
	USDCSize    float64 `json:"usdcSize"`
	Price       float64 `json:"price"`
	Timestamp   int64   `json:"timestamp"` // Unix timestamp in seconds
	Slug        string  `json:"slug"`
}

// TradesResponse wraps the trades API response
type TradesResponse struct {
	Trades []Trade
	Count  int
}

// TradeParams holds parameters for the GetTrades call
type TradeParams struct {
	Limit          int
	Offset         int
	TakerOnly      bool
	TimestampAfter int64 // only trades at or after this Unix timestamp
	Market         string
	User           string
	Side           string // BUY, SELL
}
