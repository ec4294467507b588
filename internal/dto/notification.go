package dto

// Notification is the payload handed to a notification sink when a
// backtest job finishes successfully.
type Notification struct {
	UserID  string           `json:"user_id"`
	Type    string           `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Data    NotificationData `json:"data"`
}

type NotificationData struct {
	JobID        string       `json:"job_id"`
	StrategyID   string       `json:"strategy_id"`
	WinRate      float64      `json:"win_rate"`
	ProfitFactor ProfitFactor `json:"profit_factor"`
}
