package dto

import "net/http"

type BaseResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewBaseResponse(code int, message string, data interface{}) *BaseResponse {
	return &BaseResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func NewSuccessResponse(message string, data interface{}) *BaseResponse {
	return NewBaseResponse(http.StatusOK, message, data)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type DispatchRequest struct {
	MaxJobs int `json:"max_jobs" validate:"omitempty,min=1,max=50"`
}

type DispatchResponse struct {
	Message string       `json:"message"`
	Results []JobOutcome `json:"results"`
}

// JobView is the read model returned by the job lookup endpoint.
type JobView struct {
	ID         string          `json:"id"`
	StrategyID string          `json:"strategy_id"`
	UserID     string          `json:"user_id"`
	Status     string          `json:"status"`
	Params     BacktestParams  `json:"params"`
	Result     *BacktestResult `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}
