package httpclient

import (
	"context"
	"time"

	"backtest-worker/pkg/logger"

	"github.com/go-resty/resty/v2"
)

type RestyClient struct {
	client *resty.Client
	log    *logger.Logger
}

// New builds a JSON client for baseURL. An empty bearerToken sends no
// Authorization header.
func New(log *logger.Logger, baseURL string, timeout time.Duration, bearerToken string) HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if bearerToken != "" {
		client.SetAuthToken(bearerToken)
	}

	return &RestyClient{client: client, log: log}
}

// GET request with optional query params
func (rc *RestyClient) Get(ctx context.Context, endpoint string, queryParams map[string]string, headers map[string]string, result interface{}) (*BaseResponse, error) {
	req := rc.client.R().SetContext(ctx)
	if result != nil {
		req.SetResult(result)
	}
	if queryParams != nil {
		req.SetQueryParams(queryParams)
	}
	if headers != nil {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(endpoint)
	return rc.response(ctx, "GET", endpoint, resp, err)
}

// POST request with body
func (rc *RestyClient) Post(ctx context.Context, endpoint string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error) {
	req := rc.client.R().
		SetContext(ctx).
		SetBody(body)
	if result != nil {
		req.SetResult(result)
	}
	if headers != nil {
		req.SetHeaders(headers)
	}

	resp, err := req.Post(endpoint)
	return rc.response(ctx, "POST", endpoint, resp, err)
}

func (rc *RestyClient) response(ctx context.Context, method, endpoint string, resp *resty.Response, err error) (*BaseResponse, error) {
	if err != nil {
		rc.log.DebugContext(ctx, "HTTP request failed",
			logger.StringField("method", method),
			logger.StringField("endpoint", endpoint),
			logger.ErrorField(err))
	}
	if resp == nil {
		return &BaseResponse{}, err
	}

	rc.log.DebugContext(ctx, "HTTP request completed",
		logger.StringField("method", method),
		logger.StringField("endpoint", endpoint),
		logger.IntField("status_code", resp.StatusCode()),
		logger.DurationField("duration", resp.Time()))

	return &BaseResponse{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Headers:    resp.Header(),
	}, err
}
