package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backtest-worker/config"
	"backtest-worker/internal/dto"
	"backtest-worker/internal/model"
	"backtest-worker/pkg/httpclient"
	"backtest-worker/pkg/logger"
	"backtest-worker/pkg/ratelimit"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// NotificationSink delivers a finished-job notification to a user.
type NotificationSink interface {
	Send(ctx context.Context, notification dto.Notification) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository stores notifications in the notifications
// table, where the app inbox picks them up.
func NewNotificationRepository(db *gorm.DB) NotificationSink {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Send(ctx context.Context, notification dto.Notification) error {
	userID, err := uuid.Parse(notification.UserID)
	if err != nil {
		return fmt.Errorf("invalid notification user id %q: %w", notification.UserID, err)
	}
	data, err := json.Marshal(notification.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	row := model.Notification{
		UserID:  userID,
		Type:    notification.Type,
		Title:   notification.Title,
		Message: notification.Message,
		Data:    data,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

type webhookNotifier struct {
	httpClient httpclient.HTTPClient
	limiters   *ratelimit.KeyedLimiter
	logger     *logger.Logger
}

// NewWebhookNotifier posts notifications as JSON to url. Deliveries are
// throttled per user to one per second with a small burst, and to twenty
// per second overall.
func NewWebhookNotifier(url string, cfg config.Notification, log *logger.Logger) NotificationSink {
	return &webhookNotifier{
		httpClient: httpclient.New(log, url, cfg.Timeout, ""),
		limiters:   ratelimit.NewKeyedLimiter(rate.Limit(1), 5, time.Hour).WithGlobal(rate.Limit(20), 20),
		logger:     log,
	}
}

func (n *webhookNotifier) Send(ctx context.Context, notification dto.Notification) error {
	if err := n.limiters.Wait(ctx, notification.UserID); err != nil {
		return err
	}

	resp, err := n.httpClient.Post(ctx, "", notification, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to post notification webhook: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("notification webhook returned status: %d", resp.StatusCode)
	}
	return nil
}

type multiSink []NotificationSink

// NewMultiSink sends to every sink and joins their errors. Nil sinks are
// skipped.
func NewMultiSink(sinks ...NotificationSink) NotificationSink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) Send(ctx context.Context, notification dto.Notification) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Send(ctx, notification))
	}
	return err
}

// NewNotificationSink wires the inbox store and, when configured, the
// webhook.
func NewNotificationSink(cfg *config.Config, db *gorm.DB, log *logger.Logger) NotificationSink {
	var webhook NotificationSink
	if cfg.Notification.WebhookURL != "" {
		webhook = NewWebhookNotifier(cfg.Notification.WebhookURL, cfg.Notification, log)
	}
	return NewMultiSink(NewNotificationRepository(db), webhook)
}
