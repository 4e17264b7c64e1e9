package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/observability"
	"github.com/noah-isme/academy-api/internal/repository"
)

const notificationBufferSize = 16

// Notifier is the write side used by the other services.
type Notifier interface {
	// Notify persists a notification and pushes it to subscribers.
	Notify(ctx context.Context, notification models.Notification) (dto.NotificationResponse, error)
	// NotifyOnce persists a notification carrying a DedupeKey unless one with the
	// same key exists. Duplicates are not an error.
	NotifyOnce(ctx context.Context, notification models.Notification) (bool, error)
	// Deliver pushes an already persisted notification to subscribers.
	Deliver(ctx context.Context, notification models.Notification)
	// FanOut notifies every user independently and reports the failures.
	FanOut(ctx context.Context, userIDs []uint, template models.Notification) dto.FanOutReport
}

// NotificationService publishes notifications and streams them to their owners.
type NotificationService interface {
	Notifier
	List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]dto.NotificationResponse, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id uint, userID uint) (dto.NotificationResponse, error)
	Subscribe(userID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo         repository.NotificationRepository
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	broker       *notificationBroker
	nodeID       string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. Redis and NATS are
// optional relays used to reach websocket clients connected to other nodes.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) NotificationService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:         repo,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "notification_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/academy-api/internal/service/notification"),
		sanitizer:    bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[uint]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *notificationService) clean(notification *models.Notification) {
	notification.Title = strings.TrimSpace(s.sanitizer.Sanitize(notification.Title))
	notification.Message = strings.TrimSpace(s.sanitizer.Sanitize(notification.Message))
	if notification.Type == "" {
		notification.Type = models.NotificationSystem
	}
}

func (s *notificationService) Notify(ctx context.Context, notification models.Notification) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(notification.UserID)),
		attribute.String("notification.type", string(notification.Type)),
	))
	defer span.End()

	s.clean(&notification)
	if notification.UserID == 0 || notification.Title == "" {
		return dto.NotificationResponse{}, fmt.Errorf("%w: notification needs a recipient and a title", ErrValidation)
	}

	if err := s.repo.Create(spanCtx, &notification); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(notification)
	s.push(spanCtx, response)
	return response, nil
}

func (s *notificationService) NotifyOnce(ctx context.Context, notification models.Notification) (bool, error) {
	if notification.DedupeKey == nil {
		if _, err := s.Notify(ctx, notification); err != nil {
			return false, err
		}
		return true, nil
	}

	s.clean(&notification)
	created, err := s.repo.CreateIfAbsent(ctx, &notification)
	if err != nil {
		return false, err
	}
	if created {
		s.push(ctx, dto.NewNotificationResponse(notification))
	}
	return created, nil
}

func (s *notificationService) Deliver(ctx context.Context, notification models.Notification) {
	s.push(ctx, dto.NewNotificationResponse(notification))
}

func (s *notificationService) FanOut(ctx context.Context, userIDs []uint, template models.Notification) dto.FanOutReport {
	report := dto.FanOutReport{Attempted: len(userIDs), Failures: []dto.FanOutFailure{}}

	for _, userID := range userIDs {
		notification := template
		notification.ID = 0
		notification.UserID = userID

		if _, err := s.Notify(ctx, notification); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", userID).Str("type", string(template.Type)).Msg("failed to notify student")
			report.Failures = append(report.Failures, dto.FanOutFailure{StudentID: userID, Error: err.Error()})
			continue
		}
		report.Delivered++
	}

	return report
}

func (s *notificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]dto.NotificationResponse, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID uint) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(userID)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(userID uint) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(userID, channel)
	observability.NotificationListeners().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(userID, channel)
			observability.NotificationListeners().Dec()
		})
	}

	return channel, cleanup
}

func (s *notificationService) push(ctx context.Context, notification dto.NotificationResponse) {
	s.broker.broadcast(notification.UserID, notification)
	observability.NotificationsPublished().WithLabelValues(notification.Type).Inc()

	if err := s.relay(ctx, notification); err != nil {
		s.logger.Warn().Err(err).Msg("failed to relay notification to other nodes")
	}
}

func (s *notificationService) relay(ctx context.Context, notification dto.NotificationResponse) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	// every node must see every event, so this is a plain subscription, not a queue group
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID || event.Notification.UserID == 0 {
		return
	}

	s.broker.broadcast(event.Notification.UserID, event.Notification)
}

func (b *notificationBroker) subscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *notificationBroker) broadcast(userID uint, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- notification:
		default:
		}
	}
}
