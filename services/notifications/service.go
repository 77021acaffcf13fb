package notifications

import (
	"academyhub/config"
	"academyhub/database"
	"academyhub/models"
	"academyhub/utils"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Queued is the payload stored in Redis. One item may fan out to many users.
type Queued struct {
	UserIDs   []string  `json:"user_ids"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Channels  []string  `json:"channels,omitempty"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const redisListKey = "notifications:queue"

const (
	ChannelNormal = "normal"
	ChannelPopup  = "popup"
	ChannelLine   = "line"
)

// WSHub interface for WebSocket broadcasting
type WSHub interface {
	BroadcastToUser(userID string, message interface{})
}

// LinePusher delivers plain text to a LINE user id.
type LinePusher interface {
	PushText(to, text string) error
}

var (
	defaultHub  WSHub
	defaultLine LinePusher
)

// SetDefaultWSHub sets the hub used by every new Service.
func SetDefaultWSHub(h WSHub) { defaultHub = h }

// SetDefaultLinePusher sets the LINE client used by every new Service.
func SetDefaultLinePusher(p LinePusher) { defaultLine = p }

// Service creates notifications, through the Redis queue when enabled or
// straight into the database otherwise.
type Service struct {
	db       *gorm.DB
	redis    *redis.Client
	useRedis bool
	wsHub    WSHub
	line     LinePusher
}

func NewService() *Service {
	return &Service{
		db:       database.GetDB(),
		redis:    database.GetRedisClient(),
		useRedis: config.AppConfig != nil && config.AppConfig.UseRedisNotifications && database.GetRedisClient() != nil,
		wsHub:    defaultHub,
		line:     defaultLine,
	}
}

// SetWebSocketHub sets the WebSocket hub for real-time notifications
func (s *Service) SetWebSocketHub(hub WSHub) { s.wsHub = hub }

// SetLinePusher overrides the LINE client.
func (s *Service) SetLinePusher(p LinePusher) { s.line = p }

// NormalizeChannels keeps only allowed values and ensures a default channel.
func NormalizeChannels(in []string) []string {
	allowed := map[string]struct{}{ChannelNormal: {}, ChannelPopup: {}, ChannelLine: {}}
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, ch := range in {
		if _, ok := allowed[ch]; !ok {
			continue
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		out = append(out, ch)
		seen[ch] = struct{}{}
	}
	if len(out) == 0 {
		out = []string{ChannelNormal}
	}
	return out
}

// New builds a queued notification.
func New(title, message, typ string, data any, channels ...string) Queued {
	return Queued{Title: title, Message: message, Type: typ, Data: data, Channels: NormalizeChannels(channels)}
}

// EnqueueOrCreate stores notifications using Redis queue if enabled, else direct insert.
func (s *Service) EnqueueOrCreate(ctx context.Context, userIDs []string, n Queued) error {
	if len(userIDs) == 0 {
		return errors.New("no user ids")
	}
	n.UserIDs = userIDs
	n.CreatedAt = time.Now().UTC()

	if s.useRedis {
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err = s.redis.RPush(ctx, redisListKey, b).Err(); err == nil {
			return nil
		}
		logrus.WithError(err).Warn("notification queue push failed, inserting directly")
	}
	return s.createDirect(ctx, userIDs, n)
}

func (s *Service) createDirect(ctx context.Context, userIDs []string, n Queued) error {
	if len(userIDs) == 0 {
		return nil
	}
	channels := NormalizeChannels(n.Channels)
	channelsJSON, err := json.Marshal(channels)
	if err != nil {
		channelsJSON = []byte(`["normal"]`)
	}
	var dataJSON []byte
	if n.Data != nil {
		if b, err := json.Marshal(n.Data); err == nil {
			dataJSON = b
		}
	}

	notifs := make([]models.Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		notifs = append(notifs, models.Notification{
			UserID:   uid,
			Title:    n.Title,
			Message:  n.Message,
			Type:     n.Type,
			Channels: channelsJSON,
			Data:     dataJSON,
		})
	}
	if err := s.db.WithContext(ctx).Create(&notifs).Error; err != nil {
		return err
	}

	if s.wsHub != nil {
		for _, notif := range notifs {
			s.wsHub.BroadcastToUser(notif.UserID, map[string]interface{}{
				"type": "notification",
				"data": utils.ToNotificationDTO(notif),
			})
		}
	}

	if contains(channels, ChannelLine) {
		s.pushLine(ctx, userIDs, n)
	}
	return nil
}

// pushLine sends the text to users that linked a LINE account. Failures are logged only.
func (s *Service) pushLine(ctx context.Context, userIDs []string, n Queued) {
	if s.line == nil {
		return
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "line_user_id").
		Where("id IN ? AND line_user_id <> ''", userIDs).Find(&users).Error; err != nil {
		logrus.WithError(err).Warn("line recipients lookup failed")
		return
	}
	text := n.Title
	if n.Message != "" {
		text += "\n" + n.Message
	}
	for _, u := range users {
		if err := s.line.PushText(u.LineUserID, text); err != nil {
			logrus.WithError(err).WithField("user_id", u.ID).Warn("line push failed")
		}
	}
}

// PushLineDirect sends text to a LINE user id that has no login account (e.g. a linked parent).
func (s *Service) PushLineDirect(lineUserID, text string) error {
	if s.line == nil {
		return errors.New("line messaging disabled")
	}
	return s.line.PushText(lineUserID, text)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// StartWorker polls the Redis queue and flushes it to the database until stop closes.
func (s *Service) StartWorker(stop <-chan struct{}) {
	if !s.useRedis {
		logrus.Info("redis notifications disabled; worker not started")
		return
	}
	go func() {
		logrus.Info("notification worker started")
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		ctx := context.Background()
		for {
			select {
			case <-stop:
				logrus.Info("notification worker stopping")
				return
			case <-ticker.C:
				s.flushBatch(ctx, 200)
			}
		}
	}()
}

func (s *Service) flushBatch(ctx context.Context, batchSize int) {
	if s.redis == nil {
		return
	}
	for i := 0; i < 5; i++ {
		vals, err := s.redis.LRange(ctx, redisListKey, 0, int64(batchSize-1)).Result()
		if err != nil || len(vals) == 0 {
			return
		}
		if err = s.redis.LTrim(ctx, redisListKey, int64(len(vals)), -1).Err(); err != nil {
			logrus.WithError(err).Warn("notification queue trim failed")
		}
		for _, raw := range vals {
			var q Queued
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				continue
			}
			if err := s.createDirect(ctx, q.UserIDs, q); err != nil {
				logrus.WithError(err).Error("notification insert failed")
			}
		}
		if len(vals) < batchSize {
			return
		}
	}
}

// UsersByRole returns ids of active users of an academy holding any of roles.
func UsersByRole(ctx context.Context, db *gorm.DB, academyID string, roles ...string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&models.User{}).
		Where("academy_id = ? AND role IN ? AND status = ?", academyID, roles, "active").
		Pluck("id", &ids).Error
	return ids, err
}
