package services

import (
	"academyhub/config"
	"errors"
	"fmt"

	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
)

// LineMessagingService wraps the LINE Messaging API client of the academy account.
type LineMessagingService struct {
	Bot *linebot.Client
}

// NewLineMessagingService returns a disabled service when credentials are missing.
func NewLineMessagingService(cfg *config.Config) *LineMessagingService {
	if cfg == nil || cfg.LineChannelSecret == "" || cfg.LineChannelAccessToken == "" {
		logrus.Warn("LINE messaging disabled: LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN not set")
		return &LineMessagingService{}
	}
	bot, err := linebot.New(cfg.LineChannelSecret, cfg.LineChannelAccessToken)
	if err != nil {
		logrus.WithError(err).Error("cannot create LINE bot client")
		return &LineMessagingService{}
	}
	return &LineMessagingService{Bot: bot}
}

func (s *LineMessagingService) Enabled() bool { return s != nil && s.Bot != nil }

// PushText sends a text message to a user or group id.
func (s *LineMessagingService) PushText(to, text string) error {
	if !s.Enabled() {
		return errors.New("LINE bot client is not initialized")
	}
	if _, err := s.Bot.PushMessage(to, linebot.NewTextMessage(text)).Do(); err != nil {
		return fmt.Errorf("LINE messaging API: %w", err)
	}
	return nil
}

// ReplyText answers a webhook event.
func (s *LineMessagingService) ReplyText(replyToken, text string) error {
	if !s.Enabled() {
		return errors.New("LINE bot client is not initialized")
	}
	if _, err := s.Bot.ReplyMessage(replyToken, linebot.NewTextMessage(text)).Do(); err != nil {
		return fmt.Errorf("LINE reply: %w", err)
	}
	return nil
}
