package handlers

import (
	"academyhub/repository"
	"academyhub/services"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	msgWelcome     = "Welcome! Send the 8-character link code from your academy to receive attendance and payment updates here."
	msgLinked      = "Your LINE account is now linked. You will receive updates about %s."
	msgUnknownCode = "That link code was not recognised. Please check the code your academy gave you."
)

// Replier answers webhook events.
type Replier interface {
	ReplyText(replyToken, text string) error
}

// LineWebhookHandler receives events from the academy LINE official account.
// Parents link their LINE user by sending their link code.
type LineWebhookHandler struct {
	secret  string
	parents *services.ParentService
	replier Replier
	// Sync runs event processing inline; the webhook otherwise answers first.
	Sync bool
}

func NewLineWebhookHandler(db *gorm.DB, secret string, replier Replier) *LineWebhookHandler {
	return &LineWebhookHandler{secret: secret, parents: services.NewParentService(db), replier: replier}
}

func (h *LineWebhookHandler) Handle(c *fiber.Ctx) error {
	if h.secret == "" {
		logrus.Debug("LINE webhook called but LINE is not configured")
		return c.SendStatus(fiber.StatusOK)
	}
	signature := c.Get("X-Line-Signature")
	if signature == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if !ValidateSignature(h.secret, c.Body(), signature) {
		logrus.WithField("ip", c.IP()).Warn("LINE webhook signature mismatch")
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var payload struct {
		Events []*linebot.Event `json:"events"`
	}
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		logrus.WithError(err).Warn("LINE webhook body is not valid JSON")
		return c.SendStatus(fiber.StatusBadRequest)
	}

	// LINE expects a quick 200; replies are sent afterwards.
	if h.Sync {
		h.process(payload.Events)
	} else {
		go h.process(payload.Events)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *LineWebhookHandler) process(events []*linebot.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, ev := range events {
		if ev == nil || ev.Source == nil {
			continue
		}
		switch ev.Type {
		case linebot.EventTypeFollow:
			h.reply(ev.ReplyToken, msgWelcome)
		case linebot.EventTypeMessage:
			text, ok := ev.Message.(*linebot.TextMessage)
			if !ok || ev.Source.UserID == "" {
				continue
			}
			h.handleText(ctx, ev, text.Text)
		}
	}
}

func (h *LineWebhookHandler) handleText(ctx context.Context, ev *linebot.Event, text string) {
	parent, err := h.parents.LinkLine(ctx, text, ev.Source.UserID)
	switch {
	case err == nil:
		logrus.WithFields(logrus.Fields{"parent_id": parent.ID, "academy_id": parent.AcademyID}).Info("parent linked LINE account")
		name := "your children"
		if children, cerr := h.parents.Children(ctx, parent); cerr == nil && len(children) == 1 {
			name = children[0].FullName()
		}
		h.reply(ev.ReplyToken, fmt.Sprintf(msgLinked, name))
	case errors.Is(err, repository.ErrNotFound):
		h.reply(ev.ReplyToken, msgUnknownCode)
	default:
		logrus.WithError(err).Error("LINE link failed")
	}
}

func (h *LineWebhookHandler) reply(token, text string) {
	if h.replier == nil || token == "" {
		return
	}
	if err := h.replier.ReplyText(token, text); err != nil {
		logrus.WithError(err).Warn("LINE reply failed")
	}
}

// ComputeSignature returns the base64 HMAC-SHA256 LINE sends in X-Line-Signature.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func ValidateSignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(ComputeSignature(secret, body)))
}
