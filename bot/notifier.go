package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"order-display/models"
)

const (
	// dedupWindow suppresses a repeat notification for the same order and status.
	dedupWindow = 30 * time.Second
	// cardTTL is how long an order's card stays editable before a new one is posted.
	cardTTL = time.Hour
)

// Sender is the part of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier is a hub subscriber that posts completed orders and status
// broadcasts to the admin chat through the message bot. Each order gets one
// card that is edited in place as its status changes.
type Notifier struct {
	api    Sender
	chatID int64
	log    *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	sent  map[string]time.Time // orderID|status -> last send
	cards map[string]cardPointer
}

type cardPointer struct {
	messageID int
	at        time.Time
}

// NewMessageBot connects the bot that only sends notifications (MESSAGE_TOKEN).
func NewMessageBot(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("message bot: %w", err)
	}
	return api, nil
}

func NewNotifier(api Sender, chatID int64, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		api:    api,
		chatID: chatID,
		log:    log.Named("telegram"),
		now:    time.Now,
		sent:   make(map[string]time.Time),
		cards:  make(map[string]cardPointer),
	}
}

func (n *Notifier) ID() string { return "telegram-admin" }

// Receive never fails for Telegram errors or timeouts; they are logged and
// the event is not marked as sent.
func (n *Notifier) Receive(ctx context.Context, ev models.Event) error {
	var orderID, status, text string
	switch p := ev.Payload.(type) {
	case *models.Order:
		if ev.Name != models.EventOrderUpdate || p == nil || !p.IsCompleted() {
			return nil
		}
		orderID, status, text = p.OrderID, p.Status, BuildOrderCard(p)
	case models.StatusUpdate:
		orderID, status, text = p.OrderID, p.Status, BuildStatusCard(p)
	default:
		return nil
	}
	if n.sentRecently(orderID, status) {
		n.log.Debug("notification suppressed", zap.String("order_id", orderID), zap.String("status", status))
		return nil
	}
	if err := n.upsertCard(ctx, orderID, text); err != nil {
		n.log.Warn("send error", zap.String("order_id", orderID), zap.Error(err))
		return nil
	}
	n.markSent(orderID, status)
	return nil
}

// upsertCard edits the order's existing card, falling back to a new message
// when there is none or it was deleted from the chat.
func (n *Notifier) upsertCard(ctx context.Context, orderID, text string) error {
	if messageID, ok := n.cardFor(orderID); ok {
		edit := tgbotapi.NewEditMessageText(n.chatID, messageID, text)
		edit.ParseMode = tgbotapi.ModeMarkdown
		_, err := n.send(ctx, edit)
		if err == nil || strings.Contains(err.Error(), "not modified") {
			return nil
		}
		if !strings.Contains(err.Error(), "not found") {
			return err
		}
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := n.send(ctx, msg)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.cards[orderID] = cardPointer{messageID: sent.MessageID, at: n.now()}
	n.mu.Unlock()
	return nil
}

// send gives up when ctx ends. The Bot API call itself cannot be cancelled;
// its late result is discarded.
func (n *Notifier) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.Message{}, err
	}
	type result struct {
		msg tgbotapi.Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := n.api.Send(c)
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		return r.msg, r.err
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	}
}

func (n *Notifier) cardFor(orderID string) (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.cards[orderID]
	if !ok || n.now().Sub(p.at) >= cardTTL {
		return 0, false
	}
	return p.messageID, true
}

func (n *Notifier) sentRecently(orderID, status string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	at, ok := n.sent[orderID+"|"+status]
	return ok && n.now().Sub(at) < dedupWindow
}

func (n *Notifier) markSent(orderID, status string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	for k, at := range n.sent {
		if now.Sub(at) >= dedupWindow {
			delete(n.sent, k)
		}
	}
	for k, p := range n.cards {
		if now.Sub(p.at) >= cardTTL {
			delete(n.cards, k)
		}
	}
	n.sent[orderID+"|"+status] = now
}
