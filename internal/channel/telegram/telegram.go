// ABOUTME: Telegram contact channel using the Bot API with long polling
// ABOUTME: Implements messaging.Sender and pumps inbound messages to the router

package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/solvencia/chatdesk/internal/messaging"
)

// InboundHandler receives every normalized contact message. Implementations
// own their error handling; the channel only logs what they return.
type InboundHandler func(ctx context.Context, msg messaging.Inbound) error

// Channel connects to Telegram via long polling. The contact id is the
// decimal Telegram chat id.
type Channel struct {
	bot     *telego.Bot
	handler InboundHandler
	logger  *slog.Logger
	running atomic.Bool

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a Telegram channel. Pass nil logger for the default. The
// inbound handler is wired afterwards via SetHandler because the router
// needs the channel as its sender first.
func New(token string, logger *slog.Logger) (*Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Channel{
		bot:    bot,
		logger: logger.With("component", "telegram"),
	}, nil
}

// SetHandler installs the inbound message handler. Must be called before Start.
func (c *Channel) SetHandler(handler InboundHandler) {
	c.handler = handler
}

// Start begins long polling for updates and returns once polling is running
func (c *Channel) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.running.Store(true)
	c.logger.Info("telegram channel connected")

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					c.logger.Info("telegram updates channel closed")
					return
				}
				c.handleUpdate(pollCtx, update)
			}
		}
	}()

	return nil
}

// Stop cancels long polling and waits for the pump goroutine to exit so
// Telegram releases the getUpdates lock before a restart.
func (c *Channel) Stop(_ context.Context) error {
	c.running.Store(false)
	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
		case <-time.After(10 * time.Second):
			c.logger.Warn("telegram polling goroutine did not exit within timeout")
		}
	}
	return nil
}

func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	message := update.Message
	if message == nil || message.From == nil || c.handler == nil {
		return
	}
	// Only direct conversations carry debt consultations
	if message.Chat.Type != telego.ChatTypePrivate {
		return
	}

	msg := messaging.Inbound{
		ContactID:  strconv.FormatInt(message.Chat.ID, 10),
		Text:       extractText(message),
		HasMedia:   hasMedia(message),
		ReceivedAt: time.Unix(message.Date, 0),
	}

	c.logger.Debug("telegram message received", "contact_id", msg.ContactID, "has_media", msg.HasMedia)

	// Each message runs its own pipeline; per-contact ordering is the
	// lease's problem, not the channel's
	go func() {
		if err := c.handler(ctx, msg); err != nil {
			c.logger.Error("inbound handling failed", "contact_id", msg.ContactID, "error", err)
		}
	}()
}

// extractText returns the message text, falling back to a media caption
func extractText(message *telego.Message) string {
	if message.Text != "" {
		return message.Text
	}
	return message.Caption
}

func hasMedia(message *telego.Message) bool {
	return len(message.Photo) > 0 ||
		message.Document != nil ||
		message.Voice != nil ||
		message.Audio != nil ||
		message.Video != nil ||
		message.Sticker != nil
}

// Send delivers a text message to a contact
func (c *Channel) Send(ctx context.Context, contactID, text string) error {
	chatID, err := parseContactID(contactID)
	if err != nil {
		return err
	}
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		return fmt.Errorf("send message to %s: %w", contactID, err)
	}
	return nil
}

// SendTyping shows the typing indicator. Telegram clears it on its own
// after a few seconds, so the hint duration is advisory only.
func (c *Channel) SendTyping(ctx context.Context, contactID string, _ time.Duration) error {
	chatID, err := parseContactID(contactID)
	if err != nil {
		return err
	}
	action := tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)
	if err := c.bot.SendChatAction(ctx, action); err != nil {
		return fmt.Errorf("send typing to %s: %w", contactID, err)
	}
	return nil
}

// Ready reports whether the channel is polling
func (c *Channel) Ready() bool {
	return c.running.Load()
}

func parseContactID(contactID string) (int64, error) {
	chatID, err := strconv.ParseInt(contactID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid contact id %q: %w", contactID, err)
	}
	return chatID, nil
}
