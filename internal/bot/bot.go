package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/support-bot/internal/i18n"
	"github.com/xaenox/support-bot/internal/models"
	"github.com/xaenox/support-bot/internal/storage"
	"github.com/xaenox/support-bot/internal/ticket"
)

const (
	buttonRussian = "Русский 🇷🇺"
	buttonEnglish = "English 🇺🇸"
)

// Options carries the chat identities and presentation settings the bot
// needs besides its collaborators.
type Options struct {
	GroupID     int64
	DevID       int64
	DefaultLang string

	EmojiNew        string
	EmojiInProgress string
	EmojiResolved   string
}

type Bot struct {
	api     *tgbotapi.BotAPI
	engine  *ticket.Engine
	store   storage.Storage
	catalog *i18n.Catalog
	opts    Options
	logger  *zap.Logger
}

func New(token string, engine *ticket.Engine, store storage.Storage, catalog *i18n.Catalog, opts Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if opts.EmojiNew == "" {
		opts.EmojiNew = "🆕"
	}
	if opts.EmojiInProgress == "" {
		opts.EmojiInProgress = "🔵"
	}
	if opts.EmojiResolved == "" {
		opts.EmojiResolved = "✅"
	}

	return &Bot{
		api:     api,
		engine:  engine,
		store:   store,
		catalog: catalog,
		opts:    opts,
		logger:  logger,
	}, nil
}

// Notifier returns the reminder/admin notification surface backed by
// this bot's transport.
func (b *Bot) Notifier() *TelegramNotifier {
	return &TelegramNotifier{api: b.api, groupID: b.opts.GroupID, devID: b.opts.DevID}
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.Chat.IsGroup() || message.Chat.IsSuperGroup() {
		b.handleGroupMessage(ctx, message)
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	if message.Text == buttonRussian || message.Text == buttonEnglish {
		b.handleLanguageChoice(ctx, message)
		return
	}

	b.handleUserMessage(ctx, message)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start", "help":
		b.handleStart(ctx, message)
	case "language":
		b.handleLanguage(ctx, message)
	case "mytickets":
		b.handleMyTickets(ctx, message)
	case "resolve":
		b.handleResolve(ctx, message)
	default:
		lang := b.userLang(ctx, message.From)
		b.sendMessage(message.Chat.ID, b.catalog.T(lang, "help_short"))
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	lang := b.userLang(ctx, message.From)
	if err := b.store.SetUserLang(ctx, message.From.ID, lang); err != nil {
		b.logger.Warn("Failed to save user language", zap.Error(err), zap.Int64("user_id", message.From.ID))
	}
	b.sendMessage(message.Chat.ID, b.catalog.T(lang, "welcome"))
	b.sendMessage(message.Chat.ID, b.catalog.T(lang, "help_short"))
}

func (b *Bot) handleLanguage(ctx context.Context, message *tgbotapi.Message) {
	lang := b.userLang(ctx, message.From)

	msg := tgbotapi.NewMessage(message.Chat.ID, b.catalog.T(lang, "choose_language"))
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonRussian),
			tgbotapi.NewKeyboardButton(buttonEnglish),
		),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send language keyboard", zap.Error(err), zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleLanguageChoice(ctx context.Context, message *tgbotapi.Message) {
	lang := "en"
	if message.Text == buttonRussian {
		lang = "ru"
	}
	if err := b.store.SetUserLang(ctx, message.From.ID, lang); err != nil {
		b.logger.Warn("Failed to save user language", zap.Error(err), zap.Int64("user_id", message.From.ID))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, b.catalog.T(lang, "language_set"))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to confirm language choice", zap.Error(err), zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleMyTickets(ctx context.Context, message *tgbotapi.Message) {
	lang := b.userLang(ctx, message.From)

	tickets, err := b.engine.TicketsForUser(ctx, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to list user tickets", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendMessage(message.Chat.ID, b.catalog.T(lang, "error_generic"))
		return
	}
	if len(tickets) == 0 {
		b.sendMessage(message.Chat.ID, b.catalog.T(lang, "no_tickets"))
		return
	}

	lines := make([]string, 0, len(tickets))
	for _, t := range tickets {
		created := time.Unix(t.CreatedAt, 0).Format("2006-01-02 15:04")
		lines = append(lines, b.catalog.T(lang, "ticket_line",
			"emoji", b.statusEmoji(t.Status),
			"id", strconv.FormatInt(t.ID, 10),
			"status", string(t.Status),
			"created", created))
	}
	b.sendMessage(message.Chat.ID, strings.Join(lines, "\n"))
}

// handleUserMessage opens a ticket for a plain private message: create
// the record, forward the message to the operator group, map the
// forwarded copy back to the ticket, confirm to the user.
func (b *Bot) handleUserMessage(ctx context.Context, message *tgbotapi.Message) {
	user := message.From
	lang := b.userLang(ctx, user)
	if err := b.store.SetUserLang(ctx, user.ID, lang); err != nil {
		b.logger.Warn("Failed to save user language", zap.Error(err), zap.Int64("user_id", user.ID))
	}

	text := message.Text
	if text == "" {
		if message.Caption != "" {
			text = message.Caption
		} else {
			text = "<media>"
		}
	}

	id, err := b.engine.Open(ctx, user.ID, user.UserName, lang, text)
	if err != nil {
		b.logger.Error("Failed to open ticket", zap.Error(err), zap.Int64("user_id", user.ID))
		b.sendMessage(message.Chat.ID, b.catalog.T(lang, "error_generic"))
		b.reportError(fmt.Sprintf("Error while creating ticket: %v", err))
		return
	}

	forwarded, err := b.api.Send(tgbotapi.NewForward(b.opts.GroupID, message.Chat.ID, message.MessageID))
	if err != nil {
		b.logger.Error("Failed to forward message to operators",
			zap.Error(err),
			zap.Int64("ticket_id", id))
		b.reportError(fmt.Sprintf("Error forwarding ticket #%d to group: %v", id, err))
	} else if err := b.engine.AttachForwarded(ctx, id, forwarded.MessageID); err != nil {
		b.logger.Error("Failed to attach forwarded message",
			zap.Error(err),
			zap.Int64("ticket_id", id),
			zap.Int("forwarded_msg_id", forwarded.MessageID))
	}

	b.sendMessage(message.Chat.ID, b.catalog.T(lang, "ticket_created",
		"id", strconv.FormatInt(id, 10),
		"emoji", b.opts.EmojiNew))

	displayName := user.UserName
	if displayName == "" {
		displayName = strconv.FormatInt(user.ID, 10)
	}
	b.sendMessage(b.opts.GroupID, b.catalog.T(b.opts.DefaultLang, "new_ticket_notification",
		"id", strconv.FormatInt(id, 10),
		"user", displayName))
}

// handleGroupMessage routes operator replies: only replies to a
// forwarded ticket message matter, everything else in the group is
// ignored.
func (b *Bot) handleGroupMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.ReplyToMessage == nil {
		return
	}
	if message.IsCommand() && message.Command() == "resolve" {
		b.handleGroupResolve(ctx, message)
		return
	}

	t, ok, err := b.engine.RouteReply(ctx, message.ReplyToMessage.MessageID)
	if err != nil {
		b.logger.Error("Failed to route operator reply", zap.Error(err))
		b.reportError(fmt.Sprintf("Error in group handler: %v", err))
		return
	}
	if !ok {
		return
	}

	if message.Text != "" {
		reply := b.catalog.T(t.Lang, "operator_reply_prefix") + "\n" + message.Text
		if err := b.deliverToUser(t.UserID, reply); err != nil {
			b.logger.Error("Failed to relay reply to user",
				zap.Error(err),
				zap.Int64("ticket_id", t.ID),
				zap.Int64("user_id", t.UserID))
			return
		}

		operatorLang := b.userLang(ctx, message.From)
		confirm := tgbotapi.NewMessage(message.Chat.ID, b.catalog.T(operatorLang, "posted_to_user"))
		confirm.ReplyToMessageID = message.MessageID
		if _, err := b.api.Send(confirm); err != nil {
			b.logger.Error("Failed to confirm relay", zap.Error(err))
		}
		return
	}

	// Media replies are forwarded as-is.
	if _, err := b.api.Send(tgbotapi.NewForward(t.UserID, message.Chat.ID, message.MessageID)); err != nil {
		b.logger.Error("Failed to forward media reply",
			zap.Error(err),
			zap.Int64("ticket_id", t.ID),
			zap.Int64("user_id", t.UserID))
	}
}

// handleGroupResolve lets operators close a ticket by replying to the
// forwarded message with /resolve.
func (b *Bot) handleGroupResolve(ctx context.Context, message *tgbotapi.Message) {
	ticketID, ok, err := b.store.ResolveTicket(ctx, message.ReplyToMessage.MessageID)
	if err != nil {
		b.logger.Error("Failed to resolve mapping", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	t, err := b.engine.ResolveByOperator(ctx, ticketID)
	if err != nil {
		b.logger.Error("Failed to resolve ticket", zap.Error(err), zap.Int64("ticket_id", ticketID))
		return
	}

	b.sendMessage(message.Chat.ID, b.catalog.T(b.opts.DefaultLang, "ticket_resolved_notify",
		"id", strconv.FormatInt(t.ID, 10)))
	if err := b.deliverToUser(t.UserID, b.catalog.T(t.Lang, "ticket_resolved_by_admin",
		"id", strconv.FormatInt(t.ID, 10))); err != nil {
		b.logger.Error("Failed to notify user of resolution", zap.Error(err), zap.Int64("ticket_id", t.ID))
	}
}

func (b *Bot) handleResolve(ctx context.Context, message *tgbotapi.Message) {
	lang := b.userLang(ctx, message.From)

	args := strings.TrimSpace(message.CommandArguments())
	if args == "" {
		b.sendMessage(message.Chat.ID, b.catalog.T(lang, "resolve_usage"))
		return
	}

	ticketID, err := strconv.ParseInt(strings.Fields(args)[0], 10, 64)
	if err != nil {
		b.sendMessage(message.Chat.ID, b.catalog.T(lang, "resolve_usage"))
		return
	}

	t, err := b.engine.ResolveByUser(ctx, ticketID, message.From.ID)
	switch {
	case errors.Is(err, storage.ErrTicketNotFound):
		b.sendMessage(message.Chat.ID, b.catalog.T(lang, "ticket_not_found",
			"id", strconv.FormatInt(ticketID, 10)))
		return
	case errors.Is(err, ticket.ErrNotOwner):
		b.sendMessage(message.Chat.ID, b.catalog.T(lang, "not_owner"))
		return
	case err != nil:
		b.logger.Error("Failed to resolve ticket", zap.Error(err), zap.Int64("ticket_id", ticketID))
		b.sendMessage(message.Chat.ID, b.catalog.T(lang, "error_generic"))
		b.reportError(fmt.Sprintf("Error resolving ticket #%d: %v", ticketID, err))
		return
	}

	b.sendMessage(message.Chat.ID, b.catalog.T(lang, "ticket_resolved",
		"id", strconv.FormatInt(t.ID, 10),
		"emoji", b.opts.EmojiResolved))
	b.sendMessage(b.opts.GroupID, b.catalog.T(b.opts.DefaultLang, "ticket_resolved_notify",
		"id", strconv.FormatInt(t.ID, 10)))
}

// userLang prefers the stored preference, then Telegram's client
// language, then the configured default.
func (b *Bot) userLang(ctx context.Context, user *tgbotapi.User) string {
	if user == nil {
		return b.opts.DefaultLang
	}
	if lang, err := b.store.GetUserLang(ctx, user.ID); err == nil && lang != "" {
		return lang
	}
	if user.LanguageCode != "" {
		return user.LanguageCode
	}
	return b.opts.DefaultLang
}

func (b *Bot) statusEmoji(status models.Status) string {
	switch status {
	case models.StatusNew:
		return b.opts.EmojiNew
	case models.StatusInProgress:
		return b.opts.EmojiInProgress
	default:
		return b.opts.EmojiResolved
	}
}

func (b *Bot) deliverToUser(userID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(userID, text))
	return err
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) reportError(text string) {
	if b.opts.DevID == 0 {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(b.opts.DevID, text)); err != nil {
		b.logger.Error("Failed to report error to dev chat", zap.Error(err))
	}
}
