package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/ctroy978/edagent/internal/application"
	"github.com/ctroy978/edagent/internal/config"
	"github.com/ctroy978/edagent/internal/infra/logging"
	"github.com/ctroy978/edagent/internal/infra/worker"
)

// RealBotAdapter polls Telegram for updates and hands each message to the
// facade through the worker pool. One chat is one grading thread.
type RealBotAdapter struct {
	bot    *tgbotapi.BotAPI
	cfg    *config.BotConfig
	facade *application.AgentFacade
	pool   *worker.Pool
	log    *zerolog.Logger

	cancelPolling context.CancelFunc
}

func NewRealBotAdapter(cfg *config.BotConfig, facade *application.AgentFacade, pool *worker.Pool, logger *zerolog.Logger) (*RealBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("agent facade is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "telegram").Logger()
	return &RealBotAdapter{
		bot:    bot,
		cfg:    cfg,
		facade: facade,
		pool:   pool,
		log:    &l,
	}, nil
}

func (r *RealBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up := <-updates:
			update := up
			if err := r.pool.Submit(func(taskCtx context.Context) error {
				return r.handleUpdate(taskCtx, update)
			}); err != nil {
				r.log.Warn().Err(err).Msg("dropped update")
			}
		}
	}
}

func (r *RealBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil || update.Message.From == nil {
		return nil
	}
	msg := update.Message
	chatID := msg.Chat.ID
	threadID := strconv.FormatInt(chatID, 10)

	if msg.IsCommand() {
		return r.handleCommand(ctx, chatID, msg.Command())
	}

	text := composeMessage(msg)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	reply, err := r.facade.HandleMessage(ctx, threadID, text)
	if err != nil {
		// Message text can carry student names; log only a redacted preview.
		r.log.Error().Err(err).Str("thread_id", threadID).
			Str("text", logging.Redact(text)).Msg("handle message failed")
		return r.send(chatID, "Something went wrong on my side. Please try that again.")
	}
	if strings.TrimSpace(reply) == "" {
		return nil
	}
	return r.send(chatID, reply)
}

func (r *RealBotAdapter) handleCommand(ctx context.Context, chatID int64, command string) error {
	switch command {
	case "start":
		return r.send(chatID, "Hi! I grade student essays against your rubric. "+
			"Say something like \"I have essays to grade\" to begin.")
	case "help":
		return r.send(chatID, "Send me your rubric, the essay question, any reading "+
			"materials, and the student essays. I handle OCR, name checks, grading, "+
			"reports, and optional feedback emails.")
	default:
		return r.send(chatID, "Unknown command. Try /help.")
	}
}

// composeMessage folds document and photo uploads into the text as an
// attachment marker so the workflow sees one uniform message shape.
func composeMessage(msg *tgbotapi.Message) string {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	var refs []string
	if msg.Document != nil {
		refs = append(refs, fileRef(msg.Document.FileID, msg.Document.FileName))
	}
	if len(msg.Photo) > 0 {
		// Telegram sends multiple sizes; the last is the largest.
		best := msg.Photo[len(msg.Photo)-1]
		refs = append(refs, fileRef(best.FileID, "photo.jpg"))
	}
	if len(refs) == 0 {
		return text
	}
	marker := fmt.Sprintf("[attached: %s]", strings.Join(refs, ", "))
	if text == "" {
		return marker
	}
	return text + " " + marker
}

func fileRef(fileID, name string) string {
	if name == "" {
		return "tg://" + fileID
	}
	return "tg://" + fileID + "/" + name
}

func (r *RealBotAdapter) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := r.bot.Send(msg)
	return err
}
