// Package telegram runs the chat assistant: glucose status and forecast
// commands, plus push alerts.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mrcode/glucopilot/internal/models"
)

// Service is the slice of the application the bot talks to.
type Service interface {
	Status(ctx context.Context) (*models.GlucoseStatus, error)
	Forecast(ctx context.Context, bolus, carbs float64) (*models.ForecastResult, error)
	ForecastChart(ctx context.Context, bolus, carbs float64) ([]byte, error)
}

// Bot wraps the Telegram API with a chat allowlist.
type Bot struct {
	api     *tgbotapi.BotAPI
	service Service
	allowed map[int64]bool
	logger  *slog.Logger
}

// New creates the bot. allowedChats is the only set of chat IDs the bot
// will answer or push to; an empty list disables the bot entirely.
func New(token string, allowedChats []int64, service Service, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	allowed := make(map[int64]bool, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = true
	}

	return &Bot{
		api:     api,
		service: service,
		allowed: allowed,
		logger:  logger,
	}, nil
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// Notify pushes an alert to every allowed chat.
func (b *Bot) Notify(_ context.Context, title, message string) error {
	var firstErr error
	for chatID := range b.allowed {
		msg := tgbotapi.NewMessage(chatID, title+"\n"+message)
		if _, err := b.api.Send(msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !b.allowed[msg.Chat.ID] {
		b.logger.Warn("message from unauthorized chat", "chat_id", msg.Chat.ID)
		return
	}

	cmd := msg.Command()
	switch cmd {
	case "glucose", "bg":
		b.handleGlucose(ctx, msg.Chat.ID)
	case "forecast":
		b.handleForecast(ctx, msg.Chat.ID, msg.CommandArguments())
	case "start", "help":
		b.reply(msg.Chat.ID, helpText)
	default:
		if cmd != "" {
			b.reply(msg.Chat.ID, "Unknown command. Try /help.")
		}
	}
}

const helpText = `Commands:
/glucose - current glucose, IOB and COB
/forecast [bolus U] [carbs g] - simulate the next hours
Example: /forecast 2.5 45`

func (b *Bot) handleGlucose(ctx context.Context, chatID int64) {
	status, err := b.service.Status(ctx)
	if err != nil {
		b.logger.Error("status lookup failed", "error", err)
		b.reply(chatID, "Could not fetch glucose right now.")
		return
	}

	text := fmt.Sprintf("%d mg/dL %s (%.1f mmol/L)\nIOB %.1f U, COB %.0f g\nStatus: %s",
		status.Value, status.Trend, status.ValueMmol, status.IOB, status.COB, status.Status)
	b.reply(chatID, text)
}

func (b *Bot) handleForecast(ctx context.Context, chatID int64, args string) {
	bolus, carbs, err := parseForecastArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	res, err := b.service.Forecast(ctx, bolus, carbs)
	if err != nil {
		b.logger.Error("forecast failed", "error", err)
		b.reply(chatID, "Forecast failed: "+err.Error())
		return
	}

	text := fmt.Sprintf("Forecast (quality %s):\nnow %.0f, 30m %.0f, 2h %.0f, 4h %.0f\nmin %.0f at +%.0f min, end %.0f",
		res.Quality, res.Summary.Now, res.Summary.At30Min, res.Summary.At2H,
		res.Summary.At4H, res.Summary.Min, res.Summary.TimeToMinMin, res.Summary.End)
	if len(res.Warnings) > 0 {
		text += "\nwarnings: " + strings.Join(res.Warnings, ", ")
	}

	png, err := b.service.ForecastChart(ctx, bolus, carbs)
	if err != nil {
		b.logger.Warn("chart render failed", "error", err)
		b.reply(chatID, text)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "forecast.png", Bytes: png})
	photo.Caption = text
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("sending chart failed", "error", err)
		b.reply(chatID, text)
	}
}

// parseForecastArgs reads "[bolus] [carbs]", both optional.
func parseForecastArgs(args string) (bolus, carbs float64, err error) {
	fields := strings.Fields(args)
	if len(fields) > 2 {
		return 0, 0, fmt.Errorf("usage: /forecast [bolus U] [carbs g]")
	}
	if len(fields) >= 1 {
		bolus, err = strconv.ParseFloat(fields[0], 64)
		if err != nil || bolus < 0 || bolus > 50 {
			return 0, 0, fmt.Errorf("bolus must be a number between 0 and 50")
		}
	}
	if len(fields) == 2 {
		carbs, err = strconv.ParseFloat(fields[1], 64)
		if err != nil || carbs < 0 || carbs > 500 {
			return 0, 0, fmt.Errorf("carbs must be a number between 0 and 500")
		}
	}
	return bolus, carbs, nil
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("sending message failed", "error", err)
	}
}
