package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/app"
	"github.com/shrimpsizemoose/mentorloop/internal/lifecycle"
	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

type Bot struct {
	config  *Config
	engine  *lifecycle.Engine
	tokens  *app.TokenManager
	api     *tgbotapi.BotAPI
	admins  map[int64]bool
	mentors map[int64]bool
}

// New connects to Telegram. tokens may be nil when auth is off; /token and
// account links are unavailable then.
func New(config *Config, engine *lifecycle.Engine, tokens *app.TokenManager) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	b := newBot(config, engine, tokens)
	b.api = api
	return b, nil
}

func newBot(config *Config, engine *lifecycle.Engine, tokens *app.TokenManager) *Bot {
	admins := make(map[int64]bool)
	for _, id := range config.Bot.AdminIDs {
		admins[id] = true
	}
	mentors := make(map[int64]bool)
	for _, id := range config.Bot.MentorIDs {
		mentors[id] = true
	}

	return &Bot{
		config:  config,
		engine:  engine,
		tokens:  tokens,
		admins:  admins,
		mentors: mentors,
	}
}

// principalFor maps a Telegram account to the platform user it acts as.
// Config roles win over linked ones so admins cannot lock themselves out.
func (b *Bot) principalFor(ctx context.Context, from *tgbotapi.User) (models.Principal, error) {
	p := models.Principal{ID: "tg-" + strconv.FormatInt(from.ID, 10), Role: models.RoleStudent}

	if b.tokens != nil {
		linked, err := b.tokens.FetchTelegramPrincipal(ctx, from.ID)
		if err != nil {
			return models.Principal{}, err
		}
		if linked != nil {
			p = *linked
		}
	}

	switch {
	case b.admins[from.ID]:
		p.Role = models.RoleAdmin
	case b.mentors[from.ID]:
		p.Role = models.RoleMentor
	}
	return p, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			go b.handleMessage(update.Message)

		case <-sigChan:
			logger.Info.Println("Shutting down bot...")
			b.api.StopReceivingUpdates()
			return nil
		}
	}
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	if err != nil {
		logger.Error.Printf("Failed to send message to %d: %v", chatID, err)
	}
	return err
}
