package bot

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/hankai/housecup/internal/app"
)

type Bot struct {
	config  *Config
	service *app.Service
	api     *tgbotapi.BotAPI
	admins  map[int64]bool
}

func New(config *Config, service *app.Service) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	admins := make(map[int64]bool)
	for _, id := range config.Bot.AdminIDs {
		admins[id] = true
	}

	return &Bot{
		config:  config,
		service: service,
		api:     api,
		admins:  admins,
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info.Printf("Bot started as @%s", b.api.Self.UserName)

	for {
		select {
		case <-sigChan:
			logger.Info.Println("Shutting down bot")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleMessage(update.Message)
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	cmd := msg.Command()

	handler, found := b.routeCommands(cmd)
	if !found {
		return
	}

	if b.adminOnly(cmd) && !b.admins[msg.From.ID] {
		b.reply(msg, "This command is for house cup admins only.")
		return
	}

	if err := handler(msg); err != nil {
		logger.Error.Printf("Command /%s failed: %v", cmd, err)
		b.reply(msg, fmt.Sprintf("Something went wrong: %v", err))
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(reply); err != nil {
		logger.Error.Printf("Failed to send reply: %v", err)
	}
}
