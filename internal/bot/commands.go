package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hankai/housecup/internal/app"
	"github.com/hankai/housecup/internal/models"
)

const helpText = `Available commands:
/board - Show the current scoreboard
/award <house> <points> <reason> - Award (or deduct, with a negative number) points
/undo - Undo the most recent adjustment
/reset - Reset all houses to default totals
/help - Show this message

Examples:
/award Odin 50 "Quiz night winners"
/award Athena -20 "Late homework"`

type commandHandler func(*tgbotapi.Message) error

func (b *Bot) routeCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start": b.handleHelp,
		"help":  b.handleHelp,
		"board": b.handleBoard,
		"award": b.handleAward,
		"undo":  b.handleUndo,
		"reset": b.handleReset,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) adminOnly(cmd string) bool {
	switch cmd {
	case "award", "undo", "reset":
		return true
	}
	return false
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	b.reply(msg, helpText)
	return nil
}

func (b *Bot) handleBoard(msg *tgbotapi.Message) error {
	rows, err := b.service.Scoreboard()
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("Current standings:\n")
	for i, row := range rows {
		sb.WriteString(fmt.Sprintf("%d. %s — %d pts\n", i+1, row.Name, row.Points))
	}

	updates, err := b.service.UpdatesFeed()
	if err != nil {
		return err
	}
	if len(updates) > 0 {
		sb.WriteString("\nRecent updates:\n")
		limit := 5
		if len(updates) < limit {
			limit = len(updates)
		}
		format := b.service.Config.Display.TimestampFormat
		if format == "" {
			format = "Jan 2 15:04"
		}
		for _, entry := range updates[:limit] {
			sign := ""
			if entry.Delta > 0 {
				sign = "+"
			}
			when := time.UnixMilli(entry.Timestamp).Format(format)
			sb.WriteString(fmt.Sprintf("%s: %s%d pts — %s (%s)\n",
				entry.House, sign, entry.Delta, entry.Reason, when))
		}
	}

	b.reply(msg, sb.String())
	return nil
}

func (b *Bot) handleAward(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 3 {
		b.reply(msg, "Usage: /award <house> <points> <reason>")
		return nil
	}

	house := args[0]
	delta, err := strconv.Atoi(args[1])
	if err != nil || delta == 0 {
		b.reply(msg, "Points must be a non-zero integer.")
		return nil
	}
	reason := strings.Trim(strings.Join(args[2:], " "), `"`)

	actor := models.Session{
		Role:     models.RoleAdmin,
		Username: b.service.Config.Auth.AdminUsername,
	}
	entry, err := b.service.SubmitAdjustment(models.AdjustmentRequest{
		House:  house,
		Delta:  delta,
		Reason: reason,
	}, actor)
	if errors.Is(err, app.ErrUnknownHouse) {
		b.reply(msg, fmt.Sprintf("Unknown house: %s", house))
		return nil
	}
	if errors.Is(err, app.ErrEmptyReason) {
		b.reply(msg, "A reason is required.")
		return nil
	}
	if err != nil {
		return err
	}

	sign := ""
	if entry.Delta > 0 {
		sign = "+"
	}
	b.reply(msg, fmt.Sprintf("%s: %s%d pts — %s", entry.House, sign, entry.Delta, entry.Reason))
	return nil
}

func (b *Bot) handleUndo(msg *tgbotapi.Message) error {
	entry, err := b.service.Undo()
	if errors.Is(err, app.ErrNothingToUndo) {
		b.reply(msg, "Nothing to undo.")
		return nil
	}
	if err != nil {
		return err
	}

	b.reply(msg, fmt.Sprintf("Undid %+d pts for %s (%s)", entry.Delta, entry.House, entry.Reason))
	return nil
}

func (b *Bot) handleReset(msg *tgbotapi.Message) error {
	if err := b.service.Reset(); err != nil {
		return err
	}
	b.reply(msg, "All houses reset to default totals, history cleared.")
	return nil
}
