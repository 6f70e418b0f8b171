package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"time-tracker/internal/auth"
	"time-tracker/internal/repository"
)

const helpText = "ℹ️ <b>Подсказки</b>\n" +
	"<b>Таймер</b>\n" +
	"• /go [категория] — запустить таймер\n" +
	"• /stop — остановить таймер\n" +
	"• /status — что сейчас идёт\n" +
	"<b>День</b>\n" +
	"• /today, /prev, /next, /day &lt;дата&gt; — выбрать день\n" +
	"• /add 09:00 10:30 [категория] — добавить запись в выбранный день\n" +
	"• /edit &lt;id&gt; 09:00 10:30 [категория] — изменить запись\n" +
	"• /comment &lt;id&gt; [текст] — комментарий к записи\n" +
	"• /delete &lt;id&gt; — удалить запись\n" +
	"<b>Категории</b>\n" +
	"• /categories, /newcategory, /rename, /color, /hide, /show, /delcategory, /order\n" +
	"<b>Аналитика</b>\n" +
	"• /month [2024-03] — итоги по дням\n" +
	"• /calendar [2024-03] — тепловая карта месяца\n" +
	"• /report — итоги сегодняшнего дня\n" +
	"<b>Настройки</b>\n" +
	"• /settings, /window 8 20, /timeline on|off, /completed on|off\n" +
	"<b>Аккаунт</b>\n" +
	"• /token — ключ для подписки на изменения\n" +
	"• /logout — выйти"

// handleStart signs a returning user in and registers a new one.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	id := repository.Identity{
		TelegramID: msg.From.ID,
		ChatID:     msg.Chat.ID,
		FirstName:  msg.From.FirstName,
		LastName:   msg.From.LastName,
		Username:   msg.From.UserName,
	}

	greeting := "С возвращением"
	session, err := b.deps.Auth.SignIn(ctx, id)
	if errors.Is(err, auth.ErrUnknownUser) {
		greeting = "Привет"
		session, err = b.deps.Auth.SignUp(ctx, id)
	}
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось войти: %s", escape(err.Error())))
	}
	b.log.WithField("user", session.User.ID).Info("signed in")

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf("👋 %s, %s!\n<b>Я считаю, на что уходит твоё время.</b>\n\n%s",
		greeting, escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, helpText)
}

func (b *Bot) handleLogout(msg *tgbotapi.Message) error {
	b.closeView(msg.Chat.ID)
	b.clearConfirmation(msg.Chat.ID)
	if !b.deps.Auth.SignOut(msg.From.ID) {
		return b.sendText(msg.Chat.ID, "Ты и так не в системе.")
	}
	remove := tgbotapi.NewRemoveKeyboard(true)
	return b.sendWithReplyMarkup(msg.Chat.ID, "👋 Ты вышел. Чтобы вернуться, набери /start.", remove)
}

func (b *Bot) handleToken(msg *tgbotapi.Message) error {
	token, ok := b.deps.Auth.Token(msg.From.ID)
	if !ok {
		return b.sendText(msg.Chat.ID, "Сначала войди: /start")
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔑 Ключ сессии:\n<code>%s</code>\nОн действует до /logout.", escape(token)))
}
