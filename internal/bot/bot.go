package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"time-tracker/internal/auth"
	"time-tracker/internal/calendar"
	"time-tracker/internal/events"
	"time-tracker/internal/model"
	"time-tracker/internal/repository"
	"time-tracker/internal/service"
	"time-tracker/internal/timer"
)

const (
	cbStartPrefix     = "start:"
	cbStop            = "stop"
	cbPick            = "pick"
	cbDayPrefix       = "day:"
	cbDeletePrefix    = "delete:"
	cbDelCategoryPref = "delcat:"
)

const (
	btnConfirm          = "✅ Подтвердить"
	btnCancel           = "↩️ Отмена"
	menuLabelStart      = "▶️ Старт"
	menuLabelStop       = "⏹ Стоп"
	menuLabelToday      = "📅 Сегодня"
	menuLabelCategories = "📂 Категории"
	menuLabelMonth      = "📊 Месяц"
	menuLabelHelp       = "ℹ️ Помощь"
)

type confirmationAction int

const (
	actionDeleteRecord confirmationAction = iota
	actionDeleteCategory
)

type confirmationRequest struct {
	id     uint
	action confirmationAction
}

// chatState is what the bot remembers about one private chat.
type chatState struct {
	date    calendar.Date
	confirm *confirmationRequest
	view    *liveView
}

// sender is the part of the Telegram API the bot writes through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Deps are the services the bot talks to.
type Deps struct {
	Auth        *auth.Provider
	Users       *repository.UserRepository
	Records     *service.RecordService
	Categories  *service.CategoryService
	Preferences *service.PreferencesService
	Tracker     *service.TrackerService
	Analytics   *service.AnalyticsService
	Reports     *service.ReportService
	Bus         *events.Bus
	Projector   *timer.Projector
	Log         *logrus.Logger
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api  *tgbotapi.BotAPI
	out  sender
	deps Deps
	log  *logrus.Entry
	now  func() time.Time

	root  context.Context
	mu    sync.Mutex
	chats map[int64]*chatState
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := newBot(api, deps)
	b.api = api
	b.log.WithField("account", api.Self.UserName).Info("bot authorized")
	return b, nil
}

func newBot(out sender, deps Deps) *Bot {
	logger := deps.Log
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bot{
		out:   out,
		deps:  deps,
		log:   logger.WithField("component", "bot"),
		now:   time.Now,
		root:  context.Background(),
		chats: make(map[int64]*chatState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot api is not configured")
	}
	b.mu.Lock()
	b.root = ctx
	b.mu.Unlock()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	b.closeViews()
	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.WithError(err).Warn("handle callback")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.WithError(err).Warn("handle message")
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.log.WithFields(logrus.Fields{"from": msg.From.ID, "command": msg.Command()}).Debug("command")
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.Chat.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /go, чтобы запустить таймер, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	}

	user, ok := b.currentUser(msg.From)
	if !ok {
		return b.sendText(msg.Chat.ID, "Сначала войди: /start")
	}
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "logout":
		return b.handleLogout(msg)
	case "token":
		return b.handleToken(msg)
	case "go":
		return b.handleGo(ctx, msg.Chat.ID, user, args)
	case "stop":
		return b.handleStop(ctx, msg.Chat.ID, user)
	case "status":
		return b.handleStatus(ctx, msg.Chat.ID, user)
	case "today":
		return b.showDay(ctx, msg.Chat.ID, user, calendar.DateOf(b.now()))
	case "day":
		return b.handleDay(ctx, msg.Chat.ID, user, args)
	case "prev":
		return b.showDay(ctx, msg.Chat.ID, user, b.selectedDate(msg.Chat.ID).AddDays(-1))
	case "next":
		return b.showDay(ctx, msg.Chat.ID, user, b.selectedDate(msg.Chat.ID).AddDays(1))
	case "add":
		return b.handleAdd(ctx, msg.Chat.ID, user, args)
	case "edit":
		return b.handleEdit(ctx, msg.Chat.ID, user, args)
	case "comment":
		return b.handleComment(ctx, msg.Chat.ID, user, args)
	case "delete":
		return b.handleDelete(ctx, msg.Chat.ID, user, args)
	case "categories":
		return b.handleCategories(ctx, msg.Chat.ID, user)
	case "newcategory":
		return b.handleNewCategory(ctx, msg.Chat.ID, user, args)
	case "rename":
		return b.handleRename(ctx, msg.Chat.ID, user, args)
	case "color":
		return b.handleColor(ctx, msg.Chat.ID, user, args)
	case "hide":
		return b.handleVisibility(ctx, msg.Chat.ID, user, args, false)
	case "show":
		return b.handleVisibility(ctx, msg.Chat.ID, user, args, true)
	case "delcategory":
		return b.handleDeleteCategory(ctx, msg.Chat.ID, user, args)
	case "order":
		return b.handleOrder(ctx, msg.Chat.ID, user, args)
	case "month":
		return b.handleMonth(ctx, msg.Chat.ID, user, args)
	case "calendar":
		return b.handleCalendar(ctx, msg.Chat.ID, user, args)
	case "window":
		return b.handleWindow(ctx, msg.Chat.ID, user, args)
	case "timeline":
		return b.handleTimeline(ctx, msg.Chat.ID, user, args)
	case "completed":
		return b.handleCompleted(ctx, msg.Chat.ID, user, args)
	case "settings":
		return b.handleSettings(ctx, msg.Chat.ID, user)
	case "report":
		return b.handleReport(ctx, msg.Chat.ID, user)
	case "cancel":
		b.clearConfirmation(msg.Chat.ID)
		return b.sendText(msg.Chat.ID, "↩️ Отменено.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(msg.Text)
	switch text {
	case menuLabelStart, menuLabelStop, menuLabelToday, menuLabelCategories, menuLabelMonth:
	case menuLabelHelp:
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}

	user, ok := b.currentUser(msg.From)
	if !ok {
		return true, b.sendText(msg.Chat.ID, "Сначала войди: /start")
	}
	switch text {
	case menuLabelStart:
		return true, b.handleGo(ctx, msg.Chat.ID, user, "")
	case menuLabelStop:
		return true, b.handleStop(ctx, msg.Chat.ID, user)
	case menuLabelToday:
		return true, b.showDay(ctx, msg.Chat.ID, user, calendar.DateOf(b.now()))
	case menuLabelCategories:
		return true, b.handleCategories(ctx, msg.Chat.ID, user)
	default:
		return true, b.handleMonth(ctx, msg.Chat.ID, user, "")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Debug("callback ack")
	}

	chatID := cb.Message.Chat.ID
	user, ok := b.currentUser(cb.From)
	if !ok {
		return b.sendText(chatID, "Сначала войди: /start")
	}

	data := cb.Data
	b.log.WithFields(logrus.Fields{"from": cb.From.ID, "data": data}).Debug("callback")
	switch {
	case data == cbStop:
		return b.handleStop(ctx, chatID, user)
	case data == cbPick:
		return b.handleGo(ctx, chatID, user, "")
	case strings.HasPrefix(data, cbStartPrefix):
		id, err := parseID(strings.TrimPrefix(data, cbStartPrefix))
		if err != nil {
			return nil
		}
		return b.startTimer(ctx, chatID, user, &id)
	case strings.HasPrefix(data, cbDayPrefix):
		d, err := calendar.ParseDate(strings.TrimPrefix(data, cbDayPrefix), calendar.DateOf(b.now()))
		if err != nil {
			return nil
		}
		return b.showDay(ctx, chatID, user, d)
	case strings.HasPrefix(data, cbDeletePrefix):
		id, err := parseID(strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			return nil
		}
		return b.askConfirmation(chatID, confirmationRequest{id: id, action: actionDeleteRecord})
	case strings.HasPrefix(data, cbDelCategoryPref):
		id, err := parseID(strings.TrimPrefix(data, cbDelCategoryPref))
		if err != nil {
			return nil
		}
		return b.askConfirmation(chatID, confirmationRequest{id: id, action: actionDeleteCategory})
	default:
		return nil
	}
}

func (b *Bot) askConfirmation(chatID int64, req confirmationRequest) error {
	b.setConfirmation(chatID, req)
	var prompt string
	if req.action == actionDeleteRecord {
		prompt = fmt.Sprintf("Удалить запись <b>#%d</b>?", req.id)
	} else {
		prompt = fmt.Sprintf("Удалить категорию <b>#%d</b>? Записи с ней останутся и будут показаны как «%s».", req.id, escape(model.UnknownTitle))
	}
	return b.sendWithReplyMarkup(chatID, prompt, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.Chat.ID)
		user, ok := b.currentUser(msg.From)
		if !ok {
			return b.sendText(msg.Chat.ID, "Сначала войди: /start")
		}
		if req.action == actionDeleteRecord {
			if err := b.deps.Records.Delete(ctx, user.ID, req.id); err != nil {
				return b.sendError(msg.Chat.ID, err)
			}
			return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Запись #%d удалена.", req.id))
		}
		if err := b.deps.Categories.Delete(ctx, user.ID, req.id); err != nil {
			return b.sendError(msg.Chat.ID, err)
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Категория #%d удалена.", req.id))
	case isCancelInput(text):
		b.clearConfirmation(msg.Chat.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		var prompt string
		if req.action == actionDeleteRecord {
			prompt = "Подтверди или отмени удаление записи."
		} else {
			prompt = "Подтверди или отмени удаление категории."
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
	}
}

// SendDailyReports sends the day summary to every known user who tracked
// something today.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.deps.Users.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		entry := b.log.WithField("user", user.TelegramID)
		text, err := b.deps.Reports.DailySummary(ctx, user, now)
		if err != nil {
			entry.WithError(err).Warn("build summary")
			continue
		}
		if text == "" {
			continue
		}
		chatID := user.ChatID
		if chatID == 0 {
			chatID = user.TelegramID
		}
		if err := b.sendText(chatID, text); err != nil {
			entry.WithError(err).Warn("send summary")
		}
	}
	return nil
}

func (b *Bot) currentUser(from *tgbotapi.User) (*model.User, bool) {
	if from == nil || b.deps.Auth == nil {
		return nil, false
	}
	return b.deps.Auth.CurrentUser(from.ID)
}

func (b *Bot) chat(chatID int64) *chatState {
	state, ok := b.chats[chatID]
	if !ok {
		state = &chatState{}
		b.chats[chatID] = state
	}
	return state
}

func (b *Bot) selectedDate(chatID int64) calendar.Date {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.chat(chatID).date
	if d.IsZero() {
		return calendar.DateOf(b.now())
	}
	return d
}

func (b *Bot) setSelectedDate(chatID int64, d calendar.Date) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chat(chatID).date = d
}

func (b *Bot) getConfirmation(chatID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req := b.chat(chatID).confirm
	if req == nil {
		return confirmationRequest{}, false
	}
	return *req, true
}

func (b *Bot) setConfirmation(chatID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chat(chatID).confirm = &req
}

func (b *Bot) clearConfirmation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chat(chatID).confirm = nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	_, err := b.sendMessage(chatID, text, markup)
	return err
}

func (b *Bot) sendMessage(chatID int64, text string, markup interface{}) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	return b.out.Send(msg)
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	return b.sendText(chatID, "🔹 Главное меню")
}

// sendError reports a failed command near where it was issued.
func (b *Bot) sendError(chatID int64, err error) error {
	if text := errorText(err); text != "" {
		return b.sendText(chatID, text)
	}
	return err
}

// errorText maps service errors to the message shown to the user.
func errorText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, service.ErrTimerRunning):
		return "Таймер уже запущен. Останови его командой /stop."
	case errors.Is(err, service.ErrNoActiveTimer):
		return "Таймер не запущен."
	case errors.Is(err, service.ErrInvalidRange):
		return "Конец должен быть позже начала."
	case errors.Is(err, service.ErrInvalidClock):
		return "Время указывается в формате <code>ЧЧ:ММ</code>, например <code>9:30</code>."
	case errors.Is(err, service.ErrInvalidWindow):
		return "Окно таймлайна: часы от 0 до 24, начало раньше конца."
	case errors.Is(err, service.ErrInvalidColor):
		return "Цвет указывается как <code>#rrggbb</code>, например <code>#3b82f6</code>."
	case errors.Is(err, service.ErrEmptyTitle):
		return "Название не может быть пустым."
	case errors.Is(err, service.ErrInvalidOrder):
		return "Перечисли каждую видимую категорию ровно один раз."
	case errors.Is(err, service.ErrSystemCategory):
		return fmt.Sprintf("Категорию «%s» изменить нельзя.", escape(model.NoCategoryTitle))
	case errors.Is(err, service.ErrNotFound), repository.IsNotFound(err):
		return "Не найдено."
	default:
		return fmt.Sprintf("Ошибка: %s", escape(err.Error()))
	}
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelStart),
			tgbotapi.NewKeyboardButton(menuLabelStop),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelMonth),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelCategories),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isConfirmInput(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return text == btnConfirm || lower == "да" || lower == "подтвердить"
}

func isCancelInput(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return text == btnCancel || lower == "нет" || lower == "отмена"
}

func parseID(raw string) (uint, error) {
	value := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(value string, limit int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= limit {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
