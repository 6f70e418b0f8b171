package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"time-tracker/internal/calendar"
	"time-tracker/internal/events"
	"time-tracker/internal/model"
)

var viewTopics = []events.Topic{events.Records, events.Categories, events.Preferences}

// liveView is the tracker message a chat is looking at. It re-renders when
// the user's data changes and, while the timer runs, on the projector's
// refresh cadence.
type liveView struct {
	chatID    int64
	messageID int
	userID    uint
	date      calendar.Date

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe []func()

	mu          sync.Mutex
	lastText    string
	activeID    uint
	activeStart time.Time
	stopTimer   func()
	elapsed     atomic.Int64
}

func (v *liveView) close() {
	v.cancel()
	for _, unsubscribe := range v.unsubscribe {
		unsubscribe()
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stopTimer != nil {
		v.stopTimer()
		v.stopTimer = nil
	}
	v.activeID = 0
	v.activeStart = time.Time{}
}

// Elapsed is the last projected running time of rec. It is unknown when the
// projector follows another record or an older start of the same one.
func (v *liveView) Elapsed(rec model.Record) (time.Duration, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.activeID != rec.ID || !v.activeStart.Equal(rec.StartedAt) || v.stopTimer == nil {
		return 0, false
	}
	return time.Duration(v.elapsed.Load()), true
}

// showDay sends the tracker screen for d and makes it the chat's live view.
func (b *Bot) showDay(ctx context.Context, chatID int64, user *model.User, d calendar.Date) error {
	b.setSelectedDate(chatID, d)

	now := b.now()
	view, err := b.deps.Tracker.Day(ctx, user.ID, d, now)
	if err != nil {
		return b.sendError(chatID, err)
	}
	text := renderDay(view, now)
	sent, err := b.sendMessage(chatID, text, dayKeyboard(view, now))
	if err != nil {
		return err
	}

	b.mu.Lock()
	root := b.root
	b.mu.Unlock()
	vctx, cancel := context.WithCancel(root)
	v := &liveView{
		chatID:    chatID,
		messageID: sent.MessageID,
		userID:    user.ID,
		date:      d,
		ctx:       vctx,
		cancel:    cancel,
		lastText:  text,
	}
	if b.deps.Bus != nil {
		handler := func(events.Change) {
			if vctx.Err() != nil {
				return
			}
			b.refreshView(vctx, v)
		}
		for _, topic := range viewTopics {
			v.unsubscribe = append(v.unsubscribe, b.deps.Bus.Subscribe(topic, events.OpAll, v.userID, handler))
		}
	}
	b.followTimer(v, view.Active)

	b.mu.Lock()
	state := b.chat(chatID)
	old := state.view
	state.view = v
	b.mu.Unlock()
	if old != nil {
		old.close()
	}
	return nil
}

// refreshView re-queries the day and edits the message in place.
func (b *Bot) refreshView(ctx context.Context, v *liveView) {
	now := b.now()
	view, err := b.deps.Tracker.Day(ctx, v.userID, v.date, now)
	if err != nil {
		if ctx.Err() == nil {
			b.log.WithError(err).WithField("chat", v.chatID).Warn("refresh view")
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	b.followTimer(v, view.Active)

	text := renderDay(view, now)
	v.mu.Lock()
	same := text == v.lastText
	v.lastText = text
	v.mu.Unlock()
	if same {
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(v.chatID, v.messageID, text, dayKeyboard(view, now))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.out.Request(edit); err != nil {
		b.log.WithError(err).WithField("chat", v.chatID).Debug("edit view")
	}
}

// followTimer points the view's projector at active, stopping the previous
// one when the running record or its start changed.
func (b *Bot) followTimer(v *liveView, active *model.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var (
		id    uint
		start time.Time
	)
	if active != nil {
		id, start = active.ID, active.StartedAt
	}
	if id == v.activeID && start.Equal(v.activeStart) && (id == 0 || v.stopTimer != nil) {
		return
	}
	if v.stopTimer != nil {
		v.stopTimer()
		v.stopTimer = nil
	}
	v.activeID = id
	v.activeStart = start
	v.elapsed.Store(0)
	if active == nil || b.deps.Projector == nil || v.ctx.Err() != nil {
		return
	}

	stop, err := b.deps.Projector.Watch(*active,
		func(d time.Duration) { v.elapsed.Store(int64(d)) },
		func(time.Duration) { b.refreshView(v.ctx, v) },
	)
	if err != nil {
		b.log.WithError(err).WithField("chat", v.chatID).Warn("watch timer")
		return
	}
	v.stopTimer = stop
}

func (b *Bot) currentView(chatID int64) *liveView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chat(chatID).view
}

func (b *Bot) closeView(chatID int64) {
	b.mu.Lock()
	state := b.chat(chatID)
	v := state.view
	state.view = nil
	b.mu.Unlock()
	if v != nil {
		v.close()
	}
}

func (b *Bot) closeViews() {
	b.mu.Lock()
	views := make([]*liveView, 0, len(b.chats))
	for _, state := range b.chats {
		if state.view != nil {
			views = append(views, state.view)
			state.view = nil
		}
	}
	b.mu.Unlock()
	for _, v := range views {
		v.close()
	}
}
