package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"time-tracker/internal/model"
	"time-tracker/internal/palette"
)

func (b *Bot) handleCategories(ctx context.Context, chatID int64, user *model.User) error {
	categories, err := b.deps.Categories.List(ctx, user.ID)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить категории: %s", escape(err.Error())))
	}

	var builder strings.Builder
	builder.WriteString("📂 <b>Категории</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, c := range categories {
		builder.WriteString(formatCategory(c))
		if c.Kind == model.KindUser {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("🗑 #%d · %s", c.ID, shortTitle(c.Title, 20)),
					fmt.Sprintf("%s%d", cbDelCategoryPref, c.ID)),
			))
		}
	}
	builder.WriteString("\n/newcategory &lt;название&gt; [#цвет] — добавить\n" +
		"/rename, /color, /hide, /show, /delcategory — изменить по номеру\n" +
		"/order &lt;id&gt; &lt;id&gt; ... — порядок видимых категорий")

	if len(buttons) == 0 {
		return b.sendText(chatID, builder.String())
	}
	return b.sendWithReplyMarkup(chatID, builder.String(), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func formatCategory(c model.Category) string {
	line := fmt.Sprintf("%s %s", palette.Swatch(c.Color), escape(normalizeTitle(c.Title)))
	switch {
	case c.IsSystem():
		line += " <i>(системная)</i>"
	default:
		line = fmt.Sprintf("<b>#%d</b> %s <code>%s</code>", c.ID, line, escape(c.Color))
		if !c.Visible {
			line += " 🙈 скрыта"
		}
	}
	return line + "\n"
}

// handleNewCategory accepts "/newcategory Title [#color]".
func (b *Bot) handleNewCategory(ctx context.Context, chatID int64, user *model.User, args string) error {
	title, color := splitTitleAndColor(args)
	if title == "" {
		return b.sendText(chatID, "Формат: /newcategory &lt;название&gt; [#цвет]")
	}
	category, err := b.deps.Categories.Create(ctx, user.ID, title, color)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, "➕ Категория добавлена:\n"+formatCategory(*category))
}

func (b *Bot) handleRename(ctx context.Context, chatID int64, user *model.User, args string) error {
	idPart, title, _ := strings.Cut(strings.TrimSpace(args), " ")
	id, err := parseID(idPart)
	if err != nil || strings.TrimSpace(title) == "" {
		return b.sendText(chatID, "Формат: /rename &lt;id&gt; &lt;название&gt;")
	}
	if err := b.deps.Categories.Rename(ctx, user.ID, id, title); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("✏️ Категория #%d переименована в «%s».", id, escape(strings.TrimSpace(title))))
}

func (b *Bot) handleColor(ctx context.Context, chatID int64, user *model.User, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return b.sendText(chatID, "Формат: /color &lt;id&gt; &lt;#цвет&gt;")
	}
	id, err := parseID(fields[0])
	if err != nil {
		return b.sendText(chatID, "Формат: /color &lt;id&gt; &lt;#цвет&gt;")
	}
	if err := b.deps.Categories.Recolor(ctx, user.ID, id, fields[1]); err != nil {
		return b.sendError(chatID, err)
	}
	category, err := b.deps.Categories.Get(ctx, user.ID, id)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, "🎨 Цвет обновлён:\n"+formatCategory(*category))
}

func (b *Bot) handleVisibility(ctx context.Context, chatID int64, user *model.User, args string, visible bool) error {
	id, err := parseID(args)
	if err != nil {
		if visible {
			return b.sendText(chatID, "Формат: /show &lt;id&gt;")
		}
		return b.sendText(chatID, "Формат: /hide &lt;id&gt;")
	}
	if err := b.deps.Categories.SetVisible(ctx, user.ID, id, visible); err != nil {
		return b.sendError(chatID, err)
	}
	if visible {
		return b.sendText(chatID, fmt.Sprintf("👁 Категория #%d снова в списке выбора.", id))
	}
	return b.sendText(chatID, fmt.Sprintf("🙈 Категория #%d скрыта из списка выбора.", id))
}

func (b *Bot) handleDeleteCategory(ctx context.Context, chatID int64, user *model.User, args string) error {
	id, err := parseID(args)
	if err != nil {
		return b.sendText(chatID, "Укажи номер категории, например /delcategory 3")
	}
	category, err := b.deps.Categories.Get(ctx, user.ID, id)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if category.IsSystem() {
		return b.sendText(chatID, fmt.Sprintf("Категорию «%s» удалить нельзя.", escape(model.NoCategoryTitle)))
	}
	return b.askConfirmation(chatID, confirmationRequest{id: id, action: actionDeleteCategory})
}

func (b *Bot) handleOrder(ctx context.Context, chatID int64, user *model.User, args string) error {
	fields := strings.Fields(strings.ReplaceAll(args, ",", " "))
	if len(fields) == 0 {
		return b.sendText(chatID, "Формат: /order &lt;id&gt; &lt;id&gt; ... — все видимые категории в нужном порядке.")
	}
	ids := make([]uint, 0, len(fields))
	for _, f := range fields {
		id, err := parseID(f)
		if err != nil {
			return b.sendText(chatID, fmt.Sprintf("Не понял номер «%s».", escape(f)))
		}
		ids = append(ids, id)
	}
	if err := b.deps.Categories.Reorder(ctx, user.ID, ids); err != nil {
		return b.sendError(chatID, err)
	}
	return b.handleCategories(ctx, chatID, user)
}

// splitTitleAndColor takes a trailing "#rrggbb" token off the title.
func splitTitleAndColor(args string) (string, string) {
	fields := strings.Fields(args)
	if len(fields) > 1 && strings.HasPrefix(fields[len(fields)-1], "#") {
		return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
	}
	return strings.Join(fields, " "), ""
}
