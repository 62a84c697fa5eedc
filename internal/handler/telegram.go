package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/romanzh1/mnemosyne/internal/service/srs"
	"go.uber.org/zap"
)

// BotAPI is the part of tgbotapi.BotAPI the handler talks to.
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	StopReceivingUpdates()
}

type TelegramHandler struct {
	api     BotAPI
	service models.Service

	mu       sync.Mutex
	sessions map[int64]int64 // chat id -> active study session id
}

func NewTelegramHandler(token string, service models.Service) (*TelegramHandler, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	return NewTelegramHandlerWithAPI(api, service), nil
}

func NewTelegramHandlerWithAPI(api BotAPI, service models.Service) *TelegramHandler {
	return &TelegramHandler{
		api:      api,
		service:  service,
		sessions: make(map[int64]int64),
	}
}

// Start processes updates until ctx is cancelled.
func (h *TelegramHandler) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.api.GetUpdatesChan(u)

	zap.L().Info("bot started")

	for {
		select {
		case <-ctx.Done():
			h.api.StopReceivingUpdates()
			zap.L().Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil && update.CallbackQuery == nil {
				continue
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *TelegramHandler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil && update.Message.IsCommand() {
		// Команды принимаем только от пользователей, не от каналов
		if update.Message.From == nil {
			zap.L().Warn("received command from nil user")
			return
		}
		h.handleCommand(ctx, update)
	} else if update.Message != nil {
		h.sendMessage(update.Message.Chat.ID, "Я не понимаю это сообщение. Используй /help для списка команд.")
	} else if update.CallbackQuery != nil {
		if update.CallbackQuery.From == nil || update.CallbackQuery.Message == nil {
			zap.L().Warn("received callback without user or message")
			return
		}
		h.handleCallback(ctx, update)
	}
}

func (h *TelegramHandler) handleCommand(ctx context.Context, update tgbotapi.Update) {
	switch update.Message.Command() {
	case "start", "help":
		h.handleHelp(update)
	case "add":
		h.handleAdd(ctx, update)
	case "study":
		h.handleStudy(ctx, update)
	case "end":
		h.handleEnd(ctx, update.Message.Chat.ID)
	case "due":
		h.handleDue(ctx, update)
	case "stats":
		h.handleStats(ctx, update)
	case "streak":
		h.handleStreak(ctx, update)
	case "upcoming":
		h.handleUpcoming(ctx, update)
	default:
		h.sendMessage(update.Message.Chat.ID, "Неизвестная команда. Используй /help")
	}
}

func (h *TelegramHandler) handleHelp(update tgbotapi.Update) {
	text := `📚 <b>Mnemosyne</b>

Доступные команды:

/add вопрос | ответ | колода - Добавить карточку (колода необязательна)
/study [колода] - Начать сессию повторения
/end - Завершить текущую сессию
/due [колода] - Сколько карточек ждут повторения
/stats - Общая статистика
/streak - Серия дней подряд
/upcoming [дни] - Расписание повторений
/help - Справка`

	h.sendMessage(update.Message.Chat.ID, text)
}

func (h *TelegramHandler) handleAdd(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	parts := strings.Split(update.Message.CommandArguments(), "|")
	if len(parts) < 2 || len(parts) > 3 {
		h.sendMessage(chatID, "Формат: /add вопрос | ответ | колода")
		return
	}

	in := models.CreateCardInput{
		Front: strings.TrimSpace(parts[0]),
		Back:  strings.TrimSpace(parts[1]),
	}
	if len(parts) == 3 {
		in.DeckName = strings.TrimSpace(parts[2])
	}

	card, err := h.service.CreateCard(ctx, in)
	if err != nil {
		h.replyError(chatID, "create card", err)
		return
	}

	h.sendMessage(chatID, fmt.Sprintf("✅ Карточка добавлена в колоду <b>%s</b>", escapeHTML(card.DeckName)))
}

func (h *TelegramHandler) handleStudy(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	in := models.StartSessionInput{}
	if deck := strings.TrimSpace(update.Message.CommandArguments()); deck != "" {
		in.DeckName = &deck
	}

	session, err := h.service.StartSession(ctx, in)
	if err != nil {
		h.replyError(chatID, "start session", err)
		return
	}

	h.mu.Lock()
	h.sessions[chatID] = session.ID
	h.mu.Unlock()

	h.showNextCard(ctx, chatID, session.ID)
}

func (h *TelegramHandler) activeSession(chatID int64) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.sessions[chatID]
	return id, ok
}

func (h *TelegramHandler) showNextCard(ctx context.Context, chatID, sessionID int64) {
	next, err := h.service.NextCard(ctx, sessionID)
	if err != nil {
		h.replyError(chatID, "next card", err)
		return
	}

	if next.Complete {
		h.handleEnd(ctx, chatID)
		return
	}

	text := fmt.Sprintf("🃏 <b>%s</b>\n\n<i>%s</i>", escapeHTML(next.Card.Front), escapeHTML(next.Card.DeckName))
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👀 Показать ответ", fmt.Sprintf("show_%d", next.Card.ID)),
		),
	)
	h.sendMessageWithKeyboard(chatID, text, keyboard)
}

func (h *TelegramHandler) handleEnd(ctx context.Context, chatID int64) {
	h.mu.Lock()
	sessionID, ok := h.sessions[chatID]
	delete(h.sessions, chatID)
	h.mu.Unlock()

	if !ok {
		h.sendMessage(chatID, "Нет активной сессии. Начни с /study")
		return
	}

	session, err := h.service.EndSession(ctx, sessionID)
	if err != nil {
		h.replyError(chatID, "end session", err)
		return
	}

	text := fmt.Sprintf("🏁 Сессия завершена!\n\nИзучено карточек: %d\nПравильных ответов: %d",
		session.CardsStudied, session.CardsCorrect)
	h.sendMessage(chatID, text)
}

func (h *TelegramHandler) handleDue(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID
	deck := strings.TrimSpace(update.Message.CommandArguments())

	due, err := h.service.ListDueCards(ctx, deck, 5)
	if err != nil {
		h.replyError(chatID, "list due cards", err)
		return
	}

	if due.Total == 0 {
		h.sendMessage(chatID, "🎉 Все карточки повторены!")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Ждут повторения: <b>%d</b>\n\n", due.Total)
	for _, card := range due.Cards {
		fmt.Fprintf(&sb, "• %s <i>(%s)</i>\n", escapeHTML(card.Front), escapeHTML(card.DeckName))
	}
	sb.WriteString("\nНачать: /study")
	h.sendMessage(chatID, sb.String())
}

func (h *TelegramHandler) handleStats(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	stats, err := h.service.GetStudyStats(ctx)
	if err != nil {
		h.replyError(chatID, "get study stats", err)
		return
	}

	text := fmt.Sprintf("📊 <b>Статистика</b>\n\nСессий: %d\nИзучено карточек: %d\nТочность: %.2f%%",
		stats.TotalSessions, stats.TotalCardsStudied, stats.AverageAccuracy)
	h.sendMessage(chatID, text)
}

func (h *TelegramHandler) handleStreak(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	streak, err := h.service.GetStreak(ctx)
	if err != nil {
		h.replyError(chatID, "get streak", err)
		return
	}

	last := "никогда"
	if streak.LastStudyDate != nil {
		last = *streak.LastStudyDate
	}

	text := fmt.Sprintf("🔥 Текущая серия: %d\n🏆 Лучшая серия: %d\n📅 Последнее занятие: %s",
		streak.CurrentStreak, streak.LongestStreak, last)
	h.sendMessage(chatID, text)
}

func (h *TelegramHandler) handleUpcoming(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	days := 0
	if arg := strings.TrimSpace(update.Message.CommandArguments()); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil {
			h.sendMessage(chatID, "Укажи количество дней числом, например: /upcoming 14")
			return
		}
		days = n
	}

	upcoming, err := h.service.GetUpcoming(ctx, days)
	if err != nil {
		h.replyError(chatID, "get upcoming", err)
		return
	}

	if len(upcoming.UpcomingReviews) == 0 {
		h.sendMessage(chatID, fmt.Sprintf("На ближайшие %d дн. повторений нет.", upcoming.PeriodDays))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗓 <b>Повторения на %d дн.</b>\n\n", upcoming.PeriodDays)
	for _, day := range upcoming.UpcomingReviews {
		fmt.Fprintf(&sb, "%s: %d (%s)\n", day.Date, day.CardCount, escapeHTML(strings.Join(day.Decks, ", ")))
	}
	h.sendMessage(chatID, sb.String())
}

func (h *TelegramHandler) handleCallback(ctx context.Context, update tgbotapi.Update) {
	callback := update.CallbackQuery
	data := callback.Data
	chatID := callback.Message.Chat.ID

	if strings.HasPrefix(data, "show_") {
		h.handleShowAnswer(ctx, callback)
	} else if strings.HasPrefix(data, "grade_") {
		h.handleGrade(ctx, callback)
	} else {
		zap.L().Warn("unknown callback data", zap.String("data", data), zap.Int64("user_id", callback.From.ID))
		h.sendMessage(chatID, "Неизвестная команда. Используй /help для списка доступных команд.")
	}

	// Всегда отвечаем на callback, чтобы убрать индикатор загрузки
	callbackConfig := tgbotapi.NewCallback(callback.ID, "")
	if _, err := h.api.Request(callbackConfig); err != nil {
		zap.L().Error("send callback answer", zap.Error(err), zap.String("callback_id", callback.ID))
	}
}

func (h *TelegramHandler) handleShowAnswer(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID

	cardID, err := strconv.ParseInt(strings.TrimPrefix(callback.Data, "show_"), 10, 64)
	if err != nil {
		zap.L().Warn("bad show callback", zap.String("data", callback.Data))
		return
	}

	card, err := h.service.GetCard(ctx, cardID)
	if err != nil {
		h.replyError(chatID, "get card", err)
		return
	}

	text := fmt.Sprintf("🃏 <b>%s</b>\n\n━━━━━━━━━━━━━━━━━━━━━━\n\n%s\n\nНасколько хорошо ты вспомнил ответ?",
		escapeHTML(card.Front), escapeHTML(card.Back))

	grade := func(label string, q int) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("grade_%d_%d", q, card.ID))
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(grade("0 😶", 0), grade("1 😣", 1), grade("2 😕", 2)),
		tgbotapi.NewInlineKeyboardRow(grade("3 🙂", 3), grade("4 😀", 4), grade("5 🤩", 5)),
	)
	h.sendMessageWithKeyboard(chatID, text, keyboard)
}

// parseGrade разбирает callback вида grade_<quality>_<card id>
func parseGrade(data string) (quality int, cardID int64, err error) {
	qualityRaw, cardRaw, ok := strings.Cut(strings.TrimPrefix(data, "grade_"), "_")
	if !ok {
		return 0, 0, fmt.Errorf("malformed grade callback (data: %s)", data)
	}

	quality, err = strconv.Atoi(qualityRaw)
	if err != nil {
		return 0, 0, fmt.Errorf("parse quality (data: %s): %w", data, err)
	}
	cardID, err = strconv.ParseInt(cardRaw, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse card id (data: %s): %w", data, err)
	}
	return quality, cardID, nil
}

func (h *TelegramHandler) handleGrade(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID

	quality, cardID, err := parseGrade(callback.Data)
	if err != nil {
		zap.L().Warn("bad grade callback", zap.Error(err))
		return
	}

	sessionID, inSession := h.activeSession(chatID)
	if !inSession {
		card, err := h.service.ReviewCard(ctx, cardID, models.ReviewInput{Quality: &quality})
		if err != nil {
			h.replyError(chatID, "review card", err)
			return
		}
		h.sendMessage(chatID, reviewSummary(quality, card))
		return
	}

	if _, err := h.service.SubmitSessionReview(ctx, sessionID, models.SessionReviewInput{CardID: cardID, Quality: &quality}); err != nil {
		h.replyError(chatID, "submit session review", err)
		return
	}

	if card, err := h.service.GetCard(ctx, cardID); err == nil {
		h.sendMessage(chatID, reviewSummary(quality, card))
	}

	h.showNextCard(ctx, chatID, sessionID)
}

func reviewSummary(quality int, card *models.Card) string {
	if !srs.IsCorrect(quality) {
		return "🔴 Не страшно! Повторим завтра."
	}
	return fmt.Sprintf("✅ Отлично! Следующее повторение через %d дн.", card.Interval)
}

// replyError логирует ошибку и отправляет пользователю короткое сообщение по её типу
func (h *TelegramHandler) replyError(chatID int64, action string, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		h.sendMessage(chatID, "⚠️ "+escapeHTML(ve.Error()))
	case errors.Is(err, models.ErrNotFound):
		h.sendMessage(chatID, "Не найдено. Возможно, карточка или сессия были удалены.")
	default:
		zap.L().Error(action, zap.Error(err), zap.Int64("chat_id", chatID))
		h.sendMessage(chatID, "Произошла ошибка. Попробуй позже.")
	}
}

// escapeHTML экранирует специальные символы HTML для безопасной вставки в HTML-текст
func escapeHTML(text string) string {
	// Сначала &, чтобы не экранировать уже экранированные символы
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func (h *TelegramHandler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.api.Send(msg); err != nil {
		zap.L().Error("send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (h *TelegramHandler) sendMessageWithKeyboard(chatID int64, text string, keyboard interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	if _, err := h.api.Send(msg); err != nil {
		zap.L().Error("send message with keyboard", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
