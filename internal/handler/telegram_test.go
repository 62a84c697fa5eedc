package handler

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/romanzh1/mnemosyne/internal/service"
	"github.com/romanzh1/mnemosyne/internal/testutil"
)

const testChatID = 42

type fakeBot struct {
	sent      []tgbotapi.MessageConfig
	callbacks []string
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		b.callbacks = append(b.callbacks, cb.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) StopReceivingUpdates() {}

func (b *fakeBot) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	if len(b.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return b.sent[len(b.sent)-1]
}

func newTestBot(t *testing.T) (*TelegramHandler, *fakeBot, *service.Service) {
	t.Helper()

	svc := service.NewService(testutil.NewTestRepository(t), testutil.FixedClock(), testutil.NewStubIDGenerator(), time.UTC)
	bot := &fakeBot{}
	return NewTelegramHandlerWithAPI(bot, svc), bot, svc
}

func command(text string) tgbotapi.Update {
	name, _, _ := strings.Cut(text, " ")
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: testChatID},
		From:     &tgbotapi.User{ID: 7},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		Data:    data,
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChatID}},
	}}
}

func TestParseGrade(t *testing.T) {
	tests := []struct {
		data        string
		wantQuality int
		wantCard    int64
		wantErr     bool
	}{
		{"grade_4_17", 4, 17, false},
		{"grade_0_1", 0, 1, false},
		{"grade_4", 0, 0, true},
		{"grade_x_1", 0, 0, true},
		{"grade_3_abc", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			quality, cardID, err := parseGrade(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseGrade(%q) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
			if quality != tt.wantQuality || cardID != tt.wantCard {
				t.Errorf("parseGrade(%q) = %d, %d", tt.data, quality, cardID)
			}
		})
	}
}

func TestEscapeHTML(t *testing.T) {
	if got := escapeHTML("a < b & c > d"); got != "a &lt; b &amp; c &gt; d" {
		t.Errorf("escapeHTML = %q", got)
	}
}

func TestBotStudyFlow(t *testing.T) {
	h, bot, svc := newTestBot(t)
	ctx := context.Background()

	h.handleUpdate(ctx, command("/add 2 + 2 | 4 | Math"))
	if !strings.Contains(bot.last(t).Text, "Math") {
		t.Fatalf("add reply = %q", bot.last(t).Text)
	}

	due, err := svc.ListDueCards(ctx, "", 0)
	if err != nil || due.Total != 1 {
		t.Fatalf("due = %+v, err = %v", due, err)
	}
	cardID := due.Cards[0].ID

	h.handleUpdate(ctx, command("/study Math"))
	if _, ok := h.activeSession(testChatID); !ok {
		t.Fatal("expected an active session")
	}
	if msg := bot.last(t); !strings.Contains(msg.Text, "2 + 2") || msg.ReplyMarkup == nil {
		t.Fatalf("card prompt = %+v", msg)
	}

	h.handleUpdate(ctx, callback("show_"+itoa(cardID)))
	if !strings.Contains(bot.last(t).Text, "4") {
		t.Errorf("answer = %q", bot.last(t).Text)
	}

	h.handleUpdate(ctx, callback("grade_5_"+itoa(cardID)))

	// the only due card is reviewed, so the session ends by itself
	if _, ok := h.activeSession(testChatID); ok {
		t.Error("session should be finished")
	}
	if !strings.Contains(bot.last(t).Text, "Изучено карточек: 1") {
		t.Errorf("summary = %q", bot.last(t).Text)
	}
	if len(bot.callbacks) != 2 {
		t.Errorf("answered %d callbacks, want 2", len(bot.callbacks))
	}

	card, err := svc.GetCard(ctx, cardID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if card.Repetitions != 1 {
		t.Errorf("Repetitions = %d, want 1", card.Repetitions)
	}
}

func TestBotGradeWithoutSession(t *testing.T) {
	h, bot, svc := newTestBot(t)
	ctx := context.Background()

	card, err := svc.CreateCard(ctx, models.CreateCardInput{Front: "hola", Back: "hello"})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	h.handleUpdate(ctx, callback("grade_1_"+itoa(card.ID)))
	if !strings.Contains(bot.last(t).Text, "завтра") {
		t.Errorf("reply = %q", bot.last(t).Text)
	}

	reviews, err := svc.ListCardReviews(ctx, card.ID)
	if err != nil {
		t.Fatalf("ListCardReviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].SessionID != nil {
		t.Errorf("reviews = %+v, want one standalone review", reviews)
	}
}

func TestBotCommands(t *testing.T) {
	h, bot, _ := newTestBot(t)
	ctx := context.Background()

	tests := []struct {
		text string
		want string
	}{
		{"/help", "/study"},
		{"/due", "Все карточки повторены"},
		{"/stats", "Сессий: 0"},
		{"/streak", "никогда"},
		{"/upcoming", "повторений нет"},
		{"/upcoming soon", "числом"},
		{"/end", "Нет активной сессии"},
		{"/add only front", "Формат"},
		{"/dance", "Неизвестная команда"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			h.handleUpdate(ctx, command(tt.text))
			if got := bot.last(t).Text; !strings.Contains(got, tt.want) {
				t.Errorf("%s reply = %q, want it to contain %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestBotValidationMessage(t *testing.T) {
	h, bot, _ := newTestBot(t)

	h.handleUpdate(context.Background(), command("/add  | back"))
	if got := bot.last(t).Text; !strings.Contains(got, "front") {
		t.Errorf("reply = %q, want a validation message about front", got)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
