package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"dashboard_report_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeTelegramClient struct {
	sent []sentMessage
	err  error
}

func (c *fakeTelegramClient) SendMessage(chatID int64, text string, _ *telebot.SendOptions) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func TestSendUploadReminders(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.store.Create(ctx, &user.User{
		ID:         "uploader",
		Group:      user.GroupUploader,
		TelegramID: sql.NullInt64{Int64: 555, Valid: true},
	}))
	// uploader2 never linked a Telegram account

	client := &fakeTelegramClient{}
	logger, _ := logtest.NewNullLogger()
	svc := NewReminderServiceImpl(fx.store, fx.store, fx.store, client, time.Wednesday, logrus.NewEntry(logger))

	n, err := svc.SendUploadReminders(ctx, march(12))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, client.sent, 1)
	assert.Equal(t, int64(555), client.sent[0].chatID)
	assert.Contains(t, client.sent[0].text, fx.section.ID.String())
	assert.Contains(t, client.sent[0].text, "2024-03-12")

	fx.upload(t, fx.uploader, "report.xlsx", march(5))
	n, err = svc.SendUploadReminders(ctx, march(12))
	require.NoError(t, err)
	assert.Zero(t, n, "section already has data for the period")
}

func TestSendUploadReminders_SkipsClosedForms(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.store.Create(ctx, &user.User{
		ID:         "uploader",
		Group:      user.GroupUploader,
		TelegramID: sql.NullInt64{Int64: 555, Valid: true},
	}))
	client := &fakeTelegramClient{err: errors.New("blocked by user")}
	logger, _ := logtest.NewNullLogger()
	svc := NewReminderServiceImpl(fx.store, fx.store, fx.store, client, time.Wednesday, logrus.NewEntry(logger))

	n, err := svc.SendUploadReminders(ctx, march(12))
	require.NoError(t, err)
	assert.Zero(t, n, "delivery failures are not counted")

	fx.store.forms[fx.form.ID].IsEnabled = false
	client.err = nil
	n, err = svc.SendUploadReminders(ctx, march(12))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, client.sent)
}

func TestSendUploadReminders_EscapesMarkdownInNames(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.store.Create(ctx, &user.User{
		ID:         "uploader",
		Group:      user.GroupUploader,
		TelegramID: sql.NullInt64{Int64: 555, Valid: true},
	}))
	fx.store.forms[fx.form.ID].Name = "q1_sales*"
	fx.store.sections[fx.section.ID].Name = "[north]`east`"

	client := &fakeTelegramClient{}
	logger, _ := logtest.NewNullLogger()
	svc := NewReminderServiceImpl(fx.store, fx.store, fx.store, client, time.Wednesday, logrus.NewEntry(logger))

	n, err := svc.SendUploadReminders(ctx, march(12))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	text := client.sent[0].text
	assert.Contains(t, text, `q1\_sales\* / \[north]\`+"`"+`east\`+"`")
	assert.NotContains(t, text, "*q1")
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "plain name", escapeMarkdown("plain name"))
	assert.Equal(t, `a\_b\*c\[d]`, escapeMarkdown("a_b*c[d]"))
}
