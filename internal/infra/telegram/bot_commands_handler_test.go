package telegram

import (
	"context"
	"errors"
	"testing"

	"dashboard_report_bot/internal/domain/user"

	"github.com/stretchr/testify/assert"
)

func TestStartHandler(t *testing.T) {
	users := newFakeUsers(
		telegramUser("alice", user.GroupUploader, uploaderTG),
		telegramUser("gone", user.GroupReviewer, 700),
	)
	users.byTelegram[700].IsDeleted = true
	h := startHandler(context.Background(), users, discardLogger())

	assert.Contains(t, run(t, h, uploaderTG).lastSent(), "Привет, alice!")
	assert.Contains(t, run(t, h, strangerTG).lastSent(), "попросите администратора")
	assert.Contains(t, run(t, h, 700).lastSent(), "неактивен")

	users.err = errors.New("db down")
	assert.Contains(t, run(t, h, uploaderTG).lastSent(), "Произошла ошибка")
}

func TestHelpHandler(t *testing.T) {
	users := newFakeUsers(
		telegramUser("alice", user.GroupUploader, uploaderTG),
		telegramUser("root", user.GroupAdministrator, adminTG),
		telegramUser("bob", user.GroupReviewer, reviewerTG),
	)
	h := helpHandler(context.Background(), users, discardLogger())

	uploader := run(t, h, uploaderTG).lastSent()
	assert.Contains(t, uploader, "Загрузить отчёт")
	assert.Contains(t, uploader, "/delete")
	assert.NotContains(t, uploader, "/confirm")
	assert.NotContains(t, uploader, "/add_user")

	reviewer := run(t, h, reviewerTG).lastSent()
	assert.Contains(t, reviewer, "/status")
	assert.NotContains(t, reviewer, "Загрузить отчёт")

	admin := run(t, h, adminTG).lastSent()
	for _, cmd := range []string{"/status", "/confirm_all", "/cancel", "/delete", "/add_user", "/list_users"} {
		assert.Contains(t, admin, cmd)
	}

	assert.Contains(t, run(t, h, strangerTG).lastSent(), "Доступных команд для вас нет")
}
