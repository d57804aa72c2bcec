// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dashboard_report_bot/internal/app"
	"dashboard_report_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(ctx context.Context, b *telebot.Bot, users UserResolver, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")
	b.Handle("/start", startHandler(ctx, users, startHelpLogger))
	b.Handle("/help", helpHandler(ctx, users, startHelpLogger))
}

func startHandler(ctx context.Context, users UserResolver, startHelpLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		u, err := users.ResolveTelegramUser(ctx, senderID)
		switch {
		case errors.Is(err, app.ErrNotFound):
			logCtx.Info("User is unknown")
			return c.Send("Привет! Я бот для сбора отчётов. Чтобы загружать или просматривать данные, попросите администратора добавить вас в систему.")
		case err != nil:
			logCtx.WithError(err).Error("Error checking user status for /start command")
			return c.Send("Произошла ошибка при проверке вашего статуса. Пожалуйста, попробуйте позже.")
		case u.IsDeleted:
			logCtx.WithField("user_id", u.ID).Info("User identified as inactive")
			return c.Send("Ваш аккаунт неактивен. Пожалуйста, свяжитесь с администратором.")
		}

		logCtx.WithFields(logrus.Fields{"user_id": u.ID, "group": u.Group.String()}).Info("User identified")
		return c.Send(fmt.Sprintf("Привет, %s! Я готов к работе. Используйте /help для списка команд.", displayName(u, c.Sender())))
	}
}

func helpHandler(ctx context.Context, users UserResolver, startHelpLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		u, err := users.ResolveTelegramUser(ctx, senderID)
		if err != nil && !errors.Is(err, app.ErrNotFound) {
			logCtx.WithError(err).Error("Error checking user status for /help command")
			return c.Send("Произошла ошибка при проверке вашего статуса. Пожалуйста, попробуйте позже.")
		}
		if err != nil || u.Permissions() == user.PermNone {
			logCtx.Info("User has no permissions, sending restricted help.")
			return c.Send("Доступных команд для вас нет. Обратитесь к администратору для добавления вас в систему.")
		}

		return c.Send(helpText(u), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
}

// helpText lists the commands available to u's group.
func helpText(u *user.User) string {
	var helpText strings.Builder
	helpText.WriteString("Доступные команды:\n\n")
	if u.HasPermission(user.PermDataUpload) {
		helpText.WriteString("Отправьте файл .xlsx или .xls с подписью `<FormID> <SectionID> <ГГГГ-ММ-ДД> [комментарий]`\n - Загрузить отчёт за период.\n\n")
	}
	if u.HasPermission(user.PermDataReview) {
		helpText.WriteString("`/status <FormID> [ГГГГ-ММ-ДД]`\n - Показать файлы формы за период.\n\n")
	}
	if u.HasPermission(user.PermDataConfirm) {
		helpText.WriteString("`/confirm <FormID> [ГГГГ-ММ-ДД]`\n - Подтвердить данные формы за период.\n\n")
		helpText.WriteString("`/confirm_all [ГГГГ-ММ-ДД]`\n - Подтвердить данные всех форм.\n\n")
		helpText.WriteString("`/cancel <FormID> [ГГГГ-ММ-ДД]`\n - Отменить подтверждение за период.\n\n")
	}
	if u.HasPermission(user.PermDataDelete) {
		helpText.WriteString("`/delete <FormID> <SectionID> <FileID>`\n - Удалить загруженный файл.\n\n")
	}
	if u.IsPrivileged() {
		helpText.WriteString("`/add_user <ID> <группа> [TelegramID] [Имя]`\n - Добавить пользователя.\n\n")
		helpText.WriteString("`/remove_user <ID>`\n - Деактивировать пользователя.\n\n")
		helpText.WriteString("`/list_users [active|all]`\n - Показать список пользователей.\n\n")
	}
	helpText.WriteString("`/help`\n - Показать это справочное сообщение.")
	return helpText.String()
}

func displayName(u *user.User, sender *telebot.User) string {
	if u.Name != "" {
		return u.Name
	}
	return sender.FirstName
}
