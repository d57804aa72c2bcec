package telegram

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dashboard_report_bot/internal/app"
	"dashboard_report_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// UserAdmin is the part of the admin service behind the user management commands.
type UserAdmin interface {
	UserResolver
	AddUser(ctx context.Context, actor *user.User, u *user.User) error
	RemoveUser(ctx context.Context, actor *user.User, id string) (*user.User, error)
	ListUsers(ctx context.Context, actor *user.User) ([]*user.User, error)
}

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService UserAdmin, baseLogger *logrus.Entry) {
	b.Handle("/add_user", addUserHandler(ctx, adminService, baseLogger))
	b.Handle("/remove_user", removeUserHandler(ctx, adminService, baseLogger))
	b.Handle("/list_users", listUsersHandler(ctx, adminService, baseLogger))
}

// adminActor resolves the sender and checks that it may administer users.
// A nil user means a reply was already sent.
func adminActor(ctx context.Context, c telebot.Context, adminService UserAdmin, handlerLogger *logrus.Entry) (*user.User, error) {
	actor, err := adminService.ResolveTelegramUser(ctx, c.Sender().ID)
	if err != nil && !errors.Is(err, app.ErrNotFound) {
		handlerLogger.WithError(err).Error("Failed to resolve sender")
		return nil, c.Send("Произошла ошибка при проверке вашего статуса. Пожалуйста, попробуйте позже.")
	}
	if err != nil || !actor.IsPrivileged() {
		handlerLogger.Warn("Unauthorized access attempt")
		return nil, c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
	}
	return actor, nil
}

func addUserHandler(ctx context.Context, adminService UserAdmin, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/add_user",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		actor, err := adminActor(ctx, c, adminService, handlerLogger)
		if actor == nil {
			return err
		}

		// Expected format: /add_user <ID> <группа> [TelegramID] [Имя]
		args := c.Args()
		if len(args) < 2 {
			handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
			return c.Send("Неверный формат команды. Используйте: /add_user <ID> <группа> [TelegramID] [Имя]")
		}

		group, err := user.ParseGroupType(args[1])
		if err != nil || group == user.GroupNone || group == user.GroupSystem {
			return c.Send("Ошибка: группа должна быть одной из: reviewer, executive, uploader, administrator.")
		}

		newUser := &user.User{ID: args[0], Name: args[0], Group: group}
		if len(args) > 2 {
			telegramID, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return c.Send("Ошибка: Telegram ID должен быть числом.")
			}
			newUser.TelegramID = sql.NullInt64{Int64: telegramID, Valid: true}
		}
		if len(args) > 3 {
			newUser.Name = strings.Join(args[3:], " ")
		}

		handlerLogger = handlerLogger.WithFields(logrus.Fields{
			"user_id": newUser.ID,
			"group":   group.String(),
		})

		if err := adminService.AddUser(ctx, actor, newUser); err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			case errors.Is(err, app.ErrUserAlreadyExists):
				logWithError.Warn("User already exists")
				return c.Send(fmt.Sprintf("Ошибка: Пользователь %s уже существует.", newUser.ID))
			default:
				logWithError.Error("Failed to add user")
				return c.Send(fmt.Sprintf("Произошла ошибка при добавлении пользователя: %s", err.Error()))
			}
		}

		handlerLogger.Info("User added successfully")
		return c.Send(fmt.Sprintf("Пользователь %s (%s) успешно добавлен.", newUser.Name, group))
	}
}

func removeUserHandler(ctx context.Context, adminService UserAdmin, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/remove_user",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		actor, err := adminActor(ctx, c, adminService, handlerLogger)
		if actor == nil {
			return err
		}

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Неверный формат команды. Используйте: /remove_user <ID>")
		}
		handlerLogger = handlerLogger.WithField("user_id", args[0])

		removed, err := adminService.RemoveUser(ctx, actor, args[0])
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			case errors.Is(err, app.ErrNotFound):
				logWithError.Warn("User to remove not found")
				return c.Send(fmt.Sprintf("Пользователь %s не найден.", args[0]))
			case errors.Is(err, app.ErrUserAlreadyInactive):
				logWithError.Warn("User already inactive")
				return c.Send(fmt.Sprintf("Пользователь %s уже был деактивирован.", args[0]))
			default:
				logWithError.Error("Failed to remove user")
				return c.Send(fmt.Sprintf("Произошла ошибка при удалении пользователя: %s", err.Error()))
			}
		}

		handlerLogger.Info("User deactivated successfully")
		return c.Send(fmt.Sprintf("Пользователь %s (%s) успешно деактивирован.", removed.Name, removed.ID))
	}
}

func listUsersHandler(ctx context.Context, adminService UserAdmin, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/list_users",
			"sender_id": c.Sender().ID,
		})

		actor, err := adminActor(ctx, c, adminService, handlerLogger)
		if actor == nil {
			return err
		}

		// Optional argument: 'active' or 'all'
		listType := "active"
		if args := c.Args(); len(args) > 0 {
			listType = strings.ToLower(args[0])
		}
		if listType != "active" && listType != "all" {
			handlerLogger.WithField("list_type", listType).Warn("Invalid list type argument")
			return c.Send("Неверный аргумент. Используйте 'active' или 'all', или оставьте пустым для отображения активных пользователей.")
		}

		users, err := adminService.ListUsers(ctx, actor)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to get list of users")
			return c.Send(fmt.Sprintf("Произошла ошибка при получении списка пользователей: %s", err.Error()))
		}

		title := "Все пользователи"
		if listType == "active" {
			title = "Активные пользователи"
			active := users[:0:0]
			for _, u := range users {
				if !u.IsDeleted {
					active = append(active, u)
				}
			}
			users = active
		}
		if len(users) == 0 {
			return c.Send("Пользователей не найдено.")
		}

		handlerLogger.WithField("users_count", len(users)).Info("Successfully retrieved user list")

		var response strings.Builder
		response.WriteString(fmt.Sprintf("--- %s ---\n", title))
		for _, u := range users {
			status := "Активен"
			if u.IsDeleted {
				status = "Деактивирован"
			}
			telegramID := "-"
			if u.TelegramID.Valid {
				telegramID = strconv.FormatInt(u.TelegramID.Int64, 10)
			}
			response.WriteString(fmt.Sprintf("ID: %s, Telegram ID: %s, Имя: %s, Группа: %s, Статус: %s\n",
				u.ID, telegramID, u.Name, u.Group, status))
		}
		return c.Send(response.String())
	}
}
