package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dashboard_report_bot/internal/domain/datafile"
	"dashboard_report_bot/internal/domain/form"
	domainTelegram "dashboard_report_bot/internal/domain/telegram"
	"dashboard_report_bot/internal/domain/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// ReminderService nudges uploaders whose section has no data for the current period.
type ReminderService interface {
	SendUploadReminders(ctx context.Context, date time.Time) (int, error)
}

type ReminderServiceImpl struct {
	formRepo       form.Repository
	fileRepo       datafile.Repository
	userRepo       user.Repository
	telegramClient domainTelegram.Client
	anchor         time.Weekday
	logger         *logrus.Entry
}

func NewReminderServiceImpl(
	fr form.Repository,
	dr datafile.Repository,
	ur user.Repository,
	tc domainTelegram.Client,
	anchor time.Weekday,
	logger *logrus.Entry,
) *ReminderServiceImpl {
	return &ReminderServiceImpl{
		formRepo:       fr,
		fileRepo:       dr,
		userRepo:       ur,
		telegramClient: tc,
		anchor:         anchor,
		logger:         logger.WithField("service", "reminder"),
	}
}

// SendUploadReminders messages every uploader of a section that has nothing uploaded for
// the period of date, on forms that accept uploads on date. It returns the messages sent.
func (s *ReminderServiceImpl) SendUploadReminders(ctx context.Context, date time.Time) (int, error) {
	forms, err := s.formRepo.ListForms(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list forms: %w", err)
	}

	sent := 0
	for _, f := range forms {
		if !f.AcceptsUploadOn(date, s.anchor) {
			continue
		}
		log := s.logger.WithFields(f.LogFields())

		rng, err := f.Window(date, s.anchor)
		if err != nil {
			log.WithError(err).Warn("Skipping form with invalid interval")
			continue
		}
		files, err := s.fileRepo.ListByForm(ctx, f.ID, rng)
		if err != nil {
			return sent, fmt.Errorf("failed to list uploads of form %s: %w", f.ID, err)
		}
		uploaded := make(map[uuid.UUID]bool, len(files))
		for _, fs := range files {
			uploaded[fs.FormSectionID] = true
		}

		sections, err := s.formRepo.ListSections(ctx, f.ID)
		if err != nil {
			return sent, fmt.Errorf("failed to list sections of form %s: %w", f.ID, err)
		}
		for _, sec := range sections {
			if !sec.Available() || uploaded[sec.ID] {
				continue
			}
			text := fmt.Sprintf("*Напоминание:* за период %[3]s в %[1]s / %[2]s ещё нет данных.\nОтправьте таблицу с подписью:\n`%[4]s %[5]s %[6]s`",
				escapeMarkdown(f.Name), escapeMarkdown(sec.Name), rng, f.ID, sec.ID, date.Format("2006-01-02"))
			for _, uploaderID := range sec.Uploaders {
				if s.notify(ctx, log.WithFields(sec.LogFields()), uploaderID, text) {
					sent++
				}
			}
		}
	}
	return sent, nil
}

// Legacy Markdown cannot escape inside an entity, so user-supplied names stay outside one.
var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func (s *ReminderServiceImpl) notify(ctx context.Context, log *logrus.Entry, userID, text string) bool {
	log = log.WithField("user_id", userID)
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			log.WithError(err).Error("Failed to load uploader")
		}
		return false
	}
	if u.IsDeleted || !u.TelegramID.Valid {
		log.Debug("Uploader has no active Telegram account, skipping reminder")
		return false
	}
	if err := s.telegramClient.SendMessage(u.TelegramID.Int64, text, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown}); err != nil {
		log.WithError(err).Error("Failed to send upload reminder")
		return false
	}
	log.Info("Upload reminder sent")
	return true
}
