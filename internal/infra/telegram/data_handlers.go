package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"dashboard_report_bot/internal/app"
	"dashboard_report_bot/internal/domain/datafile"
	"dashboard_report_bot/internal/domain/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const dateLayout = "2006-01-02"

// UserResolver maps a Telegram sender to a dashboard user.
type UserResolver interface {
	ResolveTelegramUser(ctx context.Context, telegramID int64) (*user.User, error)
}

// DataFileManager is the part of the data file service the bot drives.
type DataFileManager interface {
	AddDataFileSourceFromReader(ctx context.Context, actor *user.User, fs *datafile.FileSource, r io.Reader) error
	ConfirmPeriod(ctx context.Context, actor *user.User, formID uuid.UUID, sourceDate time.Time) (int, error)
	ConfirmAllForms(ctx context.Context, actor *user.User, sourceDate time.Time) (int, error)
	CancelConfirmation(ctx context.Context, actor *user.User, formID uuid.UUID, sourceDate time.Time) (int, error)
	DeleteDataFileSource(ctx context.Context, actor *user.User, formID, sectionID, fileSourceID uuid.UUID) error
	PeriodStatus(ctx context.Context, formID uuid.UUID, date time.Time) (*app.PeriodFiles, error)
}

// DataHandlers serves uploads and the period lifecycle commands.
type DataHandlers struct {
	ctx    context.Context
	users  UserResolver
	files  DataFileManager
	logger *logrus.Entry
	now    func() time.Time
	// fetch downloads an uploaded document; replaced in tests.
	fetch func(c telebot.Context, f *telebot.File) (io.ReadCloser, error)
}

func NewDataHandlers(ctx context.Context, users UserResolver, files DataFileManager, baseLogger *logrus.Entry) *DataHandlers {
	return &DataHandlers{
		ctx:    ctx,
		users:  users,
		files:  files,
		logger: baseLogger.WithField("handler_group", "data"),
		now:    time.Now,
		fetch: func(c telebot.Context, f *telebot.File) (io.ReadCloser, error) {
			return c.Bot().File(f)
		},
	}
}

// RegisterDataHandlers registers the upload and period lifecycle handlers.
func RegisterDataHandlers(b *telebot.Bot, h *DataHandlers) {
	b.Handle(telebot.OnDocument, h.HandleDocument)
	b.Handle("/confirm", h.HandleConfirm)
	b.Handle("/confirm_all", h.HandleConfirmAll)
	b.Handle("/cancel", h.HandleCancel)
	b.Handle("/delete", h.HandleDelete)
	b.Handle("/status", h.HandleStatus)
	b.Handle(telebot.OnCallback, h.HandleCallback)
}

func (h *DataHandlers) handlerLogger(c telebot.Context, handler string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"handler":   handler,
		"sender_id": c.Sender().ID,
	})
}

// actor resolves the sender; a nil user means a reply was already sent.
func (h *DataHandlers) actor(c telebot.Context, log *logrus.Entry) (*user.User, error) {
	u, err := h.users.ResolveTelegramUser(h.ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			log.Warn("Unknown user")
			return nil, c.Send("Вы не зарегистрированы в системе. Обратитесь к администратору.")
		}
		log.WithError(err).Error("Failed to resolve user")
		return nil, c.Send("Произошла ошибка при проверке вашего статуса. Пожалуйста, попробуйте позже.")
	}
	return u, nil
}

// HandleDocument registers an uploaded spreadsheet.
// Caption format: <FormID> <SectionID> <YYYY-MM-DD> [комментарий]
func (h *DataHandlers) HandleDocument(c telebot.Context) error {
	log := h.handlerLogger(c, "document")
	doc := c.Message().Document
	if doc == nil {
		return nil
	}

	fields := strings.Fields(c.Message().Caption)
	if len(fields) < 3 {
		log.WithField("caption", c.Message().Caption).Warn("Invalid caption format")
		return c.Send("Добавьте к файлу подпись: <FormID> <SectionID> <ГГГГ-ММ-ДД> [комментарий]")
	}
	formID, err := uuid.Parse(fields[0])
	if err != nil {
		return c.Send("Ошибка: неверный идентификатор формы.")
	}
	sectionID, err := uuid.Parse(fields[1])
	if err != nil {
		return c.Send("Ошибка: неверный идентификатор раздела.")
	}
	sourceDate, err := time.ParseInLocation(dateLayout, fields[2], time.Local)
	if err != nil {
		return c.Send("Ошибка: дата должна быть в формате ГГГГ-ММ-ДД.")
	}

	u, err := h.actor(c, log)
	if u == nil {
		return err
	}
	log = log.WithFields(logrus.Fields{"user_id": u.ID, "form_id": formID, "form_section_id": sectionID, "file_name": doc.FileName})

	body, err := h.fetch(c, &doc.File)
	if err != nil {
		log.WithError(err).Error("Failed to download document")
		return c.Send("Не удалось загрузить файл из Telegram. Попробуйте ещё раз.")
	}
	defer body.Close()

	fs := &datafile.FileSource{
		FormID:        formID,
		FormSectionID: sectionID,
		FileName:      filepath.Base(doc.FileName),
		Comment:       strings.Join(fields[3:], " "),
		SourceDate:    sourceDate,
	}
	if err := h.files.AddDataFileSourceFromReader(h.ctx, u, fs, body); err != nil {
		return h.replyError(c, log, err, "Failed to add data file source")
	}

	log.WithField("file_source_id", fs.ID).Info("Document registered")
	return c.Send(fmt.Sprintf("Файл %s принят за %s.\nID: %s", fs.FileName, sourceDate.Format(dateLayout), fs.ID))
}

// parseFormDate reads "<FormID> [YYYY-MM-DD]"; the date defaults to today.
func (h *DataHandlers) parseFormDate(args []string) (uuid.UUID, time.Time, error) {
	if len(args) < 1 || len(args) > 2 {
		return uuid.Nil, time.Time{}, errBadFormat
	}
	formID, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, time.Time{}, errBadFormat
	}
	date, err := h.parseDate(args[1:])
	return formID, date, err
}

func (h *DataHandlers) parseDate(args []string) (time.Time, error) {
	if len(args) == 0 {
		now := h.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), nil
	}
	d, err := time.ParseInLocation(dateLayout, args[0], time.Local)
	if err != nil {
		return time.Time{}, errBadFormat
	}
	return d, nil
}

var errBadFormat = errors.New("bad command format")

func (h *DataHandlers) HandleConfirm(c telebot.Context) error {
	log := h.handlerLogger(c, "/confirm")
	formID, date, err := h.parseFormDate(c.Args())
	if err != nil {
		return c.Send("Неверный формат команды. Используйте: /confirm <FormID> [ГГГГ-ММ-ДД]")
	}
	u, err := h.actor(c, log)
	if u == nil {
		return err
	}
	return h.confirm(c, log.WithField("form_id", formID), u, formID, date)
}

func (h *DataHandlers) confirm(c telebot.Context, log *logrus.Entry, u *user.User, formID uuid.UUID, date time.Time) error {
	n, err := h.files.ConfirmPeriod(h.ctx, u, formID, date)
	if err != nil {
		return h.replyError(c, log, err, "Failed to confirm period")
	}
	log.WithField("confirmed_count", n).Info("Period confirmed")
	if n == 0 {
		return c.Send("Нет неподтверждённых файлов за этот период.")
	}
	return c.Send(fmt.Sprintf("Подтверждено файлов: %d.", n))
}

func (h *DataHandlers) HandleConfirmAll(c telebot.Context) error {
	log := h.handlerLogger(c, "/confirm_all")
	if len(c.Args()) > 1 {
		return c.Send("Неверный формат команды. Используйте: /confirm_all [ГГГГ-ММ-ДД]")
	}
	date, err := h.parseDate(c.Args())
	if err != nil {
		return c.Send("Ошибка: дата должна быть в формате ГГГГ-ММ-ДД.")
	}
	u, err := h.actor(c, log)
	if u == nil {
		return err
	}

	n, err := h.files.ConfirmAllForms(h.ctx, u, date)
	if err != nil && errors.Is(err, app.ErrPermissionDenied) {
		return h.replyError(c, log, err, "Failed to confirm forms")
	}
	if err != nil {
		failed := failedForms(err)
		log.WithError(err).WithField("failed_forms", failed).Error("Some forms could not be confirmed")
		return c.Send(fmt.Sprintf("Подтверждено файлов: %d. Не удалось подтвердить форм: %d. Подробности в журнале.", n, failed))
	}
	log.WithField("confirmed_count", n).Info("All forms confirmed")
	return c.Send(fmt.Sprintf("Подтверждено файлов: %d.", n))
}

// failedForms counts the per-form errors ConfirmAllForms joins together.
func failedForms(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

func (h *DataHandlers) HandleCancel(c telebot.Context) error {
	log := h.handlerLogger(c, "/cancel")
	formID, date, err := h.parseFormDate(c.Args())
	if err != nil {
		return c.Send("Неверный формат команды. Используйте: /cancel <FormID> [ГГГГ-ММ-ДД]")
	}
	u, err := h.actor(c, log)
	if u == nil {
		return err
	}
	return h.cancel(c, log.WithField("form_id", formID), u, formID, date)
}

func (h *DataHandlers) cancel(c telebot.Context, log *logrus.Entry, u *user.User, formID uuid.UUID, date time.Time) error {
	n, err := h.files.CancelConfirmation(h.ctx, u, formID, date)
	if err != nil {
		return h.replyError(c, log, err, "Failed to cancel confirmation")
	}
	log.WithField("cancelled_count", n).Info("Confirmation cancelled")
	if n == 0 {
		return c.Send("За этот период нет файлов.")
	}
	return c.Send(fmt.Sprintf("Подтверждение отменено для файлов: %d.", n))
}

func (h *DataHandlers) HandleDelete(c telebot.Context) error {
	log := h.handlerLogger(c, "/delete")
	args := c.Args()
	if len(args) != 3 {
		return c.Send("Неверный формат команды. Используйте: /delete <FormID> <SectionID> <FileID>")
	}
	ids := make([]uuid.UUID, 0, 3)
	for _, a := range args {
		id, err := uuid.Parse(a)
		if err != nil {
			return c.Send(fmt.Sprintf("Ошибка: %q не является идентификатором.", a))
		}
		ids = append(ids, id)
	}
	u, err := h.actor(c, log)
	if u == nil {
		return err
	}

	log = log.WithField("file_source_id", ids[2])
	if err := h.files.DeleteDataFileSource(h.ctx, u, ids[0], ids[1], ids[2]); err != nil {
		return h.replyError(c, log, err, "Failed to delete data file source")
	}
	log.Info("Data file source deleted")
	return c.Send("Файл удалён.")
}

// HandleStatus lists the period's uploads; confirmers also get confirm and cancel buttons.
func (h *DataHandlers) HandleStatus(c telebot.Context) error {
	log := h.handlerLogger(c, "/status")
	formID, date, err := h.parseFormDate(c.Args())
	if err != nil {
		return c.Send("Неверный формат команды. Используйте: /status <FormID> [ГГГГ-ММ-ДД]")
	}
	u, err := h.actor(c, log)
	if u == nil {
		return err
	}
	if !u.HasPermission(user.PermDataReview) {
		log.Warn("Unauthorized access attempt")
		return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
	}

	status, err := h.files.PeriodStatus(h.ctx, formID, date)
	if err != nil {
		return h.replyError(c, log, err, "Failed to load period status")
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("Форма %s, период %s\n", status.Form.Name, status.Range))
	if len(status.Files) == 0 {
		response.WriteString("Файлов за период нет.\n")
	}
	for _, fs := range status.Files {
		state := "загружен"
		if fs.IsConfirmed {
			state = "подтверждён"
		}
		response.WriteString(fmt.Sprintf("%s / %s: %s (%s), автор %s, ID: %s\n",
			fs.FormSectionName, fs.FileName, state, fs.SourceDate.Format(dateLayout), fs.CreatorID, fs.ID))
	}

	if !u.HasPermission(user.PermDataConfirm) || len(status.Files) == 0 {
		return c.Send(response.String())
	}
	return c.Send(response.String(), periodButtons(formID, date))
}

func (h *DataHandlers) replyError(c telebot.Context, log *logrus.Entry, err error, msg string) error {
	logWithError := log.WithError(err)
	switch {
	case errors.Is(err, app.ErrPermissionDenied):
		logWithError.Warn("Permission denied")
		return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
	case errors.Is(err, app.ErrPeriodAlreadyConfirmed):
		logWithError.Warn(msg)
		return c.Send("Данные за этот период уже подтверждены. Обратитесь к администратору.")
	case errors.Is(err, app.ErrNotFound):
		logWithError.Warn(msg)
		return c.Send("Ошибка: форма, раздел или файл не найдены.")
	case errors.Is(err, app.ErrInvalidState):
		logWithError.Warn(msg)
		return c.Send("Ошибка: операция недоступна в текущем состоянии.")
	case errors.Is(err, app.ErrUnsupportedFormat):
		logWithError.Warn(msg)
		return c.Send("Ошибка: поддерживаются только файлы .xlsx и .xls.")
	case errors.Is(err, app.ErrSheetNotFound), errors.Is(err, app.ErrMalformedCoordinate):
		logWithError.Warn(msg)
		return c.Send(fmt.Sprintf("Файл не соответствует шаблону: %s", err.Error()))
	}
	logWithError.Error(msg)
	return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
}
