// internal/infra/telegram/callback_handlers.go
package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/telebot.v3"
)

const (
	callbackConfirm = "period_confirm"
	callbackCancel  = "period_cancel"
)

// periodButtons attaches confirm and cancel buttons to a period status reply.
// Callback data: period_confirm_<FormID>_<YYYY-MM-DD>
func periodButtons(formID uuid.UUID, date time.Time) *telebot.ReplyMarkup {
	suffix := fmt.Sprintf("_%s_%s", formID, date.Format(dateLayout))
	return &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{{
			{Text: "Подтвердить", Data: callbackConfirm + suffix},
			{Text: "Отменить подтверждение", Data: callbackCancel + suffix},
		}},
	}
}

// HandleCallback serves the buttons created by periodButtons.
func (h *DataHandlers) HandleCallback(c telebot.Context) error {
	log := h.handlerLogger(c, "callback")
	data := c.Callback().Data

	var action string
	switch {
	case strings.HasPrefix(data, callbackConfirm+"_"):
		action = callbackConfirm
	case strings.HasPrefix(data, callbackCancel+"_"):
		action = callbackCancel
	default:
		log.WithField("data", data).Warn("Unhandled callback data")
		return c.Respond(&telebot.CallbackResponse{Text: "Неизвестное действие."})
	}

	parts := strings.Split(strings.TrimPrefix(data, action+"_"), "_")
	if len(parts) != 2 {
		log.WithField("data", data).Warn("Invalid callback data format")
		return c.Respond(&telebot.CallbackResponse{Text: "Ошибка обработки ответа."})
	}
	formID, err := uuid.Parse(parts[0])
	if err != nil {
		log.WithError(err).Warn("Invalid form id in callback")
		return c.Respond(&telebot.CallbackResponse{Text: "Ошибка обработки ответа."})
	}
	date, err := time.ParseInLocation(dateLayout, parts[1], time.Local)
	if err != nil {
		log.WithError(err).Warn("Invalid date in callback")
		return c.Respond(&telebot.CallbackResponse{Text: "Ошибка обработки ответа."})
	}

	u, err := h.actor(c, log)
	if u == nil {
		if err != nil {
			return err
		}
		return c.Respond()
	}
	if err := c.Respond(); err != nil {
		log.WithError(err).Warn("Failed to acknowledge callback")
	}

	log = log.WithField("form_id", formID)
	if action == callbackConfirm {
		return h.confirm(c, log, u, formID, date)
	}
	return h.cancel(c, log, u, formID, date)
}
