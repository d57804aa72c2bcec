package telegram

import "gopkg.in/telebot.v3"

// Client delivers direct messages, such as upload reminders, to a user's Telegram chat.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
