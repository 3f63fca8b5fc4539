package telegram

import (
	"fmt"
	"reflect"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// PhotoRef is a Telegram file_id. It must be resolved with getFile before the
// bytes can be downloaded.
type PhotoRef string

// Photo is the attachment picked out of an inbound update.
type Photo struct {
	ChatID    int64
	MessageID int
	Ref       PhotoRef
}

// EventMessage returns the message carried by an update, preferring a new
// message over an edit. An empty message object ({}) counts as absent. Nil
// when the update carries neither.
func EventMessage(update *tgbotapi.Update) *tgbotapi.Message {
	if update == nil {
		return nil
	}
	if present(update.Message) {
		return update.Message
	}
	if present(update.EditedMessage) {
		return update.EditedMessage
	}
	return nil
}

func present(msg *tgbotapi.Message) bool {
	return msg != nil && !reflect.ValueOf(*msg).IsZero()
}

// ResolvePhoto picks the last photo size of the update's message. Telegram
// orders sizes smallest first, so the last entry is the largest.
//
// ok is false when there is no message or no photo; that is not an error.
// A photo message without a chat is malformed.
func ResolvePhoto(update *tgbotapi.Update) (photo Photo, ok bool, err error) {
	msg := EventMessage(update)
	if msg == nil {
		return Photo{}, false, nil
	}
	if len(msg.Photo) == 0 {
		return Photo{}, false, nil
	}
	if msg.Chat == nil {
		return Photo{}, false, fmt.Errorf("%w: message %d has no chat", ErrMalformedResponse, msg.MessageID)
	}
	last := msg.Photo[len(msg.Photo)-1]
	if last.FileID == "" {
		return Photo{}, false, fmt.Errorf("%w: photo size without file_id", ErrMalformedResponse)
	}
	return Photo{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Ref:       PhotoRef(last.FileID),
	}, true, nil
}
