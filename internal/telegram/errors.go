package telegram

import (
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrNetwork covers transport failures and non-success responses from the Bot API.
	ErrNetwork = errors.New("telegram network error")

	// ErrMalformedResponse is returned when a payload lacks a field we rely on.
	ErrMalformedResponse = errors.New("telegram malformed response")
)

// redact strips the bot token from URLs carried by transport errors so it
// never reaches the logs.
func redact(err error, token string) error {
	if err == nil || token == "" {
		return err
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = strings.ReplaceAll(uerr.URL, token, "<token>")
	}
	return err
}
