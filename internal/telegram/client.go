package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ClientConfig holds the bot credential and endpoints.
type ClientConfig struct {
	Token string
	// APIEndpoint and FileEndpoint are fmt templates taking (token, method)
	// and (token, file_path). Empty means api.telegram.org.
	APIEndpoint  string
	FileEndpoint string
	Timeout      time.Duration
	MaxFileBytes int64
}

// Client talks to the Bot API: file lookup, file download and sendMessage.
type Client struct {
	bot          *tgbotapi.BotAPI
	httpClient   *http.Client
	token        string
	fileEndpoint string
	maxFileBytes int64
	logger       *slog.Logger
}

// NewClient verifies the token with getMe and returns a ready client.
func NewClient(cfg ClientConfig, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "telegram"))
	_ = tgbotapi.SetLogger(&slogBotLogger{log: log})

	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	apiEndpoint := cfg.APIEndpoint
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	fileEndpoint := cfg.FileEndpoint
	if fileEndpoint == "" {
		fileEndpoint = tgbotapi.FileEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, apiEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("%w: getMe: %w", ErrNetwork, redact(err, cfg.Token))
	}
	log.Info("bot authorized", slog.String("username", bot.Self.UserName), slog.Int64("bot_id", bot.Self.ID))

	return &Client{
		bot:          bot,
		httpClient:   httpClient,
		token:        cfg.Token,
		fileEndpoint: fileEndpoint,
		maxFileBytes: cfg.MaxFileBytes,
		logger:       log,
	}, nil
}

// Username is the bot's @username as reported by getMe.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// FileLocation resolves a file_id to a download URL via getFile.
func (c *Client) FileLocation(ctx context.Context, ref PhotoRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: getFile: %w", ErrNetwork, err)
	}
	resp, err := c.bot.MakeRequest("getFile", tgbotapi.Params{"file_id": string(ref)})
	if err != nil {
		return "", fmt.Errorf("%w: getFile: %w", ErrNetwork, redact(err, c.token))
	}
	path, err := parseFilePath(resp.Result)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(c.fileEndpoint, c.token, path), nil
}

func parseFilePath(result json.RawMessage) (string, error) {
	raw := strings.TrimSpace(string(result))
	if raw == "" || raw == "null" {
		return "", fmt.Errorf("%w: getFile response has no result", ErrMalformedResponse)
	}
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(result, &file); err != nil {
		return "", fmt.Errorf("%w: getFile result: %w", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(file.FilePath) == "" {
		return "", fmt.Errorf("%w: getFile result has no file_path", ErrMalformedResponse)
	}
	return file.FilePath, nil
}

// Download fetches the bytes at a resolved file location.
func (c *Client) Download(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build download request: %w", ErrNetwork, redact(err, c.token))
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %w", ErrNetwork, redact(err, c.token))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: download status %d", ErrNetwork, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if c.maxFileBytes > 0 {
		if resp.ContentLength > c.maxFileBytes {
			return nil, fmt.Errorf("%w: file too large: %d > %d bytes", ErrNetwork, resp.ContentLength, c.maxFileBytes)
		}
		body = io.LimitReader(resp.Body, c.maxFileBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: read download: %w", ErrNetwork, err)
	}
	if c.maxFileBytes > 0 && int64(len(data)) > c.maxFileBytes {
		return nil, fmt.Errorf("%w: file too large: max %d bytes", ErrNetwork, c.maxFileBytes)
	}
	return data, nil
}

// Fetch resolves ref and downloads it. No retries: one failed call aborts.
func (c *Client) Fetch(ctx context.Context, ref PhotoRef) ([]byte, error) {
	location, err := c.FileLocation(ctx, ref)
	if err != nil {
		return nil, err
	}
	return c.Download(ctx, location)
}

// Reply sends text to a chat with a single sendMessage call.
func (c *Client) Reply(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: sendMessage: %w", ErrNetwork, err)
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("%w: sendMessage: %w", ErrNetwork, redact(err, c.token))
	}
	return nil
}

type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}
