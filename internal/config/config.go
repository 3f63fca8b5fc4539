package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultPort          = "5000"
	DefaultWebhookSecret = "abc123"
	DefaultModelPath     = "seed_detector.onnx"
	DefaultModelURL      = "https://drive.google.com/uc?id=1QIY9fQnuSBIMXaEHydCn_ODnEDbNr-qu&export=download"
	DefaultLabels        = "board_bean,green_lentils,pea_seed,peppar_seed"
	DefaultImageSize     = 224
	DefaultTensorLayout  = "nhwc"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxFileBytes  = 20 << 20

	// DefaultDownloadTimeout bounds the whole first-start model download.
	DefaultDownloadTimeout = 10 * time.Minute
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	Model    ModelConfig    `toml:"model"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr          string `toml:"addr"`
	WebhookSecret string `toml:"webhook_secret"`
	EnablePredict bool   `toml:"enable_predict"`
}

type TelegramConfig struct {
	Token        string `toml:"token"`
	APIEndpoint  string `toml:"api_endpoint"`
	FileEndpoint string `toml:"file_endpoint"`
	// Timeout bounds every Bot API call and file download, e.g. "30s".
	Timeout      string `toml:"timeout"`
	MaxFileBytes int64  `toml:"max_file_bytes"`
}

type ModelConfig struct {
	Path        string   `toml:"path"`
	URL         string   `toml:"url"`
	LibraryPath string   `toml:"library_path"`
	InputName   string   `toml:"input_name"`
	OutputName  string   `toml:"output_name"`
	Labels      []string `toml:"labels"`
	ImageWidth  int      `toml:"image_width"`
	ImageHeight int      `toml:"image_height"`
	Layout      string   `toml:"layout"`

	// DownloadTimeout bounds fetching the model from URL, e.g. "10m".
	DownloadTimeout string `toml:"download_timeout"`
}

// TimeoutDuration parses Telegram.Timeout, falling back to DefaultTimeout.
func (c TelegramConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Timeout))
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// DownloadTimeoutDuration parses Model.DownloadTimeout, falling back to
// DefaultDownloadTimeout.
func (c ModelConfig) DownloadTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.DownloadTimeout))
	if err != nil || d <= 0 {
		return DefaultDownloadTimeout
	}
	return d
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:          ":" + DefaultPort,
			WebhookSecret: DefaultWebhookSecret,
		},
		Telegram: TelegramConfig{
			APIEndpoint:  tgbotapi.APIEndpoint,
			FileEndpoint: tgbotapi.FileEndpoint,
			Timeout:      DefaultTimeout.String(),
			MaxFileBytes: DefaultMaxFileBytes,
		},
		Model: ModelConfig{
			Path:        DefaultModelPath,
			URL:         DefaultModelURL,
			Labels:      ParseLabels(DefaultLabels),
			ImageWidth:  DefaultImageSize,
			ImageHeight: DefaultImageSize,
			Layout:      DefaultTensorLayout,

			DownloadTimeout: DefaultDownloadTimeout.String(),
		},
	}
}

// Load reads defaults, then the TOML file at path (if present), then
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		cfg.Server.Addr = ":" + strings.TrimSpace(v)
	}
	str("WEBHOOK_SECRET", &cfg.Server.WebhookSecret)
	if v, ok := lookup("ENABLE_PREDICT"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ENABLE_PREDICT: %w", err)
		}
		cfg.Server.EnablePredict = b
	}

	str("TELEGRAM_TOKEN", &cfg.Telegram.Token)
	str("TELEGRAM_API_ENDPOINT", &cfg.Telegram.APIEndpoint)
	str("TELEGRAM_FILE_ENDPOINT", &cfg.Telegram.FileEndpoint)
	str("TELEGRAM_TIMEOUT", &cfg.Telegram.Timeout)

	str("MODEL_PATH", &cfg.Model.Path)
	str("MODEL_URL", &cfg.Model.URL)
	str("MODEL_DOWNLOAD_TIMEOUT", &cfg.Model.DownloadTimeout)
	str("ONNX_LIBRARY_PATH", &cfg.Model.LibraryPath)
	str("ONNX_INPUT_NAME", &cfg.Model.InputName)
	str("ONNX_OUTPUT_NAME", &cfg.Model.OutputName)
	str("TENSOR_LAYOUT", &cfg.Model.Layout)
	if v, ok := lookup("LABELS"); ok && strings.TrimSpace(v) != "" {
		cfg.Model.Labels = ParseLabels(v)
	}

	var size int
	if err := num("IMAGE_SIZE", &size); err != nil {
		return err
	}
	if size != 0 {
		cfg.Model.ImageWidth = size
		cfg.Model.ImageHeight = size
	}
	if err := num("IMAGE_WIDTH", &cfg.Model.ImageWidth); err != nil {
		return err
	}
	return num("IMAGE_HEIGHT", &cfg.Model.ImageHeight)
}

// ParseLabels splits a comma-separated label list. Order is significant: the
// position of a label is the model output index it names, so entries are only
// trimmed and an empty entry keeps its slot.
func ParseLabels(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	labels := make([]string, len(parts))
	for i, p := range parts {
		labels[i] = strings.TrimSpace(p)
	}
	return labels
}

// BlankLabels lists the indexes of empty labels. A prediction landing on one
// of them replies with an empty name.
func (c ModelConfig) BlankLabels() []int {
	var idx []int
	for i, l := range c.Labels {
		if strings.TrimSpace(l) == "" {
			idx = append(idx, i)
		}
	}
	return idx
}

// ValidateModel checks the settings needed to load and feed the classifier.
func (c Config) ValidateModel() error {
	var errs []error
	if strings.TrimSpace(c.Model.Path) == "" {
		errs = append(errs, errors.New("model.path is required"))
	}
	if len(c.Model.Labels) == 0 {
		errs = append(errs, errors.New("model.labels must not be empty"))
	}
	if c.Model.ImageWidth <= 0 || c.Model.ImageHeight <= 0 {
		errs = append(errs, fmt.Errorf("invalid image size %dx%d", c.Model.ImageWidth, c.Model.ImageHeight))
	}
	switch strings.ToLower(c.Model.Layout) {
	case "nhwc", "nchw":
	default:
		errs = append(errs, fmt.Errorf("unknown tensor layout %q", c.Model.Layout))
	}
	return errors.Join(errs...)
}

// ValidateServe checks everything the webhook server needs.
func (c Config) ValidateServe() error {
	var errs []error
	if err := c.ValidateModel(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram token is required (TELEGRAM_TOKEN)"))
	}
	if strings.TrimSpace(c.Server.WebhookSecret) == "" {
		errs = append(errs, errors.New("webhook secret is required (WEBHOOK_SECRET)"))
	}
	if strings.Count(c.Telegram.FileEndpoint, "%s") != 2 {
		errs = append(errs, fmt.Errorf("telegram file endpoint %q needs two %%s verbs (token, path)", c.Telegram.FileEndpoint))
	}
	if strings.Count(c.Telegram.APIEndpoint, "%s") != 2 {
		errs = append(errs, fmt.Errorf("telegram api endpoint %q needs two %%s verbs (token, method)", c.Telegram.APIEndpoint))
	}
	return errors.Join(errs...)
}
