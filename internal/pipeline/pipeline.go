package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/Brownie44l1/seedbot/internal/metrics"
	"github.com/Brownie44l1/seedbot/internal/model"
	"github.com/Brownie44l1/seedbot/internal/telegram"
)

// FileFetcher resolves a photo reference and downloads its bytes.
type FileFetcher interface {
	Fetch(ctx context.Context, ref telegram.PhotoRef) ([]byte, error)
}

// Preprocessor turns image bytes into a classifier input tensor.
type Preprocessor interface {
	Preprocess(data []byte) (model.Tensor, error)
}

// Predictor runs the model. Implementations are shared between concurrent
// webhook calls and must be safe for that.
type Predictor interface {
	Predict(t model.Tensor) (model.PredictionVector, error)
}

// ReplySender posts a text message to a chat.
type ReplySender interface {
	Reply(ctx context.Context, chatID int64, text string) error
}

// Config is the process-wide state the pipeline reads. It is built once at
// startup and never modified afterwards.
type Config struct {
	Files        FileFetcher
	Preprocessor Preprocessor
	Classifier   Predictor
	Replies      ReplySender
	Labels       model.Labels
	Metrics      *metrics.Pipeline
	Logger       *slog.Logger
}

// Pipeline handles one inbound update at a time per call: resolve the photo,
// fetch it, classify it and reply. Handle never fails; every stage error is
// logged and the event is acknowledged anyway.
type Pipeline struct {
	files      FileFetcher
	preprocess Preprocessor
	classifier Predictor
	replies    ReplySender
	labels     model.Labels
	metrics    *metrics.Pipeline
	logger     *slog.Logger
}

func New(cfg Config) (*Pipeline, error) {
	var errs []error
	if cfg.Files == nil {
		errs = append(errs, errors.New("file fetcher is required"))
	}
	if cfg.Preprocessor == nil {
		errs = append(errs, errors.New("preprocessor is required"))
	}
	if cfg.Classifier == nil {
		errs = append(errs, errors.New("classifier is required"))
	}
	if cfg.Replies == nil {
		errs = append(errs, errors.New("reply sender is required"))
	}
	if len(cfg.Labels) == 0 {
		errs = append(errs, errors.New("labels are required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	labels := make(model.Labels, len(cfg.Labels))
	copy(labels, cfg.Labels)

	return &Pipeline{
		files:      cfg.Files,
		preprocess: cfg.Preprocessor,
		classifier: cfg.Classifier,
		replies:    cfg.Replies,
		labels:     labels,
		metrics:    cfg.Metrics,
		logger:     log.With(slog.String("component", "pipeline")),
	}, nil
}

// Handle runs the pipeline for one update and reports how far it got. The
// returned Outcome always ends in StateAcknowledged.
func (p *Pipeline) Handle(ctx context.Context, update *tgbotapi.Update) (out Outcome) {
	out = Outcome{EventID: uuid.NewString()}
	out.advance(StateReceived)

	log := p.logger.With(slog.String("event_id", out.EventID))
	if update != nil {
		log = log.With(slog.Int("update_id", update.UpdateID))
	}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		out.advance(StateAcknowledged)
		p.finish(log, out)
	}()

	out.Err = p.run(ctx, update, &out)
	return out
}

func (p *Pipeline) run(ctx context.Context, update *tgbotapi.Update, out *Outcome) error {
	out.HasMessage = telegram.EventMessage(update) != nil

	photo, ok, err := telegram.ResolvePhoto(update)
	if err != nil {
		return fmt.Errorf("resolve attachment: %w", err)
	}
	out.advance(StateAttachmentChecked)
	if !ok {
		out.advance(StateNoPhoto)
		return nil
	}
	out.ChatID = photo.ChatID
	out.PhotoRef = photo.Ref

	start := time.Now()
	data, err := p.files.Fetch(ctx, photo.Ref)
	p.metrics.ObserveStage("fetch", start)
	if err != nil {
		return fmt.Errorf("fetch photo: %w", err)
	}
	out.advance(StateFetched)

	start = time.Now()
	tensor, err := p.preprocess.Preprocess(data)
	p.metrics.ObserveStage("preprocess", start)
	if err != nil {
		return fmt.Errorf("preprocess %d bytes: %w", len(data), err)
	}
	out.advance(StatePreprocessed)

	start = time.Now()
	pred, err := p.classifier.Predict(tensor)
	p.metrics.ObserveStage("predict", start)
	if err != nil {
		if errors.Is(err, ErrShapeMismatch) {
			return fmt.Errorf("predict: %w", err)
		}
		return fmt.Errorf("%w: %w", ErrInference, err)
	}
	out.advance(StatePredicted)

	result, err := model.Classify(pred, p.labels)
	if err != nil {
		return fmt.Errorf("format prediction: %w", err)
	}
	out.Result = &result
	out.advance(StateFormatted)

	start = time.Now()
	err = p.replies.Reply(ctx, photo.ChatID, result.String())
	p.metrics.ObserveStage("reply", start)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	out.advance(StateReplied)
	return nil
}

func (p *Pipeline) finish(log *slog.Logger, out Outcome) {
	if out.ChatID != 0 {
		log = log.With(slog.Int64("chat_id", out.ChatID), slog.String("file_id", string(out.PhotoRef)))
	}

	if out.Err != nil {
		kind := ErrorKind(out.Err)
		log.Error("pipeline failed",
			slog.String("state", out.LastStage().String()),
			slog.String("kind", kind),
			slog.Any("error", out.Err),
		)
		p.metrics.Error(kind)
		p.metrics.Event(metrics.OutcomeFailed)
		return
	}

	switch {
	case !out.HasMessage:
		log.Debug("update without message ignored")
		p.metrics.Event(metrics.OutcomeIgnored)
	case out.Reached(StateNoPhoto):
		log.Debug("message without photo ignored")
		p.metrics.Event(metrics.OutcomeNoPhoto)
	default:
		log.Info("replied",
			slog.String("label", out.Result.Label),
			slog.Float64("confidence", out.Result.Confidence),
		)
		p.metrics.Prediction(out.Result.Label)
		p.metrics.Event(metrics.OutcomeReplied)
	}
}
