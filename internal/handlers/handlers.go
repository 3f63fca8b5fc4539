package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Brownie44l1/seedbot/internal/imageproc"
	"github.com/Brownie44l1/seedbot/internal/model"
	"github.com/Brownie44l1/seedbot/internal/pipeline"
)

const (
	aliveMessage       = "Seed bot is alive!"
	maxUploadBytes     = 10 << 20
	uploadFormFieldKey = "image"
)

// Handler serves liveness, health and the optional direct prediction endpoint.
type Handler struct {
	logger        *slog.Logger
	preprocessor  pipeline.Preprocessor
	classifier    pipeline.Predictor
	labels        model.Labels
	enablePredict bool
}

// NewHandler builds the handler. preprocessor and classifier may be nil when
// enablePredict is false.
func NewHandler(log *slog.Logger, preprocessor pipeline.Preprocessor, classifier pipeline.Predictor, labels model.Labels, enablePredict bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		logger:        log.With(slog.String("handler", "classifier")),
		preprocessor:  preprocessor,
		classifier:    classifier,
		labels:        labels,
		enablePredict: enablePredict && preprocessor != nil && classifier != nil,
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/", h.Index)
	e.GET("/health", h.Health)
	if h.enablePredict {
		g := e.Group("/predict", middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType},
		}))
		g.POST("/image", h.PredictFromImage)
	}
}

// Index is the liveness probe.
func (h *Handler) Index(c echo.Context) error {
	return c.String(http.StatusOK, aliveMessage)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "healthy",
		"labels": len(h.labels),
	})
}

// PredictionResponse is returned by PredictFromImage.
type PredictionResponse struct {
	model.Result
	Text        string             `json:"text"`
	Predictions map[string]float32 `json:"predictions"`
}

// PredictFromImage classifies an uploaded image without going through the bot.
func (h *Handler) PredictFromImage(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxUploadBytes)

	file, err := c.FormFile(uploadFormFieldKey)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No image file provided. Use 'image' as the form field name")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read upload")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read upload")
	}

	h.logger.Info("received file", slog.String("filename", file.Filename), slog.Int64("size", file.Size))

	tensor, err := h.preprocessor.Preprocess(data)
	if err != nil {
		if errors.Is(err, imageproc.ErrDecode) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid image format")
		}
		h.logger.Error("preprocessing failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to preprocess image")
	}

	pred, err := h.classifier.Predict(tensor)
	if err != nil {
		h.logger.Error("prediction failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Prediction failed")
	}

	result, err := model.Classify(pred, h.labels)
	if err != nil {
		h.logger.Error("prediction does not match labels", slog.Any("error", err), slog.Int("scores", len(pred)))
		return echo.NewHTTPError(http.StatusInternalServerError, "Prediction failed")
	}

	predictions := make(map[string]float32, len(pred))
	for i, val := range pred {
		if i < len(h.labels) {
			predictions[h.labels[i]] = val
		}
	}

	return c.JSON(http.StatusOK, PredictionResponse{
		Result:      result,
		Text:        result.String(),
		Predictions: predictions,
	})
}
