package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smt-go/internal/config"
	"smt-go/internal/embedding"
	"smt-go/internal/moses"
	"smt-go/internal/score"
	"smt-go/internal/vector"
)

// Decoder translates text with a given decoder configuration.
type Decoder interface {
	Translate(ctx context.Context, config string, lines []string, opts moses.DecodeOptions) ([]string, error)
	TranslateNBest(ctx context.Context, config string, lines []string, n int, opts moses.DecodeOptions) ([]moses.NBestEntry, error)
}

// ErrPhraseNotFound marks nearest-phrase queries for phrases outside the
// embedding vocabulary.
var ErrPhraseNotFound = errors.New("phrase not in the embedding vocabulary")

// TranslateController serves translation and nearest-phrase queries over
// the configured trained models. Embedding stores and phrase indexes are
// loaded lazily per model and side and cached for the lifetime of the
// process.
type TranslateController struct {
	cfg     *config.Config
	decoder Decoder
	qdrant  *config.QdrantConfig
	logger  *zap.Logger

	mu      sync.Mutex
	stores  map[string]*embedding.Store
	indexes map[string]vector.PhraseIndex
}

// NewTranslateController creates a controller. A nil qdrant configuration
// keeps all nearest-phrase queries on the in-memory index.
func NewTranslateController(cfg *config.Config, decoder Decoder, qdrant *config.QdrantConfig, logger *zap.Logger) *TranslateController {
	return &TranslateController{
		cfg:     cfg,
		decoder: decoder,
		qdrant:  qdrant,
		logger:  logger,
		stores:  make(map[string]*embedding.Store),
		indexes: make(map[string]vector.PhraseIndex),
	}
}

type TranslateRequest struct {
	Model   string   `json:"model" binding:"required"`
	Lines   []string `json:"lines" binding:"required"`
	Reverse bool     `json:"reverse"`
	NBest   int      `json:"nbest"`
}

type nbestCandidate struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Features string `json:"features,omitempty"`
}

func (tc *TranslateController) Translate(c *gin.Context) {
	var request TranslateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		tc.logger.Error("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	model, err := tc.cfg.GetModel(request.Model)
	if err != nil {
		tc.logger.Error("Unknown model", zap.String("model", request.Model), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Unknown model",
			"details": err.Error(),
		})
		return
	}

	configPath := model.ConfigPath(request.Reverse)
	tc.logger.Info("Translating",
		zap.String("model", model.Name),
		zap.Bool("reverse", request.Reverse),
		zap.Int("lines", len(request.Lines)),
		zap.Int("nbest", request.NBest),
	)

	if request.NBest > 0 {
		entries, err := tc.decoder.TranslateNBest(c.Request.Context(), configPath, request.Lines, request.NBest, moses.DecodeOptions{})
		if err != nil {
			tc.logger.Error("Failed to translate", zap.String("model", model.Name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to translate",
				"details": err.Error(),
			})
			return
		}
		candidates := make([]nbestCandidate, len(entries))
		for i, e := range entries {
			candidates[i] = nbestCandidate{Index: e.Index, Text: e.Text, Features: e.Features}
		}
		c.JSON(http.StatusOK, gin.H{
			"model": model.Name,
			"nbest": candidates,
		})
		return
	}

	translations, err := tc.decoder.Translate(c.Request.Context(), configPath, request.Lines, moses.DecodeOptions{})
	if err != nil {
		tc.logger.Error("Failed to translate", zap.String("model", model.Name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to translate",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"model":        model.Name,
		"translations": translations,
	})
}

type EvaluateRequest struct {
	Model      string   `json:"model" binding:"required"`
	Lines      []string `json:"lines" binding:"required"`
	References []string `json:"references" binding:"required"`
	Reverse    bool     `json:"reverse"`
}

// Evaluate translates the lines through the named model and scores the
// output against the references with corpus BLEU.
func (tc *TranslateController) Evaluate(c *gin.Context) {
	var request EvaluateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		tc.logger.Error("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}
	if len(request.Lines) != len(request.References) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Line count mismatch",
			"details": fmt.Sprintf("%d lines, %d references", len(request.Lines), len(request.References)),
		})
		return
	}

	tc.logger.Info("Evaluating",
		zap.String("model", request.Model),
		zap.Bool("reverse", request.Reverse),
		zap.Int("lines", len(request.Lines)),
	)

	result, translations, err := tc.EvaluateLines(c.Request.Context(), request.Model, request.Lines, request.References, request.Reverse)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "Failed to evaluate"
		if errors.Is(err, config.ErrModelNotFound) {
			status, msg = http.StatusNotFound, "Unknown model"
		}
		tc.logger.Error("Evaluation failed", zap.String("model", request.Model), zap.Error(err))
		c.JSON(status, gin.H{
			"error":   msg,
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model":           request.Model,
		"bleu":            result.Bleu,
		"ratio":           result.Ratio,
		"brevity_penalty": result.BrevityPenalty,
		"precisions":      result.Precisions,
		"translations":    translations,
	})
}

type NearestRequest struct {
	Model   string `json:"model" binding:"required"`
	Phrase  string `json:"phrase" binding:"required"`
	K       int    `json:"k"`
	Reverse bool   `json:"reverse"`
}

// NearestPhrases looks the phrase up in the query-side embedding space
// and returns its closest phrases on the other side of the shared
// cross-lingual space.
func (tc *TranslateController) NearestPhrases(c *gin.Context) {
	var request NearestRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		tc.logger.Error("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	neighbors, err := tc.Nearest(c.Request.Context(), request.Model, request.Phrase, request.K, request.Reverse)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "Failed to search phrases"
		switch {
		case errors.Is(err, config.ErrModelNotFound):
			status, msg = http.StatusNotFound, "Unknown model"
		case errors.Is(err, ErrPhraseNotFound):
			status, msg = http.StatusNotFound, "Phrase not in the embedding vocabulary"
		}
		tc.logger.Error("Nearest-phrase query failed",
			zap.String("model", request.Model),
			zap.String("phrase", request.Phrase),
			zap.Error(err),
		)
		c.JSON(status, gin.H{
			"error":   msg,
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model":     request.Model,
		"phrase":    request.Phrase,
		"neighbors": neighbors,
	})
}

// TranslateLines decodes lines through the named model, for callers
// outside the HTTP surface.
func (tc *TranslateController) TranslateLines(ctx context.Context, modelName string, lines []string, reverse bool) ([]string, error) {
	model, err := tc.cfg.GetModel(modelName)
	if err != nil {
		return nil, err
	}
	return tc.decoder.Translate(ctx, model.ConfigPath(reverse), lines, moses.DecodeOptions{})
}

// EvaluateLines decodes lines through the named model and scores them
// against the references, returning the BLEU breakdown alongside the
// translations.
func (tc *TranslateController) EvaluateLines(ctx context.Context, modelName string, lines, references []string, reverse bool) (score.Result, []string, error) {
	model, err := tc.cfg.GetModel(modelName)
	if err != nil {
		return score.Result{}, nil, err
	}
	translations, err := tc.decoder.Translate(ctx, model.ConfigPath(reverse), lines, moses.DecodeOptions{})
	if err != nil {
		return score.Result{}, nil, err
	}
	result, err := score.Corpus(translations, references)
	if err != nil {
		return score.Result{}, nil, err
	}
	return result, translations, nil
}

// Nearest returns the top-k phrases on the other side of the shared
// space for a phrase of the query side. k defaults to 10.
func (tc *TranslateController) Nearest(ctx context.Context, modelName, phrase string, k int, reverse bool) ([]vector.Neighbor, error) {
	if k <= 0 {
		k = 10
	}
	model, err := tc.cfg.GetModel(modelName)
	if err != nil {
		return nil, err
	}
	fromSide, toSide := "src", "trg"
	if reverse {
		fromSide, toSide = "trg", "src"
	}
	from, err := tc.storeFor(model, fromSide)
	if err != nil {
		return nil, err
	}

	key := embedding.JoinTokens(strings.Fields(phrase))
	row, ok := from.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%q: %w", phrase, ErrPhraseNotFound)
	}
	index, err := tc.indexFor(ctx, model, toSide)
	if err != nil {
		return nil, err
	}
	return index.Search(ctx, from.Vector(row), k)
}

// Close releases any remote index connections.
func (tc *TranslateController) Close() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for _, idx := range tc.indexes {
		if q, ok := idx.(*vector.QdrantIndex); ok {
			q.Close()
		}
	}
}

func (tc *TranslateController) storeFor(model *config.Model, side string) (*embedding.Store, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.storeForLocked(model, side)
}

func (tc *TranslateController) storeForLocked(model *config.Model, side string) (*embedding.Store, error) {
	key := model.Name + ":" + side
	if s, ok := tc.stores[key]; ok {
		return s, nil
	}
	s, err := embedding.LoadFile(model.EmbeddingPath(side))
	if err != nil {
		return nil, fmt.Errorf("loading %s embeddings for model %s: %w", side, model.Name, err)
	}
	s.Normalize()
	tc.stores[key] = s
	return s, nil
}

func (tc *TranslateController) indexFor(ctx context.Context, model *config.Model, side string) (vector.PhraseIndex, error) {
	key := model.Name + ":" + side
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if idx, ok := tc.indexes[key]; ok {
		return idx, nil
	}
	store, err := tc.storeForLocked(model, side)
	if err != nil {
		return nil, err
	}

	var index vector.PhraseIndex = vector.NewMemoryIndex(store, tc.logger)
	if tc.qdrant != nil {
		collection := fmt.Sprintf("%s_%s_%s", tc.qdrant.Collection, model.Name, side)
		qidx, err := vector.NewQdrantIndex(tc.qdrant.Host, tc.qdrant.Port, tc.qdrant.APIKey, collection, tc.logger)
		if err != nil {
			tc.logger.Warn("Failed to connect to qdrant, using the in-memory index", zap.Error(err))
		} else if err := qidx.Load(ctx, store); err != nil {
			tc.logger.Warn("Failed to load the qdrant collection, using the in-memory index", zap.Error(err))
			qidx.Close()
		} else {
			index = qidx
		}
	}
	tc.indexes[key] = index
	return index, nil
}
