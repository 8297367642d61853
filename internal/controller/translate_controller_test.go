package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"smt-go/internal/config"
	"smt-go/internal/embedding"
	"smt-go/internal/moses"
)

type fakeDecoder struct {
	config       string
	lines        []string
	n            int
	translations []string
	entries      []moses.NBestEntry
	err          error
}

func (f *fakeDecoder) Translate(_ context.Context, config string, lines []string, _ moses.DecodeOptions) ([]string, error) {
	f.config = config
	f.lines = lines
	return f.translations, f.err
}

func (f *fakeDecoder) TranslateNBest(_ context.Context, config string, lines []string, n int, _ moses.DecodeOptions) ([]moses.NBestEntry, error) {
	f.config = config
	f.lines = lines
	f.n = n
	return f.entries, f.err
}

func writeTestStore(t *testing.T, path string, phrases []string, data []float64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create store dir: %v", err)
	}
	store, err := embedding.New(phrases, mat.NewDense(len(phrases), len(data)/len(phrases), data))
	if err != nil {
		t.Fatalf("Failed to build store: %v", err)
	}
	if err := store.SaveFile(path); err != nil {
		t.Fatalf("Failed to save store: %v", err)
	}
}

func testController(t *testing.T, decoder Decoder) (*TranslateController, *config.Model) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Models: []config.Model{
			{Name: "en-es", SrcLang: "en", TrgLang: "es", WorkDir: dir},
		},
	}
	model := &cfg.Models[0]
	writeTestStore(t, model.EmbeddingPath("src"), []string{"gato", "perro"}, []float64{1, 0, 0, 1})
	writeTestStore(t, model.EmbeddingPath("trg"), []string{"cat", "dog"}, []float64{1, 0, 0, 1})
	return NewTranslateController(cfg, decoder, nil, zap.NewNop()), model
}

func postJSON(t *testing.T, handler gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/", handler)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTranslateController_Translate(t *testing.T) {
	decoder := &fakeDecoder{translations: []string{"the cat", "a dog"}}
	tc, model := testController(t, decoder)

	w := postJSON(t, tc.Translate, `{"model":"en-es","lines":["el gato","un perro"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Model        string   `json:"model"`
		Translations []string `json:"translations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Model != "en-es" {
		t.Fatalf("Expected model en-es, got %q", resp.Model)
	}
	if len(resp.Translations) != 2 || resp.Translations[0] != "the cat" {
		t.Fatalf("Expected decoder translations, got %v", resp.Translations)
	}
	if decoder.config != model.ConfigPath(false) {
		t.Fatalf("Expected forward config %q, got %q", model.ConfigPath(false), decoder.config)
	}
}

func TestTranslateController_TranslateReverse(t *testing.T) {
	decoder := &fakeDecoder{translations: []string{"el gato"}}
	tc, model := testController(t, decoder)

	w := postJSON(t, tc.Translate, `{"model":"en-es","lines":["the cat"],"reverse":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decoder.config != model.ConfigPath(true) {
		t.Fatalf("Expected reverse config %q, got %q", model.ConfigPath(true), decoder.config)
	}
}

func TestTranslateController_TranslateNBest(t *testing.T) {
	decoder := &fakeDecoder{entries: []moses.NBestEntry{
		{Index: 0, Text: "the cat", Features: "LM0= -3.5"},
		{Index: 0, Text: "a cat", Features: "LM0= -4.1"},
	}}
	tc, _ := testController(t, decoder)

	w := postJSON(t, tc.Translate, `{"model":"en-es","lines":["el gato"],"nbest":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decoder.n != 2 {
		t.Fatalf("Expected a 2-best request, got %d", decoder.n)
	}
	var resp struct {
		NBest []nbestCandidate `json:"nbest"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.NBest) != 2 || resp.NBest[1].Text != "a cat" {
		t.Fatalf("Expected both candidates, got %v", resp.NBest)
	}
}

func TestTranslateController_UnknownModel(t *testing.T) {
	tc, _ := testController(t, &fakeDecoder{})

	w := postJSON(t, tc.Translate, `{"model":"nope","lines":["x"]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTranslateController_InvalidPayload(t *testing.T) {
	tc, _ := testController(t, &fakeDecoder{})

	w := postJSON(t, tc.Translate, `{"lines":["x"]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTranslateController_Evaluate(t *testing.T) {
	decoder := &fakeDecoder{translations: []string{"the cat sat on the mat"}}
	tc, _ := testController(t, decoder)

	w := postJSON(t, tc.Evaluate, `{"model":"en-es","lines":["el gato se sentó en la estera"],"references":["the cat sat on the mat"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Bleu         float64  `json:"bleu"`
		Ratio        float64  `json:"ratio"`
		Translations []string `json:"translations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Bleu != 100 || resp.Ratio != 1 {
		t.Fatalf("Expected a perfect score, got bleu=%v ratio=%v", resp.Bleu, resp.Ratio)
	}
	if len(resp.Translations) != 1 || resp.Translations[0] != "the cat sat on the mat" {
		t.Fatalf("Expected the decoder output back, got %v", resp.Translations)
	}
}

func TestTranslateController_EvaluateCountMismatch(t *testing.T) {
	tc, _ := testController(t, &fakeDecoder{})

	w := postJSON(t, tc.Evaluate, `{"model":"en-es","lines":["a","b"],"references":["a"]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTranslateController_EvaluateUnknownModel(t *testing.T) {
	tc, _ := testController(t, &fakeDecoder{})

	w := postJSON(t, tc.Evaluate, `{"model":"nope","lines":["x"],"references":["y"]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTranslateController_NearestPhrases(t *testing.T) {
	tc, _ := testController(t, &fakeDecoder{})

	w := postJSON(t, tc.NearestPhrases, `{"model":"en-es","phrase":"gato","k":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Phrase    string `json:"phrase"`
		Neighbors []struct {
			Phrase string  `json:"phrase"`
			Score  float64 `json:"score"`
		} `json:"neighbors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Neighbors) != 2 {
		t.Fatalf("Expected two neighbors, got %v", resp.Neighbors)
	}
	if resp.Neighbors[0].Phrase != "cat" || resp.Neighbors[0].Score != 1.0 {
		t.Fatalf("Expected cat at score 1.0 first, got %+v", resp.Neighbors[0])
	}
}

func TestTranslateController_NearestPhrasesReverse(t *testing.T) {
	tc, _ := testController(t, &fakeDecoder{})

	w := postJSON(t, tc.NearestPhrases, `{"model":"en-es","phrase":"dog","k":1,"reverse":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Neighbors []struct {
			Phrase string `json:"phrase"`
		} `json:"neighbors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Neighbors) != 1 || resp.Neighbors[0].Phrase != "perro" {
		t.Fatalf("Expected perro, got %v", resp.Neighbors)
	}
}

func TestTranslateController_NearestPhrasesOutOfVocabulary(t *testing.T) {
	tc, _ := testController(t, &fakeDecoder{})

	w := postJSON(t, tc.NearestPhrases, `{"model":"en-es","phrase":"unseen"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
