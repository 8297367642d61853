package mcp

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"smt-go/internal/config"
	"smt-go/internal/controller"
	"smt-go/internal/vector"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type TranslationServer struct {
	server     *mcp.Server
	translator *controller.TranslateController
	config     *config.Config
	logger     *zap.Logger
	handler    *mcp.StreamableHTTPHandler
}

type TranslateParams struct {
	Model   string `json:"model" jsonschema:"the configured model to translate with"`
	Text    string `json:"text" jsonschema:"the text to translate, one sentence per line"`
	Reverse bool   `json:"reverse,omitempty" jsonschema:"translate from the target language back to the source language"`
}

type NearestPhrasesParams struct {
	Model   string `json:"model" jsonschema:"the configured model whose embedding spaces to query"`
	Phrase  string `json:"phrase" jsonschema:"the phrase to look up"`
	K       int    `json:"k,omitempty" jsonschema:"how many neighbors to return, defaults to 10"`
	Reverse bool   `json:"reverse,omitempty" jsonschema:"query from the target side instead"`
}

type EvaluateParams struct {
	Model      string `json:"model" jsonschema:"the configured model to evaluate"`
	Text       string `json:"text" jsonschema:"the text to translate, one sentence per line"`
	References string `json:"references" jsonschema:"the reference translations, one sentence per line"`
	Reverse    bool   `json:"reverse,omitempty" jsonschema:"translate from the target language back to the source language"`
}

func NewTranslationServer(translator *controller.TranslateController, cfg *config.Config, logger *zap.Logger) *TranslationServer {
	server := &TranslationServer{
		translator: translator,
		config:     cfg,
		logger:     logger,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "Translation",
		Version: "1.0.0",
	}, nil)

	// Register the translate tool
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "translate",
		Description: "Translate text with a trained model. Returns one translated line per input line",
	}, server.handleTranslate)

	// Register the nearestPhrases tool
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "nearestPhrases",
		Description: "Look a phrase up in the shared cross-lingual embedding space and return the closest phrases of the other language with their similarity scores",
	}, server.handleNearestPhrases)

	// Register the evaluate tool
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "evaluate",
		Description: "Translate text with a trained model and score it against reference translations with corpus BLEU",
	}, server.handleEvaluate)

	server.handler = mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	server.server = mcpServer
	return server
}

func (s *TranslationServer) handleTranslate(ctx context.Context, req *mcp.CallToolRequest, args TranslateParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling translate request", zap.String("model", args.Model), zap.Bool("reverse", args.Reverse))

	lines := splitLines(args.Text)
	if len(lines) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Nothing to translate"}},
		}, nil, nil
	}

	translations, err := s.translator.TranslateLines(ctx, args.Model, lines, args.Reverse)
	if err != nil {
		s.logger.Error("Failed to translate", zap.String("model", args.Model), zap.Error(err))
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Failed to translate: %v", err)}},
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: strings.Join(translations, "\n")}},
	}, nil, nil
}

func (s *TranslationServer) handleNearestPhrases(ctx context.Context, req *mcp.CallToolRequest, args NearestPhrasesParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling nearestPhrases request", zap.String("model", args.Model), zap.String("phrase", args.Phrase))

	neighbors, err := s.translator.Nearest(ctx, args.Model, args.Phrase, args.K, args.Reverse)
	if err != nil {
		s.logger.Error("Failed to query nearest phrases", zap.String("model", args.Model), zap.Error(err))
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Failed to query nearest phrases: %v", err)}},
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: formatNeighbors(args.Phrase, neighbors)}},
	}, nil, nil
}

func (s *TranslationServer) handleEvaluate(ctx context.Context, req *mcp.CallToolRequest, args EvaluateParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling evaluate request", zap.String("model", args.Model), zap.Bool("reverse", args.Reverse))

	lines := splitLines(args.Text)
	references := splitLines(args.References)
	if len(lines) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Nothing to evaluate"}},
		}, nil, nil
	}

	result, _, err := s.translator.EvaluateLines(ctx, args.Model, lines, references, args.Reverse)
	if err != nil {
		s.logger.Error("Failed to evaluate", zap.String("model", args.Model), zap.Error(err))
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Failed to evaluate: %v", err)}},
		}, nil, nil
	}

	text := fmt.Sprintf("BLEU = %.2f, %.1f/%.1f/%.1f/%.1f (BP=%.3f, ratio=%.3f, hyp_len=%d, ref_len=%d)",
		result.Bleu,
		result.Precisions[0], result.Precisions[1], result.Precisions[2], result.Precisions[3],
		result.BrevityPenalty, result.Ratio, result.HypLength, result.RefLength)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

func formatNeighbors(phrase string, neighbors []vector.Neighbor) string {
	if len(neighbors) == 0 {
		return fmt.Sprintf("No neighbors found for %q.", phrase)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Nearest phrases for %q:\n", phrase)
	for i, n := range neighbors {
		fmt.Fprintf(&b, "%d. %s (%.4f)\n", i+1, n.Phrase, n.Score)
	}
	return b.String()
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (s *TranslationServer) SetupHTTPRoutes(router *gin.Engine) {
	go func() {
		address := s.config.Mcp.GetAddress()
		log.Printf("MCP Server going to listen on %s", address)
		if err := http.ListenAndServe(address, s.handler); err != nil {
			log.Fatalf("MCP Server failed: %v", err)
		}
	}()
}
