// Package ollama talks to a local Ollama server for embeddings, grounded
// answer generation, and structured field extraction.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, passages []domain.ScoredPassage) (string, error) {
	return g.client.generateText(ctx, buildAnswerPrompt(question, passages))
}

// Extractor pulls one structured field value out of retrieved context. The
// model is forced into JSON format mode and its value field may come back as
// null, a string, or a list of strings.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func (x *Extractor) ExtractStructured(ctx context.Context, instruction, contextBlock string) (domain.RawExtraction, error) {
	respText, err := x.client.generateJSON(ctx, buildExtractionPrompt(instruction, contextBlock))
	if err != nil {
		return domain.RawExtraction{}, err
	}

	var payload struct {
		Value      json.RawMessage `json:"value"`
		Confidence float64         `json:"confidence"`
		Reasoning  string          `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &payload); err != nil {
		return domain.RawExtraction{}, fmt.Errorf("parse extraction json: %w", err)
	}

	value, err := decodeFieldValue(payload.Value)
	if err != nil {
		return domain.RawExtraction{}, err
	}
	return domain.RawExtraction{
		Value:      value,
		Confidence: payload.Confidence,
		Reasoning:  strings.TrimSpace(payload.Reasoning),
	}, nil
}

// decodeFieldValue accepts the three shapes the extraction prompt allows:
// null, a single string, or an array of strings. Numbers and booleans are
// coerced to their string form.
func decodeFieldValue(raw json.RawMessage) (domain.FieldValue, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return domain.NullValue(), nil
	}

	var scalar string
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return domain.ScalarValue(scalar), nil
	}

	var values []any
	if err := json.Unmarshal(raw, &values); err == nil {
		out := make([]string, 0, len(values))
		for _, v := range values {
			if v == nil {
				continue
			}
			out = append(out, fmt.Sprintf("%v", v))
		}
		if len(out) == 0 {
			return domain.NullValue(), nil
		}
		return domain.ArrayValue(out), nil
	}

	var loose any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return domain.FieldValue{}, fmt.Errorf("parse extraction value: %w", err)
	}
	return domain.ScalarValue(fmt.Sprintf("%v", loose)), nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
