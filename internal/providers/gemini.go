package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/vertexai/genai"
)

const defaultGeminiModel = "gemini-1.5-pro"

// GeminiProvider generates through Vertex AI. The client is created on first
// use so that building a Manager never needs Google credentials.
type GeminiProvider struct {
	project  string
	location string
	model    string

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiProvider(project, location, model string) *GeminiProvider {
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{project: project, location: location, model: model}
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.model, Key: g.project}
	client, err := g.ensureClient(ctx)
	if err != nil {
		return GenerateResponse{}, info, err
	}

	model := client.GenerativeModel(g.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	model.GenerationConfig = genai.GenerationConfig{Temperature: genai.Ptr[float32](0.0)}
	if req.JSON {
		model.GenerationConfig.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt(req)))
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini generate request failed: %w", err)
	}
	text := geminiText(resp)
	if text == "" {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned no text parts")
	}
	return GenerateResponse{Text: text}, info, nil
}

func (g *GeminiProvider) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}

func (g *GeminiProvider) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.project == "" || g.location == "" {
		return nil, fmt.Errorf("gemini needs vertex_project and vertex_location")
	}
	client, err := genai.NewClient(ctx, g.project, g.location)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	g.client = client
	return client, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
