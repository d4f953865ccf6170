package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// GenerateRequest is one model call. Context entries are appended to the
// prompt under a "Context:" heading; JSON asks the backend for a JSON object
// reply where the API supports it.
type GenerateRequest struct {
	Operation string   `json:"operation"`
	System    string   `json:"system"`
	Prompt    string   `json:"prompt"`
	Context   []string `json:"context"`
	JSON      bool     `json:"json"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

func userPrompt(req GenerateRequest) string {
	if len(req.Context) == 0 {
		return req.Prompt
	}
	out := req.Prompt + "\n\nContext:\n"
	for i, c := range req.Context {
		if i > 0 {
			out += "\n\n"
		}
		out += c
	}
	return out
}
