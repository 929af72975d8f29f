package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.IntentClassifier = (*OpenAIClassifier)(nil)

const classifierPrompt = `You route messages for a grading assistant. ` +
	`Reply with exactly one word: "grading" if the teacher wants to grade, ` +
	`evaluate, or process student work, otherwise "general".`

// OpenAIClassifier asks a Chat Completions model for a one-word intent
// label. Anything that is not clearly "grading" falls back to general, so a
// flaky model can never hijack a casual question into the pipeline.
type OpenAIClassifier struct {
	apiKey string
	base   string
	model  string
	client *http.Client
}

func NewOpenAIClassifier(apiKey, baseURL, model string) (*OpenAIClassifier, error) {
	if apiKey == "" {
		return nil, errors.New("classifier api key empty")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClassifier{
		apiKey: apiKey,
		base:   baseURL,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (o *OpenAIClassifier) Classify(ctx context.Context, message string) (adapter.Intent, error) {
	type chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	reqBody := struct {
		Model     string        `json:"model"`
		Messages  []chatMessage `json:"messages"`
		MaxTokens int           `json:"max_tokens"`
	}{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifierPrompt},
			{Role: "user", Content: message},
		},
		MaxTokens: 4,
	}

	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return adapter.IntentGeneral, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return adapter.IntentGeneral, fmt.Errorf("classifier http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return adapter.IntentGeneral, err
	}
	for _, c := range payload.Choices {
		label := strings.ToLower(strings.TrimSpace(c.Message.Content))
		if strings.HasPrefix(label, "grading") {
			return adapter.IntentGrading, nil
		}
		if label != "" {
			return adapter.IntentGeneral, nil
		}
	}
	return adapter.IntentGeneral, errors.New("no choice content")
}
