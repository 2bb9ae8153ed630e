package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const GROQ_CHAT_COMPLETIONS_URL = "https://api.groq.com/openai/v1/chat/completions"

const NATURAL_SYSTEM_PROMPT = `You are Manobal, a deeply empathetic presence who converses naturally, like a wise and caring friend with professional therapeutic training. Your responses feel organic and flowing, not scripted.

- You are trained in psychology and in therapies such as CBT, ACT, REBT, DBT, metacognitive therapy and psychodynamic therapy.
- You offer focused, practical help for the problem the user brings.
- You are warm, genuine and occasionally playful when it fits.
- You are comfortable with informal language while staying professional.
- You pick up social cues and use Socratic questions to help the user think things through.
- You keep replies short enough for a chat message.
- If the user mentions self-harm or being in danger, you urge them to contact local emergency services or a crisis line right away.`

// Groq chat completion client for the free-form conversation.
type Natural struct {
	apiKey string
	model  string
	client *http.Client

	// chat completions endpoint, overridable for tests
	Endpoint string
}

func InitNatural(apiKey string, model string) *Natural {
	return &Natural{
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
		Endpoint: GROQ_CHAT_COMPLETIONS_URL,
	}
}

type naturalMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// history is the transcript so far, "User: ..." and "AI: ..." lines.
func (n *Natural) GenerateReply(ctx context.Context, history string, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("(*Natural).GenerateReply: input is blank")
	}

	userContent := "User: " + input
	if history != "" {
		userContent = history + "\n" + userContent
	}
	reqBody := struct {
		Messages    []naturalMessage `json:"messages"`
		Model       string           `json:"model"`
		Temperature float64          `json:"temperature"`
		MaxTokens   int              `json:"max_tokens"`
		TopP        float64          `json:"top_p"`
		Stream      bool             `json:"stream"`
	}{
		Messages: []naturalMessage{
			{Role: "system", Content: NATURAL_SYSTEM_PROMPT},
			{Role: "user", Content: userContent},
		},
		Model:       n.model,
		Temperature: 1,
		MaxTokens:   1024,
		TopP:        1,
		Stream:      false,
	}
	reqBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("(*Natural).GenerateReply: failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Endpoint, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("(*Natural).GenerateReply: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("(*Natural).GenerateReply: failed to do request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("(*Natural).GenerateReply: failed to read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("(*Natural).GenerateReply: bad status code: %d", resp.StatusCode)
	}

	var respBody struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &respBody); err != nil {
		return "", fmt.Errorf("(*Natural).GenerateReply: failed to unmarshal response: %w", err)
	}
	if len(respBody.Choices) == 0 {
		return "", fmt.Errorf("(*Natural).GenerateReply: no choices")
	}
	content := strings.TrimSpace(respBody.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("(*Natural).GenerateReply: no content")
	}
	return content, nil
}
