package gateway

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

// HTTPConfig configures the HTTP generation backend.
type HTTPConfig struct {
	// ResponsesURL is an OpenAI-compatible responses endpoint.
	ResponsesURL string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// Timeout bounds one dispatch end to end.
	Timeout    time.Duration
	HTTPClient *http.Client
}

type httpGateway struct {
	cfg HTTPConfig
}

// NewHTTPGateway builds a Gateway backed by an OpenAI-compatible HTTP
// endpoint.
func NewHTTPGateway(cfg HTTPConfig) Gateway {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.ResponsesURL) == "" {
		cfg.ResponsesURL = "https://api.openai.com/v1/responses"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &httpGateway{cfg: cfg}
}

func (g *httpGateway) Dispatch(ctx context.Context, role Role, request Context) (string, error) {
	model := strings.TrimSpace(request.Model)
	if model == "" {
		return "", fmt.Errorf("model is required")
	}
	prompt, err := buildPrompt(role, request)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	requestBody, err := json.Marshal(map[string]any{
		"model": model,
		"input": prompt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal dispatch request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.ResponsesURL, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(g.cfg.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	res, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dispatch request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return "", fmt.Errorf("read dispatch error body: %w", err)
		}
		return "", fmt.Errorf("dispatch request status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode dispatch response: %w", err)
	}
	outputText := strings.TrimSpace(payload.OutputText)
	if outputText == "" {
		for _, item := range payload.Output {
			for _, content := range item.Content {
				if strings.TrimSpace(content.Text) != "" {
					outputText = strings.TrimSpace(content.Text)
					break
				}
			}
			if outputText != "" {
				break
			}
		}
	}
	if outputText == "" {
		return "", fmt.Errorf("dispatch response missing output text")
	}
	return outputText, nil
}

// buildPrompt renders the role's prompt template over the dispatch context.
func buildPrompt(role Role, request Context) (string, error) {
	var b strings.Builder
	switch role {
	case RoleTopicSelect:
		b.WriteString("You are the round master of a knowledge competition. ")
		if len(request.TopicChoices) > 0 {
			b.WriteString("Pick exactly one topic from this list and reply with the topic only:\n")
			for _, choice := range request.TopicChoices {
				fmt.Fprintf(&b, "- %s\n", choice)
			}
		} else {
			b.WriteString("Pick a topic for this round and reply with the topic only.")
		}
	case RoleQuestionAuthor:
		if strings.TrimSpace(request.Topic) == "" {
			return "", fmt.Errorf("topic is required for question authoring")
		}
		fmt.Fprintf(&b, "You are the round master. Write one question on the topic %q. ", request.Topic)
		b.WriteString(`Reply with JSON: {"question": "...", "difficulty": "easy|medium|hard"}.`)
	case RoleAnswer:
		if strings.TrimSpace(request.Question) == "" {
			return "", fmt.Errorf("question is required for answering")
		}
		fmt.Fprintf(&b, "Answer the following question concisely.\n\nQuestion: %s", request.Question)
	case RoleJudge:
		if len(request.Answers) == 0 {
			return "", fmt.Errorf("answers are required for judging")
		}
		fmt.Fprintf(&b, "Score each answer to the question below from 0 to 10.\n\nQuestion: %s\n\n", request.Question)
		for i, answer := range request.Answers {
			label := answer.SubjectID
			if !request.Anonymized && answer.SubjectName != "" {
				label = answer.SubjectName
			}
			fmt.Fprintf(&b, "Answer %d (subject_id=%s, by %s): %s\n", i+1, answer.SubjectID, label, answer.Answer)
		}
		b.WriteString("\nReply with a JSON array: [{\"subject_id\": \"...\", \"score\": 0-10, \"rationale\": \"...\"}].")
	default:
		return "", fmt.Errorf("unknown dispatch role %q", role)
	}
	return b.String(), nil
}
