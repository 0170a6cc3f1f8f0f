package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/neuroleaf/neuroleaf-api/internal/service"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

const (
	requestTimeout  = 60 * time.Second
	maxRetryElapsed = 2 * time.Minute
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	log        *logger.Logger
}

// Config holds AI backend settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// complete sends one chat completion request, retrying transient failures
// with exponential backoff.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	var content string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		// 429 and 5xx are worth retrying, anything else 4xx is not.
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("ai backend returned status %d: %s", resp.StatusCode, truncate(respBody, 200))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode chat response: %w", err))
		}
		if parsed.Error != nil {
			return backoff.Permanent(fmt.Errorf("ai backend error: %s", parsed.Error.Message))
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("ai backend returned no choices"))
		}
		content = parsed.Choices[0].Message.Content
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxRetryElapsed
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}

const flashcardSystemPrompt = `You create study flashcards. Respond with only a JSON array of objects, each with "front", "back" and "difficulty" (easy, medium or hard). No markdown, no commentary.`

// GenerateFlashcards asks the model to distill study notes into cards.
func (c *Client) GenerateFlashcards(ctx context.Context, notes string, count int) ([]service.GeneratedCard, error) {
	user := fmt.Sprintf("Create exactly %d flashcards from these notes:\n\n%s", count, notes)

	content, err := c.complete(ctx, flashcardSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	raw := extractJSON(content, '[', ']')
	if raw == "" {
		return nil, fmt.Errorf("ai response contained no JSON array")
	}

	var cards []service.GeneratedCard
	if err := json.Unmarshal([]byte(raw), &cards); err != nil {
		return nil, fmt.Errorf("failed to parse generated flashcards: %w", err)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("ai produced an empty flashcard set")
	}
	if len(cards) > count {
		cards = cards[:count]
	}

	c.log.Debugw("Generated flashcards", "requested", count, "produced", len(cards))
	return cards, nil
}

const questionSystemPrompt = `You write a single open-ended study question testing the given flashcard. Respond with only the question text.`

// GenerateQuestion produces one open question for a card.
func (c *Client) GenerateQuestion(ctx context.Context, front, back string) (string, error) {
	user := fmt.Sprintf("Flashcard front: %s\nFlashcard back: %s", front, back)
	question, err := c.complete(ctx, questionSystemPrompt, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(question), nil
}

const gradingSystemPrompt = `You grade a student's answer against the expected answer. Respond with only a JSON object: {"score": 0-100, "feedback": "...", "correct": true|false}. Treat score 60 and above as correct.`

// GradeAnswer scores a free-text answer.
func (c *Client) GradeAnswer(ctx context.Context, question, expected, answer string) (service.GradeResult, error) {
	user := fmt.Sprintf("Question: %s\nExpected answer: %s\nStudent answer: %s", question, expected, answer)

	content, err := c.complete(ctx, gradingSystemPrompt, user)
	if err != nil {
		return service.GradeResult{}, err
	}

	raw := extractJSON(content, '{', '}')
	if raw == "" {
		return service.GradeResult{}, fmt.Errorf("ai response contained no JSON object")
	}

	var grade service.GradeResult
	if err := json.Unmarshal([]byte(raw), &grade); err != nil {
		return service.GradeResult{}, fmt.Errorf("failed to parse grading response: %w", err)
	}
	if grade.Score < 0 {
		grade.Score = 0
	}
	if grade.Score > 100 {
		grade.Score = 100
	}
	return grade, nil
}

// extractJSON pulls the outermost JSON value out of a response that may be
// wrapped in markdown fences or prose.
func extractJSON(s string, opening, closing byte) string {
	start := strings.IndexByte(s, opening)
	end := strings.LastIndexByte(s, closing)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
