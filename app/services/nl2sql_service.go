package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/queryloom/queryloom/config"
)

// NL2SQLService translates natural language questions into SQL statements
type NL2SQLService interface {
	GenerateSQL(ctx context.Context, question string, history []QuestionSQLPair) (*NL2SQLResult, error)
}

// QuestionSQLPair is a previous question/answer pair used as conversational context
type QuestionSQLPair struct {
	Question string
	SQL      string
}

// NL2SQLResult represents the structured translation output
type NL2SQLResult struct {
	SQL         string   `json:"sql"`
	Suggestions []string `json:"suggestions"`
}

// NL2SQLServiceImpl implements NL2SQLService on top of the OpenAI chat completion API
type NL2SQLServiceImpl struct {
	client *openai.Client
	config *config.NL2SQLConfig
}

// NewNL2SQLService creates a new NL2SQL service instance
func NewNL2SQLService(cfg *config.NL2SQLConfig) NL2SQLService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &NL2SQLServiceImpl{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

const nl2sqlSystemPrompt = `You translate natural language questions about a relational database into a single read-only SQL query.

Database schema:
%s

Rules:
- Produce exactly one SELECT (or WITH ... SELECT) statement for PostgreSQL.
- Never produce INSERT, UPDATE, DELETE, DROP, ALTER, TRUNCATE, CREATE, GRANT or REVOKE.
- Limit result sets to at most 1000 rows unless the question asks for an aggregate.
- If the question is ambiguous, pick the most likely interpretation and list up to 3 alternative phrasings as suggestions.

Return a JSON object with this structure:
{
    "sql": "the SQL statement",
    "suggestions": ["alternative question 1", ...]
}`

// GenerateSQL asks the model for a SQL translation of the question and
// validates that the result is a read-only statement.
func (s *NL2SQLServiceImpl) GenerateSQL(ctx context.Context, question string, history []QuestionSQLPair) (*NL2SQLResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)*2+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(nl2sqlSystemPrompt, s.config.Schema),
	})
	for _, pair := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: pair.Question,
		})
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: fmt.Sprintf(`{"sql": %q, "suggestions": []}`, pair.SQL),
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       s.config.Model,
			Messages:    messages,
			MaxTokens:   s.config.MaxTokens,
			Temperature: float32(s.config.Temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	var result NL2SQLResult
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	result.SQL = strings.TrimSpace(result.SQL)
	if result.SQL == "" {
		return nil, fmt.Errorf("model returned an empty SQL statement")
	}
	if result.Suggestions == nil {
		result.Suggestions = []string{}
	}
	if err := ValidateReadOnlySQL(result.SQL); err != nil {
		return nil, err
	}
	return &result, nil
}

var forbiddenSQLPattern = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|truncate|create|grant|revoke|copy)\b`)

// ValidateReadOnlySQL rejects statements that could mutate the database.
// Only a single SELECT or WITH ... SELECT statement is accepted.
func ValidateReadOnlySQL(sql string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return fmt.Errorf("only SELECT statements are allowed")
	}
	if match := forbiddenSQLPattern.FindString(trimmed); match != "" {
		return fmt.Errorf("forbidden SQL keyword: %s", strings.ToLower(match))
	}
	return nil
}

// MockNL2SQLService implements NL2SQLService for testing
type MockNL2SQLService struct {
	Result    *NL2SQLResult
	Err       error
	Questions []string
}

// GenerateSQL records the question and returns the configured result
func (m *MockNL2SQLService) GenerateSQL(_ context.Context, question string, _ []QuestionSQLPair) (*NL2SQLResult, error) {
	m.Questions = append(m.Questions, question)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &NL2SQLResult{SQL: "SELECT 1", Suggestions: []string{}}, nil
}
