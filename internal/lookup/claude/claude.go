package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/fampantry/internal/domain"
)

const defaultBaseURL = "https://api.anthropic.com/v1"

// Categorizer asks Claude which catalogue category a product belongs to.
type Categorizer struct {
	client *anthropic.Client
	model  string
}

func NewCategorizer(apiKey, model string) *Categorizer {
	return newCategorizer(apiKey, model, defaultBaseURL)
}

func newCategorizer(apiKey, model, baseURL string) *Categorizer {
	return &Categorizer{
		client: anthropic.NewClient(apiKey, anthropic.WithBaseURL(baseURL)),
		model:  model,
	}
}

func prompt(productName string) string {
	return fmt.Sprintf(`Which one of these grocery categories best fits the product %q?
Categories: %s.
Answer with the category name only.`, productName, strings.Join(domain.Categories, ", "))
}

func (c *Categorizer) Categorize(ctx context.Context, productName string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		Messages:  []anthropic.Message{anthropic.NewUserTextMessage(prompt(productName))},
		MaxTokens: 16,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call claude: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		sb.WriteString(block.GetText())
	}
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", fmt.Errorf("claude returned no text")
	}
	return answer, nil
}
