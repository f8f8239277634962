package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// searchResultCap bounds how many results one query returns to the model.
const searchResultCap = 8

type SearchTool struct {
	client *duckduckgo.Tool
}

func NewSearchTool() (*SearchTool, error) {
	ddg, err := duckduckgo.New(searchResultCap, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &SearchTool{client: ddg}, nil
}

func (s *SearchTool) Name() string {
	return "search"
}

func (s *SearchTool) Description() string {
	return "Search the web using DuckDuckGo. Returns result titles, snippets and URLs."
}

func (s *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to look up",
			},
		},
		"required": []string{"query"},
	}
}

func (s *SearchTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "", fmt.Errorf("search query is empty")
	}

	res, err := s.client.Call(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if strings.TrimSpace(res) == "" {
		return fmt.Sprintf("No results found for %q.", query), nil
	}
	return res, nil
}
