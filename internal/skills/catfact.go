package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultCatFactURL = "https://catfact.ninja/fact"
	noFactFound       = "No fact found."
)

// CatFact fetches a random cat fact over HTTP.
type CatFact struct {
	URL    string
	Client *http.Client
}

func NewCatFact(url string) *CatFact {
	if strings.TrimSpace(url) == "" {
		url = DefaultCatFactURL
	}
	return &CatFact{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *CatFact) Name() string { return "get_random_cat_fact" }
func (c *CatFact) Description() string {
	return "Retrieves a random fact about cats from the Cat Fact API. " +
		"Use this tool whenever the user asks for curiosity, facts, or information about cats. " +
		"This tool takes no arguments. The returned fact is the final answer when the user requests a cat fact."
}
func (c *CatFact) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

type catFactResponse struct {
	Fact   string `json:"fact"`
	Length int    `json:"length"`
}

func (c *CatFact) Execute(ctx context.Context, _ map[string]any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("connecting to cat fact API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cat fact API returned status code %d", resp.StatusCode)
	}

	var data catFactResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&data); err != nil {
		return "", fmt.Errorf("decoding cat fact API response: %w", err)
	}
	if strings.TrimSpace(data.Fact) == "" {
		return noFactFound, nil
	}
	return data.Fact, nil
}
