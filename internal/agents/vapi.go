package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// VapiClient is a minimal REST client for the voice assistant provider.
type VapiClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewVapiClient creates a provider client. httpClient may be nil.
func NewVapiClient(apiKey, baseURL string, httpClient *http.Client) *VapiClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &VapiClient{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// AssistantSpec is the configuration pushed to the provider.
type AssistantSpec struct {
	Name         string
	FirstMessage string
	Prompt       string
	Model        string
}

type assistantModel struct {
	Provider    string             `json:"provider"`
	Model       string             `json:"model"`
	Messages    []assistantMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type assistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type assistantBody struct {
	Name           string         `json:"name,omitempty"`
	FirstMessage   string         `json:"firstMessage"`
	Model          assistantModel `json:"model"`
	ServerMessages []string       `json:"serverMessages"`
}

func bodyFor(spec AssistantSpec) assistantBody {
	return assistantBody{
		Name:         spec.Name,
		FirstMessage: spec.FirstMessage,
		Model: assistantModel{
			Provider:    "openai",
			Model:       spec.Model,
			Messages:    []assistantMessage{{Role: "system", Content: spec.Prompt}},
			Temperature: 0.5,
		},
		ServerMessages: []string{},
	}
}

// CreateAssistant creates an assistant and returns its provider id.
func (c *VapiClient) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/assistant", bodyFor(spec), &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("vapi: create assistant returned no id")
	}
	return out.ID, nil
}

// UpdateAssistant replaces the first message and prompt of an assistant.
func (c *VapiClient) UpdateAssistant(ctx context.Context, assistantID string, spec AssistantSpec) error {
	spec.Name = ""
	return c.do(ctx, http.MethodPatch, "/assistant/"+url.PathEscape(assistantID), bodyFor(spec), nil)
}

func (c *VapiClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("vapi: %s %s: status %d: %s", method, path, res.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil {
		return json.Unmarshal(payload, out)
	}
	return nil
}
