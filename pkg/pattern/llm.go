package pattern

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const narratePrompt = `You are a social media performance coach. You receive one post's performance signal as JSON: its metrics, its deltas against a peer cluster of the same creator's posts, a tag (gold = outperformed with good feedback, red = underperformed, gray = numbers and feedback disagree), and aggregated audience feedback.

Write for the creator, in plain language:
1. "summary": 1-2 sentences on how this post did relative to its peers and why it likely did so.
2. "strengths": up to 3 short bullet phrases.
3. "improvements": up to 3 short bullet phrases.
4. "next_actions": up to 3 concrete, testable things to try in the next post.

Only use facts present in the signal. Do not invent numbers.

Signal:
%s

Respond with a single JSON object with keys "summary", "strengths", "improvements", "next_actions". Return ONLY the JSON object.`

// Narrative is the optional prose attached to a signal.
type Narrative struct {
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	NextActions  []string `json:"next_actions"`
}

// Narrator turns a signal into a short narrative. Implementations may be
// slow or unavailable; the engine bounds each call with a timeout.
type Narrator interface {
	Narrate(ctx context.Context, s Signal) (*Narrative, error)
}

// LLMNarrator narrates signals with an OpenAI or Anthropic model.
type LLMNarrator struct {
	client   *http.Client
	openai   *openai.Client
	provider string // "openai" or "anthropic"
	model    string
	apiKey   string
	baseURL  string
}

var narrativeSchema = generateSchema[Narrative]()

// NewLLMNarrator creates a narrator for the given provider.
func NewLLMNarrator(provider, model, apiKey, baseURL string, timeout time.Duration) *LLMNarrator {
	if model == "" {
		switch provider {
		case "anthropic":
			model = "claude-sonnet-4-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	n := &LLMNarrator{
		client:   &http.Client{Timeout: timeout},
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
	}
	if provider != "anthropic" {
		opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithHTTPClient(n.client)}
		if baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}
		c := openai.NewClient(opts...)
		n.openai = &c
	}
	return n
}

// Narrate asks the model for a narrative of s.
func (n *LLMNarrator) Narrate(ctx context.Context, s Signal) (*Narrative, error) {
	payload := s
	payload.Narrative = nil
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal signal: %w", err)
	}
	prompt := fmt.Sprintf(narratePrompt, string(body))

	var raw string
	switch n.provider {
	case "anthropic":
		raw, err = n.callAnthropic(ctx, prompt)
	default:
		raw, err = n.callOpenAI(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	var out Narrative
	if err := decodeModelJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("parse narrative: %w", err)
	}
	out.Summary = strings.TrimSpace(out.Summary)
	if out.Summary == "" {
		return nil, errors.New("narrative: empty summary")
	}
	return &out, nil
}

func (n *LLMNarrator) callOpenAI(ctx context.Context, prompt string) (string, error) {
	if n.openai == nil {
		return "", errors.New("openai: client is nil")
	}

	params := responses.ResponseNewParams{
		Model:           n.model,
		MaxOutputTokens: openai.Int(800),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "PostNarrative",
					Schema:      narrativeSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Post performance narrative JSON"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := n.openai.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	return resp.OutputText(), nil
}

func (n *LLMNarrator) callAnthropic(ctx context.Context, prompt string) (string, error) {
	baseURL := n.baseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	payload := map[string]any{
		"model":      n.model,
		"max_tokens": 1024,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", n.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("anthropic status %d: %v", resp.StatusCode, errResp)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic: no content returned")
	}
	return result.Content[0].Text, nil
}

// decodeModelJSON unmarshals a model reply, tolerating code fences and
// surrounding prose.
func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object in model output: %s", truncateStr(s, 200))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return nil
}

func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	strictObjects(m)
	return m
}

// strictObjects marks every object schema as closed with all properties
// required, which OpenAI's strict mode demands.
func strictObjects(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			var required []string
			for name := range props {
				required = append(required, name)
			}
			if len(required) > 0 {
				schema["required"] = required
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				strictObjects(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		strictObjects(items)
	}
}
