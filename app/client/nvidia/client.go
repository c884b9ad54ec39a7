package nvidia

import (
	"bytes"
	"context"
	"emoai/app/config"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
)

const requestTimeout = 30 * time.Second

type Message struct {
	Role    string
	Content string
}

// Client wraps the NVIDIA OpenAI-compatible API: chat completions via the
// openai SDK, embeddings via a raw HTTP call (the embeddings endpoint needs
// an input_type parameter the SDK does not expose).
type Client struct {
	cfg        *config.Config
	api        *openai.Client
	httpClient *http.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	httpClient := &http.Client{
		Timeout: requestTimeout,
	}

	clientConfig := openai.DefaultConfig(cfg.Nvidia.Token)
	clientConfig.BaseURL = cfg.Nvidia.BaseURL
	clientConfig.HTTPClient = httpClient

	return &Client{
		cfg:        cfg,
		api:        openai.NewClientWithConfig(clientConfig),
		httpClient: httpClient,
	}, nil
}

func (c *Client) Complete(ctx context.Context, messages []Message, temperature float32, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	aiResponse, err := c.api.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:               c.cfg.Nvidia.ChatModel,
			Messages:            convertMessages(messages),
			Temperature:         temperature,
			MaxCompletionTokens: maxTokens,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(aiResponse.Choices) == 0 {
		return "", fmt.Errorf("no chat completion found")
	}

	return strings.TrimSpace(aiResponse.Choices[0].Message.Content), nil
}

// StreamComplete streams a completion token-by-token, invoking onDelta for
// every non-empty content delta. Returning an error from onDelta aborts the
// stream.
func (c *Client) StreamComplete(
	ctx context.Context,
	messages []Message,
	temperature float32,
	maxTokens int,
	onDelta func(delta string) error,
) error {
	stream, err := c.api.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{
			Model:               c.cfg.Nvidia.ChatModel,
			Messages:            convertMessages(messages),
			Temperature:         temperature,
			MaxCompletionTokens: maxTokens,
			Stream:              true,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create chat completion stream: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to receive stream chunk: %w", err)
		}

		if len(response.Choices) == 0 {
			continue
		}

		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		if err = onDelta(delta); err != nil {
			return err
		}
	}
}

type embedRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	InputType      string `json:"input_type"`
	EncodingFormat string `json:"encoding_format"`
	Truncate       string `json:"truncate"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{
		Input:          text,
		Model:          c.cfg.Nvidia.EmbedModel,
		InputType:      "query",
		EncodingFormat: "float",
		Truncate:       "NONE",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.Nvidia.BaseURL, "/") + "/embeddings"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Nvidia.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed request failed with status %d: %s", resp.StatusCode, string(errText))
	}

	var result embedResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse embed response: %w", err)
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("no embedding found in response")
	}

	return result.Data[0].Embedding, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		result = append(result, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return result
}
