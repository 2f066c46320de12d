package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

const (
	anthropicVersion = "bedrock-2023-05-31"

	llama3PromptFormat = "<|begin_of_text|><|start_header_id|>user<|end_header_id|>\n\n%s<|eot_id|><|start_header_id|>assistant<|end_header_id|>\n\n"
	instPromptFormat   = "<s>[INST] %s [/INST]"
)

var (
	// ErrEmptyResponse is returned when the model answers without any text
	ErrEmptyResponse = errors.New("empty response from Bedrock model")
	// ErrUnsupportedModel is returned for model IDs whose request format is not known
	ErrUnsupportedModel = errors.New("unsupported Bedrock model")
)

// modelInvoker is the subset of *bedrockruntime.Client used by the client
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type modelFamily int

const (
	familyUnsupported modelFamily = iota
	familyClaudeMessages
	familyClaudeText
	familyTitan
	familyLlama
	familyMistral
)

// BedrockClient is an implementation of the TextGenerator interface using Amazon Bedrock
type BedrockClient struct {
	client   modelInvoker
	modelID  string
	family   modelFamily
	sampling core.SamplingConfig
	logger   *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client modelInvoker,
	modelID string,
	sampling core.SamplingConfig,
	logger *zap.Logger,
) *BedrockClient {
	return &BedrockClient{
		client:   client,
		modelID:  modelID,
		family:   detectFamily(modelID),
		sampling: sampling,
		logger:   logger,
	}
}

// detectFamily picks the request format from the model ID.
// IDs may carry a cross-region prefix such as "us.".
func detectFamily(modelID string) modelFamily {
	switch {
	case strings.Contains(modelID, "anthropic.claude-v2"), strings.Contains(modelID, "anthropic.claude-instant"):
		return familyClaudeText
	case strings.Contains(modelID, "anthropic.claude"):
		return familyClaudeMessages
	case strings.Contains(modelID, "amazon.titan"):
		return familyTitan
	case strings.Contains(modelID, "meta.llama"):
		return familyLlama
	case strings.Contains(modelID, "mistral."):
		return familyMistral
	default:
		return familyUnsupported
	}
}

// SupportedModel reports whether requests for modelID can be built
func SupportedModel(modelID string) bool {
	return detectFamily(modelID) != familyUnsupported
}

// ModelName returns the Bedrock model ID
func (c *BedrockClient) ModelName() string {
	return c.modelID
}

// Generate invokes the model and returns its raw text response
func (c *BedrockClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.family == familyUnsupported {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedModel, c.modelID)
	}

	payload, err := c.buildPayload(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	c.logger.Debug("Bedrock model invoked",
		zap.String("model", c.modelID),
		zap.Int("response_size", len(resp.Body)))

	return c.parseResponse(resp.Body)
}

func (c *BedrockClient) buildPayload(prompt string) ([]byte, error) {
	s := c.sampling

	switch c.family {
	case familyClaudeMessages:
		return json.Marshal(map[string]interface{}{
			"anthropic_version": anthropicVersion,
			"max_tokens":        s.MaxOutputTokens,
			"temperature":       s.Temperature,
			"top_p":             s.TopP,
			"top_k":             s.TopK,
			"messages": []map[string]interface{}{
				{
					"role": "user",
					"content": []map[string]string{
						{"type": "text", "text": prompt},
					},
				},
			},
		})
	case familyClaudeText:
		return json.Marshal(map[string]interface{}{
			"prompt":               "\n\nHuman: " + prompt + "\n\nAssistant:",
			"max_tokens_to_sample": s.MaxOutputTokens,
			"temperature":          s.Temperature,
			"top_p":                s.TopP,
			"top_k":                s.TopK,
		})
	case familyTitan:
		// Titan has no top_k parameter
		return json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": s.MaxOutputTokens,
				"temperature":   s.Temperature,
				"topP":          s.TopP,
			},
		})
	case familyLlama:
		// Llama takes max_gen_len and has no top_k parameter
		format := instPromptFormat
		if strings.Contains(c.modelID, "llama3") {
			format = llama3PromptFormat
		}
		return json.Marshal(map[string]interface{}{
			"prompt":      fmt.Sprintf(format, prompt),
			"max_gen_len": s.MaxOutputTokens,
			"temperature": s.Temperature,
			"top_p":       s.TopP,
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":      fmt.Sprintf(instPromptFormat, prompt),
			"max_tokens":  s.MaxOutputTokens,
			"temperature": s.Temperature,
			"top_p":       s.TopP,
			"top_k":       s.TopK,
		})
	}
}

func (c *BedrockClient) parseResponse(body []byte) (string, error) {
	switch c.family {
	case familyClaudeMessages:
		var claudeResp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		var sb strings.Builder
		for _, block := range claudeResp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return "", ErrEmptyResponse
		}
		return sb.String(), nil

	case familyClaudeText:
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil

	case familyTitan:
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", ErrEmptyResponse
		}
		return titanResp.Results[0].OutputText, nil

	case familyLlama:
		var llamaResp struct {
			Generation string `json:"generation"`
		}
		if err := json.Unmarshal(body, &llamaResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Llama response: %w", err)
		}
		if llamaResp.Generation == "" {
			return "", ErrEmptyResponse
		}
		return llamaResp.Generation, nil

	default:
		var mistralResp struct {
			Outputs []struct {
				Text string `json:"text"`
			} `json:"outputs"`
		}
		if err := json.Unmarshal(body, &mistralResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Mistral response: %w", err)
		}
		if len(mistralResp.Outputs) == 0 {
			return "", ErrEmptyResponse
		}
		return mistralResp.Outputs[0].Text, nil
	}
}
