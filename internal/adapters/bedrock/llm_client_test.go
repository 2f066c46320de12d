package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInvoker struct {
	body  []byte
	err   error
	input *bedrockruntime.InvokeModelInput
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func decodePayload(t *testing.T, input *bedrockruntime.InvokeModelInput) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(input.Body, &payload))
	return payload
}

func TestDetectFamily(t *testing.T) {
	tests := map[string]modelFamily{
		"anthropic.claude-3-haiku-20240307-v1:0":       familyClaudeMessages,
		"us.anthropic.claude-3-5-sonnet-20240620-v1:0": familyClaudeMessages,
		"anthropic.claude-v2:1":                        familyClaudeText,
		"anthropic.claude-instant-v1":                  familyClaudeText,
		"amazon.titan-text-express-v1":                 familyTitan,
		"meta.llama3-8b-instruct-v1:0":                 familyLlama,
		"mistral.mistral-7b-instruct-v0:2":             familyMistral,
		"cohere.command-r-v1:0":                        familyUnsupported,
	}

	for modelID, want := range tests {
		assert.Equal(t, want, detectFamily(modelID), "model %s", modelID)
	}
}

func TestBedrockClient_ClaudeMessages(t *testing.T) {
	invoker := &fakeInvoker{body: []byte(`{"content":[{"type":"text","text":"{\"is_phishing\":"},{"type":"text","text":" true}"}]}`)}
	client := NewBedrockClient(invoker, "anthropic.claude-3-haiku-20240307-v1:0", core.DefaultSamplingConfig(), zap.NewNop())

	text, err := client.Generate(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Equal(t, `{"is_phishing": true}`, text)

	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", aws.ToString(invoker.input.ModelId))
	assert.Equal(t, "application/json", aws.ToString(invoker.input.ContentType))

	payload := decodePayload(t, invoker.input)
	assert.Equal(t, anthropicVersion, payload["anthropic_version"])
	assert.Equal(t, 1024.0, payload["max_tokens"])
	assert.Equal(t, 40.0, payload["top_k"])
	messages := payload["messages"].([]interface{})
	require.Len(t, messages, 1)
	content := messages[0].(map[string]interface{})["content"].([]interface{})
	assert.Equal(t, "analyze this", content[0].(map[string]interface{})["text"])
}

func TestBedrockClient_ClaudeText(t *testing.T) {
	invoker := &fakeInvoker{body: []byte(`{"completion":" {\"is_phishing\": false}"}`)}
	client := NewBedrockClient(invoker, "anthropic.claude-v2", core.DefaultSamplingConfig(), zap.NewNop())

	text, err := client.Generate(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Equal(t, ` {"is_phishing": false}`, text)

	payload := decodePayload(t, invoker.input)
	assert.Equal(t, "\n\nHuman: analyze this\n\nAssistant:", payload["prompt"])
	assert.Equal(t, 1024.0, payload["max_tokens_to_sample"])
}

func TestBedrockClient_Titan(t *testing.T) {
	invoker := &fakeInvoker{body: []byte(`{"results":[{"outputText":"looks suspicious"}]}`)}
	client := NewBedrockClient(invoker, "amazon.titan-text-express-v1", core.DefaultSamplingConfig(), zap.NewNop())

	text, err := client.Generate(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Equal(t, "looks suspicious", text)

	payload := decodePayload(t, invoker.input)
	assert.Equal(t, "analyze this", payload["inputText"])
	genCfg := payload["textGenerationConfig"].(map[string]interface{})
	assert.Equal(t, 1024.0, genCfg["maxTokenCount"])
	assert.NotContains(t, genCfg, "topK")

	invoker.body = []byte(`{"results":[]}`)
	_, err = client.Generate(context.Background(), "analyze this")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestBedrockClient_Llama(t *testing.T) {
	invoker := &fakeInvoker{body: []byte(`{"generation":"{\"is_phishing\": false}","stop_reason":"stop"}`)}
	client := NewBedrockClient(invoker, "meta.llama3-8b-instruct-v1:0", core.DefaultSamplingConfig(), zap.NewNop())

	text, err := client.Generate(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Equal(t, `{"is_phishing": false}`, text)

	payload := decodePayload(t, invoker.input)
	assert.Equal(t, 1024.0, payload["max_gen_len"])
	assert.NotContains(t, payload, "max_tokens")
	assert.NotContains(t, payload, "top_k")
	assert.Contains(t, payload["prompt"], "<|start_header_id|>user<|end_header_id|>\n\nanalyze this<|eot_id|>")

	invoker.body = []byte(`{"generation":""}`)
	_, err = client.Generate(context.Background(), "analyze this")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestBedrockClient_Mistral(t *testing.T) {
	answer := `{"is_phishing": false, "confidence_score": 0, "overall_risk_level": "LOW", "phishing_indicators": [], "reasoning": "Routine"}`
	body, err := json.Marshal(map[string]interface{}{
		"outputs": []map[string]string{{"text": answer, "stop_reason": "stop"}},
	})
	require.NoError(t, err)

	invoker := &fakeInvoker{body: body}
	client := NewBedrockClient(invoker, "mistral.mistral-7b-instruct-v0:2", core.DefaultSamplingConfig(), zap.NewNop())

	text, err := client.Generate(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Equal(t, answer, text)

	result := core.AggregateFindings(core.NormalizeResponse(text).Assessment())
	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Findings)

	payload := decodePayload(t, invoker.input)
	assert.Equal(t, "<s>[INST] analyze this [/INST]", payload["prompt"])
	assert.Equal(t, 1024.0, payload["max_tokens"])
	assert.Equal(t, 40.0, payload["top_k"])

	invoker.body = []byte(`{"outputs":[]}`)
	_, err = client.Generate(context.Background(), "analyze this")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestBedrockClient_UnsupportedModel(t *testing.T) {
	invoker := &fakeInvoker{body: []byte(`{"text":"ignored"}`)}
	client := NewBedrockClient(invoker, "cohere.command-r-v1:0", core.DefaultSamplingConfig(), zap.NewNop())

	_, err := client.Generate(context.Background(), "analyze this")
	assert.ErrorIs(t, err, ErrUnsupportedModel)
	assert.Nil(t, invoker.input, "no request may be sent")

	assert.False(t, SupportedModel("cohere.command-r-v1:0"))
	assert.True(t, SupportedModel("us.meta.llama3-2-11b-instruct-v1:0"))
}

func TestBedrockClient_InvokeError(t *testing.T) {
	cause := errors.New("AccessDeniedException")
	client := NewBedrockClient(&fakeInvoker{err: cause}, "anthropic.claude-3-haiku-20240307-v1:0", core.DefaultSamplingConfig(), zap.NewNop())

	_, err := client.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, cause)
}

func TestBedrockClient_ClaudeEmptyContent(t *testing.T) {
	client := NewBedrockClient(&fakeInvoker{body: []byte(`{"content":[]}`)}, "anthropic.claude-3-haiku-20240307-v1:0", core.DefaultSamplingConfig(), zap.NewNop())

	_, err := client.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
