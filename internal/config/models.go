package config

import (
	"time"

	"github.com/mikey/llm-phishing-analyzer/internal/core"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// SamplingParams holds the generation parameters shared by every provider section
type SamplingParams struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
}

// Sampling converts the parameters into the core sampling configuration
func (p SamplingParams) Sampling() core.SamplingConfig {
	return core.SamplingConfig{
		Temperature:     p.Temperature,
		TopP:            p.TopP,
		TopK:            int32(p.TopK),
		MaxOutputTokens: int32(p.MaxTokens),
	}
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey    string
	ModelName string
	SamplingParams
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	ModelName string
	SamplingParams
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region  string
	ModelID string
	SamplingParams
}

// BreakerConfig represents the optional circuit breaker around model calls
type BreakerConfig struct {
	Enabled     bool
	MaxFailures uint32
	Timeout     time.Duration
}

// AnalysisConfig represents the phishing analysis settings
type AnalysisConfig struct {
	Threshold          int
	WhitelistedDomains []string
	MaxBodySize        int
}

// HeadersConfig names the headers added by the SMTP filter
type HeadersConfig struct {
	Status   string
	Score    string
	Findings string
}

// ServerConfig represents the email filter server settings
type ServerConfig struct {
	FilterType      string
	ListenAddress   string
	BlockPhishing   bool
	Headers         HeadersConfig
	PostfixEnabled  bool
	PostfixAddress  string
	PostfixPort     int
	ModifySubject   bool
	SubjectPrefix   string
	AnalysisTimeout time.Duration
}

// CLIConfig represents the one-shot command line filter settings
type CLIConfig struct {
	Output  string
	Verbose bool
}

// MetricsConfig represents the metrics endpoint settings
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string
}

func (c *Config) samplingParams(section string) SamplingParams {
	return SamplingParams{
		MaxTokens:   c.GetInt(section + ".max_tokens"),
		Temperature: float32(c.GetFloat64(section + ".temperature")),
		TopP:        float32(c.GetFloat64(section + ".top_p")),
		TopK:        c.GetInt(section + ".top_k"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:         c.GetString("gemini.api_key"),
		ModelName:      c.GetString("gemini.model_name"),
		SamplingParams: c.samplingParams("gemini"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:         c.GetString("openai.api_key"),
		BaseURL:        c.GetString("openai.base_url"),
		ModelName:      c.GetString("openai.model_name"),
		SamplingParams: c.samplingParams("openai"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:         c.GetString("bedrock.region"),
		ModelID:        c.GetString("bedrock.model_id"),
		SamplingParams: c.samplingParams("bedrock"),
	}
}

// GetBreaker returns the circuit breaker configuration
func (c *Config) GetBreaker() (BreakerConfig, error) {
	timeout, err := c.GetDuration("llm.circuit_breaker.timeout")
	if err != nil {
		return BreakerConfig{}, err
	}
	return BreakerConfig{
		Enabled:     c.GetBool("llm.circuit_breaker.enabled"),
		MaxFailures: uint32(c.GetInt("llm.circuit_breaker.max_failures")),
		Timeout:     timeout,
	}, nil
}

// GetAnalysis returns the phishing analysis configuration
func (c *Config) GetAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Threshold:          c.GetInt("phishing.threshold"),
		WhitelistedDomains: c.GetStringSlice("phishing.whitelisted_domains"),
		MaxBodySize:        c.GetInt("phishing.max_body_size"),
	}
}

// GetServer returns the email filter server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	timeout, err := c.GetDuration("server.analysis_timeout")
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		FilterType:    c.GetString("server.filter_type"),
		ListenAddress: c.GetString("server.listen_address"),
		BlockPhishing: c.GetBool("server.block_phishing"),
		Headers: HeadersConfig{
			Status:   c.GetString("server.headers.status"),
			Score:    c.GetString("server.headers.score"),
			Findings: c.GetString("server.headers.findings"),
		},
		PostfixEnabled:  c.GetBool("server.postfix.enabled"),
		PostfixAddress:  c.GetString("server.postfix.address"),
		PostfixPort:     c.GetInt("server.postfix.port"),
		ModifySubject:   c.GetBool("server.modify_subject"),
		SubjectPrefix:   c.GetString("server.subject_prefix"),
		AnalysisTimeout: timeout,
	}, nil
}

// GetMetrics returns the metrics endpoint configuration
func (c *Config) GetMetrics() MetricsConfig {
	return MetricsConfig{
		Enabled:       c.GetBool("metrics.enabled"),
		ListenAddress: c.GetString("metrics.listen_address"),
	}
}

// GetCLI returns the command line filter configuration
func (c *Config) GetCLI() CLIConfig {
	return CLIConfig{
		Output:  c.GetString("cli.output"),
		Verbose: c.GetBool("cli.verbose"),
	}
}
