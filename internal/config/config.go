package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Auth       AuthConfig
	Providers  ProvidersConfig
	Logs       LogsConfig
	Meditation MeditationConfig
	Speech     SpeechConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	providers, err := loadProvidersConfig()
	if err != nil {
		return nil, err
	}

	logs, err := loadLogsConfig()
	if err != nil {
		return nil, err
	}

	meditation, err := loadMeditationConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		Store:      store,
		Auth:       loadAuthConfig(),
		Providers:  providers,
		Logs:       logs,
		Meditation: meditation,
		Speech:     speech,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := parseListEnv("ALLOWED_ORIGINS")
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// StoreConfig 选择会话存储后端。
type StoreConfig struct {
	Backend      string
	DatabasePath string
}

const (
	StoreBackendMemory = "memory"
	StoreBackendSQLite = "sqlite"
)

func loadStoreConfig() (StoreConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreBackendSQLite))
	switch backend {
	case StoreBackendMemory, StoreBackendSQLite:
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_BACKEND value %q", backend)
	}

	return StoreConfig{
		Backend:      backend,
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "data/eunoia.db"),
	}, nil
}

// AuthConfig 描述 JWT 校验参数。
type AuthConfig struct {
	JWTSecret string
	Audience  string
}

// Enabled 表示是否配置了 JWT 密钥。
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret: strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")),
		Audience:  getEnvOrDefault("AUTH_AUDIENCE", "authenticated"),
	}
}

// ProvidersConfig 汇总所有大模型后端。
type ProvidersConfig struct {
	OpenAI    OpenAIConfig
	Gemini    OpenAIConfig
	Anthropic AnthropicConfig
	Ark       ArkConfig
}

// OpenAIConfig 描述 OpenAI 兼容接口（OpenAI、Gemini）的配置。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled 表示是否提供了密钥。
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// AnthropicConfig 描述 Anthropic 配置。
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// Enabled 表示是否提供了密钥。
func (c AnthropicConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// ArkConfig 描述火山方舟大模型相关配置。
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadProvidersConfig() (ProvidersConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return ProvidersConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return ProvidersConfig{}, err
	}

	arkMaxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return ProvidersConfig{}, err
	}

	anthropicMaxTokens := 1024
	if override, err := parseOptionalIntEnv("ANTHROPIC_MAX_TOKENS"); err != nil {
		return ProvidersConfig{}, err
	} else if override != nil && *override > 0 {
		anthropicMaxTokens = *override
	}

	return ProvidersConfig{
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Gemini: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			BaseURL: getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:   getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Anthropic: AnthropicConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
			Model:     getEnvOrDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			MaxTokens: anthropicMaxTokens,
		},
		Ark: ArkConfig{
			APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   arkMaxTokens,
		},
	}, nil
}

// LogsConfig 控制日志快照的时间窗口。
type LogsConfig struct {
	Window time.Duration
}

func loadLogsConfig() (LogsConfig, error) {
	days := 15
	if override, err := parseOptionalIntEnv("LOG_WINDOW_DAYS"); err != nil {
		return LogsConfig{}, err
	} else if override != nil {
		if *override < 1 {
			days = 1
		} else {
			days = *override
		}
	}
	return LogsConfig{Window: time.Duration(days) * 24 * time.Hour}, nil
}

// MeditationConfig 描述冥想音频生成相关配置。
type MeditationConfig struct {
	OutputDir       string
	BackgroundsFile string
	TTS             string
	CoachProvider   string
	WriterProvider  string
	MaxAudioBytes   int64
}

const (
	TTSOpenAI     = "openai"
	TTSVolcengine = "volcengine"
)

func loadMeditationConfig() (MeditationConfig, error) {
	tts := strings.ToLower(getEnvOrDefault("MEDITATION_TTS", TTSOpenAI))
	switch tts {
	case TTSOpenAI, TTSVolcengine:
	default:
		return MeditationConfig{}, fmt.Errorf("invalid MEDITATION_TTS value %q", tts)
	}

	maxBytes := int64(10 * 1024 * 1024)
	if override, err := parseOptionalIntEnv("MEDITATION_MAX_AUDIO_BYTES"); err != nil {
		return MeditationConfig{}, err
	} else if override != nil && *override > 0 {
		maxBytes = int64(*override)
	}

	return MeditationConfig{
		OutputDir:       getEnvOrDefault("MEDITATION_OUTPUT_DIR", "generated_audios"),
		BackgroundsFile: strings.TrimSpace(os.Getenv("MEDITATION_BACKGROUNDS")),
		TTS:             tts,
		CoachProvider:   getEnvOrDefault("MEDITATION_COACH_PROVIDER", "gemini"),
		WriterProvider:  getEnvOrDefault("MEDITATION_WRITER_PROVIDER", "openai"),
		MaxAudioBytes:   maxBytes,
	}, nil
}

// SpeechConfig 描述火山引擎语音合成配置。
type SpeechConfig struct {
	AppID       string
	AccessToken string
	Voice       string
	Speed       float32
	Language    string
	Timeout     time.Duration
	Enabled     bool
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0) // 默认1.0倍速
	if speed != nil {
		ttsSpeed = *speed
	}

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))
	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	if accessToken == "" {
		accessToken = strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	}

	return SpeechConfig{
		AppID:       appID,
		AccessToken: accessToken,
		Voice:       getEnvOrDefault("SPEECH_TTS_VOICE", "en_female_amy_jupiter_bigtts"),
		Speed:       ttsSpeed,
		Language:    getEnvOrDefault("SPEECH_TTS_LANGUAGE", "en-US"),
		Timeout:     time.Duration(timeoutSeconds) * time.Second,
		Enabled:     appID != "" && accessToken != "",
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
