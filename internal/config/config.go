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

// 对话后端提供方
const (
	ProviderDialogflow = "dialogflow"
	ProviderArk        = "ark"
	ProviderEcho       = "echo"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server       ServerConfig
	Log          LogConfig
	Conversation ConversationConfig
	Dialogflow   DialogflowConfig
	Ark          ArkConfig
	Chat         ChatConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	conversation, err := loadConversationConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:       server,
		Log:          logCfg,
		Conversation: conversation,
		Dialogflow:   loadDialogflowConfig(),
		Ark:          loadArkConfig(),
		Chat:         chat,
	}, nil
}

// ServerConfig HTTP 服务监听配置。
type ServerConfig struct {
	Addr          string
	AllowedOrigin string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origin := getEnvOrDefault("ALLOWED_ORIGIN", "*")

	if strings.Contains(port, ":") {
		// ":8080" 或 "127.0.0.1:8080" 原样使用
		return ServerConfig{Addr: port, AllowedOrigin: origin}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigin: origin}, nil
}

// LogConfig 日志输出配置。
type LogConfig struct {
	Level    string
	Format   string
	Requests bool
}

func loadLogConfig() (LogConfig, error) {
	requests, err := parseBoolEnv("LOG_REQUESTS", true)
	if err != nil {
		return LogConfig{}, err
	}

	return LogConfig{
		Level:    getEnvOrDefault("LOG_LEVEL", "info"),
		Format:   getEnvOrDefault("LOG_FORMAT", "json"),
		Requests: requests,
	}, nil
}

// ConversationConfig 外部对话后端配置。
type ConversationConfig struct {
	Provider     string
	LanguageCode string
	// Timeout 单次外部调用超时，0 表示不设限制
	Timeout time.Duration
}

func loadConversationConfig() (ConversationConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("CONVERSATION_PROVIDER", ProviderDialogflow))
	switch provider {
	case ProviderDialogflow, ProviderArk, ProviderEcho:
	default:
		return ConversationConfig{}, fmt.Errorf("invalid CONVERSATION_PROVIDER value: %q", provider)
	}

	timeout, err := parseOptionalIntEnv("CONVERSATION_TIMEOUT")
	if err != nil {
		return ConversationConfig{}, err
	}
	var timeoutDur time.Duration
	if timeout != nil {
		if *timeout < 0 {
			return ConversationConfig{}, fmt.Errorf("invalid CONVERSATION_TIMEOUT value: %d", *timeout)
		}
		timeoutDur = time.Duration(*timeout) * time.Second
	}

	return ConversationConfig{
		Provider:     provider,
		LanguageCode: getEnvOrDefault("CONVERSATION_LANGUAGE", "en"),
		Timeout:      timeoutDur,
	}, nil
}

// DialogflowConfig Dialogflow ES 的项目与凭据配置。
type DialogflowConfig struct {
	ProjectID       string
	CredentialsFile string
	Endpoint        string
}

// Enabled 是否已配置项目
func (c DialogflowConfig) Enabled() bool {
	return c.ProjectID != ""
}

func loadDialogflowConfig() DialogflowConfig {
	credentials := strings.TrimSpace(os.Getenv("DIALOGFLOW_CREDENTIALS_FILE"))
	if credentials == "" {
		credentials = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	return DialogflowConfig{
		ProjectID:       strings.TrimSpace(os.Getenv("DIALOGFLOW_PROJECT_ID")),
		CredentialsFile: credentials,
		Endpoint:        strings.TrimSpace(os.Getenv("DIALOGFLOW_ENDPOINT")),
	}
}

// ArkConfig 火山方舟对话模型配置。
type ArkConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	SystemPrompt string
}

// Enabled 是否已配置模型及凭据
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 根据配置创建方舟对话模型。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark model configuration missing: provide ARK_MODEL with ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	})
}

const defaultArkSystemPrompt = "You are SupportPro Bot, a concise and friendly customer support assistant for an online store. " +
	"Answer questions about orders, returns, shipping, payments and product availability in at most three sentences."

func loadArkConfig() ArkConfig {
	return ArkConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		SystemPrompt: getEnvOrDefault("ARK_SYSTEM_PROMPT", defaultArkSystemPrompt),
	}
}

// ChatConfig 会话管理与聊天窗口配置。
type ChatConfig struct {
	BotName          string
	QuickActionsFile string
	SessionIdleTTL   time.Duration
	EvictionInterval time.Duration
	MaxSessions      int
}

func loadChatConfig() (ChatConfig, error) {
	idleTTL, err := parseDurationEnv("CHAT_SESSION_IDLE_TTL", 30*time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}

	interval, err := parseDurationEnv("CHAT_EVICTION_INTERVAL", time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}

	maxSessions := 0
	if override, err := parseOptionalIntEnv("CHAT_MAX_SESSIONS"); err != nil {
		return ChatConfig{}, err
	} else if override != nil && *override > 0 {
		maxSessions = *override
	}

	return ChatConfig{
		BotName:          getEnvOrDefault("BOT_NAME", "SupportPro Bot"),
		QuickActionsFile: strings.TrimSpace(os.Getenv("QUICK_ACTIONS_FILE")),
		SessionIdleTTL:   idleTTL,
		EvictionInterval: interval,
		MaxSessions:      maxSessions,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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
