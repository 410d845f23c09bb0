package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Agent   AgentConfig
	CORS    CORSConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	agent, err := loadAgentConfig()
	if err != nil {
		return nil, err
	}

	cors, err := loadCORSConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Session: session, Agent: agent, CORS: cors, Log: logCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Host      string
	Port      int
	StaticDir string
}

// Addr 返回 host:port 形式的监听地址。
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	host := getEnvOrDefault("HOST", "0.0.0.0")
	if strings.Contains(host, " ") {
		return ServerConfig{}, fmt.Errorf("invalid HOST value: %q", host)
	}

	port, err := parseIntEnv("PORT", 8081)
	if err != nil {
		return ServerConfig{}, err
	}
	if err := ValidatePort(port); err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Host:      host,
		Port:      port,
		StaticDir: strings.TrimSpace(os.Getenv("STATIC_DIR")),
	}, nil
}

// ValidatePort rejects ports outside the TCP range.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid PORT value %d: must be between 1 and 65535", port)
	}
	return nil
}

// SessionConfig 描述会话历史与上下文窗口。
type SessionConfig struct {
	MaxMessages   int
	ContextWindow int
	// MaxSessions caps the number of live sessions; 0 disables the cap.
	MaxSessions int
}

func loadSessionConfig() (SessionConfig, error) {
	maxMessages, err := parsePositiveIntEnv("MAX_MESSAGES_PER_SESSION", 50)
	if err != nil {
		return SessionConfig{}, err
	}

	window, err := parsePositiveIntEnv("CONTEXT_WINDOW_SIZE", 5)
	if err != nil {
		return SessionConfig{}, err
	}

	maxSessions, err := parseIntEnv("MAX_SESSIONS", 100)
	if err != nil {
		return SessionConfig{}, err
	}
	if maxSessions < 0 {
		return SessionConfig{}, fmt.Errorf("invalid MAX_SESSIONS value %d: must not be negative", maxSessions)
	}

	return SessionConfig{
		MaxMessages:   maxMessages,
		ContextWindow: window,
		MaxSessions:   maxSessions,
	}, nil
}

// AgentConfig 描述外部 CLI 代理进程的调用方式。
type AgentConfig struct {
	CommandPrefix        string
	DangerousPermissions bool
	Timeout              time.Duration
	StreamTimeout        time.Duration
	ResponseLanguage     string
}

func loadAgentConfig() (AgentConfig, error) {
	timeout, err := parseSecondsEnv("CLAUDE_TIMEOUT", 60*time.Second)
	if err != nil {
		return AgentConfig{}, err
	}

	streamTimeout, err := parseSecondsEnv("CLAUDE_STREAM_TIMEOUT", 180*time.Second)
	if err != nil {
		return AgentConfig{}, err
	}

	dangerous, err := parseBoolEnv("ENABLE_DANGEROUS_PERMISSIONS", true)
	if err != nil {
		return AgentConfig{}, err
	}

	return AgentConfig{
		CommandPrefix:        getEnvOrDefault("CLAUDE_COMMAND_PREFIX", "claude"),
		DangerousPermissions: dangerous,
		Timeout:              timeout,
		StreamTimeout:        streamTimeout,
		ResponseLanguage:     getEnvOrDefault("RESPONSE_LANGUAGE", "Japanese"),
	}, nil
}

// CORSConfig 描述跨域设置。
type CORSConfig struct {
	Enabled     bool
	AllowOrigin string
}

// Origins 返回允许的来源列表，为空时视为 "*"。
func (c CORSConfig) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func loadCORSConfig() (CORSConfig, error) {
	enabled, err := parseBoolEnv("ENABLE_CORS", true)
	if err != nil {
		return CORSConfig{}, err
	}
	return CORSConfig{
		Enabled:     enabled,
		AllowOrigin: getEnvOrDefault("CORS_ALLOW_ORIGIN", "*"),
	}, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level    string
	Debug    bool
	FilePath string
	Format   string
}

func loadLogConfig() (LogConfig, error) {
	debug, err := parseBoolEnv("ENABLE_DEBUG_LOGS", true)
	if err != nil {
		return LogConfig{}, err
	}

	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text"))
	switch format {
	case "text", "json", "logfmt":
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q", format)
	}

	return LogConfig{
		Level:    strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Debug:    debug,
		FilePath: strings.TrimSpace(os.Getenv("LOG_FILE_PATH")),
		Format:   format,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
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

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parsePositiveIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseIntEnv(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if val < 1 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, val)
	}
	return val, nil
}

// parseSecondsEnv 以秒为单位解析超时设置。
func parseSecondsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	seconds, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if seconds == nil {
		return defaultValue, nil
	}
	if *seconds < 1 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, *seconds)
	}
	return time.Duration(*seconds) * time.Second, nil
}
