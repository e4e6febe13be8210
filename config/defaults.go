// =============================================================================
// 📦 AgentDesk 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/agentdesk/internal/database"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		LLM:         DefaultLLMConfig(),
		Moderation:  DefaultModerationConfig(),
		Session:     DefaultSessionConfig(),
		Persistence: DefaultPersistenceConfig(),
		Agents:      DefaultAgentsConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:     "openai",
		BaseURL:      "https://api.openai.com",
		DefaultModel: "gpt-4o-mini",
		Timeout:      30 * time.Second,
	}
}

// DefaultModerationConfig 返回默认审核配置
func DefaultModerationConfig() ModerationConfig {
	return ModerationConfig{
		Enabled: false,
		BaseURL: "https://api.openai.com/v1",
		Model:   "omni-moderation-latest",
		Timeout: 10 * time.Second,
	}
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TriageAgent:          "TriageAgent",
		ContextWindow:        15,
		NarrowWindow:         5,
		ContinuityWindow:     3,
		Truncate:             300,
		OrchestrationTimeout: 25 * time.Second,
		SemanticTimeout:      10 * time.Second,
	}
}

// DefaultPersistenceConfig 返回默认快照存储配置
func DefaultPersistenceConfig() PersistenceConfig {
	pool := database.DefaultPoolConfig()
	return PersistenceConfig{
		Type:            "file",
		BaseDir:         "./data/conversations",
		BoltPath:        "./data/agentdesk.bolt",
		RedisAddr:       "localhost:6379",
		RedisPoolSize:   10,
		RedisKeyPrefix:  "agentdesk:",
		SQLDriver:       database.DriverSQLite,
		SQLDSN:          "./data/agentdesk.db",
		MaxOpenConns:    pool.MaxOpenConns,
		MaxIdleConns:    pool.MaxIdleConns,
		ConnMaxLifetime: pool.ConnMaxLifetime,
		MaxRetries:      3,
	}
}

// DefaultAgentsConfig 返回默认 Agent 文件配置
func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{
		AgentsFile:     "config/agents_config.json",
		GuardrailsFile: "config/guardrails_config.json",
		Watch:          true,
		WatchDebounce:  500 * time.Millisecond,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentdesk",
		SampleRate:   0.1,
	}
}
