// =============================================================================
// 📦 AgentDesk 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AGENTDESK").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/agentdesk/agent/handoff"
	"github.com/BaSui01/agentdesk/agent/persistence"
	"github.com/BaSui01/agentdesk/internal/database"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 AgentDesk 的完整配置结构
type Config struct {
	Server      ServerConfig      `yaml:"server" env:"SERVER"`
	LLM         LLMConfig         `yaml:"llm" env:"LLM"`
	Moderation  ModerationConfig  `yaml:"moderation" env:"MODERATION"`
	Session     SessionConfig     `yaml:"session" env:"SESSION"`
	Persistence PersistenceConfig `yaml:"persistence" env:"PERSISTENCE"`
	Agents      AgentsConfig      `yaml:"agents" env:"AGENTS"`
	Log         LogConfig         `yaml:"log" env:"LOG"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" env:"TELEMETRY"`

	// Routing 强制关键词路由表，为空时使用内置表。只能通过 YAML 配置。
	Routing handoff.RoutingTable `yaml:"routing" env:"-"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// API Key 列表，为空时不做 API Key 鉴权
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// JWT HMAC 密钥，为空时不启用 JWT 鉴权
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// 每秒请求数限制
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求上限
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// LLMConfig 生成后端配置（OpenAI 兼容接口）
type LLMConfig struct {
	// Provider 名称，仅用于日志与指标
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 默认模型
	DefaultModel string `yaml:"default_model" env:"DEFAULT_MODEL"`
	// 语义安全规则使用的分类模型
	ClassifierModel string `yaml:"classifier_model" env:"CLASSIFIER_MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// ModerationConfig 内容审核配置
type ModerationConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 为空时复用 LLM.APIKey
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	Model   string        `yaml:"model" env:"MODEL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// SessionConfig 会话编排配置
type SessionConfig struct {
	// triage Agent 名称
	TriageAgent string `yaml:"triage_agent" env:"TRIAGE_AGENT"`
	// 宽负载轮次窗口
	ContextWindow int `yaml:"context_window" env:"CONTEXT_WINDOW"`
	// 窄负载中目标 Agent 的发言条数
	NarrowWindow int `yaml:"narrow_window" env:"NARROW_WINDOW"`
	// 延续判断回看的轮次数
	ContinuityWindow int `yaml:"continuity_window" env:"CONTINUITY_WINDOW"`
	// 宽负载中每轮内容截断字符数
	Truncate int `yaml:"truncate" env:"TRUNCATE"`
	// 编排整体超时
	OrchestrationTimeout time.Duration `yaml:"orchestration_timeout" env:"ORCHESTRATION_TIMEOUT"`
	// 语义安全规则分类超时
	SemanticTimeout time.Duration `yaml:"semantic_timeout" env:"SEMANTIC_TIMEOUT"`
}

// PersistenceConfig 对话快照存储配置
type PersistenceConfig struct {
	// 类型: memory, file, bolt, redis, sql
	Type string `yaml:"type" env:"TYPE"`
	// file 后端目录
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// bolt 后端数据库文件
	BoltPath string `yaml:"bolt_path" env:"BOLT_PATH"`

	RedisAddr      string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword  string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB        int    `yaml:"redis_db" env:"REDIS_DB"`
	RedisPoolSize  int    `yaml:"redis_pool_size" env:"REDIS_POOL_SIZE"`
	RedisKeyPrefix string `yaml:"redis_key_prefix" env:"REDIS_KEY_PREFIX"`
	RedisTLS       bool   `yaml:"redis_tls" env:"REDIS_TLS"`

	// 驱动类型: postgres, mysql, sqlite
	SQLDriver string `yaml:"sql_driver" env:"SQL_DRIVER"`
	SQLDSN    string `yaml:"sql_dsn" env:"SQL_DSN"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 可重试错误的最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 通过 GORM 自动建表，不依赖 migrate 命令
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// AgentsConfig Agent 与安全规则 JSON 文件配置
type AgentsConfig struct {
	AgentsFile     string `yaml:"agents_file" env:"AGENTS_FILE"`
	GuardrailsFile string `yaml:"guardrails_file" env:"GUARDRAILS_FILE"`
	// 文件变化时重建会话
	Watch bool `yaml:"watch" env:"WATCH"`
	// 监听防抖
	WatchDebounce time.Duration `yaml:"watch_debounce" env:"WATCH_DEBOUNCE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTDESK",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if strings.TrimSpace(c.Session.TriageAgent) == "" {
		errs = append(errs, "session.triage_agent is required")
	}
	if c.Session.ContextWindow <= 0 || c.Session.NarrowWindow <= 0 || c.Session.ContinuityWindow <= 0 {
		errs = append(errs, "session windows must be positive")
	}
	if c.Session.OrchestrationTimeout <= 0 {
		errs = append(errs, "session.orchestration_timeout must be positive")
	}
	switch persistence.StoreType(c.Persistence.Type) {
	case persistence.StoreTypeMemory, persistence.StoreTypeFile, persistence.StoreTypeBolt,
		persistence.StoreTypeRedis, persistence.StoreTypeSQL:
	default:
		errs = append(errs, fmt.Sprintf("unsupported persistence type %q", c.Persistence.Type))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// StoreConfig 转换为快照存储工厂使用的配置
func (p PersistenceConfig) StoreConfig() persistence.StoreConfig {
	return persistence.StoreConfig{
		Type:     persistence.StoreType(p.Type),
		BaseDir:  p.BaseDir,
		BoltPath: p.BoltPath,
		Redis: persistence.RedisStoreConfig{
			Addr:      p.RedisAddr,
			Password:  p.RedisPassword,
			DB:        p.RedisDB,
			PoolSize:  p.RedisPoolSize,
			KeyPrefix: p.RedisKeyPrefix,
			TLS:       p.RedisTLS,
		},
		SQL: persistence.SQLStoreConfig{
			Driver: p.SQLDriver,
			DSN:    p.SQLDSN,
			Pool: database.PoolConfig{
				MaxOpenConns:    p.MaxOpenConns,
				MaxIdleConns:    p.MaxIdleConns,
				ConnMaxLifetime: p.ConnMaxLifetime,
			},
			MaxRetries:  p.MaxRetries,
			AutoMigrate: p.AutoMigrate,
		},
	}
}
