// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingConfig 表示缺少必需的密钥或标识配置。
var ErrMissingConfig = errors.New("missing required configuration")

// 全局配置变量，由 Init 填充，仅供 main 使用。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// AbortOnInitFailure 为 true 时，启动阶段构建管道失败会直接退出进程。
	AbortOnInitFailure bool `mapstructure:"abort_on_init_failure"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// VectorConfig 存储远程向量索引服务的配置。
type VectorConfig struct {
	Provider    string `mapstructure:"provider"` // pinecone | elasticsearch | milvus
	APIKey      string `mapstructure:"api_key"`
	Environment string `mapstructure:"environment"`
	Index       string `mapstructure:"index"`
	// Host 为空时 pinecone 通过控制面查询索引地址。
	Host       string `mapstructure:"host"`
	ControlURL string `mapstructure:"control_url"`
	Namespace  string `mapstructure:"namespace"`
	Dimensions int    `mapstructure:"dimensions"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	BatchSize int    `mapstructure:"batch_size"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	// ContextWindow 用于树状汇总时的分组打包。
	ContextWindow int `mapstructure:"context_window"`
}

// RetrievalConfig 控制检索阶段。
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// SnapshotConfig 描述可选的本地文档快照。
type SnapshotConfig struct {
	Path           string      `mapstructure:"path"`
	IndexOnStartup bool        `mapstructure:"index_on_startup"`
	ChunkSize      int         `mapstructure:"chunk_size"`
	ChunkOverlap   int         `mapstructure:"chunk_overlap"`
	MinIO          MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig 存储 MinIO 对象存储的配置；Bucket 为空表示从本地文件读取快照。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	ObjectName      string `mapstructure:"object_name"`
}

// RedisConfig 存储 Redis 的配置；Addr 为空时不启用答案缓存。
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

// KafkaConfig 存储 Kafka 相关的配置；Brokers 为空时不发布查询事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// 必需的四个密钥及其兼容的环境变量名。
var requiredEnv = map[string][]string{
	"vector.api_key":     {"PINECONE_API_KEY", "VECTOR_API_KEY"},
	"vector.environment": {"PINECONE_ENV", "VECTOR_ENVIRONMENT"},
	"vector.index":       {"PINECONE_INDEX", "VECTOR_INDEX"},
	"llm.api_key":        {"GOOGLE_API_KEY", "LLM_API_KEY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.abort_on_init_failure", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("vector.provider", "pinecone")
	v.SetDefault("vector.control_url", "https://api.pinecone.io")
	v.SetDefault("vector.dimensions", 384)
	v.SetDefault("embedding.base_url", "http://localhost:8081/v1")
	v.SetDefault("embedding.model", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("embedding.batch_size", 10)
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("llm.model", "gemini-1.5-pro-latest")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.context_window", 32768)
	v.SetDefault("retrieval.top_k", 2)
	v.SetDefault("snapshot.path", "data/scraped_data.json")
	v.SetDefault("snapshot.index_on_startup", true)
	v.SetDefault("snapshot.chunk_size", 1024)
	v.SetDefault("snapshot.chunk_overlap", 20)
	v.SetDefault("redis.ttl_minutes", 60)
	v.SetDefault("kafka.topic", "chatbot-queries")

	// 没有默认值的键也需要注册，AutomaticEnv 才会在 Unmarshal 时生效。
	for _, key := range []string{
		"vector.host", "vector.namespace", "embedding.api_key",
		"snapshot.minio.endpoint", "snapshot.minio.access_key_id", "snapshot.minio.secret_access_key",
		"snapshot.minio.bucket_name", "snapshot.minio.object_name",
		"redis.addr", "redis.password", "kafka.brokers", "log.output_path",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("snapshot.minio.use_ssl", false)
	v.SetDefault("redis.db", 0)
}

// Load 依次读取 .env、可选的 YAML 文件以及进程环境变量。
// configPath 为空或文件不存在时只使用默认值和环境变量。
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range requiredEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &cfg, nil
}

// Init 加载配置到 Conf，失败时 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Validate 检查四个必需的密钥是否存在。
func (c *Config) Validate() error {
	var missing []string
	if c.Vector.APIKey == "" {
		missing = append(missing, "PINECONE_API_KEY")
	}
	if c.Vector.Environment == "" {
		missing = append(missing, "PINECONE_ENV")
	}
	if c.Vector.Index == "" {
		missing = append(missing, "PINECONE_INDEX")
	}
	if c.LLM.APIKey == "" {
		missing = append(missing, "GOOGLE_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set, check your .env file", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}
