package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// APIKeyPrefix 合法 API Key 必须具备的前缀
const APIKeyPrefix = "sk-"

// Config 应用配置结构
type Config struct {
	// 生成服务配置
	OpenAIAPIKey  string
	OpenAIBaseURL string
	// 分别用于图片生成与文本生成的模型名称
	ImageModelName string
	ChatModelName  string
	// GenAI 请求超时时间（秒），0 表示使用 HTTP 库默认行为
	GenAITimeoutSeconds int

	// 本地存储
	ImagesDir       string
	CustomStyleFile string

	// OSS 镜像配置
	OSSMirrorEnabled bool
	OSSEndpoint      string
	OSSRegion        string
	OSSAccessKey     string
	OSSSecretKey     string
	OSSBucket        string

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// LoadConfig 从 .env 文件和环境变量加载配置，校验后初始化日志系统
func LoadConfig() (*Config, error) {
	// stdout 用于 MCP stdio 协议，提示信息只能写到 stderr
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := FromEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logConfig := &LogConfig{
		Level:    config.LogLevel,
		Format:   config.LogFormat,
		Output:   config.LogOutput,
		FilePath: config.LogFile,
	}
	if err := InitLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

// FromEnv 仅读取环境变量，不做校验
func FromEnv() *Config {
	imagesDir := getEnv("IMAGES_DIR", "images")

	return &Config{
		OpenAIAPIKey:        strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1/"),
		ImageModelName:      getEnv("GENAI_IMAGE_MODEL", "dall-e-3"),
		ChatModelName:       getEnv("GENAI_CHAT_MODEL", "gpt-4"),
		GenAITimeoutSeconds: getEnvInt("GENAI_TIMEOUT_SECONDS", 0),
		ImagesDir:           imagesDir,
		CustomStyleFile:     getEnv("CUSTOM_STYLE_FILE", filepath.Join(filepath.Dir(filepath.Clean(imagesDir)), "custom_style.txt")),
		// OSS 配置
		OSSMirrorEnabled: getEnvBool("OSS_MIRROR_ENABLED", false),
		OSSEndpoint:      getEnv("OSS_ENDPOINT", ""),
		OSSRegion:        getEnv("OSS_REGION", "us-east-1"),
		OSSAccessKey:     getEnv("OSS_ACCESS_KEY", ""),
		OSSSecretKey:     getEnv("OSS_SECRET_KEY", ""),
		OSSBucket:        getEnv("OSS_BUCKET", ""),
		// 日志配置
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stderr"),
		LogFile:   getEnv("LOG_FILE", ""),
	}
}

// Validate 校验必需的配置
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if !strings.HasPrefix(c.OpenAIAPIKey, APIKeyPrefix) {
		return fmt.Errorf("OPENAI_API_KEY has an invalid format: expected prefix %q", APIKeyPrefix)
	}
	if c.ImagesDir == "" {
		return fmt.Errorf("IMAGES_DIR must not be empty")
	}

	if c.OSSMirrorEnabled {
		if c.OSSBucket == "" {
			return fmt.Errorf("OSS_BUCKET is required when OSS_MIRROR_ENABLED=true")
		}
		if c.OSSAccessKey == "" || c.OSSSecretKey == "" {
			return fmt.Errorf("OSS_ACCESS_KEY and OSS_SECRET_KEY are required when OSS_MIRROR_ENABLED=true")
		}
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// MaskAPIKey 隐藏 API Key 的敏感部分
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
