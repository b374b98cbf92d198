package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		AllowOrigin []string `yaml:"allow_origin"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`
	Gemini GeminiConfig `yaml:"gemini"`
	Drive  struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"drive"`
	Studio StudioConfig `yaml:"studio"`
}

type GeminiConfig struct {
	APIKey       string        `yaml:"api_key"`
	ImageModel   string        `yaml:"image_model"`
	EditModel    string        `yaml:"edit_model"`
	TextModel    string        `yaml:"text_model"`
	VideoModel   string        `yaml:"video_model"`
	ImageMIME    string        `yaml:"image_mime"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type StudioConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	RotateInterval time.Duration `yaml:"rotate_interval"`
	MediaDir       string        `yaml:"media_dir"`
	ArchiveWorkers int           `yaml:"archive_workers"`
	Brand          BrandConfig   `yaml:"brand"`
}

// BrandConfig 描述品牌信息，写入视频提示词的系统指令中
type BrandConfig struct {
	Company string `yaml:"company"`
	Colors  string `yaml:"colors"`
	Logo    string `yaml:"logo"`
}

var AppConfig *Config

// InitConfig 读取 .env 与 config/config.yaml，在 main.go 中调用
func InitConfig() {
	_ = godotenv.Load()
	cfg, err := LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("配置文件读取失败: %v", err)
	}
	AppConfig = cfg
}

// LoadConfig 解析指定路径的配置文件，并用环境变量覆盖密钥类配置
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"GEMINI_API_KEY":   &c.Gemini.APIKey,
		"DATABASE_DRIVER":  &c.Database.Driver,
		"DATABASE_DSN":     &c.Database.DSN,
		"REDIS_ADDR":       &c.Redis.Addr,
		"REDIS_PASSWORD":   &c.Redis.Password,
		"MINIO_ENDPOINT":   &c.MinIO.Endpoint,
		"MINIO_ACCESS_KEY": &c.MinIO.AccessKey,
		"MINIO_SECRET_KEY": &c.MinIO.SecretKey,
		"MINIO_BUCKET":     &c.MinIO.Bucket,
		"PORT":             &c.Server.Port,
	}
	for key, target := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*target = v
		}
	}
	// 兼容旧的 API_KEY 变量名
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = strings.TrimSpace(os.Getenv("API_KEY"))
	}
	if c.Server.Port != "" && !strings.HasPrefix(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "studio.db"
	}
	if c.Gemini.ImageModel == "" {
		c.Gemini.ImageModel = "imagen-4.0-generate-001"
	}
	if c.Gemini.EditModel == "" {
		c.Gemini.EditModel = "gemini-2.5-flash-image-preview"
	}
	if c.Gemini.TextModel == "" {
		c.Gemini.TextModel = "gemini-2.5-flash"
	}
	if c.Gemini.VideoModel == "" {
		c.Gemini.VideoModel = "veo-2.0-generate-001"
	}
	if c.Gemini.ImageMIME == "" {
		c.Gemini.ImageMIME = "image/jpeg"
	}
	if c.Gemini.FetchTimeout <= 0 {
		c.Gemini.FetchTimeout = 5 * time.Minute
	}
	if c.Drive.CacheTTL <= 0 {
		c.Drive.CacheTTL = 10 * time.Minute
	}
	if c.Studio.PollInterval <= 0 {
		c.Studio.PollInterval = 10 * time.Second
	}
	if c.Studio.RotateInterval <= 0 {
		c.Studio.RotateInterval = 4 * time.Second
	}
	if c.Studio.MediaDir == "" {
		c.Studio.MediaDir = "./media"
	}
	if c.Studio.ArchiveWorkers <= 0 {
		c.Studio.ArchiveWorkers = 2
	}
	if c.Studio.Brand.Company == "" {
		c.Studio.Brand.Company = "Seek Beyond Realty"
	}
	if c.Studio.Brand.Colors == "" {
		c.Studio.Brand.Colors = "blue and gold"
	}
	if c.Studio.Brand.Logo == "" {
		c.Studio.Brand.Logo = "stylized 'SB' infinity symbol with text"
	}
}

// GeminiConfigured 表示是否配置了生成模型的 API Key
func (c *Config) GeminiConfigured() bool {
	return c != nil && c.Gemini.APIKey != ""
}

// MinIOConfigured 表示对象存储是否可用
func (c *Config) MinIOConfigured() bool {
	return c != nil && c.MinIO.Endpoint != "" && c.MinIO.AccessKey != "" && c.MinIO.SecretKey != "" && c.MinIO.Bucket != ""
}
