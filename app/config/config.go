package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Trello  TrelloConfig  `mapstructure:"trello"`
	Storage StorageConfig `mapstructure:"storage"`
	Stream  StreamConfig  `mapstructure:"stream"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"` // 明文或 bcrypt 哈希（$2 开头）
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	File       string `mapstructure:"file"`        // 日志文件路径
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`      // JWT 密钥
	ExpireTime int    `mapstructure:"expire_time"` // 过期时间（小时）
	Issuer     string `mapstructure:"issuer"`      // 签发者
}

// TrelloConfig Trello 看板（队列源）配置
type TrelloConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Token       string `mapstructure:"token"`
	BaseURL     string `mapstructure:"base_url"`
	BoardName   string `mapstructure:"board_name"`
	QueueList   string `mapstructure:"queue_list"`   // 待播放列表
	PlayingList string `mapstructure:"playing_list"` // 正在播放列表
	PlayedList  string `mapstructure:"played_list"`  // 已播放列表
	FailedList  string `mapstructure:"failed_list"`  // 失败列表
}

// StorageConfig 存储目录与预算配置
type StorageConfig struct {
	MediaDir             string `mapstructure:"media_dir"`              // 下载的媒体文件目录
	SegmentDir           string `mapstructure:"segment_dir"`            // HLS 切片输出目录
	MaxStorageMB         int64  `mapstructure:"max_storage_mb"`         // 媒体目录存储预算（MB）
	CleanupIntervalHours int    `mapstructure:"cleanup_interval_hours"` // 清理周期（小时）
}

// MaxStorageBytes 返回以字节计的存储预算
func (s StorageConfig) MaxStorageBytes() int64 {
	return s.MaxStorageMB * 1024 * 1024
}

// CleanupInterval 返回清理周期
func (s StorageConfig) CleanupInterval() time.Duration {
	return time.Duration(s.CleanupIntervalHours) * time.Hour
}

// StreamConfig 流处理的时间参数与 ffmpeg 设置。
// 轮询、退避、宽限等时间全部放在配置里，便于测试时注入较短的值。
type StreamConfig struct {
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec"` // 队列轮询间隔
	ErrorBackoffSec int    `mapstructure:"error_backoff_sec"` // 循环出错后的退避时间
	VerifyDelaySec  int    `mapstructure:"verify_delay_sec"`  // 切片生成校验的等待上限
	StopGraceSec    int    `mapstructure:"stop_grace_sec"`    // 进程优雅退出的宽限时间
	SegmentTimeSec  int    `mapstructure:"segment_time_sec"`  // HLS 单个切片时长
	PlaylistSize    int    `mapstructure:"playlist_size"`     // 播放列表中的切片数量
}

// PollInterval 返回队列轮询间隔
func (s StreamConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec) * time.Second
}

// ErrorBackoff 返回出错后的退避时间
func (s StreamConfig) ErrorBackoff() time.Duration {
	return time.Duration(s.ErrorBackoffSec) * time.Second
}

// VerifyDelay 返回切片校验的等待上限
func (s StreamConfig) VerifyDelay() time.Duration {
	return time.Duration(s.VerifyDelaySec) * time.Second
}

// StopGrace 返回优雅退出宽限时间
func (s StreamConfig) StopGrace() time.Duration {
	return time.Duration(s.StopGraceSec) * time.Second
}

func Load() *Config {
	setDefaults()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.username", "admin")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "data/logs/radio-stream.log")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// JWT默认配置
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.expire_time", 24) // 24小时
	viper.SetDefault("jwt.issuer", "radio-stream")

	// Trello 默认配置
	viper.SetDefault("trello.base_url", "https://api.trello.com/1")
	viper.SetDefault("trello.queue_list", "Queue")
	viper.SetDefault("trello.playing_list", "Now Playing")
	viper.SetDefault("trello.played_list", "Played")
	viper.SetDefault("trello.failed_list", "Failed")

	// 存储默认配置
	viper.SetDefault("storage.media_dir", "downloaded_media")
	viper.SetDefault("storage.segment_dir", "hls_segments")
	viper.SetDefault("storage.max_storage_mb", 5000)
	viper.SetDefault("storage.cleanup_interval_hours", 24)

	// 流处理默认配置
	viper.SetDefault("stream.ffmpeg_path", "ffmpeg")
	viper.SetDefault("stream.poll_interval_sec", 1)
	viper.SetDefault("stream.error_backoff_sec", 5)
	viper.SetDefault("stream.verify_delay_sec", 2)
	viper.SetDefault("stream.stop_grace_sec", 5)
	viper.SetDefault("stream.segment_time_sec", 6)
	viper.SetDefault("stream.playlist_size", 15)
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT密钥未设置")
	}
	if config.Storage.MaxStorageMB <= 0 {
		return fmt.Errorf("存储预算必须大于 0")
	}
	if config.Stream.PollIntervalSec <= 0 {
		return fmt.Errorf("队列轮询间隔必须大于 0")
	}
	if config.Stream.StopGraceSec <= 0 {
		return fmt.Errorf("进程退出宽限时间必须大于 0")
	}
	return nil
}
