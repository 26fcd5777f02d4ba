package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Room     RoomConfig     `mapstructure:"room"`
	Game     GameConfig     `mapstructure:"game"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	// Driver 选择持久层实现: "gorm" 或 "sql"
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RoomConfig struct {
	MaxPlayers int `mapstructure:"max_players"`
	// IdleTimeoutSeconds > 0 时，超过该时长无任何消息的会话会被踢出。
	// 默认 0（关闭），只依赖传输层的断连检测。
	IdleTimeoutSeconds int `mapstructure:"idle_timeout_seconds"`
}

type GameConfig struct {
	GridSize            int     `mapstructure:"grid_size"`
	PrizeCount          int     `mapstructure:"prize_count"`
	PrizeMinAmount      int64   `mapstructure:"prize_min_amount"`
	PrizeMaxAmount      int64   `mapstructure:"prize_max_amount"`
	MiningIncrement     int     `mapstructure:"mining_increment"`
	MaxMiningProgress   int     `mapstructure:"max_mining_progress"`
	InteractionDistance float64 `mapstructure:"interaction_distance"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	// InitDataMaxAgeSeconds init data 有效期，0 表示不限
	InitDataMaxAgeSeconds int `mapstructure:"init_data_max_age_seconds"`
}

func setDefaults() {
	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9090")
	viper.SetDefault("database.driver", "gorm")
	viper.SetDefault("room.max_players", 4)
	viper.SetDefault("room.idle_timeout_seconds", 0)
	viper.SetDefault("game.grid_size", 100)
	viper.SetDefault("game.prize_count", 3)
	viper.SetDefault("game.prize_min_amount", 1)
	viper.SetDefault("game.prize_max_amount", 10)
	viper.SetDefault("game.mining_increment", 10)
	viper.SetDefault("game.max_mining_progress", 100)
	viper.SetDefault("game.interaction_distance", 2.0)
	viper.SetDefault("telegram.init_data_max_age_seconds", 86400)
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaults()
	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		// 没有配置文件时使用默认值
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
