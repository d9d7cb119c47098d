package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/logger"
)

var (
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "purshottam-transport",
	Short: "Purshottam Transport ERP",
	Long:  `Back office for users, approvals, audit trail and the vehicle registry.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads config.yml from path, lets ENV_* variables override it
// and validates the result. A missing file is fine when the environment
// carries everything.
func loadConfig(path string) (*internal.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	return &cfg, nil
}

// bindEnvKeys registers every key so Unmarshal sees env-only values;
// AutomaticEnv alone only covers keys already present in the file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"env", "timezone",
		"http_server.port", "http_server.base_url", "http_server.read_header_timeout", "http_server.read_timeout",
		"http_server.idle_timeout", "http_server.write_timeout", "http_server.max_upload_bytes",
		"http_server.allowed_origins",
		"database.driver", "database.source", "database.max_open_conns", "database.max_idle_conns",
		"database.conn_max_lifetime", "database.conn_max_idle_time",
		"security.access_token_secret", "security.refresh_token_secret", "security.access_token_duration",
		"security.refresh_token_duration", "security.bcrypt_cost", "security.otp_ttl",
		"redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.queue_key",
		"mail.transport", "mail.host", "mail.port", "mail.username", "mail.password", "mail.from",
		"mail.send_timeout", "mail.workers", "mail.queue_size",
		"storage.type", "storage.local_dir", "storage.s3.bucket", "storage.s3.region", "storage.s3.endpoint",
		"storage.s3.access_key_id", "storage.s3.secret_access_key", "storage.s3.session_token",
		"storage.s3.prefix", "storage.s3.force_path_style",
		"observability.metrics.enabled", "observability.metrics.path", "observability.metrics.namespace",
		"observability.logging.level", "observability.logging.format",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

func initLogger(cfg *internal.Config) {
	logger.Init(cfg.Env,
		logger.WithLevel(cfg.Observability.Logging.Level),
		logger.WithFormat(cfg.Observability.Logging.Format),
	)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(workerCmd)
}
