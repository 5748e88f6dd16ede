package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/validator"
)

type PostgresConfig struct {
	User               string        `validate:"required"`
	Password           string        `validate:"required"`
	Host               string        `validate:"required"`
	Database           string        `validate:"required"`
	MaxIdleConnections int           `validate:"required" mapstructure:"max_idle_connections"`
	MaxOpenConnections int           `validate:"required" mapstructure:"max_open_connections"`
	ConnectionTTL      time.Duration `validate:"required" mapstructure:"connection_ttl"`
	Port               int16         `validate:"required"`
}

type SlogConfig struct {
	Level int `mapstructure:"level"`
}

type GormLogConfig struct {
	Level        int  `mapstructure:"level"`
	TraceQueries bool `mapstructure:"trace_queries"`
}

type LoggingConfig struct {
	Gorm    GormLogConfig `mapstructure:"gorm"`
	App     SlogConfig    `mapstructure:"app"`
	UseOTLP bool          `mapstructure:"use_otlp"`
}

type WorkerConfig struct {
	Concurrency       int           `mapstructure:"concurrency"         validate:"min=1"`
	DispatchPerSecond float64       `mapstructure:"dispatch_per_second" validate:"gt=0"`
	PollInterval      time.Duration `mapstructure:"poll_interval"       validate:"required"`
	// Jobs held longer than this are redelivered to another worker
	LeaseDuration time.Duration `mapstructure:"lease_duration" validate:"required"`
}

// Leases are renewed three times per lease so one slow renewal does not lose the job
func (w WorkerConfig) HeartbeatInterval() time.Duration {
	return w.LeaseDuration / 3
}

type RetentionConfig struct {
	CompletedAge   time.Duration `mapstructure:"completed_age"`
	CompletedCount int           `mapstructure:"completed_count" validate:"min=0"`
	FailedAge      time.Duration `mapstructure:"failed_age"`
	FailedCount    int           `mapstructure:"failed_count"    validate:"min=0"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"  validate:"required"`
}

type QueueConfig struct {
	Retention   RetentionConfig `mapstructure:"retention"`
	MaxAttempts int             `mapstructure:"max_attempts" validate:"min=1"`
	BackoffBase time.Duration   `mapstructure:"backoff_base" validate:"required"`
}

type SubmissionsConfig struct {
	URL         string        `mapstructure:"url"          validate:"required,url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Concurrency int64         `mapstructure:"concurrency"  validate:"min=1"`
	Spacing     time.Duration `mapstructure:"spacing"      validate:"min=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"required"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"  validate:"required,gtefield=BackoffBase"`
	Timeout     time.Duration `mapstructure:"timeout"      validate:"required"`
	MetadataTTL time.Duration `mapstructure:"metadata_ttl"`
}

// Empty host disables redis. Dispatch limiting falls back to a per process bucket and
// problem metadata is not cached.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type S3ArchiveConfig struct {
	Endpoint        string `mapstructure:"endpoint"          validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"     validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`
	BucketName      string `mapstructure:"bucket_name"       validate:"required"`
	// Plain HTTP, for local minio
	Insecure bool `mapstructure:"insecure"`
}

type AzureArchiveConfig struct {
	AccountName string `mapstructure:"account_name" validate:"required"`
	AccountKey  string `mapstructure:"account_key"  validate:"required"`
	ServiceURL  string `mapstructure:"service_url"  validate:"required,url"`
	Container   string `mapstructure:"container"    validate:"required"`
}

const (
	ArchiveKindNone  = "none"
	ArchiveKindS3    = "s3"
	ArchiveKindAzure = "azure"
)

// Where failed jobs go before the retention sweep purges them
type ArchiveConfig struct {
	S3    *S3ArchiveConfig    `mapstructure:"s3"    validate:"required_if=Kind s3"`
	Azure *AzureArchiveConfig `mapstructure:"azure" validate:"required_if=Kind azure"`
	Kind  string              `mapstructure:"kind"  validate:"oneof=none s3 azure"`
}

type EvaluationConfig struct {
	// Canonical timezone of the submission platform, evaluation days are measured in it
	Timezone string `mapstructure:"timezone" validate:"required,timezone"`
}

type K8sConfig struct {
	Namespace string `mapstructure:"namespace"  validate:"required_if=Enabled true"`
	LeaseName string `mapstructure:"lease_name" validate:"required_if=Enabled true"`
	Enabled   bool   `mapstructure:"enabled"`
	InCluster bool   `mapstructure:"in_cluster"`
}

// See evaluator.example.yaml for an example config
type Config struct {
	Postgres             *PostgresConfig    `mapstructure:"postgres"               validate:"required"`
	Logging              *LoggingConfig     `mapstructure:"logging"                validate:"required"`
	Worker               *WorkerConfig      `mapstructure:"worker"                 validate:"required"`
	Queue                *QueueConfig       `mapstructure:"queue"                  validate:"required"`
	Submissions          *SubmissionsConfig `mapstructure:"submissions"            validate:"required"`
	Redis                *RedisConfig       `mapstructure:"redis"`
	Archive              *ArchiveConfig     `mapstructure:"archive"                validate:"required"`
	Evaluation           *EvaluationConfig  `mapstructure:"evaluation"             validate:"required"`
	K8s                  *K8sConfig         `mapstructure:"k8s"`
	ListenAddress        string             `mapstructure:"listen_address"         validate:"required"`
	GracefulShutdownSecs int64              `mapstructure:"graceful_shutdown_secs"`
}

const (
	AppLogLevel                string = "logging.app.level"
	ArchiveKind                string = "archive.kind"
	AzureArchiveAccountKey     string = "archive.azure.account_key"
	EnvPrefix                  string = "evaluator"
	EvaluationTimezone         string = "evaluation.timezone"
	GormLogLevel               string = "logging.gorm.level"
	GormTraceQueries           string = "logging.gorm.trace_queries"
	GracefulShutdownSecs       string = "graceful_shutdown_secs"
	K8sEnabled                 string = "k8s.enabled"
	K8sInCluster               string = "k8s.in_cluster"
	K8sLeaseName               string = "k8s.lease_name"
	K8sNamespace               string = "k8s.namespace"
	ListenAddress              string = "listen_address"
	PostgresConnectonTTL       string = "postgres.connection_ttl"
	PostgresDatabase           string = "postgres.database"
	PostgresHost               string = "postgres.host"
	PostgresMaxIdleConnections string = "postgres.max_idle_connections"
	PostgresMaxOpenConnections string = "postgres.max_open_connections"
	PostgresPassword           string = "postgres.password"
	PostgresPort               string = "postgres.port"
	PostgresUser               string = "postgres.user"
	QueueBackoffBase           string = "queue.backoff_base"
	QueueMaxAttempts           string = "queue.max_attempts"
	RedisDB                    string = "redis.db"
	RedisHost                  string = "redis.host"
	RedisPassword              string = "redis.password"
	RetentionCompletedAge      string = "queue.retention.completed_age"
	RetentionCompletedCount    string = "queue.retention.completed_count"
	RetentionFailedAge         string = "queue.retention.failed_age"
	RetentionFailedCount       string = "queue.retention.failed_count"
	RetentionSweepInterval     string = "queue.retention.sweep_interval"
	S3AccessKeyID              string = "archive.s3.access_key_id"
	S3SecretAccessKey          string = "archive.s3.secret_access_key" // #nosec
	SubmissionsBackoffBase     string = "submissions.backoff_base"
	SubmissionsBackoffMax      string = "submissions.backoff_max"
	SubmissionsConcurrency     string = "submissions.concurrency"
	SubmissionsMaxAttempts     string = "submissions.max_attempts"
	SubmissionsMetadataTTL     string = "submissions.metadata_ttl"
	SubmissionsSpacing         string = "submissions.spacing"
	SubmissionsTimeout         string = "submissions.timeout"
	SubmissionsURL             string = "submissions.url"
	SubmissionsUserAgent       string = "submissions.user_agent"
	UseOTLP                    string = "logging.use_otlp"
	WorkerConcurrency          string = "worker.concurrency"
	WorkerDispatchPerSecond    string = "worker.dispatch_per_second"
	WorkerLeaseDuration        string = "worker.lease_duration"
	WorkerPollInterval         string = "worker.poll_interval"
)

// workaround for https://github.com/spf13/viper/issues/761
// keys without defaults must be bound explicitly so env vars unmarshal into the nested struct
var boundEnv = []string{
	PostgresUser,
	PostgresPassword,
	PostgresDatabase,
	SubmissionsURL,
	RedisPassword,
	S3AccessKeyID,
	S3SecretAccessKey,
	"archive.s3.endpoint",
	"archive.s3.bucket_name",
	"archive.azure.account_name",
	AzureArchiveAccountKey,
	"archive.azure.service_url",
	"archive.azure.container",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(ListenAddress, "[::]:1323")
	v.SetDefault(GracefulShutdownSecs, 30)

	v.SetDefault(PostgresHost, "localhost")
	v.SetDefault(PostgresPort, 5432)
	v.SetDefault(PostgresMaxIdleConnections, 2)
	v.SetDefault(PostgresMaxOpenConnections, 10)
	v.SetDefault(PostgresConnectonTTL, 10*time.Minute)

	v.SetDefault(GormLogLevel, int(slog.LevelWarn))
	v.SetDefault(GormTraceQueries, false)
	v.SetDefault(AppLogLevel, int(slog.LevelInfo))
	v.SetDefault(UseOTLP, false)

	v.SetDefault(WorkerConcurrency, 10)
	v.SetDefault(WorkerDispatchPerSecond, 20)
	v.SetDefault(WorkerPollInterval, time.Second)
	// renewed while a job runs, so it only bounds how long a crashed worker holds a job
	v.SetDefault(WorkerLeaseDuration, 30*time.Second)

	v.SetDefault(QueueMaxAttempts, 3)
	v.SetDefault(QueueBackoffBase, 5*time.Second)
	v.SetDefault(RetentionCompletedAge, 24*time.Hour)
	v.SetDefault(RetentionCompletedCount, 1000)
	v.SetDefault(RetentionFailedAge, 7*24*time.Hour)
	v.SetDefault(RetentionFailedCount, 5000)
	v.SetDefault(RetentionSweepInterval, 5*time.Minute)

	v.SetDefault(SubmissionsUserAgent, "code-duel-evaluator")
	v.SetDefault(SubmissionsConcurrency, 3)
	v.SetDefault(SubmissionsSpacing, 500*time.Millisecond)
	v.SetDefault(SubmissionsMaxAttempts, 5)
	v.SetDefault(SubmissionsBackoffBase, time.Second)
	v.SetDefault(SubmissionsBackoffMax, time.Minute)
	v.SetDefault(SubmissionsTimeout, 30*time.Second)
	v.SetDefault(SubmissionsMetadataTTL, 7*24*time.Hour)

	v.SetDefault(RedisHost, "")
	v.SetDefault(RedisDB, 0)

	v.SetDefault(ArchiveKind, ArchiveKindNone)

	v.SetDefault(EvaluationTimezone, "UTC")

	v.SetDefault(K8sEnabled, false)
	v.SetDefault(K8sInCluster, true)
	v.SetDefault(K8sNamespace, "default")
	v.SetDefault(K8sLeaseName, "evaluator-retention")
}

// Reads config from evaluator.yaml in `paths` (defaults to /etc/evaluator and the working
// directory) overlaid with EVALUATOR_* env vars, then validates it
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("evaluator")
	if len(paths) == 0 {
		paths = []string{"/etc/evaluator/", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range boundEnv {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	setDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	valid := validator.Create()
	if err := valid.Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var (
	configReady = false
	config      *Config
)

// Process wide config, loaded once
func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return config, nil
	}
	logger.Logger.Info("loading config")

	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	config = cfg
	configReady = true
	return config, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Postgres.User),
		url.QueryEscape(c.Postgres.Password),
		c.Postgres.Host, c.Postgres.Port,
		url.QueryEscape(c.Postgres.Database),
	)
}

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Evaluation.Timezone)
}

func (c *Config) GracefulShutdown() time.Duration {
	return time.Duration(c.GracefulShutdownSecs) * time.Second
}
