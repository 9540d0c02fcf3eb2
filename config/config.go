// config/config.go
package config

import (
	"fmt"
	"time"

	"freshchain-ledger-server/internal/ledger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// --- sub-structs, mirroring config.yaml ---

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbName"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration string `mapstructure:"expiration"`
}

// TTL parses Expiration, defaulting to 24h.
func (c JWTConfig) TTL() time.Duration {
	d, err := time.ParseDuration(c.Expiration)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// AdminConfig is the account seeded for the ledger owner on first start.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Name     string `mapstructure:"name"`
	Password string `mapstructure:"password"`
}

// PolicyConfig mirrors ledger.Policy.
type PolicyConfig struct {
	RestrictSensorData bool `mapstructure:"restrictSensorData"`
	RestrictArrival    bool `mapstructure:"restrictArrival"`
}

// Ledger converts the binding into the ledger's own policy type.
func (p PolicyConfig) Ledger() ledger.Policy {
	return ledger.Policy{
		RestrictSensorData: p.RestrictSensorData,
		RestrictArrival:    p.RestrictArrival,
	}
}

type LedgerConfig struct {
	Owner  string       `mapstructure:"owner"`
	Policy PolicyConfig `mapstructure:"policy"`
}

type KafkaConfig struct {
	Broker string `mapstructure:"broker"`
	Topic  string `mapstructure:"topic"`
}

type RabbitMQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

type FabricConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ChannelName       string `mapstructure:"channelName"`
	ChaincodeName     string `mapstructure:"chaincodeName"`
	OrgName           string `mapstructure:"orgName"`
	UserName          string `mapstructure:"userName"`
	ConnectionProfile string `mapstructure:"connectionProfile"`
	UserCertPath      string `mapstructure:"userCertPath"`
	UserKeyDir        string `mapstructure:"userKeyDir"`
	WalletPath        string `mapstructure:"walletPath"`
}

// --- main Config ---

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	S3       S3Config       `mapstructure:"s3"`
	Fabric   FabricConfig   `mapstructure:"fabric"`
}

// OwnerAddress parses Ledger.Owner.
func (c Config) OwnerAddress() (ledger.Address, error) {
	return ledger.ParseAddress(c.Ledger.Owner)
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if _, err := c.OwnerAddress(); err != nil {
		return fmt.Errorf("ledger.owner: %w", err)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	return nil
}

// LoadConfig reads config.yaml from path, then overrides with environment variables.
// A .env file in the working directory is loaded first if present.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("mongo.dbName", "freshchain")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("ledger.policy.restrictSensorData", true)
	v.SetDefault("ledger.policy.restrictArrival", true)
	v.SetDefault("kafka.topic", "freshchain.events")
	v.SetDefault("rabbitmq.queue", "freshchain.events")
	v.SetDefault("fabric.walletPath", "wallet")

	v.AutomaticEnv()
	for key, env := range map[string]string{
		"server.port":              "SERVER_PORT",
		"mongo.uri":                "MONGO_URI",
		"mongo.dbName":             "MONGO_DBNAME",
		"jwt.secret":               "JWT_SECRET",
		"jwt.expiration":           "JWT_EXPIRATION",
		"admin.email":              "ADMIN_EMAIL",
		"admin.password":           "ADMIN_PASSWORD",
		"ledger.owner":             "LEDGER_OWNER",
		"kafka.broker":             "KAFKA_BROKER",
		"kafka.topic":              "KAFKA_TOPIC",
		"rabbitmq.url":             "RABBITMQ_URL",
		"rabbitmq.queue":           "RABBITMQ_QUEUE",
		"s3.bucket":                "S3_BUCKET",
		"s3.region":                "S3_REGION",
		"s3.accessKeyID":           "S3_ACCESS_KEY_ID",
		"s3.secretAccessKey":       "S3_SECRET_ACCESS_KEY",
		"s3.cloudFrontDomain":      "S3_CLOUDFRONT_DOMAIN",
		"fabric.enabled":           "FABRIC_ENABLED",
		"fabric.connectionProfile": "FABRIC_CONNECTION_PROFILE",
		"fabric.channelName":       "FABRIC_CHANNEL_NAME",
		"fabric.chaincodeName":     "FABRIC_CHAINCODE_NAME",
	} {
		if err = v.BindEnv(key, env); err != nil {
			return
		}
	}

	// A missing config file is fine; env vars alone may configure the server.
	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	err = config.Validate()
	return
}
