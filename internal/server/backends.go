package server

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"samudra-ledger/registry-backend/internal/config"
	"samudra-ledger/registry-backend/internal/notifications"
	"samudra-ledger/registry-backend/internal/notifications/channels"
	"samudra-ledger/registry-backend/pkg/kvstore"
	"samudra-ledger/registry-backend/pkg/storage"
)

// loadAWSConfig uses static keys when configured, otherwise the default
// credential chain.
func loadAWSConfig(ctx context.Context, region string, creds config.AWSCredentials) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// openStore connects the key-value backend named by cfg.Storage.Backend.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (kvstore.Store, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.Storage.Database.GetDatabaseURL()), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Storage.Database.MaxConnections)
		sqlDB.SetMaxIdleConns(cfg.Storage.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Storage.Database.MaxLifetime)

		logger.Info("Connected to database",
			zap.String("host", cfg.Storage.Database.Host),
			zap.String("db_name", cfg.Storage.Database.DBName),
		)
		return kvstore.NewGormStore(db)

	case "dynamodb":
		awsCfg, err := loadAWSConfig(ctx, cfg.Storage.DynamoDB.Region, cfg.Security.AWS)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Storage.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Storage.DynamoDB.Endpoint)
			}
		})
		logger.Info("Using DynamoDB store", zap.String("table", cfg.Storage.DynamoDB.Table))
		return kvstore.NewDynamoStore(client, cfg.Storage.DynamoDB.Table), nil

	default:
		logger.Warn("Using in-memory store; data is lost on restart")
		return kvstore.NewMemoryStore(), nil
	}
}

// openFileStore returns where MRV evidence uploads go.
func openFileStore(ctx context.Context, cfg *config.Config) (storage.FileStore, error) {
	if cfg.Files.Backend != "s3" {
		return storage.NewMemoryFileStore(cfg.Server.PublicBaseURL + "/files"), nil
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.Files.Region, cfg.Security.AWS)
	if err != nil {
		return nil, err
	}
	return storage.NewS3FileStore(awsCfg, storage.S3Options{
		Bucket:         cfg.Files.Bucket,
		Endpoint:       cfg.Files.Endpoint,
		ForcePathStyle: cfg.Files.ForcePathStyle,
	}), nil
}

// openChannels builds the AWS delivery channels that are configured.
func openChannels(ctx context.Context, cfg *config.Config, users channels.Directory, logger *zap.Logger) ([]notifications.Publisher, error) {
	if cfg.Notify.SNSTopicARN == "" && cfg.Notify.EmailFrom == "" {
		return nil, nil
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.Notify.Region, cfg.Security.AWS)
	if err != nil {
		return nil, err
	}

	var out []notifications.Publisher
	if cfg.Notify.SNSTopicARN != "" {
		out = append(out, channels.NewTopicChannel(sns.NewFromConfig(awsCfg), cfg.Notify.SNSTopicARN, logger))
		logger.Info("SNS channel enabled", zap.String("topic", cfg.Notify.SNSTopicARN))
	}
	if cfg.Notify.EmailFrom != "" {
		out = append(out, channels.NewEmailChannel(sesv2.NewFromConfig(awsCfg), users, cfg.Notify.EmailFrom, logger))
		logger.Info("Email channel enabled", zap.String("from", cfg.Notify.EmailFrom))
	}
	return out, nil
}
