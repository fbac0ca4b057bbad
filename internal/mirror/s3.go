package mirror

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"imagegen-studio/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// KeyPrefix 镜像对象统一放在该前缀下
const KeyPrefix = "history"

// PutObjectAPI S3 客户端中镜像用到的部分，测试时可替换
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror 将历史图片副本上传到 S3 兼容的存储桶
type S3Mirror struct {
	client   PutObjectAPI
	bucket   string
	endpoint string
	region   string
	now      func() time.Time
}

// S3Config S3 镜像配置
type S3Config struct {
	Endpoint  string // 自定义端点，例如 oss-cn-hangzhou.aliyuncs.com；为空时使用 AWS
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

// NewFromConfig 从通用配置创建镜像；未启用时返回 nil
func NewFromConfig(cfg *common.Config) (*S3Mirror, error) {
	if !cfg.OSSMirrorEnabled {
		return nil, nil
	}
	return NewS3Mirror(S3Config{
		Endpoint:  cfg.OSSEndpoint,
		Region:    cfg.OSSRegion,
		AccessKey: cfg.OSSAccessKey,
		SecretKey: cfg.OSSSecretKey,
		Bucket:    cfg.OSSBucket,
	})
}

// NewS3Mirror 使用静态凭证创建 S3 镜像
func NewS3Mirror(cfg S3Config) (*S3Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", cfg.Endpoint))
		}
	})

	return NewWithClient(client, cfg), nil
}

// NewWithClient 使用已有的 S3 客户端创建镜像
func NewWithClient(client PutObjectAPI, cfg S3Config) *S3Mirror {
	return &S3Mirror{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: cfg.Endpoint,
		region:   cfg.Region,
		now:      time.Now,
	}
}

// Upload 上传图片副本，返回对象的公开 URL
func (m *S3Mirror) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	key := m.objectKey(filename)

	common.WithFields(map[string]interface{}{
		"bucket":       m.bucket,
		"key":          key,
		"content_type": contentType,
		"size":         len(data),
	}).Debug("Mirroring image to bucket")

	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	url := m.objectURL(key)
	common.WithFields(map[string]interface{}{
		"bucket": m.bucket,
		"key":    key,
		"url":    url,
	}).Info("Image mirrored")
	return url, nil
}

// objectKey 生成对象键：history/yyyy-MM-dd/<uuid>-<filename>
func (m *S3Mirror) objectKey(filename string) string {
	day := m.now().Format("2006-01-02")
	return path.Join(KeyPrefix, day, uuid.NewString()+"-"+path.Base(filename))
}

// objectURL 构造对象的公开 URL（不带签名）
func (m *S3Mirror) objectURL(key string) string {
	if m.endpoint != "" {
		return fmt.Sprintf("https://%s.%s/%s", m.bucket, m.endpoint, key)
	}
	if m.region != "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.bucket, m.region, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", m.bucket, key)
}
