package storage

import (
	"academyhub/config"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrFileTypeRejected = errors.New("file type not allowed")
)

// FileStore keeps uploaded files and returns their public URL.
type FileStore interface {
	Upload(ctx context.Context, file *multipart.FileHeader, folder, academyID string) (string, error)
	Delete(ctx context.Context, fileURL string) error
}

type StorageService struct {
	s3Client *s3.S3
	bucket   string
	region   string
	maxSize  int64
	allowed  []string
	now      func() time.Time
}

// NewStorageService builds an S3 store from the application config.
func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg == nil || cfg.AWSRegion == "" || cfg.S3BucketName == "" {
		return nil, errors.New("S3 storage is not configured")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &StorageService{
		s3Client: s3.New(sess),
		bucket:   cfg.S3BucketName,
		region:   cfg.AWSRegion,
		maxSize:  cfg.MaxFileSize,
		allowed:  splitExtensions(cfg.AllowedExtensions),
		now:      time.Now,
	}, nil
}

func splitExtensions(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			out = append(out, "."+strings.TrimPrefix(e, "."))
		}
	}
	return out
}

// ObjectKey lays files out as folder/academy/yyyy/mm/dd/uuid.ext.
func ObjectKey(folder, academyID, filename string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%s/%d/%02d/%02d/%s%s", folder, academyID, at.Year(), at.Month(), at.Day(), uuid.NewString(), ext)
}

// CheckFile applies size and extension limits. Zero limits are not enforced.
func CheckFile(file *multipart.FileHeader, maxSize int64, allowed []string) error {
	if maxSize > 0 && file.Size > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, file.Size, maxSize)
	}
	if len(allowed) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrFileTypeRejected, ext)
}

func (s *StorageService) Upload(ctx context.Context, file *multipart.FileHeader, folder, academyID string) (string, error) {
	if err := CheckFile(file, s.maxSize, s.allowed); err != nil {
		return "", err
	}
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	key := ObjectKey(folder, academyID, file.Filename, s.now())
	_, err = s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType(filepath.Ext(file.Filename))),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

func (s *StorageService) Delete(ctx context.Context, fileURL string) error {
	key := KeyFromURL(fileURL)
	if key == "" {
		return fmt.Errorf("invalid file URL")
	}
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// ContentType maps an extension (with or without dot) to a MIME type.
func ContentType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// KeyFromURL extracts the object key from a public S3 URL.
func KeyFromURL(url string) string {
	parts := strings.SplitN(url, ".amazonaws.com/", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
