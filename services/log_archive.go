package services

import (
	"academyhub/config"
	"academyhub/middleware"
	"academyhub/models"
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const minArchiveAgeDays = 7

// LogArchiveService moves cached activity logs into the database and ships
// old ones to S3 as zip files.
type LogArchiveService struct {
	db          *gorm.DB
	redisClient *redis.Client
	bucket      string
	awsConfig   aws.Config
	awsReady    bool
}

// ArchivedLog is the row format inside an archive.
type ArchivedLog struct {
	ID         string         `json:"id"`
	AcademyID  string         `json:"academy_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	UserEmail  string         `json:"user_email,omitempty"`
	UserRole   string         `json:"user_role,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	CreatedAt  time.Time      `json:"created_at"`
}

func NewLogArchiveService(db *gorm.DB, rc *redis.Client, cfg *config.Config) *LogArchiveService {
	svc := &LogArchiveService{db: db, redisClient: rc}
	if cfg == nil {
		return svc
	}
	svc.bucket = cfg.S3BucketName
	if cfg.AWSRegion == "" {
		return svc
	}
	awsConf, err := awscfg.LoadDefaultConfig(context.Background(), awscfg.WithRegion(cfg.AWSRegion))
	if err != nil {
		logrus.WithError(err).Warn("failed to load AWS config; log archives stay in the database")
		return svc
	}
	svc.awsConfig = awsConf
	svc.awsReady = true
	return svc
}

// Ready reports whether archives can be uploaded and downloaded.
func (las *LogArchiveService) Ready() bool { return las != nil && las.awsReady && las.bucket != "" }

// FlushCachedLogs writes queued Redis entries older than minAge to activity_logs.
// A zero minAge flushes everything.
func (las *LogArchiveService) FlushCachedLogs(ctx context.Context, minAge time.Duration) (int, error) {
	if las.redisClient == nil {
		return 0, errors.New("redis client not available")
	}
	cutoff := time.Now().Add(-minAge)
	keys, err := las.redisClient.ZRangeByScore(ctx, middleware.LogQueueKey, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", cutoff.Unix()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("read log queue: %w", err)
	}

	var flushed, failed int
	for _, key := range keys {
		raw, err := las.redisClient.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// expired before flush
				las.redisClient.ZRem(ctx, middleware.LogQueueKey, key)
			} else {
				failed++
			}
			continue
		}
		var entry models.ActivityLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logrus.WithError(err).WithField("key", key).Error("unreadable cached log")
			failed++
			continue
		}
		if err := las.db.WithContext(ctx).Create(&entry).Error; err != nil {
			logrus.WithError(err).WithField("key", key).Error("failed to persist cached log")
			failed++
			continue
		}
		pipe := las.redisClient.Pipeline()
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, middleware.LogQueueKey, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("failed to drop flushed log from cache")
		}
		flushed++
	}
	logrus.WithFields(logrus.Fields{"flushed": flushed, "failed": failed}).Info("cached activity logs flushed")
	return flushed, nil
}

// ArchiveOldLogs zips logs older than daysOld, uploads them and deletes the rows.
// It returns nil and no error when there is nothing to archive.
func (las *LogArchiveService) ArchiveOldLogs(ctx context.Context, daysOld int) (*models.LogArchive, error) {
	if daysOld < minArchiveAgeDays {
		return nil, fmt.Errorf("minimum archive age is %d days", minArchiveAgeDays)
	}
	if !las.awsReady || las.bucket == "" {
		return nil, errors.New("AWS not configured")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)

	logs, err := las.collect(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		logrus.Info("no activity logs to archive")
		return nil, nil
	}

	name := fmt.Sprintf("activity_logs_%s.zip", cutoff.Format("2006-01-02"))
	buf, err := buildLogZip(logs, name)
	if err != nil {
		return nil, fmt.Errorf("build archive: %w", err)
	}
	key := fmt.Sprintf("logs/archived/%d/%02d/%s", cutoff.Year(), cutoff.Month(), name)
	if err := las.upload(ctx, key, buf); err != nil {
		return nil, fmt.Errorf("upload archive: %w", err)
	}

	archive := &models.LogArchive{
		FileName:    name,
		S3Key:       key,
		StartDate:   logs[0].CreatedAt,
		EndDate:     cutoff,
		RecordCount: len(logs),
		FileSize:    int64(buf.Len()),
		Status:      "completed",
	}
	err = las.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_at < ?", cutoff).Delete(&models.ActivityLog{}).Error; err != nil {
			return err
		}
		return tx.Create(archive).Error
	})
	if err != nil {
		return nil, fmt.Errorf("record archive: %w", err)
	}
	logrus.WithFields(logrus.Fields{"s3_key": key, "records": len(logs)}).Info("activity logs archived")
	return archive, nil
}

func (las *LogArchiveService) collect(ctx context.Context, cutoff time.Time) ([]ArchivedLog, error) {
	const batch = 1000
	var out []ArchivedLog
	for offset := 0; ; offset += batch {
		var rows []models.ActivityLog
		if err := las.db.WithContext(ctx).Where("created_at < ?", cutoff).
			Order("created_at ASC").Limit(batch).Offset(offset).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("fetch logs: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		userIDs := make([]string, 0, len(rows))
		for _, r := range rows {
			if r.UserID != nil {
				userIDs = append(userIDs, *r.UserID)
			}
		}
		users := map[string]models.User{}
		if len(userIDs) > 0 {
			var list []models.User
			las.db.WithContext(ctx).Select("id", "email", "role").Where("id IN ?", uniqueStrings(userIDs)).Find(&list)
			for _, u := range list {
				users[u.ID] = u
			}
		}

		for _, r := range rows {
			a := ArchivedLog{
				ID:         r.ID,
				Action:     r.Action,
				Resource:   r.Resource,
				ResourceID: r.ResourceID,
				IPAddress:  r.IPAddress,
				UserAgent:  r.UserAgent,
				CreatedAt:  r.CreatedAt,
			}
			if r.AcademyID != nil {
				a.AcademyID = *r.AcademyID
			}
			if r.UserID != nil {
				a.UserID = *r.UserID
				if u, ok := users[*r.UserID]; ok {
					a.UserEmail, a.UserRole = u.Email, u.Role
				}
			}
			if len(r.Details) > 0 {
				_ = json.Unmarshal(r.Details, &a.Details)
			}
			out = append(out, a)
		}
		if len(rows) < batch {
			break
		}
	}
	return out, nil
}

// buildLogZip packs logs as JSON and CSV with a metadata file.
func buildLogZip(logs []ArchivedLog, fileName string) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	jf, err := zw.Create("activity_logs.json")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(jf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"export_date":    time.Now().UTC(),
		"record_count":   len(logs),
		"format_version": "1.0",
		"logs":           logs,
	}); err != nil {
		return nil, err
	}

	mf, err := zw.Create("metadata.json")
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(mf).Encode(map[string]any{
		"file_name":    fileName,
		"created_at":   time.Now().UTC(),
		"record_count": len(logs),
		"date_range":   map[string]any{"start": logs[0].CreatedAt, "end": logs[len(logs)-1].CreatedAt},
		"description":  "AcademyHub activity logs archive",
	}); err != nil {
		return nil, err
	}

	cf, err := zw.Create("activity_logs.csv")
	if err != nil {
		return nil, err
	}
	cw := csv.NewWriter(cf)
	_ = cw.Write([]string{"id", "academy_id", "user_id", "user_email", "role", "action", "resource", "resource_id", "ip_address", "user_agent", "created_at", "details"})
	for _, l := range logs {
		details := ""
		if l.Details != nil {
			if b, err := json.Marshal(l.Details); err == nil {
				details = string(b)
			}
		}
		_ = cw.Write([]string{
			l.ID, l.AcademyID, l.UserID, l.UserEmail, l.UserRole, l.Action, l.Resource, l.ResourceID,
			l.IPAddress, l.UserAgent, l.CreatedAt.Format(time.RFC3339), details,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (las *LogArchiveService) upload(ctx context.Context, key string, data *bytes.Buffer) error {
	client := s3.NewFromConfig(las.awsConfig)
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(las.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data.Bytes()),
		ContentType: aws.String("application/zip"),
	})
	return err
}

// ListArchives returns archive records, newest first.
func (las *LogArchiveService) ListArchives(ctx context.Context) ([]models.LogArchive, error) {
	var archives []models.LogArchive
	if err := las.db.WithContext(ctx).Order("created_at DESC").Find(&archives).Error; err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	return archives, nil
}

// Download streams one archive from S3. The caller closes the reader.
func (las *LogArchiveService) Download(ctx context.Context, id string) (io.ReadCloser, string, error) {
	var archive models.LogArchive
	if err := las.db.WithContext(ctx).Where("id = ?", id).First(&archive).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", gorm.ErrRecordNotFound
		}
		return nil, "", err
	}
	if !las.awsReady {
		return nil, "", errors.New("AWS not configured")
	}
	out, err := s3.NewFromConfig(las.awsConfig).GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(las.bucket),
		Key:    aws.String(archive.S3Key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("download archive: %w", err)
	}
	return out.Body, archive.FileName, nil
}
