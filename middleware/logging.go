package middleware

import (
	"academyhub/database"
	"academyhub/models"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// LogQueueKey is the Redis sorted set of cached activity log keys.
const LogQueueKey = "logs:queue"

const activityLoggedKey = "activity_logged"

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"duration":   time.Since(start).String(),
			"ip":         c.IP(),
			"user_agent": c.Get("User-Agent"),
		}
		if rid, ok := c.Locals("requestid").(string); ok {
			fields["request_id"] = rid
		}
		if claims, ok := c.Locals("claims").(*Claims); ok {
			fields["user_id"] = claims.UserID
			fields["academy_id"] = claims.AcademyID
		}
		logrus.WithFields(fields).Info("HTTP Request")

		return err
	}
}

// RequestContext bounds the request's user context with a timeout so every
// repository call made with c.UserContext() is cancelled on slow queries.
func RequestContext(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// LogActivity records an audit entry for the current request. It is cached in
// Redis and flushed later; without Redis it is written straight to the database.
func LogActivity(c *fiber.Ctx, action, resource, resourceID string, details interface{}) {
	c.Locals(activityLoggedKey, true)

	entry := models.ActivityLog{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  c.IP(),
		UserAgent:  c.Get("User-Agent"),
	}
	entry.CreatedAt = time.Now().UTC()
	if claims, ok := c.Locals("claims").(*Claims); ok {
		uid := claims.UserID
		entry.UserID = &uid
		if claims.AcademyID != "" {
			aid := claims.AcademyID
			entry.AcademyID = &aid
		}
	}

	meta := map[string]interface{}{
		"details":        details,
		"integrity_hash": integrityHash(entry),
		"method":         c.Method(),
		"path":           c.Path(),
		"status_code":    c.Response().StatusCode(),
		"forwarded_for":  c.Get("X-Forwarded-For"),
	}
	if rid, ok := c.Locals("requestid").(string); ok {
		meta["request_id"] = rid
	}
	if b, err := json.Marshal(meta); err == nil {
		entry.Details = b
	}

	db := database.DB
	go func(al models.ActivityLog) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in LogActivity goroutine")
			}
		}()

		if err := cacheActivityLog(al); err != nil {
			if db == nil {
				logrus.Error("database.DB is nil; cannot save activity log")
				return
			}
			if dbErr := db.Create(&al).Error; dbErr != nil {
				logrus.WithError(dbErr).Error("Failed to save activity log to database")
			}
		}
	}(entry)
}

// integrityHash fingerprints the immutable parts of an entry for tamper detection.
func integrityHash(al models.ActivityLog) string {
	uid := ""
	if al.UserID != nil {
		uid = *al.UserID
	}
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		uid, al.Action, al.Resource, al.ResourceID, al.IPAddress, al.CreatedAt.Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// cacheActivityLog stores the entry in Redis with a 24 hour TTL.
func cacheActivityLog(al models.ActivityLog) (err error) {
	rc := database.GetRedisClient()
	if rc == nil {
		return fmt.Errorf("redis client is nil")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("redis panic: %v", r)
		}
	}()

	data, err := json.Marshal(al)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}

	uid := "system"
	if al.UserID != nil {
		uid = *al.UserID
	}
	ctx := context.Background()
	key := fmt.Sprintf("log:%s:%s:%d", uid, al.Action, time.Now().UnixNano())
	if err := rc.Set(ctx, key, data, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to cache log: %w", err)
	}
	if err := rc.ZAdd(ctx, LogQueueKey, &redis.Z{Score: float64(time.Now().Unix()), Member: key}).Err(); err != nil {
		logrus.WithError(err).Error("Failed to add log to processing queue")
	}
	return nil
}

// LogActivityMiddleware audits successful mutating requests whose handler did
// not already call LogActivity.
func LogActivityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || strings.Contains(c.Path(), "/auth/") {
			return c.Next()
		}

		err := c.Next()

		var action string
		switch c.Method() {
		case fiber.MethodPost:
			action = "CREATE"
		case fiber.MethodPut, fiber.MethodPatch:
			action = "UPDATE"
		case fiber.MethodDelete:
			action = "DELETE"
		default:
			return err
		}

		if logged, _ := c.Locals(activityLoggedKey).(bool); logged {
			return err
		}
		if err != nil || c.Response().StatusCode() >= 400 {
			return err
		}

		// /api/<resource>/<id>/...
		parts := strings.Split(strings.Trim(c.Path(), "/"), "/")
		var resource, resourceID string
		if len(parts) >= 2 {
			resource = parts[1]
		}
		if len(parts) >= 3 {
			resourceID = parts[2]
		}
		LogActivity(c, action, resource, resourceID, nil)
		return err
	}
}
