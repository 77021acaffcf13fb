package controllers

import (
	"academyhub/database"
	"academyhub/middleware"
	"academyhub/models"
	"academyhub/repository"
	"academyhub/services"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LogController serves activity logs and their S3 archives.
type LogController struct {
	Archive *services.LogArchiveService
}

func NewLogController(archive *services.LogArchiveService) *LogController {
	if archive == nil {
		archive = services.NewLogArchiveService(database.DB, database.GetRedisClient(), nil)
	}
	return &LogController{Archive: archive}
}

// GetLogs lists activity logs, newest first. start_date and end_date bound
// created_at inclusively.
func (lc *LogController) GetLogs(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "list logs", err)
	}
	opts, p := listOptions(c, "user_id", "action", "resource", "resource_id")
	q := repository.ActivityLogs(database.DB).Scoped(c.UserContext(), sc)
	for col, v := range opts.Filters {
		q = q.Where(col+" = ?", v)
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return badRequest(c, "start_date must be YYYY-MM-DD")
		}
		q = q.Where("created_at >= ?", t)
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return badRequest(c, "end_date must be YYYY-MM-DD")
		}
		q = q.Where("created_at < ?", t.AddDate(0, 0, 1))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return respondError(c, "list logs", err)
	}
	logs := make([]models.ActivityLog, 0)
	if !p.All {
		q = q.Offset((p.Page - 1) * p.Limit).Limit(p.Limit)
	}
	if err := q.Order("created_at DESC").Find(&logs).Error; err != nil {
		return respondError(c, "list logs", err)
	}
	return listResponse(c, "logs", logs, total, p)
}

func (lc *LogController) GetLog(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "get log", err)
	}
	entry, err := repository.ActivityLogs(database.DB).FindByID(c.UserContext(), sc, c.Params("id"))
	if err != nil {
		return respondError(c, "get log", err)
	}
	return c.JSON(fiber.Map{"log": entry})
}

type countRow struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// GetLogStats counts logs per action and per resource over the last ?days (30).
func (lc *LogController) GetLogStats(c *fiber.Ctx) error {
	sc, err := scope(c)
	if err != nil {
		return respondError(c, "log stats", err)
	}
	days, err := strconv.Atoi(c.Query("days", "30"))
	if err != nil || days < 1 {
		return badRequest(c, "days must be a positive integer")
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	ctx := c.UserContext()
	repo := repository.ActivityLogs(database.DB)

	var byAction, byResource []countRow
	if err := repo.Scoped(ctx, sc).Where("created_at >= ?", since).
		Select("action AS name, COUNT(*) AS count").Group("action").Order("count DESC").
		Scan(&byAction).Error; err != nil {
		return respondError(c, "log stats", err)
	}
	if err := repo.Scoped(ctx, sc).Where("created_at >= ?", since).
		Select("resource AS name, COUNT(*) AS count").Group("resource").Order("count DESC").
		Scan(&byResource).Error; err != nil {
		return respondError(c, "log stats", err)
	}
	var total int64
	for _, r := range byAction {
		total += r.Count
	}
	return c.JSON(fiber.Map{
		"days":        days,
		"total":       total,
		"by_action":   byAction,
		"by_resource": byResource,
	})
}

// FlushCachedLogs writes every Redis-buffered log into the database now.
func (lc *LogController) FlushCachedLogs(c *fiber.Ctx) error {
	n, err := lc.Archive.FlushCachedLogs(c.UserContext(), 0)
	if err != nil {
		return respondError(c, "flush cached logs", err)
	}

	middleware.LogActivity(c, "FLUSH", "activity_logs", "", fiber.Map{"flushed": n})
	return c.JSON(fiber.Map{
		"message": "Cached logs flushed",
		"flushed": n,
	})
}

// ArchiveLogs ships logs older than ?days to S3 and removes them.
func (lc *LogController) ArchiveLogs(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days", "90"))
	if err != nil || days < 7 {
		return badRequest(c, "days must be an integer of at least 7")
	}
	archive, err := lc.Archive.ArchiveOldLogs(c.UserContext(), days)
	if err != nil {
		if !lc.Archive.Ready() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Log archiving is not configured"})
		}
		return respondError(c, "archive logs", err)
	}
	if archive == nil {
		return c.JSON(fiber.Map{"message": "No logs to archive"})
	}

	middleware.LogActivity(c, "ARCHIVE", "activity_logs", archive.ID, fiber.Map{
		"records": archive.RecordCount,
		"s3_key":  archive.S3Key,
	})
	return c.JSON(fiber.Map{
		"message": "Logs archived successfully",
		"archive": archive,
	})
}

func (lc *LogController) ListArchives(c *fiber.Ctx) error {
	archives, err := lc.Archive.ListArchives(c.UserContext())
	if err != nil {
		return respondError(c, "list archives", err)
	}
	return c.JSON(fiber.Map{"archives": archives})
}

// DownloadArchive streams the zip straight from S3.
func (lc *LogController) DownloadArchive(c *fiber.Ctx) error {
	if !lc.Archive.Ready() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Log archiving is not configured"})
	}
	body, name, err := lc.Archive.Download(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, "download archive", err)
	}
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, "application/zip")
	return c.SendStream(body)
}
