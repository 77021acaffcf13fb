package services

import (
	"academyhub/config"
	"academyhub/database"
	"context"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusCritical = "critical"

	dependencyUp       = "up"
	dependencyDown     = "down"
	dependencyDisabled = "disabled"

	defaultServiceName = "AcademyHub API"
	defaultVersion     = "1.0.0"
	defaultProbeTime   = 1500 * time.Millisecond
)

// HealthService builds the /health report.
type HealthService struct {
	serviceName string
	version     string
	startTime   time.Time
	timeout     time.Duration
}

type HealthReport struct {
	Status        string             `json:"status"`
	Service       string             `json:"service"`
	Version       string             `json:"version"`
	Environment   string             `json:"environment"`
	Time          time.Time          `json:"time"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	UptimeHuman   string             `json:"uptime_human"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Pool          *PoolStats         `json:"pool,omitempty"`
	Flags         HealthFlags        `json:"flags"`
	System        HealthSystem       `json:"system"`
}

type DependencyStatus struct {
	Name      string                 `json:"name"`
	Status    string                 `json:"status"`
	LatencyMs int64                  `json:"latency_ms"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// PoolStats mirrors sql.DBStats.
type PoolStats struct {
	OpenConnections    int   `json:"open_connections"`
	InUse              int   `json:"in_use"`
	Idle               int   `json:"idle"`
	WaitCount          int64 `json:"wait_count"`
	WaitDurationMs     int64 `json:"wait_duration_ms"`
	MaxOpenConnections int   `json:"max_open_connections"`
}

type HealthFlags struct {
	SkipMigrate            bool `json:"skip_migrate"`
	UseRedisNotifications  bool `json:"use_redis_notifications"`
	AutoDeleteEmptyClasses bool `json:"auto_delete_empty_classes"`
	CronJobs               bool `json:"cron_jobs"`
}

type HealthSystem struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	HeapBytes  uint64 `json:"heap_bytes"`
}

func NewHealthService(serviceName, version string) *HealthService {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = defaultServiceName
	}
	if strings.TrimSpace(version) == "" {
		version = defaultVersion
	}
	return &HealthService{serviceName: serviceName, version: version, startTime: time.Now(), timeout: defaultProbeTime}
}

func (s *HealthService) SetStartTime(t time.Time) {
	if !t.IsZero() {
		s.startTime = t
	}
}

func (s *HealthService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Report probes the database and Redis within the service timeout.
func (s *HealthService) Report(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	uptime := time.Since(s.startTime)
	if uptime < 0 {
		uptime = 0
	}
	report := HealthReport{
		Status:        StatusOK,
		Service:       s.serviceName,
		Version:       s.version,
		Environment:   currentEnvironment(),
		Time:          time.Now().UTC(),
		UptimeSeconds: uptime.Seconds(),
		UptimeHuman:   humanizeDuration(uptime),
	}

	dbDep, pool, dbStatus := s.checkDatabase(ctx)
	redisDep, redisStatus := s.checkRedis(ctx)
	report.Dependencies = []DependencyStatus{dbDep, redisDep}
	report.Pool = pool
	report.Status = combineStatus(combineStatus(report.Status, dbStatus), redisStatus)
	report.Flags = collectFlags()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	report.System = HealthSystem{GoVersion: runtime.Version(), Goroutines: runtime.NumGoroutine(), HeapBytes: mem.HeapAlloc}
	return report
}

// HTTPStatusForOverall maps a report status to an HTTP code.
func HTTPStatusForOverall(status string) int {
	if status == StatusCritical {
		return 503
	}
	return 200
}

func databaseName() string {
	if config.AppConfig != nil && config.AppConfig.DBDriver == "mysql" {
		return "mysql"
	}
	return "postgres"
}

func (s *HealthService) checkDatabase(ctx context.Context) (DependencyStatus, *PoolStats, string) {
	dep := DependencyStatus{Name: databaseName()}
	if database.DB == nil {
		dep.Status = dependencyDown
		dep.Error = "database connection not initialised"
		return dep, nil, StatusCritical
	}
	sqlDB, err := database.DB.DB()
	if err != nil {
		dep.Status = dependencyDown
		dep.Error = fmt.Sprintf("sql DB handle error: %v", err)
		return dep, nil, StatusCritical
	}

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	dep.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = dependencyDown
		dep.Error = err.Error()
		return dep, nil, StatusCritical
	}

	dep.Status = dependencyUp
	if host := supabaseHost(); host != "" {
		dep.Details = map[string]interface{}{"supabase": host}
	}
	st := sqlDB.Stats()
	return dep, &PoolStats{
		OpenConnections:    st.OpenConnections,
		InUse:              st.InUse,
		Idle:               st.Idle,
		WaitCount:          st.WaitCount,
		WaitDurationMs:     st.WaitDuration.Milliseconds(),
		MaxOpenConnections: st.MaxOpenConnections,
	}, StatusOK
}

func supabaseHost() string {
	if config.AppConfig == nil || config.AppConfig.SupabaseURL == "" {
		return ""
	}
	u, err := url.Parse(config.AppConfig.SupabaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Redis is optional unless notifications are queued through it.
func (s *HealthService) checkRedis(ctx context.Context) (DependencyStatus, string) {
	dep := DependencyStatus{Name: "redis"}
	required := config.AppConfig != nil && config.AppConfig.UseRedisNotifications

	client := database.GetRedisClient()
	if client == nil {
		if required {
			dep.Status = dependencyDown
			dep.Error = "redis client not initialised"
			return dep, StatusDegraded
		}
		dep.Status = dependencyDisabled
		return dep, StatusOK
	}

	start := time.Now()
	err := client.Ping(ctx).Err()
	dep.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		dep.Status = dependencyDown
		dep.Error = err.Error()
		if required {
			return dep, StatusDegraded
		}
		return dep, StatusOK
	}
	dep.Status = dependencyUp
	dep.Details = map[string]interface{}{"address": client.Options().Addr}
	return dep, StatusOK
}

func collectFlags() HealthFlags {
	if config.AppConfig == nil {
		return HealthFlags{}
	}
	return HealthFlags{
		SkipMigrate:            config.AppConfig.SkipMigrate,
		UseRedisNotifications:  config.AppConfig.UseRedisNotifications,
		AutoDeleteEmptyClasses: config.AppConfig.AutoDeleteEmptyClasses,
		CronJobs:               config.AppConfig.EnableCronJobs,
	}
}

func currentEnvironment() string {
	if config.AppConfig == nil || strings.TrimSpace(config.AppConfig.AppEnv) == "" {
		return "unknown"
	}
	return config.AppConfig.AppEnv
}

func combineStatus(current, candidate string) string {
	order := map[string]int{StatusOK: 0, StatusDegraded: 1, StatusCritical: 2}
	if _, ok := order[current]; !ok {
		current = StatusOK
	}
	if v, ok := order[candidate]; ok && v > order[current] {
		return candidate
	}
	return current
}

func humanizeDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d %= 24 * time.Hour
	hours := d / time.Hour
	d %= time.Hour
	minutes := d / time.Minute
	seconds := (d % time.Minute) / time.Second

	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
