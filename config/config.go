package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Query       QueryConfig       `yaml:"query"`
	Report      ReportConfig      `yaml:"report"`
	Log         LogConfig         `yaml:"log"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"` // 0 disables the response cache
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // sqlite or postgres
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogQueries             bool   `yaml:"log_queries"`
}

// StorageConfig controls where attachments live and which uploads are accepted.
type StorageConfig struct {
	UploadDir         string   `yaml:"upload_dir"`
	MaxFileSizeMB     int64    `yaml:"max_file_size_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// QueryConfig holds list and aggregate defaults.
type QueryConfig struct {
	AllowedPageSizes []int `yaml:"allowed_page_sizes"`
	DefaultPageSize  int   `yaml:"default_page_size"`
	TrendWindowDays  int   `yaml:"trend_window_days"`
	TopMachinesLimit int   `yaml:"top_machines_limit"`
	TopIssuesK       int   `yaml:"top_issues_k"`
}

// ReportConfig holds the export settings and the localized document labels.
type ReportConfig struct {
	ExportDir      string   `yaml:"export_dir"`
	FontPath       string   `yaml:"font_path"`
	BoldFontPath   string   `yaml:"bold_font_path"`
	FontFamily     string   `yaml:"font_family"`
	LogoPath       string   `yaml:"logo_path"`
	Titles         []string `yaml:"titles"`
	Subtitles      []string `yaml:"subtitles"`
	GeneratedLabel string   `yaml:"generated_label"`
	ByLabel        string   `yaml:"by_label"`
	Columns        []string `yaml:"columns"`
	SignatureLines []string `yaml:"signature_lines"`
}

// MaintenanceConfig controls the background janitor.
type MaintenanceConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"`
	ExportRetention time.Duration `yaml:"export_retention"`
	BackupDir       string        `yaml:"backup_dir"`
	BackupRetention time.Duration `yaml:"backup_retention"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	Output     string `yaml:"output"` // stdout, file or both
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

var (
	defaultAllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "pdf", "doc", "docx", "xls", "xlsx", "csv", "txt"}
	defaultPageSizes         = []int{10, 20, 50}
	defaultColumns           = []string{"Machine No.", "Inspector", "Date", "Comments", "Damage", "Recorded By", "Recorded At"}
)

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills every unset field.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "data/records.db"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 60
	}

	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "data/uploads"
	}
	if cfg.Storage.MaxFileSizeMB <= 0 {
		cfg.Storage.MaxFileSizeMB = 20
	}
	if len(cfg.Storage.AllowedExtensions) == 0 {
		cfg.Storage.AllowedExtensions = append([]string(nil), defaultAllowedExtensions...)
	}

	if len(cfg.Query.AllowedPageSizes) == 0 {
		cfg.Query.AllowedPageSizes = append([]int(nil), defaultPageSizes...)
	}
	if cfg.Query.DefaultPageSize <= 0 {
		cfg.Query.DefaultPageSize = 20
	}
	if cfg.Query.TrendWindowDays <= 0 {
		cfg.Query.TrendWindowDays = 30
	}
	if cfg.Query.TopMachinesLimit <= 0 {
		cfg.Query.TopMachinesLimit = 10
	}
	if cfg.Query.TopIssuesK <= 0 {
		cfg.Query.TopIssuesK = 5
	}

	if cfg.Report.ExportDir == "" {
		cfg.Report.ExportDir = "data/exports"
	}
	if cfg.Report.FontFamily == "" {
		cfg.Report.FontFamily = "Helvetica"
	}
	if len(cfg.Report.Titles) == 0 {
		cfg.Report.Titles = []string{"Vehicle Pre-Use Check"}
	}
	if cfg.Report.GeneratedLabel == "" {
		cfg.Report.GeneratedLabel = "Generated on"
	}
	if cfg.Report.ByLabel == "" {
		cfg.Report.ByLabel = "by"
	}
	if len(cfg.Report.Columns) != len(defaultColumns) {
		cfg.Report.Columns = append([]string(nil), defaultColumns...)
	}
	if len(cfg.Report.SignatureLines) == 0 {
		cfg.Report.SignatureLines = []string{
			"Inspector .................................................",
			"Date ............................................................",
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "logs/inspectd.log"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 30
	}

	if cfg.Maintenance.Interval <= 0 {
		cfg.Maintenance.Interval = 15 * time.Minute
	}
	if cfg.Maintenance.ExportRetention <= 0 {
		cfg.Maintenance.ExportRetention = time.Hour
	}
	if cfg.Maintenance.BackupDir == "" {
		cfg.Maintenance.BackupDir = "data/backups"
	}
	if cfg.Maintenance.BackupRetention <= 0 {
		cfg.Maintenance.BackupRetention = 7 * 24 * time.Hour
	}
}

// MaxFileSizeBytes returns the per-file upload limit in bytes.
func (s StorageConfig) MaxFileSizeBytes() int64 {
	return s.MaxFileSizeMB * 1024 * 1024
}
