package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Storage drivers
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Config holds application configuration
type Config struct {
	Dir                 string
	SchedulesDir        string
	CalendarsDir        string
	IndexFile           string
	ConfigFile          string
	BackupDir           string
	DateFormat          string
	BackupRetentionDays int
	ColorOutput         bool
	LogFile             string
	LogLevel            string
	StorageDriver       string
	SQLitePath          string
	DefaultCalendar     string
	WorkingDays         string
}

var globalConfig *Config

// Init initializes the configuration from QSCHED_DIR (default ~/.qsched)
func Init() error {
	dir := os.Getenv("QSCHED_DIR")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(homeDir, ".qsched")
	}

	cfg, err := Load(dir)
	if err != nil {
		return err
	}
	globalConfig = cfg
	return nil
}

// Load builds a Config rooted at dir, creating the directory layout and a
// default config file when missing.
func Load(dir string) (*Config, error) {
	schedulesDir := filepath.Join(dir, "schedules")
	calendarsDir := filepath.Join(dir, "calendars")
	backupDir := filepath.Join(dir, "backups")

	for _, d := range []string{schedulesDir, calendarsDir, backupDir} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return nil, err
		}
	}

	// Set up viper for config file
	configFile := filepath.Join(dir, "config")
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("properties")

	// Set defaults
	v.SetDefault("date_format", "2006-01-02")
	v.SetDefault("backup_retention_days", 30)
	v.SetDefault("color_output", true)
	v.SetDefault("log_level", "info")
	v.BindEnv("log_level", "QSCHED_LOG_LEVEL")
	v.SetDefault("log_file", filepath.Join(dir, "qsched.log"))
	v.BindEnv("log_file", "QSCHED_LOG_FILE")
	v.SetDefault("storage_driver", DriverJSON)
	v.BindEnv("storage_driver", "QSCHED_STORAGE")
	v.SetDefault("sqlite_path", filepath.Join(dir, "qsched.db"))
	v.SetDefault("default_calendar", "standard")
	v.SetDefault("working_days", "1,2,3,4,5")

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file doesn't exist, create it with defaults
		if _, statErr := os.Stat(configFile); os.IsNotExist(statErr) {
			v.SafeWriteConfigAs(configFile)
		}
	}

	return &Config{
		Dir:                 dir,
		SchedulesDir:        schedulesDir,
		CalendarsDir:        calendarsDir,
		IndexFile:           filepath.Join(dir, "index.json"),
		ConfigFile:          configFile,
		BackupDir:           backupDir,
		DateFormat:          v.GetString("date_format"),
		BackupRetentionDays: v.GetInt("backup_retention_days"),
		ColorOutput:         v.GetBool("color_output"),
		LogFile:             firstNonEmpty(v.GetString("log_file"), filepath.Join(dir, "qsched.log")),
		LogLevel:            firstNonEmpty(v.GetString("log_level"), "info"),
		StorageDriver:       strings.ToLower(firstNonEmpty(v.GetString("storage_driver"), DriverJSON)),
		SQLitePath:          firstNonEmpty(v.GetString("sqlite_path"), filepath.Join(dir, "qsched.db")),
		DefaultCalendar:     v.GetString("default_calendar"),
		WorkingDays:         firstNonEmpty(v.GetString("working_days"), "1,2,3,4,5"),
	}, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		if err := Init(); err != nil {
			panic(err)
		}
	}
	return globalConfig
}

// Set replaces the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}

// UsesSQLite reports whether schedules live in the SQLite database
func (c *Config) UsesSQLite() bool {
	return c.StorageDriver == DriverSQLite
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
