// Package config loads application configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/bytes"
	"github.com/pkg/errors"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable (see Load for names and defaults).
type Config struct {
	Env             string         // application environment (dev, test, prod)
	Port            string         // HTTP port to listen on
	DBDSN           string         // MySQL DSN, composed from DB_* parts when DB_DSN is unset
	JWTSecret       string         // secret used to sign JWTs
	JWTExpiration   time.Duration  // lifetime of issued access tokens
	AccessEnabled   bool           // global kill switch; every /api route answers 403 when false
	BcryptCost      int            // bcrypt cost for password hashing
	UploadDir       string         // directory where CSV uploads are spooled
	ImportMaxBytes  string         // body limit for CSV uploads, echo BodyLimit syntax ("10M")
	Location        *time.Location // timezone of the analytics "today" window
	RabbitMQURL     string         // AMQP broker URL; empty disables the attendance queue
	AttendanceQueue string         // queue carrying attendance events
	LogLevel        string         // debug, info, warn, error, off
	RequestTimeout  time.Duration  // per-request store timeout
}

// Load reads an optional .env file and then resolves every key through
// viper, so real environment variables always win over the file.  Only
// JWT_SECRET is required.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := env()
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("PORT", "3000")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "school_admin")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("ACCESS_ENABLED", false)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("UPLOAD_DIR", os.TempDir())
	v.SetDefault("IMPORT_MAX_BYTES", "10M")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("ATTENDANCE_QUEUE", "attendance.events")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REQUEST_TIMEOUT", "5s")

	cfg := Config{
		Env:             v.GetString("APP_ENV"),
		Port:            v.GetString("PORT"),
		DBDSN:           v.GetString("DB_DSN"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		AccessEnabled:   v.GetBool("ACCESS_ENABLED"),
		BcryptCost:      v.GetInt("BCRYPT_COST"),
		UploadDir:       v.GetString("UPLOAD_DIR"),
		ImportMaxBytes:  v.GetString("IMPORT_MAX_BYTES"),
		RabbitMQURL:     v.GetString("RABBITMQ_URL"),
		AttendanceQueue: v.GetString("ATTENDANCE_QUEUE"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("missing required env var: JWT_SECRET")
	}
	if cfg.DBDSN == "" {
		cfg.DBDSN = composeDSN(v.GetString("DB_USER"), v.GetString("DB_PASS"),
			v.GetString("DB_HOST"), v.GetString("DB_PORT"), v.GetString("DB_NAME"))
	}

	var err error
	if cfg.JWTExpiration, err = ParseExpiration(v.GetString("JWT_EXPIRATION")); err != nil {
		return Config{}, errors.Wrap(err, "JWT_EXPIRATION")
	}
	if cfg.RequestTimeout, err = time.ParseDuration(v.GetString("REQUEST_TIMEOUT")); err != nil {
		return Config{}, errors.Wrap(err, "REQUEST_TIMEOUT")
	}
	if cfg.Location, err = time.LoadLocation(v.GetString("TIMEZONE")); err != nil {
		return Config{}, errors.Wrap(err, "TIMEZONE")
	}
	if _, err = bytes.Parse(cfg.ImportMaxBytes); err != nil {
		return Config{}, errors.Wrap(err, "IMPORT_MAX_BYTES")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return Config{}, errors.Errorf("BCRYPT_COST out of range: %d", cfg.BcryptCost)
	}
	return cfg, nil
}

// ParseExpiration accepts a Go duration ("12h"), a day count ("7d") or a
// bare number of seconds ("3600").
func ParseExpiration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	var d time.Duration
	switch {
	case strings.HasSuffix(s, "d"):
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, errors.Errorf("invalid day count %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	default:
		if n, err := strconv.Atoi(s); err == nil {
			d = time.Duration(n) * time.Second
			break
		}
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	}
	if d <= 0 {
		return 0, errors.Errorf("duration must be positive, got %q", s)
	}
	return d, nil
}

// composeDSN builds a MySQL DSN from its parts.  parseTime maps DATETIME to
// time.Time and loc=UTC keeps stored times consistent.
func composeDSN(user, pass, host, port, name string) string {
	c := mysql.NewConfig()
	c.User = user
	c.Passwd = pass
	c.Net = "tcp"
	c.Addr = host + ":" + port
	c.DBName = name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// loadDotEnv loads path into the process environment when it exists.
// Variables that are already set are not overridden.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	return errors.Wrapf(godotenv.Load(path), "load %s", path)
}
