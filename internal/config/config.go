package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	ArchiveBackend  string // fs|minio; empty disables the archive
	ArchivePath     string
	ArchiveCompress bool // zstd
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucket     string
	MinIOUseSSL     bool

	AuthHMACSecret  string
	EnableDevLogins bool // username==password logins for teacher/student

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string

	LogLevel  string
	LogFormat string // json|console
}

// Load reads the given dotenv files (".env" when none are named) into the
// process environment without overriding variables already set, then
// returns FromEnv. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	return Config{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		DBDriver:        envOr("DB_DRIVER", "sqlite"),
		DBDSN:           envOr("DB_DSN", ""),
		ArchiveBackend:  envOr("ARCHIVE_BACKEND", ""),
		ArchivePath:     envOr("ARCHIVE_PATH", "./data"),
		ArchiveCompress: envBool("ARCHIVE_COMPRESS", false),
		MinIOEndpoint:   envOr("MINIO_ENDPOINT", ""),
		MinIOAccessKey:  envOr("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:  envOr("MINIO_SECRET_KEY", ""),
		MinIOBucket:     envOr("MINIO_BUCKET", "coderunner-outcomes"),
		MinIOUseSSL:     envBool("MINIO_USE_SSL", false),
		AuthHMACSecret:  envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		EnableDevLogins: envBool("ENABLE_DEV_LOGINS", true),
		AdminUser:       envOr("ADMIN_USER", "admin"),
		AdminPassHash:   envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOrigins:     csvOr("CORS_ORIGINS", "http://localhost:3000"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
	}
}
func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
