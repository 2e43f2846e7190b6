package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort          = "3000"
	defaultDatabase      = "task-manager"
	defaultMongoURI      = "mongodb://localhost:27017"
	defaultCluster       = "cluster0.0b1vd.mongodb.net"
	defaultServiceName   = "task-manager-server"
	defaultTasksCacheTTL = 30 * time.Second
	defaultLoginLockTTL  = 10 * time.Second
	defaultShutdown      = 10 * time.Second
)

// DefaultAllowOrigins are the web clients allowed when CORS_ORIGINS is unset.
var DefaultAllowOrigins = []string{
	"http://localhost:5173",
	"https://task-manager-38.web.app",
	"https://task-manager-38.firebaseapp.com",
}

// Config is the process configuration.
type Config struct {
	Port            string
	MongoURI        string
	MongoDatabase   string
	ExplicitConnect bool
	AllowOrigins    []string
	// RedisConnectionString is optional; without it listings are not cached
	// and logins are not locked.
	RedisConnectionString string
	TasksCacheTTL         time.Duration
	LoginLockTTL          time.Duration
	ShutdownTimeout       time.Duration
	Debug                 bool
	LogFormat             string
	ServiceName           string
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, applying defaults for unset keys.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := Config{
		Port:                  defaultPort,
		MongoDatabase:         defaultDatabase,
		ExplicitConnect:       true,
		AllowOrigins:          DefaultAllowOrigins,
		RedisConnectionString: get("REDIS_CONNECTION_STRING"),
		TasksCacheTTL:         defaultTasksCacheTTL,
		LoginLockTTL:          defaultLoginLockTTL,
		ShutdownTimeout:       defaultShutdown,
		LogFormat:             strings.ToLower(get("LOG_FORMAT")),
		ServiceName:           defaultServiceName,
	}

	if v := get("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return Config{}, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = v
	}

	cfg.MongoURI = mongoURI(get)
	if v := get("MONGODB_DATABASE"); v != "" {
		cfg.MongoDatabase = v
	}

	var err error
	if cfg.ExplicitConnect, err = parseBool(get, "MONGODB_EXPLICIT_CONNECT", true); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = parseBool(get, "DEBUG", false); err != nil {
		return Config{}, err
	}

	if v := get("CORS_ORIGINS"); v != "" {
		cfg.AllowOrigins = splitList(v)
		if len(cfg.AllowOrigins) == 0 {
			return Config{}, fmt.Errorf("invalid CORS_ORIGINS %q", v)
		}
	}

	if cfg.TasksCacheTTL, err = parseDuration(get, "TASKS_CACHE_TTL", defaultTasksCacheTTL, true); err != nil {
		return Config{}, err
	}
	if cfg.LoginLockTTL, err = parseDuration(get, "LOGIN_LOCK_TTL", defaultLoginLockTTL, false); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = parseDuration(get, "SHUTDOWN_TIMEOUT", defaultShutdown, false); err != nil {
		return Config{}, err
	}

	if v := get("OTEL_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	return cfg, nil
}

// mongoURI prefers MONGODB_URI and otherwise builds an Atlas SRV URI from
// the credential variables.
func mongoURI(get func(string) string) string {
	if v := get("MONGODB_URI"); v != "" {
		return v
	}
	user, pass := get("MONGODB_USERNAME"), get("MONGODB_PASSWORD")
	if user == "" || pass == "" {
		return defaultMongoURI
	}
	cluster := get("MONGODB_CLUSTER")
	if cluster == "" {
		cluster = defaultCluster
	}
	return fmt.Sprintf("mongodb+srv://%s@%s/?retryWrites=true&w=majority&appName=Cluster0",
		url.UserPassword(user, pass).String(), cluster)
}

func parseBool(get func(string) string, key string, def bool) (bool, error) {
	v := get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

// parseDuration reads a Go duration. Zero is accepted only when allowZero
// is set; negative values never are.
func parseDuration(get func(string) string, key string, def time.Duration, allowZero bool) (time.Duration, error) {
	v := get(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s %q: must be greater than zero", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
