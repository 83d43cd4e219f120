package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const sameOrigin = "same-origin"

type (
	Config struct {
		Env      string
		Debug    bool
		TestMode bool
		AppName  string
		Build    string

		// AdminPath is where the separately hosted admin portal lives.
		// It is normalized by the auth package, not here.
		AdminPath     string
		PageSize      int
		ToastDuration time.Duration
		RollbarToken  string

		API    APIConfig
		Portal PortalConfig
		Redis  RedisConfig
		CLI    CLIConfig
	}

	APIConfig struct {
		Origin            string
		PathPrefix        string
		Timeout           time.Duration
		BackgroundTimeout time.Duration
	}

	PortalConfig struct {
		Addr            string
		Host            string
		PublicOrigin    string
		SessionCookie   string
		SecureCookie    bool
		SessionIdleTTL  time.Duration
		ShutdownTimeout time.Duration
	}

	RedisConfig struct {
		Addr      string
		Password  string
		DB        int
		OpTimeout time.Duration
	}

	CLIConfig struct {
		CredentialsFile string
	}
)

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if any) and the environment.
// Environment keys are prefixed by the upper-cased env name, e.g. DEV_API_ORIGIN or PROD_REDIS_ADDR.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "CEMS")
	v.SetDefault("build", "dev")
	v.SetDefault("adminPath", "/admin/")
	v.SetDefault("pageSize", 10)
	v.SetDefault("toastDuration", 4200*time.Millisecond)
	v.SetDefault("rollbarToken", "")

	v.SetDefault("api.origin", sameOrigin)
	v.SetDefault("api.pathPrefix", "/api")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.backgroundTimeout", 30*time.Second)

	v.SetDefault("portal.addr", ":8080")
	v.SetDefault("portal.publicOrigin", "http://127.0.0.1:8000")
	v.SetDefault("portal.sessionCookie", "cems_session")
	v.SetDefault("portal.secureCookie", false)
	v.SetDefault("portal.sessionIdleTTL", 12*time.Hour)
	v.SetDefault("portal.shutdownTimeout", 10*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.opTimeout", 3*time.Second)

	v.SetDefault("cli.credentialsFile", defaultCredentialsFile())

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:           env,
		Debug:         v.GetBool("debug"),
		TestMode:      v.GetBool("testMode"),
		AppName:       v.GetString("appName"),
		Build:         v.GetString("build"),
		AdminPath:     v.GetString("adminPath"),
		PageSize:      v.GetInt("pageSize"),
		ToastDuration: v.GetDuration("toastDuration"),
		RollbarToken:  v.GetString("rollbarToken"),
		API: APIConfig{
			Origin:            v.GetString("api.origin"),
			PathPrefix:        v.GetString("api.pathPrefix"),
			Timeout:           v.GetDuration("api.timeout"),
			BackgroundTimeout: v.GetDuration("api.backgroundTimeout"),
		},
		Portal: PortalConfig{
			Addr:            v.GetString("portal.addr"),
			PublicOrigin:    v.GetString("portal.publicOrigin"),
			SessionCookie:   v.GetString("portal.sessionCookie"),
			SecureCookie:    v.GetBool("portal.secureCookie"),
			SessionIdleTTL:  v.GetDuration("portal.sessionIdleTTL"),
			ShutdownTimeout: v.GetDuration("portal.shutdownTimeout"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("redis.addr"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			OpTimeout: v.GetDuration("redis.opTimeout"),
		},
		CLI: CLIConfig{
			CredentialsFile: v.GetString("cli.credentialsFile"),
		},
	}
	conf.Portal.Host, _ = os.Hostname()
	if conf.PageSize < 1 {
		conf.PageSize = 10
	}
	return conf
}

// APIOrigin resolves the backend origin: an explicit origin wins, otherwise
// requests go to the portal's own public origin.
func (c *Config) APIOrigin() string {
	origin := CleanString(c.API.Origin)
	if origin == "" || origin == sameOrigin {
		origin = CleanString(c.Portal.PublicOrigin)
	}
	if origin == "" {
		origin = "http://127.0.0.1:8000"
	}
	return strings.TrimRight(origin, "/")
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "cems", "credentials.json")
}
