package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	// Config is the application configuration, loaded once at startup and
	// passed explicitly to every component that needs it.
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (default), TEST, QA, PROD
		Build    string
		AppName  string

		SecretKey        string // signs API tokens
		CronSecret       string // guards the cron trigger endpoint
		SendgridAPIKey   string
		RollbarToken     string
		DefaultFromEmail mail.Address

		Server   ServerConfig
		Database DatabaseConfig
		Seminar  SeminarConfig
	}

	ServerConfig struct {
		Host               string
		Addr               string
		DebugAddr          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	// SeminarConfig holds the timing and fine policy knobs.
	// All times of day are in Timezone.
	SeminarConfig struct {
		WindowStartHour   int
		WindowStartMinute int
		WindowEndHour     int
		WindowEndMinute   int
		SelectionHour     int
		SelectionMinute   int
		TriggerTolerance  time.Duration
		Timezone          string

		FineAmount     float64
		FineClassYears []string

		OpTimeout time.Duration // deadline for one scheduled selection run
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig loads the configuration from typed defaults, an optional
// config/.env.<env> file and environment variables (prefixed with ENV).
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Semina")
	v.SetDefault("secretKey", "f8z&5$03l)#s+7f-9qkuhx2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("cronSecret", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugAddr", ":8001")
	v.SetDefault("server.shutdownTimeout", 20*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "semina")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.disableTls", true)

	v.SetDefault("seminar.windowStartHour", 10)
	v.SetDefault("seminar.windowStartMinute", 30)
	v.SetDefault("seminar.windowEndHour", 13)
	v.SetDefault("seminar.windowEndMinute", 30)
	v.SetDefault("seminar.selectionHour", 13)
	v.SetDefault("seminar.selectionMinute", 30)
	v.SetDefault("seminar.triggerTolerance", 5*time.Minute)
	v.SetDefault("seminar.timezone", "Asia/Kolkata")
	v.SetDefault("seminar.fineAmount", 10.00)
	v.SetDefault("seminar.fineClassYears", []string{"II-IT", "III-IT"})
	v.SetDefault("seminar.opTimeout", 15*time.Second)

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing defaultFromEmail")
	}
	from.Name = v.GetString("appName")

	conf := &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		CronSecret:       v.GetString("cronSecret"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		DefaultFromEmail: *from,
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Addr:               v.GetString("server.addr"),
			DebugAddr:          v.GetString("server.debugAddr"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			DisableTLS:    v.GetBool("database.disableTls"),
		},
		Seminar: SeminarConfig{
			WindowStartHour:   v.GetInt("seminar.windowStartHour"),
			WindowStartMinute: v.GetInt("seminar.windowStartMinute"),
			WindowEndHour:     v.GetInt("seminar.windowEndHour"),
			WindowEndMinute:   v.GetInt("seminar.windowEndMinute"),
			SelectionHour:     v.GetInt("seminar.selectionHour"),
			SelectionMinute:   v.GetInt("seminar.selectionMinute"),
			TriggerTolerance:  v.GetDuration("seminar.triggerTolerance"),
			Timezone:          v.GetString("seminar.timezone"),
			FineAmount:        v.GetFloat64("seminar.fineAmount"),
			FineClassYears:    v.GetStringSlice("seminar.fineClassYears"),
			OpTimeout:         v.GetDuration("seminar.opTimeout"),
		},
	}
	if err = conf.check(); err != nil {
		return nil, err
	}
	return conf, nil
}

// check catches missing required settings at startup; these are not
// recoverable per-invocation.
func (c *Config) check() error {
	if !c.Debug {
		if c.SendgridAPIKey == "" {
			return errors.New("config: sendgridApiKey is required")
		}
		if c.CronSecret == "" {
			return errors.New("config: cronSecret is required")
		}
	}
	if _, err := time.LoadLocation(c.Seminar.Timezone); err != nil {
		return errors.Wrapf(err, "config: invalid seminar timezone %q", c.Seminar.Timezone)
	}
	if len(c.Seminar.FineClassYears) == 0 {
		return errors.New("config: seminar.fineClassYears cannot be empty")
	}
	return nil
}
