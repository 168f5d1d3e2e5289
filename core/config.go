package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Address         string
		DebugAddress    string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		SessionCookie   string
		SessionTTL      time.Duration
		SecureCookies   bool
		AuthRateLimit   float64 // requests per second, per client IP
		AuthRateBurst   int
	}

	DatabaseConfig struct {
		URI            string // mongodb://… | postgres://… | memory://
		Name           string
		ConnectTimeout time.Duration
	}

	RedisConfig struct {
		URL string // empty: in-memory session registry
	}

	MailConfig struct {
		Provider       string // console | sendgrid | mailgun
		SendgridAPIKey string
		MailgunDomain  string
		MailgunAPIKey  string
		MailgunEU      bool
		FromName       string
		FromAddress    string
		TestRecipient  string
	}

	FormConfig struct {
		TemplatePath string
		Grade        string
		SchoolYear   string
	}

	SheetsConfig struct {
		SpreadsheetID    string
		CredentialsFile  string
		SheetName        string
		Schedule         string // cron spec; empty disables the scheduled sync
		RetryMaxAttempts int
		RetryDelay       time.Duration
	}

	Config struct {
		AppName         string
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Mail     MailConfig
		Form     FormConfig
		Sheets   SheetsConfig
	}
)

// DefaultFromEmail is the sender of every outgoing email.
func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.Mail.FromName, Address: c.Mail.FromAddress}
}

// NewConfig loads the configuration of the current ENV (DEV, TEST, QA or PROD).
// Values come from defaults, `config/.env.<env>` when present and env variables
// prefixed with the ENV name (e.g. `PROD_SECRETKEY`, `PROD_SERVER_ADDRESS`).
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
		v.SetDefault("server.secureCookies", true)
		v.SetDefault("mail.provider", "mailgun")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd, _ := os.Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	// deployment-level names kept for compatibility with existing environments
	_ = v.BindEnv("database.uri", env+"_DATABASE_URI", "MONGODB_URI")
	_ = v.BindEnv("mail.mailgunApiKey", env+"_MAIL_MAILGUNAPIKEY", "MG_API_KEY")
	_ = v.BindEnv("redis.url", env+"_REDIS_URL", "REDIS_URL")

	return loadConfig(v, env)
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("appName", "EnrollGSRP")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "k3v!9x2@gsrp-dev-only-secret#b8q+7m$w0z")
	v.SetDefault("frontendBaseUrl", "https://dpscd.enrollgsrp.com")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.sessionCookie", "gsrp_session")
	v.SetDefault("server.sessionTtl", 7*24*time.Hour)
	v.SetDefault("server.secureCookies", false)
	v.SetDefault("server.authRateLimit", 1.0)
	v.SetDefault("server.authRateBurst", 10)

	v.SetDefault("database.uri", "memory://")
	v.SetDefault("database.name", "gsrp")
	v.SetDefault("database.connectTimeout", 10*time.Second)

	v.SetDefault("redis.url", "")

	v.SetDefault("mail.provider", "console")
	v.SetDefault("mail.sendgridApiKey", "")
	v.SetDefault("mail.mailgunDomain", "email.enrollgsrp.com")
	v.SetDefault("mail.mailgunApiKey", "")
	v.SetDefault("mail.mailgunEu", false)
	v.SetDefault("mail.fromName", "Enroll GSRP")
	v.SetDefault("mail.fromAddress", "postmaster@email.enrollgsrp.com")
	v.SetDefault("mail.testRecipient", "")

	v.SetDefault("form.templatePath", "")
	v.SetDefault("form.grade", "PreK")
	v.SetDefault("form.schoolYear", "2025-26")

	v.SetDefault("sheets.spreadsheetId", "")
	v.SetDefault("sheets.credentialsFile", "")
	v.SetDefault("sheets.sheetName", "Applications")
	v.SetDefault("sheets.schedule", "")
	v.SetDefault("sheets.retryMaxAttempts", 3)
	v.SetDefault("sheets.retryDelay", 2*time.Second)
}

func loadConfig(v *viper.Viper, env string) *Config {
	return &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: strings.TrimRight(v.GetString("frontendBaseUrl"), "/"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugAddress:    v.GetString("server.debugAddress"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			SessionCookie:   v.GetString("server.sessionCookie"),
			SessionTTL:      v.GetDuration("server.sessionTtl"),
			SecureCookies:   v.GetBool("server.secureCookies"),
			AuthRateLimit:   v.GetFloat64("server.authRateLimit"),
			AuthRateBurst:   v.GetInt("server.authRateBurst"),
		},
		Database: DatabaseConfig{
			URI:            v.GetString("database.uri"),
			Name:           v.GetString("database.name"),
			ConnectTimeout: v.GetDuration("database.connectTimeout"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
		Mail: MailConfig{
			Provider:       strings.ToLower(v.GetString("mail.provider")),
			SendgridAPIKey: v.GetString("mail.sendgridApiKey"),
			MailgunDomain:  v.GetString("mail.mailgunDomain"),
			MailgunAPIKey:  v.GetString("mail.mailgunApiKey"),
			MailgunEU:      v.GetBool("mail.mailgunEu"),
			FromName:       v.GetString("mail.fromName"),
			FromAddress:    v.GetString("mail.fromAddress"),
			TestRecipient:  v.GetString("mail.testRecipient"),
		},
		Form: FormConfig{
			TemplatePath: v.GetString("form.templatePath"),
			Grade:        v.GetString("form.grade"),
			SchoolYear:   v.GetString("form.schoolYear"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:    v.GetString("sheets.spreadsheetId"),
			CredentialsFile:  v.GetString("sheets.credentialsFile"),
			SheetName:        v.GetString("sheets.sheetName"),
			Schedule:         v.GetString("sheets.schedule"),
			RetryMaxAttempts: v.GetInt("sheets.retryMaxAttempts"),
			RetryDelay:       v.GetDuration("sheets.retryDelay"),
		},
	}
}
