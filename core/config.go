package core

import (
	"log"
	"net"
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
		Address            string
		DebugHost          string
		Host               string
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
		NotifyConcurrency  int
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
		MaxOpenConns  int
	}

	Config struct {
		AppName         string
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		SendgridApiKey  string
		RollbarToken    string
		Server          ServerConfig
		Database        DatabaseConfig

		defaultFromEmail string
	}
)

// Address returns host:port of the database server.
func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// NewConfig loads the configuration of the current ENV (DEV by default) from the environment,
// after loading config/.env.<env> when it exists.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "Bando")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "u3!c1-g7l$0q+e@b4nd0-dev-k3y&9zr(x)w2v#p5n=dm")
	conf.SetDefault("defaultFromEmail", "Bando <noreply@localhost>")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("serverAddress", ":8000")
	conf.SetDefault("serverDebugHost", ":4000")
	conf.SetDefault("serverHost", "localhost")
	conf.SetDefault("jwtExpirationDelta", 24*time.Hour)
	conf.SetDefault("shutdownTimeout", 5*time.Second)
	conf.SetDefault("notifyConcurrency", 4)

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", "5432")
	conf.SetDefault("dbUser", "bando")
	conf.SetDefault("dbPassword", "")
	conf.SetDefault("dbAdminUser", "")
	conf.SetDefault("dbAdminPassword", "")
	conf.SetDefault("dbName", "bando")
	conf.SetDefault("dbDisableTLS", true)
	conf.SetDefault("dbMaxOpenConns", 10)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("dbEngine", "sqlite")
		conf.SetDefault("dbName", ":memory:")
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if root, ok := projectRoot(); ok {
		dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:          conf.GetString("appName"),
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		SecretKey:        conf.GetString("secretKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:            conf.GetString("serverAddress"),
			DebugHost:          conf.GetString("serverDebugHost"),
			Host:               conf.GetString("serverHost"),
			JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
			ShutdownTimeout:    conf.GetDuration("shutdownTimeout"),
			NotifyConcurrency:  conf.GetInt("notifyConcurrency"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetString("dbPort"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			Name:          conf.GetString("dbName"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
			MaxOpenConns:  conf.GetInt("dbMaxOpenConns"),
		},
	}
}

// projectRoot walks up from the working directory until it finds go.mod.
// go test runs from the package directory, so the root has to be looked up.
func projectRoot() (string, bool) {
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	curr := wd
	for {
		if fi, err := os.Stat(filepath.Join(curr, "go.mod")); err == nil && !fi.IsDir() {
			return curr, true
		}
		parent := filepath.Dir(curr)
		if parent == curr {
			return "", false
		}
		curr = parent
	}
}
