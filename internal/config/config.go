package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

const EnvPrefix = "PRIME_"

type (
	Config struct {
		Token      string `env:"TOKEN,required"`
		LogLevel   int    `env:"LOG_LEVEL,default=4"`
		LogNoColor bool   `env:"LOG_NO_COLOR,default=false"`
		DotPath    string `env:"DOT_PATH,default=~/.prime"`

		Database     Database
		Guild        Guild
		Moderation   Moderation
		Vibe         Vibe
		Verification Verification
		LLM          LLM
		Metrics      Metrics
	}

	Database struct {
		Driver string `env:"DB_DRIVER,default=sqlite"`
		Path   string `env:"DB_PATH,default=prime.db"`
		DSN    string `env:"DB_DSN"`
	}

	Guild struct {
		AppealChannelID  string `env:"APPEAL_CHANNEL_ID"`
		ModLogChannelID  string `env:"MOD_LOG_CHANNEL_ID"`
		MutedRoleID      string `env:"MUTED_ROLE_ID"`
		UnverifiedRoleID string `env:"UNVERIFIED_ROLE_ID"`
		VerifiedRoleID   string `env:"VERIFIED_ROLE_ID"`
	}

	Moderation struct {
		AdminBypassMedia bool          `env:"ADMIN_BYPASS_MEDIA,default=true"`
		WarnAppeal       bool          `env:"WARN_APPEAL,default=true"`
		AIFailClosed     bool          `env:"AI_FAIL_CLOSED,default=false"`
		AITimeout        time.Duration `env:"AI_TIMEOUT,default=30s"`
		PurgeWindow      time.Duration `env:"PURGE_WINDOW,default=24h"`
		SpamWindow       time.Duration `env:"SPAM_WINDOW,default=5m"`
		MediaWindow      time.Duration `env:"MEDIA_WINDOW,default=1h"`
		TrackerSize      int           `env:"TRACKER_SIZE,default=10000"`
		MaxMediaBytes    int64         `env:"MAX_MEDIA_BYTES,default=26214400"`
		NoticeTTL        time.Duration `env:"NOTICE_TTL,default=15s"`
		RaidThreshold    int           `env:"RAID_THRESHOLD,default=5"`
		RaidWindow       time.Duration `env:"RAID_WINDOW,default=1m"`
		NewAccountAge    time.Duration `env:"NEW_ACCOUNT_AGE,default=168h"`
	}

	Vibe struct {
		Enabled  bool          `env:"VIBE_ENABLED,default=true"`
		Burst    int           `env:"VIBE_BURST,default=8"`
		Window   time.Duration `env:"VIBE_WINDOW,default=15s"`
		Cooldown time.Duration `env:"VIBE_COOLDOWN,default=3m"`
		History  int           `env:"VIBE_HISTORY,default=20"`
	}

	Verification struct {
		CaptchaTTL         time.Duration `env:"CAPTCHA_TTL,default=10m"`
		CaptchaMaxAttempts int           `env:"CAPTCHA_MAX_ATTEMPTS,default=3"`
		AccountAge         time.Duration `env:"VERIFY_ACCOUNT_AGE,default=720h"`
	}

	LLM struct {
		GeminiAPIKey string   `env:"GEMINI_API_KEY"`
		VisionModels []string `env:"VISION_MODELS,default=gemini-2.5-flash,gemini-3-flash-preview,gemini-2.5-flash-lite"`
		TextAPIKey   string   `env:"TEXT_API_KEY"`
		TextBaseURL  string   `env:"TEXT_API_URL,default=https://api.groq.com/openai/v1"`
		TextModel    string   `env:"TEXT_MODEL,default=llama-3.3-70b-versatile"`
		TextType     string   `env:"TEXT_API_TYPE,default=openai"`
	}

	Metrics struct {
		Addr string `env:"METRICS_ADDR,default=:2112"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

// Load reads the process environment once and caches the result.
func Load() (Config, error) {
	once.Do(func() {
		cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

// LoadWith resolves PRIME_ prefixed variables from the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, fmt.Errorf("expand dot path: %w", err)
	}
	cfg.DotPath = dotPath
	return cfg, nil
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
