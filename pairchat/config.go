package pairchat

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config controls one chat session.
type Config struct {
	// URL is the base URL of the chat server, used by transports.
	URL    string
	TabID  string `validate:"required"`
	RoomID string `validate:"required"`
	// FirstUser marks the participant who opens the conversation.
	FirstUser bool

	MsgCountLow  int `validate:"gte=1"`
	MsgCountHigh int `validate:"gtefield=MsgCountLow"`

	// MaxWait is how long to wait for a partner; zero skips the waiting phase.
	// The wait times out as soon as MaxWait has fully elapsed.
	MaxWait time.Duration `validate:"gte=0"`
	// SlowPartnerAfter shows a warning while still waiting; zero disables it.
	SlowPartnerAfter time.Duration `validate:"gte=0"`
	WaitTick         time.Duration `validate:"gt=0"`

	PollTimeout time.Duration `validate:"gte=0"`
	// RetryDelay spaces retries after transport failures. Zero retries at once.
	RetryDelay time.Duration `validate:"gte=0"`
	// MalformedRetryDelay spaces polls after an empty or malformed snapshot.
	MalformedRetryDelay time.Duration `validate:"gte=0"`

	// Language is a BCP 47 tag for notices and labels.
	Language string `validate:"omitempty,bcp47_language_tag"`
	// Location is used for HH:MM:SS display; nil means UTC.
	Location *time.Location
	// AutoLink turns URLs in message bodies into links.
	AutoLink bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MsgCountLow:         5,
		MsgCountHigh:        10,
		WaitTick:            time.Second,
		PollTimeout:         60 * time.Second,
		MalformedRetryDelay: time.Second,
	}
}

var validate = validator.New()

// Validate checks the config.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return WrapError(ErrorInvalidConfig, "invalid config", err)
	}
	if c.MaxWait > 0 && c.SlowPartnerAfter >= c.MaxWait {
		return NewError(ErrorInvalidConfig, "SlowPartnerAfter must be shorter than MaxWait")
	}
	return nil
}

// Thresholds returns the message-count thresholds.
func (c Config) Thresholds() Thresholds {
	return Thresholds{Low: c.MsgCountLow, High: c.MsgCountHigh}
}

// NewTabID returns a fresh per-tab identifier.
func NewTabID() string { return uuid.NewString() }

// LoadConfig starts from DefaultConfig, loads the given .env files (missing
// files are ignored) and applies PAIRCHAT_* environment variables. A missing
// tab id is generated.
func LoadConfig(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	cfg.URL = os.Getenv("PAIRCHAT_URL")
	cfg.RoomID = os.Getenv("PAIRCHAT_ROOM")
	cfg.TabID = os.Getenv("PAIRCHAT_TAB_ID")
	cfg.Language = os.Getenv("PAIRCHAT_LANG")
	if cfg.TabID == "" {
		cfg.TabID = NewTabID()
	}

	var err error
	if cfg.FirstUser, err = envBool("PAIRCHAT_FIRST_USER", cfg.FirstUser); err != nil {
		return Config{}, err
	}
	if cfg.AutoLink, err = envBool("PAIRCHAT_AUTOLINK", cfg.AutoLink); err != nil {
		return Config{}, err
	}
	if cfg.MsgCountLow, err = envInt("PAIRCHAT_MSG_COUNT_LOW", cfg.MsgCountLow); err != nil {
		return Config{}, err
	}
	if cfg.MsgCountHigh, err = envInt("PAIRCHAT_MSG_COUNT_HIGH", cfg.MsgCountHigh); err != nil {
		return Config{}, err
	}
	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"PAIRCHAT_MAX_WAIT", &cfg.MaxWait},
		{"PAIRCHAT_SLOW_PARTNER_AFTER", &cfg.SlowPartnerAfter},
		{"PAIRCHAT_WAIT_TICK", &cfg.WaitTick},
		{"PAIRCHAT_POLL_TIMEOUT", &cfg.PollTimeout},
		{"PAIRCHAT_RETRY_DELAY", &cfg.RetryDelay},
	}
	for _, d := range durations {
		if *d.dst, err = envDuration(d.name, *d.dst); err != nil {
			return Config{}, err
		}
	}
	if tz := os.Getenv("PAIRCHAT_TZ"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PAIRCHAT_TZ: %w", err)
		}
		cfg.Location = loc
	}
	return cfg, nil
}

func envBool(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s (duration): %w", name, err)
	}
	return d, nil
}
