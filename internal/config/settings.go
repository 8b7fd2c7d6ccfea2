package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Store-backed setting keys.
const (
	KeyCheckInterval    = "check_interval"
	KeyBuyThreshold     = "rpp_buy_threshold"
	KeySellThreshold    = "rpp_sell_threshold"
	KeyCooldownHours    = "signal_cooldown_hours"
	KeyPriceChangePct   = "price_change_threshold"
	KeyAdminUserID      = "admin_user_id"
	MinCheckIntervalSec = 60
)

var (
	ErrInvalidSetting = errors.New("invalid setting")
	ErrUnknownSetting = errors.New("unknown setting")
)

// Keys lists every setting that must be present in the store.
var Keys = []string{
	KeyCheckInterval,
	KeyBuyThreshold,
	KeySellThreshold,
	KeyCooldownHours,
	KeyPriceChangePct,
	KeyAdminUserID,
}

// Settings is a typed snapshot of the store-backed configuration, read once per pass.
type Settings struct {
	CheckInterval  time.Duration
	BuyThreshold   float64
	SellThreshold  float64
	CooldownHours  float64
	PriceChangePct float64
	AdminUserID    string
}

// DefaultSettings returns the seed values written on first start.
func DefaultSettings(adminUserID string) map[string]string {
	return map[string]string{
		KeyCheckInterval:  "900",
		KeyBuyThreshold:   "10",
		KeySellThreshold:  "90",
		KeyCooldownHours:  "24",
		KeyPriceChangePct: "5",
		KeyAdminUserID:    adminUserID,
	}
}

// SettingsReader is the read side of the config table.
type SettingsReader interface {
	GetConfig(ctx context.Context, key string) (string, error)
}

// LoadSettings reads and parses every key. A missing or malformed key is an error.
func LoadSettings(ctx context.Context, r SettingsReader) (Settings, error) {
	raw := make(map[string]string, len(Keys))
	for _, key := range Keys {
		v, err := r.GetConfig(ctx, key)
		if err != nil {
			return Settings{}, fmt.Errorf("load setting: %w", err)
		}
		if _, err := ValidateSetting(key, v); err != nil {
			return Settings{}, err
		}
		raw[key] = v
	}
	return ParseSettings(raw)
}

// ParseSettings converts validated raw values into Settings.
func ParseSettings(raw map[string]string) (Settings, error) {
	var s Settings
	secs, err := strconv.Atoi(raw[KeyCheckInterval])
	if err != nil {
		return s, fmt.Errorf("%s: %w", KeyCheckInterval, ErrInvalidSetting)
	}
	s.CheckInterval = time.Duration(secs) * time.Second
	floats := []struct {
		key string
		dst *float64
	}{
		{KeyBuyThreshold, &s.BuyThreshold},
		{KeySellThreshold, &s.SellThreshold},
		{KeyCooldownHours, &s.CooldownHours},
		{KeyPriceChangePct, &s.PriceChangePct},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(raw[f.key], 64)
		if err != nil {
			return s, fmt.Errorf("%s: %w", f.key, ErrInvalidSetting)
		}
		*f.dst = v
	}
	s.AdminUserID = raw[KeyAdminUserID]
	return s, nil
}

// ValidateSetting checks raw against the rules for key and returns its canonical string form.
func ValidateSetting(key, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	invalid := func(reason string) (string, error) {
		return "", fmt.Errorf("%s=%q %s: %w", key, raw, reason, ErrInvalidSetting)
	}

	switch key {
	case KeyCheckInterval:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return invalid("is not an integer number of seconds")
		}
		if n < MinCheckIntervalSec {
			return invalid(fmt.Sprintf("must be at least %d seconds", MinCheckIntervalSec))
		}
		return strconv.Itoa(n), nil
	case KeyBuyThreshold, KeySellThreshold:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return invalid("is not a number")
		}
		if v < 0 || v > 100 {
			return invalid("must be between 0 and 100")
		}
		return formatFloat(v), nil
	case KeyCooldownHours:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return invalid("is not a number")
		}
		if v < 0 {
			return invalid("must be 0 or greater")
		}
		return formatFloat(v), nil
	case KeyPriceChangePct:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return invalid("is not a number")
		}
		if v <= 0 {
			return invalid("must be greater than 0")
		}
		return formatFloat(v), nil
	case KeyAdminUserID:
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return invalid("is not a numeric user id")
		}
		return raw, nil
	default:
		return "", fmt.Errorf("%s: %w", key, ErrUnknownSetting)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
