// Package settings parses the engine's key/value configuration into a typed record.
//
// Settings are loaded fresh for every computation; nothing here caches.
package settings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/acolyte/internal/domain/model"
)

// Stored keys.
const (
	KeySecondMassBonus  = "enable_second_mass_bonus"
	KeySecondMassPoints = "points_second_mass"
	KeyMaxPointsPerDay  = "max_points_per_day"
	KeyCurrentSeasonID  = "current_season_id"
)

// Defaults applied when a key is absent or malformed.
const (
	DefaultSecondMassBonus  = true
	DefaultSecondMassPoints = 2
	DefaultMaxPointsPerDay  = 5
	DefaultCurrentSeasonID  = int64(1)
)

// Settings is the typed view of the configuration table.
type Settings struct {
	SecondMassBonus  bool
	SecondMassPoints int
	// MaxPointsPerDay of 0 disables the cap.
	MaxPointsPerDay int
	CurrentSeasonID int64

	// Defaulted lists keys that fell back to a default, sorted.
	Defaulted []string
}

// Source reads the raw configuration rows.
type Source interface {
	ConfigValues(ctx context.Context) (map[string]string, error)
}

// Defaults returns the settings used when the table is empty.
func Defaults() Settings {
	return Settings{
		SecondMassBonus:  DefaultSecondMassBonus,
		SecondMassPoints: DefaultSecondMassPoints,
		MaxPointsPerDay:  DefaultMaxPointsPerDay,
		CurrentSeasonID:  DefaultCurrentSeasonID,
	}
}

// Load reads and parses the configuration rows.
func Load(ctx context.Context, src Source) (Settings, error) {
	raw, err := src.ConfigValues(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("settings.load -> %w", err)
	}
	return Parse(raw), nil
}

// Parse converts raw values, falling back to defaults per key.
func Parse(raw map[string]string) Settings {
	s := Defaults()

	if v, ok := lookup(raw, KeySecondMassBonus); ok {
		if b, err := parseBool(v); err == nil {
			s.SecondMassBonus = b
		} else {
			s.Defaulted = append(s.Defaulted, KeySecondMassBonus)
		}
	} else {
		s.Defaulted = append(s.Defaulted, KeySecondMassBonus)
	}

	if n, ok := parseNonNegative(raw, KeySecondMassPoints); ok {
		s.SecondMassPoints = n
	} else {
		s.Defaulted = append(s.Defaulted, KeySecondMassPoints)
	}

	if n, ok := parseNonNegative(raw, KeyMaxPointsPerDay); ok {
		s.MaxPointsPerDay = n
	} else {
		s.Defaulted = append(s.Defaulted, KeyMaxPointsPerDay)
	}

	if v, ok := lookup(raw, KeyCurrentSeasonID); ok {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			s.CurrentSeasonID = id
		} else {
			s.Defaulted = append(s.Defaulted, KeyCurrentSeasonID)
		}
	} else {
		s.Defaulted = append(s.Defaulted, KeyCurrentSeasonID)
	}

	sort.Strings(s.Defaulted)
	return s
}

// IsDefaulted reports whether key fell back to its default.
func (s Settings) IsDefaulted(key string) bool {
	for _, k := range s.Defaulted {
		if k == key {
			return true
		}
	}
	return false
}

// Encode renders the settings back into stored form.
func (s Settings) Encode() map[string]string {
	bonus := "0"
	if s.SecondMassBonus {
		bonus = "1"
	}
	return map[string]string{
		KeySecondMassBonus:  bonus,
		KeySecondMassPoints: strconv.Itoa(s.SecondMassPoints),
		KeyMaxPointsPerDay:  strconv.Itoa(s.MaxPointsPerDay),
		KeyCurrentSeasonID:  strconv.FormatInt(s.CurrentSeasonID, 10),
	}
}

// Validate checks a partial update before it is written. Values are normalized in place.
func Validate(update map[string]string) error {
	for k, v := range update {
		v = strings.TrimSpace(v)
		switch k {
		case KeySecondMassBonus:
			b, err := parseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s must be a boolean", model.ErrValidation, k)
			}
			if b {
				update[k] = "1"
			} else {
				update[k] = "0"
			}
		case KeySecondMassPoints, KeyMaxPointsPerDay:
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: %s must be a non-negative integer", model.ErrValidation, k)
			}
			update[k] = strconv.Itoa(n)
		case KeyCurrentSeasonID:
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("%w: %s must be a positive integer", model.ErrValidation, k)
			}
			update[k] = strconv.FormatInt(id, 10)
		default:
			return fmt.Errorf("%w: unknown setting %q", model.ErrValidation, k)
		}
	}
	return nil
}

func lookup(raw map[string]string, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseNonNegative(raw map[string]string, key string) (int, bool) {
	v, ok := lookup(raw, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseBool accepts the forms admins have historically typed into the table.
func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", v)
}
