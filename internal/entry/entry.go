// Package entry defines dew point config entries: the settings collected by
// the config flow, the options that override them, and their validation.
package entry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tkfj/hass-dewpoint/internal/dewpoint"
)

const DefaultName = "Dew Point"

const (
	SourceAPI  = "api"
	SourceFile = "file"
)

// sensorDomain is the only entity domain accepted for source entities.
const sensorDomain = "sensor"

var (
	ErrNotFound = errors.New("entry not found")
	ErrInvalid  = errors.New("invalid entry")
	ErrExists   = errors.New("entry already exists")
)

// Settings is the user-facing schema of both the config flow and the options flow.
type Settings struct {
	Name              string `json:"name,omitempty" yaml:"name"`
	TemperatureEntity string `json:"temperature_entity" yaml:"temperature_entity"`
	HumidityEntity    string `json:"humidity_entity" yaml:"humidity_entity"`
	Precision         *int   `json:"precision,omitempty" yaml:"precision"`
}

// Entry is a persisted config entry. Options, when set, replace Data.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Data      Settings  `json:"data"`
	Options   *Settings `json:"options,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Effective holds resolved settings with defaults applied.
type Effective struct {
	Name              string `json:"name"`
	TemperatureEntity string `json:"temperature_entity"`
	HumidityEntity    string `json:"humidity_entity"`
	Precision         int    `json:"precision"`
}

// Effective resolves the settings in use: each option field wins over the
// corresponding data field when it is set.
func (e Entry) Effective() Effective {
	out := Effective{
		Name:              e.Data.Name,
		TemperatureEntity: e.Data.TemperatureEntity,
		HumidityEntity:    e.Data.HumidityEntity,
		Precision:         dewpoint.DefaultPrecision,
	}
	if e.Data.Precision != nil {
		out.Precision = *e.Data.Precision
	}
	if o := e.Options; o != nil {
		if o.Name != "" {
			out.Name = o.Name
		}
		if o.TemperatureEntity != "" {
			out.TemperatureEntity = o.TemperatureEntity
		}
		if o.HumidityEntity != "" {
			out.HumidityEntity = o.HumidityEntity
		}
		if o.Precision != nil {
			out.Precision = *o.Precision
		}
	}
	if out.Name == "" {
		out.Name = DefaultName
	}
	return out
}

// UniqueID is the stable id of the sensor created for this entry.
func (e Entry) UniqueID() string {
	return e.ID + "_dewpoint"
}

// Normalize trims whitespace and applies defaults in place.
func (s *Settings) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.TemperatureEntity = strings.TrimSpace(s.TemperatureEntity)
	s.HumidityEntity = strings.TrimSpace(s.HumidityEntity)
	if s.Name == "" {
		s.Name = DefaultName
	}
	if s.Precision == nil {
		p := dewpoint.DefaultPrecision
		s.Precision = &p
	}
}

// Validate reports the first invalid field, wrapping ErrInvalid.
func (s Settings) Validate() error {
	if err := validateEntityID("temperature_entity", s.TemperatureEntity); err != nil {
		return err
	}
	if err := validateEntityID("humidity_entity", s.HumidityEntity); err != nil {
		return err
	}
	if s.Precision != nil {
		p := *s.Precision
		if p < dewpoint.MinPrecision || p > dewpoint.MaxPrecision {
			return fmt.Errorf("%w: precision %d out of range [%d, %d]", ErrInvalid, p, dewpoint.MinPrecision, dewpoint.MaxPrecision)
		}
	}
	return nil
}

// Title is the entry title derived from the settings.
func (s Settings) Title() string {
	if n := strings.TrimSpace(s.Name); n != "" {
		return n
	}
	return DefaultName
}

// Equal reports whether two settings resolve to the same values.
func (s Settings) Equal(o Settings) bool {
	a, b := s, o
	a.Normalize()
	b.Normalize()
	return a.Name == b.Name &&
		a.TemperatureEntity == b.TemperatureEntity &&
		a.HumidityEntity == b.HumidityEntity &&
		*a.Precision == *b.Precision
}

func validateEntityID(field, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, field)
	}
	domain, object, ok := strings.Cut(id, ".")
	if !ok || domain != sensorDomain || object == "" || strings.ContainsAny(object, "./ #+") {
		return fmt.Errorf("%w: %s %q must be a %s entity id", ErrInvalid, field, id, sensorDomain)
	}
	return nil
}

// IntPtr is a convenience for building Settings literals.
func IntPtr(v int) *int {
	return &v
}
