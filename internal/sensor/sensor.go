// Package sensor holds the derived dew point sensor: it watches its two source
// entities, recomputes on every change and pushes the result to a sink.
package sensor

import (
	"log/slog"
	"sync"

	"github.com/tkfj/hass-dewpoint/internal/dewpoint"
	"github.com/tkfj/hass-dewpoint/internal/entry"
)

const (
	DeviceClass = "temperature"
	StateClass  = "measurement"
)

// StateReader looks up the latest state of an upstream entity; nil means absent.
type StateReader interface {
	Get(entityID string) *dewpoint.Reading
}

// Observer delivers change notifications for a set of entities.
type Observer interface {
	Subscribe(entityIDs []string, fn func()) (unsubscribe func())
}

// Sink receives every recomputed sensor state.
type Sink interface {
	PublishState(s Snapshot) error
}

// Snapshot is the externally visible state of a dew point sensor.
type Snapshot struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	TemperatureEntity string   `json:"temperature_entity"`
	HumidityEntity    string   `json:"humidity_entity"`
	Available         bool     `json:"available"`
	Value             *float64 `json:"value"`
	State             string   `json:"state"`
	Unit              string   `json:"unit"`
	Precision         int      `json:"precision"`
}

// DewPoint is one derived sensor bound to one config entry.
type DewPoint struct {
	name       string
	uniqueID   string
	tempEntity string
	humEntity  string
	precision  int

	states   StateReader
	observer Observer
	sink     Sink
	logger   *slog.Logger

	mu     sync.Mutex
	result dewpoint.Result
	unsub  func()
}

// New builds the sensor for e. It does nothing until Attach.
func New(e entry.Entry, states StateReader, observer Observer, sink Sink, logger *slog.Logger) *DewPoint {
	if logger == nil {
		logger = slog.Default()
	}
	eff := e.Effective()
	return &DewPoint{
		name:       eff.Name,
		uniqueID:   e.UniqueID(),
		tempEntity: eff.TemperatureEntity,
		humEntity:  eff.HumidityEntity,
		precision:  dewpoint.ClampPrecision(eff.Precision),
		states:     states,
		observer:   observer,
		sink:       sink,
		logger:     logger.With("unique_id", e.UniqueID()),
	}
}

// Attach subscribes to both source entities and computes the initial state.
func (d *DewPoint) Attach() {
	d.mu.Lock()
	if d.unsub == nil {
		d.unsub = d.observer.Subscribe([]string{d.tempEntity, d.humEntity}, d.Recalculate)
	}
	d.mu.Unlock()

	d.logger.Info("sensor attached",
		"name", d.name,
		"temperature_entity", d.tempEntity,
		"humidity_entity", d.humEntity,
	)
	d.Recalculate()
}

// Detach releases the subscription. Further source changes are ignored.
func (d *DewPoint) Detach() {
	d.mu.Lock()
	unsub := d.unsub
	d.unsub = nil
	d.mu.Unlock()

	if unsub != nil {
		unsub()
		d.logger.Info("sensor detached")
	}
}

// Recalculate reads both sources, recomputes the dew point and publishes it.
// Calls are serialised so every publish reflects the snapshot it read.
// A detached sensor ignores calls, including change callbacks that were
// already dispatched when Detach ran.
func (d *DewPoint) Recalculate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsub == nil {
		return
	}

	temp := d.states.Get(d.tempEntity)
	hum := d.states.Get(d.humEntity)
	d.result = dewpoint.Calculate(temp, hum, d.precision)

	snap := d.snapshotLocked()
	if snap.Available {
		d.logger.Debug("dew point updated", "value", snap.State)
	} else {
		d.logger.Debug("dew point unavailable",
			"temperature_known", temp != nil,
			"humidity_known", hum != nil,
		)
	}

	if err := d.sink.PublishState(snap); err != nil {
		d.logger.Warn("publish dew point failed", "error", err)
	}
}

// Republish pushes the last computed state again without recomputing.
// It is a no-op once the sensor is detached.
func (d *DewPoint) Republish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsub == nil {
		return
	}
	if err := d.sink.PublishState(d.snapshotLocked()); err != nil {
		d.logger.Warn("republish dew point failed", "error", err)
	}
}

// Snapshot returns the current state.
func (d *DewPoint) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *DewPoint) snapshotLocked() Snapshot {
	s := Snapshot{
		Name:              d.name,
		UniqueID:          d.uniqueID,
		TemperatureEntity: d.tempEntity,
		HumidityEntity:    d.humEntity,
		Available:         d.result.Available,
		Unit:              dewpoint.UnitCelsius,
		Precision:         d.precision,
	}
	if d.result.Available {
		v := d.result.Value
		s.Value = &v
		s.State = d.result.Format()
	}
	return s
}
