// Package manager owns the lifecycle of config entries: it persists them,
// builds one dew point sensor per entry and tears sensors down again.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tkfj/hass-dewpoint/internal/entry"
	"github.com/tkfj/hass-dewpoint/internal/modules/entries/repository"
	"github.com/tkfj/hass-dewpoint/internal/sensor"
)

// States is the upstream entity state the sensors read and observe.
type States interface {
	sensor.StateReader
	sensor.Observer
}

// Publisher announces sensors and their state to Home Assistant.
type Publisher interface {
	sensor.Sink
	PublishDiscovery(s sensor.Snapshot) error
	Withdraw(uniqueID string) error
}

// View is an entry as returned to API clients.
type View struct {
	entry.Entry
	Settings entry.Effective `json:"effective"`
	State    sensor.Snapshot `json:"state"`
}

type Manager struct {
	repo      repository.EntryRepository
	states    States
	publisher Publisher
	logger    *slog.Logger

	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	sensors map[string]*sensor.DewPoint
}

func New(repo repository.EntryRepository, states States, publisher Publisher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:      repo,
		states:    states,
		publisher: publisher,
		logger:    logger.With("component", "manager"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		sensors:   make(map[string]*sensor.DewPoint),
	}
}

// Start sets up a sensor for every persisted entry.
func (m *Manager) Start(ctx context.Context) error {
	entries, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.setupLocked(e)
	}
	m.logger.Info("entries loaded", "count", len(entries))
	return nil
}

// Create validates settings, stores a new entry and sets up its sensor.
// An empty id gets a generated one.
func (m *Manager) Create(ctx context.Context, source, id string, settings entry.Settings) (entry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(ctx, source, id, settings)
}

// UpdateOptions stores new options for an entry and reloads its sensor.
// Empty fields keep their current effective value.
func (m *Manager) UpdateOptions(ctx context.Context, id string, settings entry.Settings) (entry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.repo.Get(ctx, id)
	if err != nil {
		return entry.Entry{}, err
	}

	opts := mergeOptions(e.Effective(), settings)
	if err := opts.Validate(); err != nil {
		return entry.Entry{}, err
	}

	at := m.now()
	if err := m.repo.UpdateOptions(ctx, id, &opts, at); err != nil {
		return entry.Entry{}, err
	}
	e.Options = &opts
	e.UpdatedAt = at

	m.reloadLocked(e)
	m.logger.Info("entry options updated", "entry_id", id)
	return e, nil
}

// Remove unloads the entry's sensor, withdraws it and deletes the entry.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(ctx, id)
}

func (m *Manager) Get(ctx context.Context, id string) (View, error) {
	e, err := m.repo.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return m.view(e), nil
}

func (m *Manager) List(ctx context.Context) ([]View, error) {
	entries, err := m.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(entries))
	for _, e := range entries {
		out = append(out, m.view(e))
	}
	return out, nil
}

// Snapshot returns the live state of the sensor set up for entry id.
func (m *Manager) Snapshot(id string) (sensor.Snapshot, error) {
	m.mu.Lock()
	s, ok := m.sensors[id]
	m.mu.Unlock()
	if !ok {
		return sensor.Snapshot{}, fmt.Errorf("%w: %q", entry.ErrNotFound, id)
	}
	return s.Snapshot(), nil
}

// Sync reconciles file-owned entries with f. Entries created through the
// API are never touched, even when an id collides.
func (m *Manager) Sync(ctx context.Context, f *entry.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	byID := make(map[string]entry.Entry, len(existing))
	for _, e := range existing {
		byID[e.ID] = e
	}

	var (
		errs                      []error
		created, updated, removed int
		listed                    = make(map[string]bool, len(f.Entries))
	)
	for _, fe := range f.Entries {
		listed[fe.ID] = true
		cur, ok := byID[fe.ID]
		switch {
		case !ok:
			if _, err := m.createLocked(ctx, entry.SourceFile, fe.ID, fe.Settings); err != nil {
				errs = append(errs, err)
				continue
			}
			created++
		case cur.Source != entry.SourceFile:
			m.logger.Warn("entries file id already used by an api entry", "entry_id", fe.ID)
		case !cur.Data.Equal(fe.Settings):
			if err := m.replaceDataLocked(ctx, cur, fe.Settings); err != nil {
				errs = append(errs, err)
				continue
			}
			updated++
		}
	}

	for _, e := range existing {
		if e.Source != entry.SourceFile || listed[e.ID] {
			continue
		}
		if err := m.removeLocked(ctx, e.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	m.logger.Info("entries file synced", "created", created, "updated", updated, "removed", removed)
	return errors.Join(errs...)
}

// Republish announces every sensor again, typically after an MQTT reconnect.
func (m *Manager) Republish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sensors {
		if err := m.publisher.PublishDiscovery(s.Snapshot()); err != nil {
			m.logger.Warn("republish discovery failed", "entry_id", id, "error", err)
		}
		s.Republish()
	}
}

// Stop detaches every sensor. Retained discovery stays on the broker.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sensors {
		s.Detach()
		delete(m.sensors, id)
	}
}

func (m *Manager) createLocked(ctx context.Context, source, id string, settings entry.Settings) (entry.Entry, error) {
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return entry.Entry{}, err
	}
	if id == "" {
		id = m.newID()
	}

	at := m.now()
	e := entry.Entry{
		ID:        id,
		Title:     settings.Title(),
		Source:    source,
		Data:      settings,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := m.repo.Insert(ctx, e); err != nil {
		return entry.Entry{}, err
	}

	m.setupLocked(e)
	m.logger.Info("entry created", "entry_id", id, "source", source, "title", e.Title)
	return e, nil
}

func (m *Manager) replaceDataLocked(ctx context.Context, e entry.Entry, settings entry.Settings) error {
	settings.Normalize()
	at := m.now()
	title := settings.Title()
	if err := m.repo.UpdateData(ctx, e.ID, title, settings, at); err != nil {
		return err
	}
	e.Title = title
	e.Data = settings
	e.Options = nil
	e.UpdatedAt = at

	m.reloadLocked(e)
	m.logger.Info("entry updated from file", "entry_id", e.ID)
	return nil
}

func (m *Manager) removeLocked(ctx context.Context, id string) error {
	e, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	m.teardownLocked(id)
	if err := m.publisher.Withdraw(e.UniqueID()); err != nil {
		m.logger.Warn("withdraw sensor failed", "entry_id", id, "error", err)
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("entry removed", "entry_id", id)
	return nil
}

func (m *Manager) setupLocked(e entry.Entry) {
	s := sensor.New(e, m.states, m.states, m.publisher, m.logger)
	if err := m.publisher.PublishDiscovery(s.Snapshot()); err != nil {
		m.logger.Warn("publish discovery failed", "entry_id", e.ID, "error", err)
	}
	s.Attach()
	m.sensors[e.ID] = s
}

func (m *Manager) teardownLocked(id string) {
	if s, ok := m.sensors[id]; ok {
		s.Detach()
		delete(m.sensors, id)
	}
}

func (m *Manager) reloadLocked(e entry.Entry) {
	m.teardownLocked(e.ID)
	m.setupLocked(e)
}

func (m *Manager) view(e entry.Entry) View {
	v := View{Entry: e, Settings: e.Effective()}
	m.mu.Lock()
	s, ok := m.sensors[e.ID]
	m.mu.Unlock()
	if ok {
		v.State = s.Snapshot()
	}
	return v
}

func mergeOptions(cur entry.Effective, in entry.Settings) entry.Settings {
	out := entry.Settings{
		Name:              cur.Name,
		TemperatureEntity: cur.TemperatureEntity,
		HumidityEntity:    cur.HumidityEntity,
		Precision:         entry.IntPtr(cur.Precision),
	}
	if v := strings.TrimSpace(in.Name); v != "" {
		out.Name = v
	}
	if v := strings.TrimSpace(in.TemperatureEntity); v != "" {
		out.TemperatureEntity = v
	}
	if v := strings.TrimSpace(in.HumidityEntity); v != "" {
		out.HumidityEntity = v
	}
	if in.Precision != nil {
		out.Precision = in.Precision
	}
	return out
}
