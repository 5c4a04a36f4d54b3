package mqtt

import (
	"github.com/tkfj/hass-dewpoint/internal/sensor"
)

// discoveryConfig is the abbreviated Home Assistant MQTT discovery payload
// for a sensor.
type discoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"uniq_id"`
	ObjectID          string          `json:"obj_id"`
	DeviceClass       string          `json:"dev_cla"`
	StateClass        string          `json:"stat_cla"`
	UnitOfMeasurement string          `json:"unit_of_meas"`
	StateTopic        string          `json:"stat_t"`
	Availability      []availability  `json:"avty"`
	AvailabilityMode  string          `json:"avty_mode"`
	DisplayPrecision  int             `json:"sug_dsp_prc"`
	Device            discoveryDevice `json:"dev"`
}

type availability struct {
	Topic string `json:"t"`
}

type discoveryDevice struct {
	IDs   []string `json:"ids"`
	Name  string   `json:"name"`
	Model string   `json:"mdl"`
}

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
	deviceModel    = "Dew Point"
)

func (c *Client) discoveryTopic(uniqueID string) string {
	return c.cfg.DiscoveryPrefix + "/sensor/" + uniqueID + "/config"
}

func (c *Client) stateTopic(uniqueID string) string {
	return c.cfg.BaseTopic + "/" + uniqueID + "/state"
}

func (c *Client) availabilityTopic(uniqueID string) string {
	return c.cfg.BaseTopic + "/" + uniqueID + "/availability"
}

func (c *Client) bridgeStatusTopic() string {
	return c.cfg.BaseTopic + "/bridge/status"
}

func (c *Client) discoveryPayload(s sensor.Snapshot) discoveryConfig {
	return discoveryConfig{
		Name:              s.Name,
		UniqueID:          s.UniqueID,
		ObjectID:          s.UniqueID,
		DeviceClass:       sensor.DeviceClass,
		StateClass:        sensor.StateClass,
		UnitOfMeasurement: s.Unit,
		StateTopic:        c.stateTopic(s.UniqueID),
		Availability: []availability{
			{Topic: c.bridgeStatusTopic()},
			{Topic: c.availabilityTopic(s.UniqueID)},
		},
		AvailabilityMode: "all",
		DisplayPrecision: s.Precision,
		Device: discoveryDevice{
			IDs:   []string{s.UniqueID},
			Name:  s.Name,
			Model: deviceModel,
		},
	}
}
