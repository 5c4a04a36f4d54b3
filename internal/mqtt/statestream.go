package mqtt

import (
	"encoding/json"
	"strings"
)

// Home Assistant mqtt_statestream publishes each entity under
// <prefix>/<domain>/<object_id>/<attribute>. The state itself is published raw
// under "state"; every other attribute is JSON encoded.
const (
	statestreamDomain   = "sensor"
	attrState           = "state"
	attrUnitOfMeasure   = "unit_of_measurement"
	statestreamWildcard = "+"
)

// StateWriter receives decoded statestream updates.
type StateWriter interface {
	SetState(entityID, value string)
	SetUnit(entityID, unit string)
	Remove(entityID string)
}

// statestreamFilters lists the unit filter first. Subscribing in this order has
// the broker deliver retained units before retained states.
func statestreamFilters(prefix string) []string {
	return []string{
		strings.Join([]string{prefix, statestreamDomain, statestreamWildcard, attrUnitOfMeasure}, "/"),
		strings.Join([]string{prefix, statestreamDomain, statestreamWildcard, attrState}, "/"),
	}
}

// parseStatestreamTopic splits topic into an entity id and attribute name.
func parseStatestreamTopic(prefix, topic string) (entityID, attribute string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return "", "", false
	}
	domain, object, attr := parts[0], parts[1], parts[2]
	if domain == "" || object == "" || attr == "" {
		return "", "", false
	}
	return domain + "." + object, attr, true
}

// applyStatestream decodes one statestream message into w. It reports whether
// the message was understood.
func applyStatestream(w StateWriter, prefix, topic string, payload []byte) bool {
	entityID, attr, ok := parseStatestreamTopic(prefix, topic)
	if !ok {
		return false
	}

	switch attr {
	case attrState:
		// An empty retained payload clears the entity.
		if len(payload) == 0 {
			w.Remove(entityID)
			return true
		}
		w.SetState(entityID, string(payload))
		return true

	case attrUnitOfMeasure:
		w.SetUnit(entityID, decodeAttribute(payload))
		return true

	default:
		return false
	}
}

// decodeAttribute unwraps a JSON string attribute. null and empty payloads
// decode to "", anything that is not a JSON string is used verbatim.
func decodeAttribute(payload []byte) string {
	raw := strings.TrimSpace(string(payload))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return raw
}
