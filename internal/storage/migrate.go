package storage

import "encoding/json"

// migrate rewrites a raw document from the given version up to
// CurrentVersion. Migrations operate on the raw field map so they can run
// before structural validation.
func migrate(raw map[string]json.RawMessage, version int) map[string]json.RawMessage {
	if version < 2 {
		raw = migrateV1toV2(raw)
	}
	if version < 3 {
		raw = migrateV2toV3(raw)
	}
	return raw
}

// v1 kept the review history under a top-level "log" field.
func migrateV1toV2(raw map[string]json.RawMessage) map[string]json.RawMessage {
	if v, ok := raw["log"]; ok {
		if _, exists := raw["reviews"]; !exists {
			raw["reviews"] = v
		}
		delete(raw, "log")
	}
	return raw
}

// v2 named the retention setting "retention".
func migrateV2toV3(raw map[string]json.RawMessage) map[string]json.RawMessage {
	v, ok := raw["settings"]
	if !ok {
		return raw
	}
	var settings map[string]json.RawMessage
	if err := json.Unmarshal(v, &settings); err != nil {
		return raw
	}
	if r, ok := settings["retention"]; ok {
		if _, exists := settings["targetRetention"]; !exists {
			settings["targetRetention"] = r
		}
		delete(settings, "retention")
		if patched, err := json.Marshal(settings); err == nil {
			raw["settings"] = patched
		}
	}
	return raw
}
