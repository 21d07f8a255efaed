package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"reminderdispatch/internal/notification"
	"reminderdispatch/internal/reminder"
)

// seedFile is the STORE_SEED_FILE fixture for the memory backend. Rules are
// keyed by document path and hold the raw document fields; nextDueAt is given
// as a "YYYY-MM-DD" or RFC 3339 string.
type seedFile struct {
	Rules       map[string]map[string]interface{} `json:"rules"`
	Tokens      map[string]string                 `json:"tokens"`
	Preferences map[string]json.RawMessage        `json:"preferences"`
}

// loadSeed fills the memory backend from the JSON fixture at path.
func loadSeed(path string, source *reminder.MemorySource, store *notification.MemoryStore) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for docPath, data := range seed.Rules {
		source.Put(docPath, data)
	}
	for uid, token := range seed.Tokens {
		store.SetToken(uid, token)
	}
	for uid, body := range seed.Preferences {
		// unset fields keep their defaults
		prefs := notification.DefaultPreferences()
		if err := json.Unmarshal(body, &prefs); err != nil {
			return fmt.Errorf("invalid preferences for %s: %w", uid, err)
		}
		store.SetPreferences(uid, prefs)
	}

	slog.Info("Seeded memory store", "file", path,
		"rules", len(seed.Rules), "tokens", len(seed.Tokens), "preferences", len(seed.Preferences))
	return nil
}
