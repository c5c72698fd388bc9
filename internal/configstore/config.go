package configstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/manash/azimg/internal/state"
	"github.com/manash/azimg/pkg/models"
)

// ConfigKey is the store key holding the serialized Configuration.
const ConfigKey = "azureOpenAIConfig"

// Load reads the persisted configuration. It reports false when nothing
// usable is stored; unreadable values are logged and skipped.
func Load(kv KV, logger *slog.Logger) (models.ConfigPatch, bool) {
	var patch models.ConfigPatch

	data, ok, err := kv.Get(ConfigKey)
	if err != nil {
		logger.Warn("failed to read saved configuration", "error", err)
		return patch, false
	}
	if !ok {
		return patch, false
	}

	if err := json.Unmarshal(data, &patch); err != nil {
		logger.Warn("failed to parse saved configuration", "error", err)
		return models.ConfigPatch{}, false
	}
	return patch, !patch.IsEmpty()
}

// Persist returns a config hook that applies each patch to saved, the
// configuration as stored, and writes the result back once it holds an
// endpoint or an API key. Values that only reached the live state from the
// environment are never written.
func Persist(kv KV, saved models.Configuration) state.ConfigHook {
	var mu sync.Mutex
	return func(_ models.Configuration, patch models.ConfigPatch) error {
		mu.Lock()
		defer mu.Unlock()

		saved = patch.Apply(saved)
		if !saved.IsPersistable() {
			return nil
		}
		data, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		return kv.Set(ConfigKey, data)
	}
}

// Schema describes the persisted configuration object.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	s := r.Reflect(&models.Configuration{})
	s.Title = ConfigKey
	return s
}
