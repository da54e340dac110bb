package learning

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// SaveQTable writes the table as a JSON object keyed by worker id
func SaveQTable(path string, values map[models.WorkerID]float64) error {
	encoded := make(map[string]float64, len(values))
	for id, q := range values {
		encoded[strconv.Itoa(int(id))] = q
	}

	data, err := json.MarshalIndent(encoded, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode Q-table: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write Q-table %s: %w", path, err)
	}

	log.WithFields(log.Fields{"path": path, "entries": len(values)}).Info("Q-table saved")
	return nil
}

// LoadQTable reads a table written by SaveQTable. A missing file is not an
// error and yields a nil map.
func LoadQTable(path string) (map[models.WorkerID]float64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("path", path).Info("No persisted Q-table, starting from zero")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read Q-table %s: %w", path, err)
	}

	var encoded map[string]float64
	if err := json.Unmarshal(data, &encoded); err != nil {
		return nil, fmt.Errorf("failed to decode Q-table %s: %w", path, err)
	}

	values := make(map[models.WorkerID]float64, len(encoded))
	for key, q := range encoded {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("failed to decode Q-table %s: bad worker id %q", path, key)
		}
		values[models.WorkerID(id)] = q
	}
	return values, nil
}
