package catalog

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashare-lab/screener/internal/contracts"
)

// Priority-to-weight mapping used when a signal declares no explicit
// weight.
var priorityWeight = map[string]float64{
	"high":   1.0,
	"medium": 0.6,
	"low":    0.3,
}

// rawSignal mirrors the YAML schema. Weight is a pointer so an absent
// weight can be told apart from an explicit 0.
type rawSignal struct {
	ID          string   `yaml:"id"`
	Theme       string   `yaml:"theme"`
	CoreTheme   string   `yaml:"core_theme"`
	Keywords    []string `yaml:"keywords"`
	Aliases     []string `yaml:"aliases"`
	Priority    string   `yaml:"priority"`
	Description string   `yaml:"description"`
	Weight      *float64 `yaml:"weight"`
	Phase       string   `yaml:"phase"`
}

type signalFile struct {
	Signals []rawSignal `yaml:"signals"`
}

// LoadSignals reads the signal catalog from a YAML file. Unknown fields
// fail the load: a typo in the catalog is a configuration error, not a
// silently ignored key. Returns the signals in file order plus the raw
// bytes for content hashing.
func LoadSignals(path string) ([]contracts.Signal, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read signals file: %w", err)
	}

	var file signalFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, nil, fmt.Errorf("decode signals file %s: %w", path, err)
	}

	signals := make([]contracts.Signal, 0, len(file.Signals))
	for i, raw := range file.Signals {
		if raw.ID == "" {
			return nil, nil, fmt.Errorf("signals file %s: entry %d has no id", path, i)
		}

		priority := raw.Priority
		if priority == "" {
			priority = "low"
		}

		var weight float64
		switch {
		case raw.Weight != nil:
			weight = *raw.Weight
		case raw.ID == contracts.RiskSignalID:
			weight = 0.0
		default:
			w, ok := priorityWeight[priority]
			if !ok {
				w = priorityWeight["low"]
			}
			weight = w
		}

		coreTheme := raw.CoreTheme
		if coreTheme == "" {
			coreTheme = raw.Theme
		}

		phase := raw.Phase
		if phase == "" {
			phase = "live"
		}

		signals = append(signals, contracts.Signal{
			ID:          raw.ID,
			Theme:       raw.Theme,
			CoreTheme:   coreTheme,
			Keywords:    raw.Keywords,
			Aliases:     raw.Aliases,
			Priority:    priority,
			Description: raw.Description,
			Weight:      weight,
			Phase:       phase,
		})
	}

	return signals, data, nil
}
