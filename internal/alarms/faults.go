package alarms

import (
	"fmt"
	"os"

	"github.com/tinytelemetry/ponwatch/internal/normalize"
	"gopkg.in/yaml.v3"
)

// FaultNames maps normalized fault codes to human-readable alarm names.
type FaultNames map[string]string

// DefaultFaultNames returns the built-in fault code table.
func DefaultFaultNames() FaultNames {
	return FaultNames{
		"1014":      "The link between the server and the NE is broken",
		"400123":    "Card Offline",
		"35273":     "[GPON Alarm] PON LOS (Loss of signal)",
		"430660006": "[GPON Alarm] PON LOS (ONU Dropped)",
		"351130000": "[GPON Alarm] ONU LOS (Loss of Signal)",
		"722445000": "[GPON Alarm] ONU LOS (Loss of Signal)",
	}
}

// Name returns the alarm name for code, or "" when the code is unknown.
func (f FaultNames) Name(code string) string {
	return f[normalize.Identifier(code)]
}

type faultFile struct {
	Faults []struct {
		Code any    `yaml:"code"`
		Name string `yaml:"name"`
	} `yaml:"faults"`
}

// LoadFaultNames returns the built-in table with the entries from the YAML file
// at path layered on top. An empty path returns the defaults.
//
//	faults:
//	  - code: 1014
//	    name: The link between the server and the NE is broken
func LoadFaultNames(path string) (FaultNames, error) {
	names := DefaultFaultNames()
	if path == "" {
		return names, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fault names: %w", err)
	}

	var file faultFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing fault names %s: %w", path, err)
	}
	for i, f := range file.Faults {
		if f.Code == nil {
			return nil, fmt.Errorf("fault names %s: entry %d has no code", path, i)
		}
		names[normalize.Identifier(fmt.Sprint(f.Code))] = f.Name
	}
	return names, nil
}
