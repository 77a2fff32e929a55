package render

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/classify"
	"github.com/sells-group/accessviz/internal/compare"
)

// Legend is the YAML sidecar written next to every output. It records what
// the output shows and what was left out of it.
type Legend struct {
	Destination    string            `yaml:"destination"`
	Mode           string            `yaml:"mode,omitempty"`
	Column         string            `yaml:"column,omitempty"`
	Classification *classify.Result  `yaml:"classification,omitempty"`
	Comparison     *compare.Summary  `yaml:"comparison,omitempty"`
	Join           access.Stats      `yaml:"join"`
	Unmatched      []string          `yaml:"unmatched,omitempty"`
	Fields         map[string]string `yaml:"fields,omitempty"` // column -> DBF field
	Outputs        []string          `yaml:"outputs"`
	CreatedAt      time.Time         `yaml:"created_at"`
}

// WriteLegend writes l as YAML to path.
func WriteLegend(path string, l *Legend) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return eris.Wrap(err, "render: marshal legend")
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	return nil
}

// ReadLegend loads a legend written by WriteLegend.
func ReadLegend(path string) (*Legend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "render: read %s", path)
	}
	var l Legend
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, eris.Wrapf(err, "render: parse %s", path)
	}
	return &l, nil
}
