// Package criteria loads and stores per-job hiring criteria as YAML files.
package criteria

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// exampleFile ships as documentation and is never treated as a real job.
const exampleFile = "example_job.yaml"

type NiceToHave struct {
	Criterion string `yaml:"criterion" json:"criterion"`
	Weight    int    `yaml:"weight" json:"weight"`
}

// Criteria is the rubric the oracle scores applicants of one job against.
type Criteria struct {
	JobID      string       `yaml:"job_id" json:"job_id"`
	JobTitle   string       `yaml:"job_title" json:"job_title"`
	MustHave   []string     `yaml:"must_have" json:"must_have"`
	NiceToHave []NiceToHave `yaml:"nice_to_have" json:"nice_to_have"`
	RedFlags   []string     `yaml:"red_flags" json:"red_flags"`
}

func (c *Criteria) Validate() error {
	if c == nil {
		return errors.New("criteria is nil")
	}
	if strings.TrimSpace(c.JobID) == "" {
		return errors.New("job_id is required")
	}
	for i, item := range c.NiceToHave {
		if strings.TrimSpace(item.Criterion) == "" {
			return fmt.Errorf("nice_to_have[%d]: criterion is required", i)
		}
		if item.Weight < 0 {
			return fmt.Errorf("nice_to_have[%d]: weight must not be negative", i)
		}
	}
	return nil
}

// Loader reads criteria files from a directory.
type Loader struct {
	Dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

// LoadAll returns every valid criteria file in the directory ordered by file
// name. Files that fail to load are reported in the joined error while the
// rest are still returned. A missing directory yields an empty list.
func (l *Loader) LoadAll() ([]*Criteria, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading criteria dir %q: %w", l.Dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == exampleFile {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	result := make([]*Criteria, 0, len(names))
	var errs []error
	for _, name := range names {
		c, err := LoadFile(filepath.Join(l.Dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result = append(result, c)
	}

	return result, errors.Join(errs...)
}

// Save writes c to <dir>/<job_id>.yaml and returns the path.
func (l *Loader) Save(c *Criteria) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating criteria dir %q: %w", l.Dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal criteria: %w", err)
	}

	path := filepath.Join(l.Dir, fileName(c.JobID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing criteria %q: %w", path, err)
	}

	return path, nil
}

func LoadFile(path string) (*Criteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading criteria %q: %w", path, err)
	}

	var c Criteria
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing criteria %q: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("criteria %q: %w", path, err)
	}

	return &c, nil
}

func fileName(jobID string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(strings.TrimSpace(jobID)) + ".yaml"
}
