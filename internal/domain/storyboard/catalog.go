package storyboard

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed activities.yaml
var defaultCatalogYAML []byte

type Activity struct {
	Key    string `yaml:"key" json:"key"`
	Phrase string `yaml:"phrase" json:"phrase"`
}

// Catalog is the ordered list of activities for dataset assembly. Order is significant.
type Catalog struct {
	PromptTemplate string     `yaml:"prompt_template"`
	Activities     []Activity `yaml:"activities"`
}

// DefaultCatalog returns the embedded nine-activity catalog.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded activity catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file, or the embedded default when path is empty.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read activity catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse activity catalog: %w", err)
	}
	if len(c.Activities) == 0 {
		return Catalog{}, fmt.Errorf("activity catalog is empty")
	}
	seen := map[string]bool{}
	for i, a := range c.Activities {
		if strings.TrimSpace(a.Phrase) == "" {
			return Catalog{}, fmt.Errorf("activity %d has no phrase", i)
		}
		if a.Key == "" {
			c.Activities[i].Key = a.Phrase
		}
		if seen[c.Activities[i].Key] {
			return Catalog{}, fmt.Errorf("duplicate activity key %q", c.Activities[i].Key)
		}
		seen[c.Activities[i].Key] = true
	}
	if strings.TrimSpace(c.PromptTemplate) == "" {
		c.PromptTemplate = "{description}, {activity}"
	}
	return c, nil
}

// NewCatalog builds a catalog from bare phrases using the default template.
func NewCatalog(phrases ...string) Catalog {
	c := Catalog{PromptTemplate: DefaultCatalog().PromptTemplate}
	for _, p := range phrases {
		c.Activities = append(c.Activities, Activity{Key: p, Phrase: p})
	}
	return c
}

func (c Catalog) Len() int { return len(c.Activities) }

func (c Catalog) Prompt(description string, a Activity) string {
	return strings.NewReplacer(
		"{description}", strings.TrimSpace(description),
		"{activity}", a.Phrase,
	).Replace(c.PromptTemplate)
}
