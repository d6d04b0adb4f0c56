// Package catalog loads the static patient-case catalog.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"ai-patient-sim-service/internal/models"
)

//go:embed cases.yaml
var casesYAML []byte

// Catalog holds the immutable patient cases, loaded once at startup.
type Catalog struct {
	cases []models.PatientCase
	byID  map[int]*models.PatientCase
}

// Load parses the embedded case data.
func Load() (*Catalog, error) {
	return parse(casesYAML)
}

func parse(data []byte) (*Catalog, error) {
	var doc struct {
		VaryingPatientInstruction string               `yaml:"varyingPatientInstruction"`
		Cases                     []models.PatientCase `yaml:"cases"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse cases: %w", err)
	}
	if len(doc.Cases) == 0 {
		return nil, fmt.Errorf("catalog: no cases defined")
	}

	// The shared behavioural instruction is prepended to every persona so a
	// case script only carries what is unique to that patient.
	if doc.VaryingPatientInstruction != "" {
		for i := range doc.Cases {
			doc.Cases[i].Script = doc.VaryingPatientInstruction + "\n" + doc.Cases[i].Script
		}
	}

	sort.Slice(doc.Cases, func(i, j int) bool { return doc.Cases[i].ID < doc.Cases[j].ID })

	c := &Catalog{
		cases: doc.Cases,
		byID:  make(map[int]*models.PatientCase, len(doc.Cases)),
	}
	for i := range c.cases {
		pc := &c.cases[i]
		if pc.Script == "" {
			return nil, fmt.Errorf("catalog: case %d (%s) has no script", pc.ID, pc.Name)
		}
		if _, dup := c.byID[pc.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate case id %d", pc.ID)
		}
		c.byID[pc.ID] = pc
	}
	return c, nil
}

// All returns every case in ID order.
func (c *Catalog) All() []models.PatientCase {
	out := make([]models.PatientCase, len(c.cases))
	copy(out, c.cases)
	return out
}

// ByID looks up a case. The second return is false when no case matches.
func (c *Catalog) ByID(id int) (*models.PatientCase, bool) {
	pc, ok := c.byID[id]
	return pc, ok
}

// Len returns the number of cases.
func (c *Catalog) Len() int {
	return len(c.cases)
}
