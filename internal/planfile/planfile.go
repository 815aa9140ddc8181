// Package planfile imports a YAML plan of epics, stories, tasks and
// developers. Entries reference each other by local keys; the importer
// resolves keys to document IDs and wires every relationship through the
// relations manager.
package planfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/graph"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/relations"
)

// ErrInvalidPlan marks plans rejected before any write.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan is the root of a plan file.
type Plan struct {
	Developers []DeveloperSpec `yaml:"developers,omitempty"`
	Epics      []EpicSpec      `yaml:"epics"`
}

type DeveloperSpec struct {
	Key             string   `yaml:"key"`
	Name            string   `yaml:"name"`
	Designation     string   `yaml:"designation,omitempty"`
	ExperienceLevel string   `yaml:"experience_level,omitempty"`
	Skills          []string `yaml:"skills,omitempty"`
	Status          string   `yaml:"status,omitempty"`
}

type EpicSpec struct {
	Key         string      `yaml:"key"`
	Title       string      `yaml:"title"`
	Description string      `yaml:"description,omitempty"`
	Status      string      `yaml:"status,omitempty"`
	Priority    string      `yaml:"priority,omitempty"`
	StoryPoints int         `yaml:"story_points,omitempty"`
	Stories     []StorySpec `yaml:"stories,omitempty"`
}

type StorySpec struct {
	Key                string     `yaml:"key"`
	Title              string     `yaml:"title"`
	Description        string     `yaml:"description,omitempty"`
	AcceptanceCriteria []string   `yaml:"acceptance_criteria,omitempty"`
	Status             string     `yaml:"status,omitempty"`
	Priority           string     `yaml:"priority,omitempty"`
	StoryPoints        int        `yaml:"story_points,omitempty"`
	DueDate            *time.Time `yaml:"due_date,omitempty"`
	Tasks              []TaskSpec `yaml:"tasks,omitempty"`
}

type TaskSpec struct {
	Key          string     `yaml:"key"`
	Title        string     `yaml:"title"`
	Description  string     `yaml:"description,omitempty"`
	Status       string     `yaml:"status,omitempty"`
	Priority     string     `yaml:"priority,omitempty"`
	SprintPoints int        `yaml:"sprint_points,omitempty"`
	DueDate      *time.Time `yaml:"due_date,omitempty"`
	DependsOn    []string   `yaml:"depends_on,omitempty"` // task keys
	Assign       []string   `yaml:"assign,omitempty"`     // developer keys
}

// Load reads and parses a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a plan and checks it. Unknown YAML fields are rejected.
func Parse(r io.Reader) (*Plan, error) {
	var plan Plan
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty plan", ErrInvalidPlan)
		}
		return nil, fmt.Errorf("%w: parse YAML: %v", ErrInvalidPlan, err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks keys, references, entity fields and the dependency graph.
func (p *Plan) Validate() error {
	var errs []error
	devKeys := map[string]bool{}
	taskKeys := map[string]bool{}
	seen := map[string]string{}

	claim := func(kind, key string) {
		if key == "" {
			errs = append(errs, fmt.Errorf("%s without key", kind))
			return
		}
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("duplicate key %q (%s and %s)", key, prev, kind))
			return
		}
		seen[key] = kind
	}

	for _, d := range p.Developers {
		claim("developer", d.Key)
		devKeys[d.Key] = true
		dev := d.model()
		if err := dev.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("developer %q: %w", d.Key, err))
		}
	}
	var nodes []graph.Node
	for _, e := range p.Epics {
		claim("epic", e.Key)
		epic := e.model()
		if err := epic.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("epic %q: %w", e.Key, err))
		}
		for _, s := range e.Stories {
			claim("story", s.Key)
			story := s.model()
			if err := story.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("story %q: %w", s.Key, err))
			}
			for _, t := range s.Tasks {
				claim("task", t.Key)
				taskKeys[t.Key] = true
				task := t.model()
				if err := task.Validate(); err != nil {
					errs = append(errs, fmt.Errorf("task %q: %w", t.Key, err))
				}
				nodes = append(nodes, graph.Node{ID: t.Key, DependsOn: t.DependsOn})
			}
		}
	}

	for _, e := range p.Epics {
		for _, s := range e.Stories {
			for _, t := range s.Tasks {
				for _, dep := range t.DependsOn {
					if !taskKeys[dep] {
						errs = append(errs, fmt.Errorf("task %q depends on unknown task %q", t.Key, dep))
					}
				}
				for _, dev := range t.Assign {
					if !devKeys[dev] {
						errs = append(errs, fmt.Errorf("task %q assigns unknown developer %q", t.Key, dev))
					}
				}
			}
		}
	}

	for _, cycle := range graph.BuildDepGraph(nodes).Cycles() {
		errs = append(errs, fmt.Errorf("dependency cycle %v: %w", cycle, relations.ErrCircularDependency))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, errors.Join(errs...))
	}
	return nil
}

func (d DeveloperSpec) model() model.Developer {
	return model.Developer{
		Name:            d.Name,
		Designation:     d.Designation,
		ExperienceLevel: d.ExperienceLevel,
		Skills:          d.Skills,
		Status:          d.Status,
	}
}

func (e EpicSpec) model() model.Epic {
	return model.Epic{
		Title:       e.Title,
		Description: e.Description,
		Status:      e.Status,
		Priority:    e.Priority,
		StoryPoints: e.StoryPoints,
	}
}

func (s StorySpec) model() model.Story {
	return model.Story{
		Title:              s.Title,
		Description:        s.Description,
		AcceptanceCriteria: s.AcceptanceCriteria,
		Status:             s.Status,
		Priority:           s.Priority,
		StoryPoints:        s.StoryPoints,
		DueDate:            s.DueDate,
	}
}

func (t TaskSpec) model() model.Task {
	return model.Task{
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		Priority:     t.Priority,
		SprintPoints: t.SprintPoints,
		DueDate:      t.DueDate,
	}
}
