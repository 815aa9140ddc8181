// Package model defines the planning documents stored in the document store.
package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Collection names.
const (
	Epics      = "epics"
	Stories    = "stories"
	Tasks      = "tasks"
	Developers = "developers"
	Sprints    = "sprints"

	Comments    = "comments"
	ActivityLog = "activity"
)

// Relationship fields. These are owned by the relationship manager.
const (
	FieldStories       = "stories"
	FieldEpicID        = "epic_id"
	FieldTasks         = "tasks"
	FieldStoryID       = "story_id"
	FieldDependencies  = "dependencies"
	FieldAssignees     = "assignees"
	FieldAssignedTasks = "assigned_tasks"

	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
	FieldTimestamp = "timestamp"
)

var relationFields = map[string][]string{
	Epics:      {FieldStories},
	Stories:    {FieldEpicID, FieldTasks},
	Tasks:      {FieldStoryID, FieldDependencies, FieldAssignees},
	Developers: {FieldAssignedTasks},
}

// RelationFields returns the relationship-managed fields of a collection.
func RelationFields(collection string) []string {
	return slices.Clone(relationFields[collection])
}

// ResetRelationFields clears the relationship-managed fields of a new
// document: parent references are removed and child lists start empty.
func ResetRelationFields(collection string, fields map[string]any) {
	for _, f := range relationFields[collection] {
		switch f {
		case FieldEpicID, FieldStoryID:
			delete(fields, f)
		default:
			fields[f] = []string{}
		}
	}
}

// IsRelationField reports whether field on collection is relationship-managed.
func IsRelationField(collection, field string) bool {
	return slices.Contains(relationFields[collection], field)
}

// Kind returns the singular display name for a collection.
func Kind(collection string) string {
	switch collection {
	case Epics:
		return "Epic"
	case Stories:
		return "Story"
	case Tasks:
		return "Task"
	case Developers:
		return "Developer"
	case Sprints:
		return "Sprint"
	default:
		return collection
	}
}

// ErrInvalid marks validation failures.
var ErrInvalid = errors.New("invalid document")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalidf("%s is required", field)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}
	return invalidf("%s %q must be one of %s", field, value, strings.Join(allowed, ", "))
}

func nonNegative(field string, v int) error {
	if v < 0 {
		return invalidf("%s must not be negative", field)
	}
	return nil
}

// Work item statuses shared by epics, stories and tasks.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusInReview   = "in_review"
	StatusDone       = "done"
)

var workStatuses = []string{StatusTodo, StatusInProgress, StatusInReview, StatusDone}

// Priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Epic struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	StoryPoints int       `json:"story_points,omitempty"`
	Stories     []string  `json:"stories"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

func (e *Epic) Validate() error {
	return errors.Join(
		required("title", e.Title),
		oneOf("status", e.Status, workStatuses...),
		oneOf("priority", e.Priority, PriorityLow, PriorityMedium, PriorityHigh),
		nonNegative("story_points", e.StoryPoints),
	)
}

type Story struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	AcceptanceCriteria []string   `json:"acceptance_criteria,omitempty"`
	Status             string     `json:"status,omitempty"`
	Priority           string     `json:"priority,omitempty"`
	EpicID             string     `json:"epic_id,omitempty"`
	SprintID           string     `json:"sprint_id,omitempty"`
	Assignee           string     `json:"assignee,omitempty"`
	StoryPoints        int        `json:"story_points,omitempty"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	Tasks              []string   `json:"tasks"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at,omitzero"`
}

func (s *Story) Validate() error {
	return errors.Join(
		required("title", s.Title),
		oneOf("status", s.Status, workStatuses...),
		oneOf("priority", s.Priority, PriorityLow, PriorityMedium, PriorityHigh),
		nonNegative("story_points", s.StoryPoints),
	)
}

type Task struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status,omitempty"`
	Priority     string     `json:"priority,omitempty"`
	StoryID      string     `json:"story_id,omitempty"`
	EpicID       string     `json:"epic_id,omitempty"`
	SprintID     string     `json:"sprint_id,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	SprintPoints int        `json:"sprint_points,omitempty"`
	Dependencies []string   `json:"dependencies"`
	Assignees    []string   `json:"assignees"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at,omitzero"`
}

func (t *Task) Validate() error {
	return errors.Join(
		required("title", t.Title),
		oneOf("status", t.Status, workStatuses...),
		oneOf("priority", t.Priority, PriorityNormal, PriorityHigh, PriorityUrgent),
		nonNegative("sprint_points", t.SprintPoints),
	)
}

// Developer statuses and experience levels.
const (
	DeveloperAvailable  = "available"
	DeveloperOverloaded = "overloaded"
	DeveloperOnLeave    = "on_leave"
)

var experienceLevels = []string{"Junior", "Mid", "Senior", "Lead"}

type Developer struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Designation     string    `json:"designation,omitempty"`
	ExperienceLevel string    `json:"experience_level,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	Status          string    `json:"status,omitempty"`
	ProfilePicURL   string    `json:"profile_pic_url,omitempty"`
	AssignedTasks   []string  `json:"assigned_tasks"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at,omitzero"`
}

func (d *Developer) Validate() error {
	return errors.Join(
		required("name", d.Name),
		oneOf("experience_level", d.ExperienceLevel, experienceLevels...),
		oneOf("status", d.Status, DeveloperAvailable, DeveloperOverloaded, DeveloperOnLeave),
	)
}

// Sprint statuses.
const (
	SprintPlanned   = "planned"
	SprintActive    = "active"
	SprintCompleted = "completed"
)

type Sprint struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Goal      string    `json:"goal,omitempty"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status,omitempty"`
	Capacity  int       `json:"capacity,omitempty"`
	Velocity  int       `json:"velocity,omitempty"`
	TeamID    string    `json:"team_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func (s *Sprint) Validate() error {
	var window error
	if s.StartDate.IsZero() || s.EndDate.IsZero() {
		window = invalidf("start_date and end_date are required")
	} else if s.EndDate.Before(s.StartDate) {
		window = invalidf("end_date must not be before start_date")
	}
	return errors.Join(
		required("name", s.Name),
		window,
		oneOf("status", s.Status, SprintPlanned, SprintActive, SprintCompleted),
		nonNegative("capacity", s.Capacity),
		nonNegative("velocity", s.Velocity),
	)
}

// Comment is an immutable note in a document's comments subcollection.
type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Comment) Validate() error {
	return errors.Join(required("content", c.Content), required("author", c.Author))
}

// Activity is an immutable entry in a document's activity subcollection.
type Activity struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	User        string    `json:"user"`
	Timestamp   time.Time `json:"timestamp"`
}

func (a *Activity) Validate() error {
	return errors.Join(required("action", a.Action), required("user", a.User))
}
