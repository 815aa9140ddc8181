package repo

import (
	"log/slog"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
)

// NewEpics returns the epic repository.
func NewEpics(s docstore.Store, logger *slog.Logger) *Repository[model.Epic] {
	return New(s, model.Epics, (*model.Epic).Validate, logger)
}

// NewStories returns the story repository.
func NewStories(s docstore.Store, logger *slog.Logger) *Repository[model.Story] {
	return New(s, model.Stories, (*model.Story).Validate, logger)
}

// NewTasks returns the task repository.
func NewTasks(s docstore.Store, logger *slog.Logger) *Repository[model.Task] {
	return New(s, model.Tasks, (*model.Task).Validate, logger)
}

// NewDevelopers returns the developer repository.
func NewDevelopers(s docstore.Store, logger *slog.Logger) *Repository[model.Developer] {
	return New(s, model.Developers, (*model.Developer).Validate, logger)
}

// NewSprints returns the sprint repository.
func NewSprints(s docstore.Store, logger *slog.Logger) *Repository[model.Sprint] {
	return New(s, model.Sprints, (*model.Sprint).Validate, logger)
}

// Set bundles one repository per kind.
type Set struct {
	Epics      *Repository[model.Epic]
	Stories    *Repository[model.Story]
	Tasks      *Repository[model.Task]
	Developers *Repository[model.Developer]
	Sprints    *Repository[model.Sprint]
}

// NewSet builds every repository over the same store.
func NewSet(s docstore.Store, logger *slog.Logger) *Set {
	return &Set{
		Epics:      NewEpics(s, logger),
		Stories:    NewStories(s, logger),
		Tasks:      NewTasks(s, logger),
		Developers: NewDevelopers(s, logger),
		Sprints:    NewSprints(s, logger),
	}
}
