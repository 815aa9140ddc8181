package api

import (
	"net/http"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/relations"
)

// registerRelation mounts the containment routes for rel under
// /{parent}/{id}/{child}.
func (s *Server) registerRelation(mux *http.ServeMux, rel relations.Relation) {
	base := "/" + rel.Parent + "/{id}/" + rel.Child

	mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
		docs, err := s.relations.Children(r.Context(), rel, r.PathValue("id"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		items, err := docstore.DecodeAll[map[string]any](docs)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if items == nil {
			items = []map[string]any{}
		}
		writeJSON(w, items)
	})

	// bulk link
	mux.HandleFunc("POST "+base, func(w http.ResponseWriter, r *http.Request) {
		var body idsBody
		if err := decodeBody(w, r, &body); err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.relations.BulkLink(r.Context(), rel, r.PathValue("id"), body.IDs); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("PUT "+base+"/{child}", func(w http.ResponseWriter, r *http.Request) {
		if err := s.relations.Link(r.Context(), rel, r.PathValue("child"), r.PathValue("id")); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE "+base+"/{child}", func(w http.ResponseWriter, r *http.Request) {
		if err := s.relations.Unlink(r.Context(), rel, r.PathValue("child"), r.PathValue("id")); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// GET /epics/with-stories
func (s *Server) handleEpicsWithStories(w http.ResponseWriter, r *http.Request) {
	epics, err := s.relations.EpicsWithStories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if epics == nil {
		epics = []relations.EpicWithStories{}
	}
	writeJSON(w, epics)
}

// GET /stories/with-tasks
func (s *Server) handleStoriesWithTasks(w http.ResponseWriter, r *http.Request) {
	stories, err := s.relations.StoriesWithTasks(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if stories == nil {
		stories = []relations.StoryWithTasks{}
	}
	writeJSON(w, stories)
}

func writeTasks(w http.ResponseWriter, tasks []model.Task) {
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, tasks)
}

// GET /tasks/{id}/dependencies
func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.relations.Dependencies(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeTasks(w, tasks)
}

// GET /tasks/{id}/dependents
func (s *Server) handleDependents(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.relations.Dependents(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeTasks(w, tasks)
}

// PUT /tasks/{id}/dependencies/{dep}
func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	if err := s.relations.AddDependency(r.Context(), r.PathValue("id"), r.PathValue("dep")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /tasks/{id}/dependencies/{dep}
func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	if err := s.relations.RemoveDependency(r.Context(), r.PathValue("id"), r.PathValue("dep")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /tasks/{id}/dependencies/{dep}/check reports whether adding the edge
// would close a cycle, without writing it.
func (s *Server) handleCycleCheck(w http.ResponseWriter, r *http.Request) {
	taskID, depID := r.PathValue("id"), r.PathValue("dep")
	cyclic := taskID == depID
	if !cyclic {
		var err error
		cyclic, err = s.relations.HasCycle(r.Context(), depID, taskID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
	}
	writeJSON(w, map[string]bool{"creates_cycle": cyclic})
}

// GET /tasks/{id}/assignees
func (s *Server) handleAssignees(w http.ResponseWriter, r *http.Request) {
	devs, err := s.relations.TaskAssignees(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if devs == nil {
		devs = []model.Developer{}
	}
	writeJSON(w, devs)
}

// POST /tasks/{id}/assignees
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var body idsBody
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.relations.Assign(r.Context(), r.PathValue("id"), body.IDs); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /tasks/{id}/assignees
func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	var body idsBody
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.relations.Unassign(r.Context(), r.PathValue("id"), body.IDs); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /developers/{id}/tasks
func (s *Server) handleDeveloperTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.relations.DeveloperTasks(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeTasks(w, tasks)
}
