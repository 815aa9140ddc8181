package api

import (
	"fmt"
	"net/http"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/repo"
)

// registerEntity mounts CRUD, comments, activity and bulk create for one
// entity collection.
func registerEntity[T any](s *Server, mux *http.ServeMux, r *repo.Repository[T]) {
	base := "/" + r.Collection()

	mux.HandleFunc("GET "+base, func(w http.ResponseWriter, req *http.Request) {
		items, err := r.List(req.Context())
		if err != nil {
			s.fail(w, req, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, items)
	})

	mux.HandleFunc("POST "+base, func(w http.ResponseWriter, req *http.Request) {
		var v T
		if err := decodeBody(w, req, &v); err != nil {
			s.fail(w, req, err)
			return
		}
		id, err := r.Create(req.Context(), &v)
		if err != nil {
			s.fail(w, req, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"id": id})
	})

	mux.HandleFunc("POST "+base+"/bulk", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Records []T `json:"records"`
		}
		if err := decodeBody(w, req, &body); err != nil {
			s.fail(w, req, err)
			return
		}
		records := make([]map[string]any, 0, len(body.Records))
		for i := range body.Records {
			fields, err := r.Prepare(&body.Records[i])
			if err != nil {
				s.fail(w, req, fmt.Errorf("record %d: %w", i, err))
				return
			}
			records = append(records, fields)
		}
		ids, err := s.relations.BulkCreate(req.Context(), r.Collection(), records)
		if err != nil {
			s.fail(w, req, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]any{"ids": ids})
	})

	mux.HandleFunc("GET "+base+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		v, err := r.Get(req.Context(), req.PathValue("id"))
		if err != nil {
			s.fail(w, req, err)
			return
		}
		writeJSON(w, v)
	})

	mux.HandleFunc("PATCH "+base+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		var fields map[string]any
		if err := decodeBody(w, req, &fields); err != nil {
			s.fail(w, req, err)
			return
		}
		if len(fields) == 0 {
			s.fail(w, req, fmt.Errorf("%w: no fields to update", errBadRequest))
			return
		}
		if err := r.Update(req.Context(), req.PathValue("id"), fields); err != nil {
			s.fail(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE "+base+"/{id}", func(w http.ResponseWriter, req *http.Request) {
		if err := r.Delete(req.Context(), req.PathValue("id")); err != nil {
			s.fail(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET "+base+"/{id}/comments", func(w http.ResponseWriter, req *http.Request) {
		comments, err := r.Comments(req.Context(), req.PathValue("id"))
		if err != nil {
			s.fail(w, req, err)
			return
		}
		if comments == nil {
			comments = []model.Comment{}
		}
		writeJSON(w, comments)
	})

	mux.HandleFunc("POST "+base+"/{id}/comments", func(w http.ResponseWriter, req *http.Request) {
		var c model.Comment
		if err := decodeBody(w, req, &c); err != nil {
			s.fail(w, req, err)
			return
		}
		id, err := r.AddComment(req.Context(), req.PathValue("id"), c)
		if err != nil {
			s.fail(w, req, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"id": id})
	})

	mux.HandleFunc("GET "+base+"/{id}/activity", func(w http.ResponseWriter, req *http.Request) {
		entries, err := r.ActivityLog(req.Context(), req.PathValue("id"))
		if err != nil {
			s.fail(w, req, err)
			return
		}
		if entries == nil {
			entries = []model.Activity{}
		}
		writeJSON(w, entries)
	})

	mux.HandleFunc("POST "+base+"/{id}/activity", func(w http.ResponseWriter, req *http.Request) {
		var a model.Activity
		if err := decodeBody(w, req, &a); err != nil {
			s.fail(w, req, err)
			return
		}
		id, err := r.LogActivity(req.Context(), req.PathValue("id"), a)
		if err != nil {
			s.fail(w, req, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"id": id})
	})
}
