package api

import (
	"net/http"

	"example.com/wellness/internal/domain"
)

func (h *Handler) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.Notes.List(r.Context(), principal(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": notes})
}

func (h *Handler) searchNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.Notes.Search(r.Context(), principal(r), r.URL.Query().Get("q"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": notes})
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.Authenticated() {
		h.writeDomainError(w, domain.ErrAuthRequired)
		return
	}
	var req NoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	note, err := h.svc.Notes.Create(r.Context(), p, domain.NoteInput{Title: req.Title, Content: req.Content})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *Handler) updateNote(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.Authenticated() {
		h.writeDomainError(w, domain.ErrAuthRequired)
		return
	}
	var req NoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	note, err := h.svc.Notes.Update(r.Context(), p, pathParam(r, "id"), domain.NoteInput{Title: req.Title, Content: req.Content})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handler) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Notes.Delete(r.Context(), principal(r), pathParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
