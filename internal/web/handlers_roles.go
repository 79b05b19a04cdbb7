package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assetinventory/internal/inventory"
)

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.inventory.ListRoles(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var role inventory.Role
	if err := decodeJSON(w, r, &role); err != nil {
		respondError(w, r, err, 0)
		return
	}
	created, err := s.inventory.CreateRole(r.Context(), role)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var role inventory.Role
	if err := decodeJSON(w, r, &role); err != nil {
		respondError(w, r, err, 0)
		return
	}
	updated, err := s.inventory.UpdateRole(r.Context(), chi.URLParam(r, "id"), role)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := s.inventory.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAssignRoles replaces a user's roles with the body's role_ids.
func (s *Server) handleAssignRoles(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RoleIDs []string `json:"role_ids"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, r, err, 0)
		return
	}
	user, err := s.inventory.AssignRoles(r.Context(), chi.URLParam(r, "id"), body.RoleIDs)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUserPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.inventory.UserPermissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}
