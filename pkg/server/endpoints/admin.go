package endpoints

import (
	"net/http"

	"github.com/hasad-erp/hasad/pkg/auth"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server"
	"github.com/hasad-erp/hasad/pkg/server/middleware"
)

type createUserRequest struct {
	auth.RegisterInput
	Role model.Role `json:"role"`
}

type setRoleRequest struct {
	Role model.Role `json:"role" validate:"required"`
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// RegisterAdminEndpoints registers account administration routes. All of
// them require the admin role.
func RegisterAdminEndpoints(s *server.Server) {
	svc := s.Auth

	admin := s.Router.PathPrefix("/admin").Subrouter()
	admin.Use(s.Bearer.Middleware)
	admin.Use(middleware.RequireRole(model.RoleAdmin))

	admin.HandleFunc("/users", handleListUsers(svc)).Methods("GET")
	admin.HandleFunc("/users", handleCreateUser(svc)).Methods("POST")
	admin.HandleFunc("/users/{id}", handleGetUser(svc)).Methods("GET")
	admin.HandleFunc("/users/{id}/unlock", handleUnlockUser(svc)).Methods("POST")
	admin.HandleFunc("/users/{id}/activate", handleSetUserActive(svc, true)).Methods("POST")
	admin.HandleFunc("/users/{id}/deactivate", handleSetUserActive(svc, false)).Methods("POST")
	admin.HandleFunc("/users/{id}/role", handleSetUserRole(svc)).Methods("PUT")
	admin.HandleFunc("/users/{id}/password", handleSetUserPassword(svc)).Methods("PUT")
	admin.HandleFunc("/users/{id}/logs", handleUserAuthLogs(svc)).Methods("GET")
	admin.HandleFunc("/logs", handleAllAuthLogs(svc)).Methods("GET")
}

func handleListUsers(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := svc.ListUsers(queryInt(r, "limit", 0), queryInt(r, "offset", 0))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, users)
	}
}

func handleCreateUser(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Role == "" {
			req.Role = model.RoleUser
		}
		user, err := svc.CreateUser(req.RegisterInput, req.Role, caller(r).UserID)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, user)
	}
}

func handleGetUser(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.GetUser(pathVar(r, "id"))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, user)
	}
}

func handleUnlockUser(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.UnlockUser(caller(r).UserID, pathVar(r, "id")); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSetUserActive(svc *auth.Service, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.SetUserActive(caller(r).UserID, pathVar(r, "id"), active); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSetUserRole(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setRoleRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if err := svc.SetUserRole(caller(r).UserID, pathVar(r, "id"), req.Role); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSetUserPassword(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setPasswordRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if err := svc.SetPassword(pathVar(r, "id"), req.Password, caller(r).UserID); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUserAuthLogs(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := svc.AuthLogs(pathVar(r, "id"), queryInt(r, "limit", 0))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, logs)
	}
}

func handleAllAuthLogs(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := svc.AuthLogs("", queryInt(r, "limit", 0))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, logs)
	}
}
