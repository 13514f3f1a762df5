package endpoints

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hasad-erp/hasad/pkg/memory"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server"
)

// maxImportBytes bounds bulk import uploads
const maxImportBytes = 32 << 20

type tagsRequest struct {
	Tags []string `json:"tags" validate:"required,min=1"`
}

type grantRequest struct {
	UserID     string           `json:"user_id" validate:"required"`
	Permission model.Permission `json:"permission" validate:"required"`
}

// RegisterMemoryEndpoints registers the knowledge store routes. Reads
// accept anonymous callers, who only see public memories.
func RegisterMemoryEndpoints(s *server.Server) {
	svc := s.Memory
	authed := s.Bearer.Middleware
	optional := s.Bearer.Optional

	api := s.Router.PathPrefix("/api").Subrouter()

	// Fixed paths go before /memories/{id}
	api.Handle("/memories/search", optional(handleSearchMemories(svc))).Methods("GET")
	api.Handle("/memories/stats", authed(handleMemoryStats(svc))).Methods("GET")
	api.Handle("/memories/export", authed(handleExportMemories(svc))).Methods("GET")
	api.Handle("/memories/import", authed(handleImportMemories(svc))).Methods("POST")
	api.Handle("/memories/schema", handleMemorySchema()).Methods("GET")

	api.Handle("/memories", optional(handleListMemories(svc))).Methods("GET")
	api.Handle("/memories", authed(handleCreateMemory(svc))).Methods("POST")
	api.Handle("/memories/{id}", optional(handleGetMemory(svc))).Methods("GET")
	api.Handle("/memories/{id}", authed(handleUpdateMemory(svc))).Methods("PUT", "PATCH")
	api.Handle("/memories/{id}", authed(handleDeleteMemory(svc))).Methods("DELETE")
	api.Handle("/memories/{id}/archive", authed(handleArchiveMemory(svc, true))).Methods("POST")
	api.Handle("/memories/{id}/unarchive", authed(handleArchiveMemory(svc, false))).Methods("POST")
	api.Handle("/memories/{id}/tags", authed(handleAddTags(svc))).Methods("POST")
	api.Handle("/memories/{id}/tags/{name}", authed(handleRemoveTag(svc))).Methods("DELETE")
	api.Handle("/memories/{id}/entities", authed(handleLinkEntity(svc))).Methods("POST")
	api.Handle("/memories/{id}/entities/{entity}", authed(handleUnlinkEntity(svc))).Methods("DELETE")
	api.Handle("/memories/{id}/grants", authed(handleGrantAccess(svc))).Methods("POST")
	api.Handle("/memories/{id}/grants/{user}", authed(handleRevokeAccess(svc))).Methods("DELETE")
	api.Handle("/memories/{id}/access-log", authed(handleMemoryAccessLog(svc))).Methods("GET")
	api.Handle("/memories/{id}/related", optional(handleRelatedMemories(svc))).Methods("GET")
	api.Handle("/memories/{id}/html", optional(handleMemoryHTML(svc))).Methods("GET")

	api.Handle("/tags", optional(handleListTags(svc))).Methods("GET")
	api.Handle("/entities", optional(handleListEntities(svc))).Methods("GET")
	api.Handle("/entities", authed(handleCreateEntity(svc))).Methods("POST")
}

func memoryFilter(r *http.Request) memory.ListFilter {
	q := r.URL.Query()
	return memory.ListFilter{
		Type:            model.MemoryType(q.Get("type")),
		Category:        q.Get("category"),
		Tag:             q.Get("tag"),
		EntityID:        q.Get("entity_id"),
		OwnerID:         q.Get("owner_id"),
		Text:            q.Get("q"),
		IncludeArchived: queryBool(r, "include_archived"),
		Limit:           queryInt(r, "limit", 0),
		Offset:          queryInt(r, "offset", 0),
	}
}

func handleListMemories(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memories, err := svc.ListMemories(r.Context(), caller(r), memoryFilter(r))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, memories)
	}
}

func handleCreateMemory(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in memory.CreateInput
		if !decodeJSON(w, r, &in) {
			return
		}
		m, err := svc.CreateMemory(r.Context(), caller(r), in)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, m)
	}
}

func handleGetMemory(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := svc.GetMemory(r.Context(), caller(r), pathVar(r, "id"))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, m)
	}
}

func handleUpdateMemory(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in memory.UpdateInput
		if !decodeJSON(w, r, &in) {
			return
		}
		m, err := svc.UpdateMemory(r.Context(), caller(r), pathVar(r, "id"), in)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, m)
	}
}

func handleDeleteMemory(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteMemory(r.Context(), caller(r), pathVar(r, "id")); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleArchiveMemory(svc *memory.Service, archive bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			m   *model.Memory
			err error
		)
		if archive {
			m, err = svc.ArchiveMemory(r.Context(), caller(r), pathVar(r, "id"))
		} else {
			m, err = svc.UnarchiveMemory(r.Context(), caller(r), pathVar(r, "id"))
		}
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, m)
	}
}

func handleAddTags(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagsRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		tags, err := svc.AddTags(r.Context(), caller(r), pathVar(r, "id"), req.Tags)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, tags)
	}
}

func handleRemoveTag(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RemoveTag(r.Context(), caller(r), pathVar(r, "id"), pathVar(r, "name")); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleLinkEntity(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ref memory.EntityRef
		if !decodeJSON(w, r, &ref) {
			return
		}
		linked, err := svc.LinkEntity(r.Context(), caller(r), pathVar(r, "id"), ref)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, linked)
	}
}

func handleUnlinkEntity(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.UnlinkEntity(r.Context(), caller(r), pathVar(r, "id"), pathVar(r, "entity")); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGrantAccess(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req grantRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		grant, err := svc.GrantAccess(r.Context(), caller(r), pathVar(r, "id"), req.UserID, req.Permission)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, grant)
	}
}

func handleRevokeAccess(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RevokeAccess(r.Context(), caller(r), pathVar(r, "id"), pathVar(r, "user")); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMemoryAccessLog(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.AccessLog(r.Context(), caller(r), pathVar(r, "id"), queryInt(r, "limit", 0))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, entries)
	}
}

func handleRelatedMemories(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		related, err := svc.RelatedMemories(r.Context(), caller(r), pathVar(r, "id"), queryInt(r, "limit", 0))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, related)
	}
}

func handleMemoryHTML(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		html, err := svc.RenderMemoryHTML(r.Context(), caller(r), pathVar(r, "id"))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}
}

func handleSearchMemories(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := svc.SearchMemories(r.Context(), caller(r), r.URL.Query().Get("q"), queryInt(r, "limit", 0))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, results)
	}
}

func handleMemoryStats(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, stats)
	}
}

func handleExportMemories(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		contentType, ext := "application/x-ndjson", "jsonl"
		switch format {
		case "", "jsonl":
		case "csv":
			contentType, ext = "text/csv; charset=utf-8", "csv"
		default:
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="memories-%s.%s"`, time.Now().UTC().Format("20060102"), ext))
		f := memoryFilter(r)
		f.Limit, f.Offset = 0, 0
		// A failure after the first buffered flush leaves a truncated body
		if _, err := svc.Export(r.Context(), caller(r), w, format, f); err != nil {
			respondWithServiceError(w, r, err)
		}
	}
}

func handleImportMemories(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := http.MaxBytesReader(w, r.Body, maxImportBytes)
		result, err := svc.Import(r.Context(), caller(r), body, r.URL.Query().Get("format"))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
	}
}

func handleMemorySchema() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, err := memory.Schema()
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		_, _ = w.Write(schema)
	}
}

func handleListTags(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := svc.ListTags(r.Context())
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, tags)
	}
}

func handleListEntities(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		entities, err := svc.ListEntities(r.Context(), model.EntityType(q.Get("type")), q.Get("q"), queryInt(r, "limit", 0))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, entities)
	}
}

func handleCreateEntity(svc *memory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in memory.EntityInput
		if !decodeJSON(w, r, &in) {
			return
		}
		e, err := svc.CreateEntity(r.Context(), caller(r), in)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, e)
	}
}
