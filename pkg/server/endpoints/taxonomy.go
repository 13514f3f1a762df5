package endpoints

import (
	"net/http"

	"github.com/hasad-erp/hasad/pkg/server"
	"github.com/hasad-erp/hasad/pkg/taxonomy"
)

// RegisterTaxonomyEndpoints registers the crop taxonomy routes. The
// taxonomy is reference data, so reads need no token.
func RegisterTaxonomyEndpoints(s *server.Server) {
	svc := s.Taxonomy

	crops := s.Router.PathPrefix("/api/crops").Subrouter()
	crops.Use(s.Bearer.Anonymous)

	crops.HandleFunc("", handleListRootTaxa(svc)).Methods("GET")
	crops.HandleFunc("/tree", handleTaxonTree(svc)).Methods("GET")
	crops.HandleFunc("/search", handleSearchTaxa(svc)).Methods("GET")
	crops.Handle("", s.Bearer.Middleware(handleCreateTaxon(svc))).Methods("POST")
	crops.HandleFunc("/{id}", handleGetTaxon(svc)).Methods("GET")
	crops.Handle("/{id}", s.Bearer.Middleware(handleUpdateTaxon(svc))).Methods("PUT")
	crops.Handle("/{id}", s.Bearer.Middleware(handleDeleteTaxon(svc))).Methods("DELETE")
	crops.HandleFunc("/{id}/children", handleTaxonChildren(svc)).Methods("GET")
	crops.HandleFunc("/{id}/lineage", handleTaxonLineage(svc)).Methods("GET")
}

func handleListRootTaxa(svc *taxonomy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roots, err := svc.Children(r.Context(), "")
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, roots)
	}
}

func handleTaxonTree(svc *taxonomy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tree, err := svc.Tree(r.Context())
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, tree)
	}
}

func handleSearchTaxa(svc *taxonomy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taxa, err := svc.SearchTaxa(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit", 0))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, taxa)
	}
}

func handleCreateTaxon(svc *taxonomy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in taxonomy.TaxonInput
		if !decodeJSON(w, r, &in) {
			return
		}
		taxon, err := svc.CreateTaxon(r.Context(), caller(r), in)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, taxon)
	}
}

func handleGetTaxon(svc *taxonomy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taxon, err := svc.GetTaxon(r.Context(), pathVar(r, "id"))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, taxon)
	}
}

func handleUpdateTaxon(svc *taxonomy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in taxonomy.TaxonInput
		if !decodeJSON(w, r, &in) {
			return
		}
		taxon, err := svc.UpdateTaxon(r.Context(), caller(r), pathVar(r, "id"), in)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, taxon)
	}
}

func handleDeleteTaxon(svc *taxonomy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteTaxon(r.Context(), caller(r), pathVar(r, "id")); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleTaxonChildren(svc *taxonomy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		children, err := svc.Children(r.Context(), pathVar(r, "id"))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, children)
	}
}

func handleTaxonLineage(svc *taxonomy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineage, err := svc.Lineage(r.Context(), pathVar(r, "id"))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, lineage)
	}
}
