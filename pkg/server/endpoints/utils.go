package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/hasad-erp/hasad/pkg/auth"
	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/ledger"
	"github.com/hasad-erp/hasad/pkg/memory"
	"github.com/hasad-erp/hasad/pkg/server/store"
	"github.com/hasad-erp/hasad/pkg/taxonomy"
)

// maxBodyBytes bounds JSON request bodies; imports have their own limit
const maxBodyBytes = 1 << 20

var validate = validator.New()

func respondWithError(w http.ResponseWriter, code int, payload interface{}) {
	respondWithJSON(w, code, map[string]interface{}{"error": payload})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrPasswordReused),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrUnknownProvider),
		errors.Is(err, memory.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, ledger.ErrOverpayment),
		errors.Is(err, taxonomy.ErrInvalidInput),
		errors.Is(err, taxonomy.ErrInvalidRank),
		errors.Is(err, taxonomy.ErrCycle):
		return http.StatusBadRequest

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenRevoked),
		errors.Is(err, auth.ErrSessionInactive),
		errors.Is(err, auth.ErrInvalidMFACode),
		errors.Is(err, auth.ErrOAuthNotLinked):
		return http.StatusUnauthorized

	case errors.Is(err, auth.ErrAccountLocked),
		errors.Is(err, auth.ErrAccountDisabled),
		errors.Is(err, auth.ErrForbidden),
		errors.Is(err, memory.ErrForbidden),
		errors.Is(err, ledger.ErrForbidden),
		errors.Is(err, ledger.ErrSelfApproval),
		errors.Is(err, taxonomy.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrConflict),
		errors.Is(err, auth.ErrMFAAlreadyEnabled),
		errors.Is(err, auth.ErrMFANotEnabled),
		errors.Is(err, auth.ErrMFANotConfigured),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrDebtClosed),
		errors.Is(err, taxonomy.ErrHasChildren):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondWithServiceError writes err with its mapped status. Internal
// errors are logged and hidden from the client.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		respondWithError(w, code, "internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}

// decodeJSON reads a JSON body into v. Domain inputs are validated by
// the services themselves.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "request body is required")
		} else {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		}
		return false
	}
	return true
}

// decodeRequest decodes a handler-local request struct and checks its
// validate tags
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return false
		}
		fields := map[string]string{}
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": fields,
		})
		return false
	}
	return true
}

// caller returns the identity set by the bearer middleware
func caller(r *http.Request) *identity.Identity {
	id, _ := identity.Get(r.Context())
	return id
}

func client(r *http.Request) auth.Client {
	id := caller(r)
	if id == nil {
		return auth.Client{UserAgent: r.UserAgent()}
	}
	return auth.Client{IP: id.IP(), UserAgent: r.UserAgent()}
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
