package endpoints

import (
	"log"
	"net/http"

	"github.com/hasad-erp/hasad/pkg/auth"
	"github.com/hasad-erp/hasad/pkg/server"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type mfaLoginRequest struct {
	MFAToken string `json:"mfa_token" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type mfaCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

type oauthRequest struct {
	Provider string `json:"provider" validate:"required"`
	IDToken  string `json:"id_token" validate:"required"`
}

// RegisterAuthEndpoints registers account, session, MFA and OAuth routes
func RegisterAuthEndpoints(s *server.Server) {
	svc := s.Auth

	public := s.Router.PathPrefix("/auth").Subrouter()
	public.Use(s.Bearer.Anonymous)

	// POST /auth/register - Create a local account
	public.HandleFunc("/register", handleRegister(svc)).Methods("POST")
	// POST /auth/login - Password login
	public.HandleFunc("/login", handleLogin(svc)).Methods("POST")
	// POST /auth/login/mfa - Second step of an MFA login
	public.HandleFunc("/login/mfa", handleMFALogin(svc)).Methods("POST")
	// POST /auth/login/oauth - Login with a linked provider identity
	public.HandleFunc("/login/oauth", handleOAuthLogin(svc)).Methods("POST")
	// POST /auth/refresh - Rotate a refresh token
	public.HandleFunc("/refresh", handleRefresh(svc)).Methods("POST")
	// POST /auth/password/forgot - Request a reset token
	public.HandleFunc("/password/forgot", handleForgotPassword(svc, s.PasswordResetDelivery)).Methods("POST")
	// POST /auth/password/reset - Redeem a reset token
	public.HandleFunc("/password/reset", handleResetPassword(svc)).Methods("POST")

	private := s.Router.PathPrefix("/auth").Subrouter()
	private.Use(s.Bearer.Middleware)

	private.HandleFunc("/logout", handleLogout(svc)).Methods("POST")
	private.HandleFunc("/whoami", handleWhoami(svc)).Methods("GET")
	private.HandleFunc("/password", handleChangePassword(svc)).Methods("PUT")
	private.HandleFunc("/sessions", handleListSessions(svc)).Methods("GET")
	private.HandleFunc("/sessions", handleRevokeOtherSessions(svc)).Methods("DELETE")
	private.HandleFunc("/sessions/{id}", handleRevokeSession(svc)).Methods("DELETE")
	private.HandleFunc("/mfa", handleMFAStatus(svc)).Methods("GET")
	private.HandleFunc("/mfa/setup", handleMFASetup(svc)).Methods("POST")
	private.HandleFunc("/mfa/enable", handleMFAEnable(svc)).Methods("POST")
	private.HandleFunc("/mfa/disable", handleMFADisable(svc)).Methods("POST")
	private.HandleFunc("/mfa/backup-codes", handleBackupCodes(svc)).Methods("POST")
	private.HandleFunc("/oauth", handleListOAuth(svc)).Methods("GET")
	private.HandleFunc("/oauth", handleLinkOAuth(svc)).Methods("POST")
	private.HandleFunc("/oauth/{id}", handleUnlinkOAuth(svc)).Methods("DELETE")
	private.HandleFunc("/logs", handleOwnAuthLogs(svc)).Methods("GET")
}

func handleRegister(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in auth.RegisterInput
		if !decodeJSON(w, r, &in) {
			return
		}
		user, err := svc.Register(in, client(r))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, user)
	}
}

func handleLogin(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in auth.LoginInput
		if !decodeJSON(w, r, &in) {
			return
		}
		c := client(r)
		in.IP, in.UserAgent = c.IP, c.UserAgent

		result, err := svc.Login(in)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
	}
}

func handleMFALogin(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mfaLoginRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		result, err := svc.CompleteMFALogin(req.MFAToken, req.Code, client(r))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
	}
}

func handleOAuthLogin(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauthRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		result, err := svc.LoginWithOAuth(r.Context(), req.Provider, req.IDToken, client(r))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
	}
}

func handleRefresh(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		pair, err := svc.Refresh(req.RefreshToken, client(r))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, pair)
	}
}

// handleForgotPassword answers 202 whether or not the email is registered
func handleForgotPassword(svc *auth.Service, deliver func(email, token string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		token, err := svc.RequestPasswordReset(req.Email, client(r))
		if err != nil {
			log.Printf("password reset request failed: %v", err)
		} else if token != "" && deliver != nil {
			deliver(req.Email, token)
		}
		respondWithJSON(w, http.StatusAccepted, map[string]string{
			"message": "if the address is registered a reset link has been sent",
		})
	}
}

func handleResetPassword(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if err := svc.ResetPassword(req.Token, req.NewPassword, client(r)); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleLogout(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(caller(r).SessionID, client(r)); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleWhoami(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := caller(r)
		user, err := svc.GetUser(id.UserID)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"user":       user,
			"session_id": id.SessionID,
			"client_ip":  id.IP(),
			"expires_at": id.ExpiresAt,
		})
	}
}

func handleChangePassword(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		id := caller(r)
		if err := svc.ChangePassword(id.UserID, id.SessionID, req.CurrentPassword, req.NewPassword, client(r)); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListSessions(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := svc.ListSessions(caller(r).UserID)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, sessions)
	}
}

func handleRevokeSession(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RevokeSession(caller(r).UserID, pathVar(r, "id"), client(r)); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleRevokeOtherSessions signs out every session but the caller's
func handleRevokeOtherSessions(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := caller(r)
		n, err := svc.RevokeOtherSessions(id.UserID, id.SessionID, client(r))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]int{"revoked": n})
	}
}

func handleMFAStatus(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.MFAStatus(caller(r).UserID)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, status)
	}
}

func handleMFASetup(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setup, err := svc.SetupMFA(caller(r).UserID, client(r))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, setup)
	}
}

func handleMFAEnable(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mfaCodeRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if err := svc.EnableMFA(caller(r).UserID, req.Code, client(r)); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMFADisable(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mfaCodeRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if err := svc.DisableMFA(caller(r).UserID, req.Code, client(r)); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleBackupCodes(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mfaCodeRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		codes, err := svc.RegenerateBackupCodes(caller(r).UserID, req.Code, client(r))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string][]string{"backup_codes": codes})
	}
}

func handleListOAuth(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := svc.ListOAuthAccounts(caller(r).UserID)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, accounts)
	}
}

func handleLinkOAuth(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauthRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		account, err := svc.LinkOAuthAccount(r.Context(), caller(r).UserID, req.Provider, req.IDToken, client(r))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, account)
	}
}

func handleUnlinkOAuth(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.UnlinkOAuthAccount(caller(r).UserID, pathVar(r, "id"), client(r)); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleOwnAuthLogs(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := svc.AuthLogs(caller(r).UserID, queryInt(r, "limit", 0))
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, logs)
	}
}
