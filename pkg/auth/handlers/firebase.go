package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cbodonnell/evervoid/pkg/log"
)

var _ AuthHandler = &FirebaseAuthHandler{}

const (
	DefaultIdentityURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultTokenURL    = "https://securetoken.googleapis.com/v1"
)

// FirebaseAuthHandler implements AuthHandler using Firebase Auth REST API
type FirebaseAuthHandler struct {
	apiKey      string
	identityURL string
	tokenURL    string
	client      *http.Client
}

type NewFirebaseAuthHandlerOptions struct {
	APIKey string
	// IdentityURL and TokenURL override the Firebase endpoints.
	IdentityURL string
	TokenURL    string
	Client      *http.Client
}

// NewFirebaseAuthHandler creates a new instance of FirebaseAuthHandler
func NewFirebaseAuthHandler(opts NewFirebaseAuthHandlerOptions) *FirebaseAuthHandler {
	h := &FirebaseAuthHandler{
		apiKey:      opts.APIKey,
		identityURL: opts.IdentityURL,
		tokenURL:    opts.TokenURL,
		client:      opts.Client,
	}
	if h.identityURL == "" {
		h.identityURL = DefaultIdentityURL
	}
	if h.tokenURL == "" {
		h.tokenURL = DefaultTokenURL
	}
	if h.client == nil {
		h.client = http.DefaultClient
	}
	return h
}

// ErrorResponseBody is the response body for an error
// https://firebase.google.com/docs/reference/rest/auth#section-error-format
type ErrorResponseBody struct {
	Error struct {
		Code    int                  `json:"code"`
		Message ErrorResponseMessage `json:"message"`
	} `json:"error"`
}

type ErrorResponseMessage string

const (
	ErrorTooManyAttempts         ErrorResponseMessage = "TOO_MANY_ATTEMPTS_TRY_LATER"
	ErrorInvalidEmail            ErrorResponseMessage = "INVALID_EMAIL"
	ErrorInvalidLoginCredentials ErrorResponseMessage = "INVALID_LOGIN_CREDENTIALS"
	ErrorTokenExpired            ErrorResponseMessage = "TOKEN_EXPIRED"
	ErrorInvalidRefreshToken     ErrorResponseMessage = "INVALID_REFRESH_TOKEN"
)

// upstreamError is a rejection from Firebase mapped to a client-facing reply.
type upstreamError struct {
	message ErrorResponseMessage
	status  string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("firebase rejected request (%s): %s", e.status, e.message)
}

// LoginRequestBody is the request body for the login endpoint
type LoginRequestBody struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// LoginResponseBody is the response body for the login endpoint
type LoginResponseBody struct {
	IDToken      string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Registered   bool   `json:"registered"`
}

// HandleLogin handles requests to the login endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-sign-in-email-password
func (h *FirebaseAuthHandler) HandleLogin() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.FormValue("email")
		password := r.FormValue("password")

		if email == "" {
			http.Error(w, "Missing email", http.StatusBadRequest)
			return
		}
		if password == "" {
			http.Error(w, "Missing password", http.StatusBadRequest)
			return
		}

		requestPayload := &LoginRequestBody{
			Email:             email,
			Password:          password,
			ReturnSecureToken: true,
		}
		responsePayload := &LoginResponseBody{}
		url := h.identityURL + "/accounts:signInWithPassword?key=" + h.apiKey
		if err := h.post(r.Context(), url, requestPayload, responsePayload); err != nil {
			writeUpstreamError(w, err, "Failed to login")
			return
		}
		writeJSON(w, responsePayload)
	}
}

// RefreshRequestBody is the request body for the refresh endpoint
type RefreshRequestBody struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponseBody is the response body for the refresh endpoint
type RefreshResponseBody struct {
	ExpiresIn    string `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
	ProjectID    string `json:"project_id"`
}

// HandleRefresh handles requests to the refresh endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-refresh-token
func (h *FirebaseAuthHandler) HandleRefresh() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := r.FormValue("refreshToken")
		if refreshToken == "" {
			http.Error(w, "Missing refresh token", http.StatusBadRequest)
			return
		}

		requestPayload := &RefreshRequestBody{
			GrantType:    "refresh_token",
			RefreshToken: refreshToken,
		}
		responsePayload := &RefreshResponseBody{}
		url := h.tokenURL + "/token?key=" + h.apiKey
		if err := h.post(r.Context(), url, requestPayload, responsePayload); err != nil {
			writeUpstreamError(w, err, "Failed to refresh")
			return
		}
		writeJSON(w, responsePayload)
	}
}

func (h *FirebaseAuthHandler) post(ctx context.Context, url string, requestPayload, responsePayload interface{}) error {
	body := bytes.NewBuffer(nil)
	if err := json.NewEncoder(body).Encode(requestPayload); err != nil {
		return fmt.Errorf("error encoding request body: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorResponse := &ErrorResponseBody{}
		if err := json.NewDecoder(resp.Body).Decode(errorResponse); err != nil {
			return fmt.Errorf("failed to decode error response (%s): %v", resp.Status, err)
		}
		return &upstreamError{message: errorResponse.Error.Message, status: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(responsePayload); err != nil {
		return fmt.Errorf("error decoding response: %v", err)
	}
	return nil
}

func writeUpstreamError(w http.ResponseWriter, err error, fallback string) {
	upstream, ok := err.(*upstreamError)
	if !ok {
		log.Error("Auth request failed: %v", err)
		http.Error(w, fallback, http.StatusInternalServerError)
		return
	}

	switch upstream.message {
	case ErrorInvalidEmail:
		http.Error(w, "Invalid email", http.StatusBadRequest)
		return
	case ErrorInvalidLoginCredentials:
		http.Error(w, "Invalid credentials", http.StatusBadRequest)
		return
	case ErrorTokenExpired, ErrorInvalidRefreshToken:
		http.Error(w, "Token expired", http.StatusBadRequest)
		return
	case ErrorTooManyAttempts:
		http.Error(w, "Too many attempts, try again later", http.StatusTooManyRequests)
		return
	}

	log.Error("unhandled error response message: %s", upstream.message)
	http.Error(w, fallback, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("error encoding response: %v", err)
	}
}
