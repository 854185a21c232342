package handlers

import "net/http"

// AuthHandler exchanges player credentials for the identity token sent in
// the handshake.
type AuthHandler interface {
	HandleLogin() func(w http.ResponseWriter, r *http.Request)
	HandleRefresh() func(w http.ResponseWriter, r *http.Request)
}
