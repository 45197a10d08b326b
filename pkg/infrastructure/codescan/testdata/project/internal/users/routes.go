package users

import "net/http"

// Routes wires the user API.
func Routes(mux *http.ServeMux, s *UserService) {
	// API-001
	mux.HandleFunc("POST /users", s.handleCreate)
	mux.HandleFunc("GET /users/{id}", s.handleGet)
}

func (s *UserService) handleCreate(w http.ResponseWriter, r *http.Request) {}

func (s *UserService) handleGet(w http.ResponseWriter, r *http.Request) {}
