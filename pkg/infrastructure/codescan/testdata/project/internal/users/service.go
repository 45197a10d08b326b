package users

import "errors"

// UserService manages user accounts.
// Implements: DES-001
type UserService struct {
	store Store
}

// Store persists users.
type Store interface {
	Get(id string) (*User, error)
	Put(u *User) error
}

// User is the persisted account record.
// Implements: DES-002
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func NewUserService(store Store) *UserService {
	return &UserService{store: store}
}

// Register creates an account for email. REQ-001
func (s *UserService) Register(email string) (*User, error) {
	if email == "" {
		return nil, errors.New("email required")
	}
	u := &User{ID: email, Email: email}
	return u, s.store.Put(u)
}

func (s *UserService) normalize(email string) string {
	return email
}
