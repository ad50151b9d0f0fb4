package login

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryUserRepository implements UserRepository using in-memory storage.
type InMemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[int64]User
	nextID int64
}

// NewInMemoryUserRepository creates a new in-memory user repository.
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[int64]User)}
}

// FindByUsername finds a user by exact username match.
func (r *InMemoryUserRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// FindByEmail finds a user by exact email match.
func (r *InMemoryUserRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// GetByID fetches a user by id.
func (r *InMemoryUserRepository) GetByID(ctx context.Context, id int64) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// List returns all users ordered by id.
func (r *InMemoryUserRepository) List(ctx context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var users []User
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Create persists a new user record.
func (r *InMemoryUserRepository) Create(ctx context.Context, arg CreateUserParams) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == arg.Username {
			return User{}, ErrUsernameTaken
		}
		if u.Email == arg.Email {
			return User{}, ErrEmailTaken
		}
	}
	r.nextID++
	now := time.Now().UTC()
	u := User{
		ID:           r.nextID,
		Username:     arg.Username,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		FirstName:    arg.FirstName,
		LastName:     arg.LastName,
		IsActive:     arg.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[u.ID] = u
	return u, nil
}

// Update replaces the mutable identity fields of an existing user.
func (r *InMemoryUserRepository) Update(ctx context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	for _, other := range r.users {
		if other.ID == user.ID {
			continue
		}
		if other.Username == user.Username {
			return User{}, ErrUsernameTaken
		}
		if other.Email == user.Email {
			return User{}, ErrEmailTaken
		}
	}
	existing.Username = user.Username
	existing.Email = user.Email
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	existing.IsActive = user.IsActive
	existing.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = existing
	return existing, nil
}

// UpdatePassword replaces the stored password hash.
func (r *InMemoryUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

// Delete removes a user record.
func (r *InMemoryUserRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// UsernameTaken reports whether another user already holds the username.
func (r *InMemoryUserRepository) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ID != excludeID && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// EmailTaken reports whether another user already holds the email.
func (r *InMemoryUserRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ID != excludeID && u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

var _ UserRepository = (*InMemoryUserRepository)(nil)
