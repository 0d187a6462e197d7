package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/pkg/security"
)

var ErrUserExists = errors.New("user already exists")

type account struct {
	user model.User
	hash string
}

// Users is the local user registry backing the auth test double. Only
// password hashes are kept.
type Users struct {
	mu       sync.RWMutex
	accounts map[string]account
	hasher   security.PasswordHasher
}

func NewUsers(hasher security.PasswordHasher) *Users {
	return &Users{
		accounts: make(map[string]account),
		hasher:   hasher,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *Users) Exists(email string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.accounts[normalizeEmail(email)]
	return ok
}

// Register stores user under its e-mail with a hash of password.
func (u *Users) Register(user model.User, password string) (model.User, error) {
	hash, err := u.hasher.Hash(password)
	if err != nil {
		return model.User{}, err
	}

	key := normalizeEmail(user.Email)
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.accounts[key]; ok {
		return model.User{}, ErrUserExists
	}
	u.accounts[key] = account{user: user, hash: hash}
	return user, nil
}

// Authenticate returns the user when password matches the stored hash.
func (u *Users) Authenticate(email, password string) (model.User, bool) {
	u.mu.RLock()
	acc, ok := u.accounts[normalizeEmail(email)]
	u.mu.RUnlock()
	if !ok {
		return model.User{}, false
	}
	if err := u.hasher.Compare(acc.hash, password); err != nil {
		return model.User{}, false
	}
	return acc.user, true
}

func (u *Users) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.accounts)
}

// Close forgets every registered user.
func (u *Users) Close() error {
	u.mu.Lock()
	u.accounts = make(map[string]account)
	u.mu.Unlock()
	return nil
}
