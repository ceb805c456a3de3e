package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/maruel/buyandsell/internal/jsonldb"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/ksid"
	"golang.org/x/crypto/bcrypt"
)

// userRow is the stored form of a user.
type userRow struct {
	models.User
	PasswordHash string `json:"passwordHash"`
}

func (r *userRow) Clone() *userRow {
	c := *r
	return &c
}

func (r *userRow) GetID() ksid.ID {
	return r.ID
}

func (r *userRow) Validate() error {
	if err := r.User.Validate(); err != nil {
		return err
	}
	if r.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}

// UserService handles user management and authentication.
type UserService struct {
	pepper  []byte
	cost    int
	table   *jsonldb.Table[*userRow]
	byEmail *jsonldb.UniqueIndex[string, *userRow]
	mu      sync.Mutex // serializes the email check with the append

	// dummyHash is compared against when the email is unknown so that both
	// outcomes of Authenticate cost one bcrypt comparison.
	dummyHash func() []byte
	compare   func(hash, password []byte) error
}

// NewUserService opens the users table in dir.
//
// salt is mixed into every password before hashing.
func NewUserService(dir, salt string) (*UserService, error) {
	if salt == "" {
		return nil, errors.New("salt is required")
	}
	table, err := jsonldb.NewTable[*userRow](filepath.Join(dir, "users.jsonl"))
	if err != nil {
		return nil, err
	}
	s := &UserService{
		pepper:  []byte(salt),
		cost:    bcrypt.DefaultCost,
		table:   table,
		byEmail: jsonldb.NewUniqueIndex(table, func(r *userRow) string { return r.Email }),
		compare: bcrypt.CompareHashAndPassword,
	}
	s.dummyHash = sync.OnceValue(func() []byte {
		h, err := bcrypt.GenerateFromPassword(s.peppered("not a password"), s.cost)
		if err != nil {
			panic(err)
		}
		return h
	})
	return s, nil
}

// NormalizeEmail returns the canonical form used for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// peppered returns the HMAC of password keyed by the salt, hex encoded. It
// stays under bcrypt's 72 byte input limit.
func (s *UserService) peppered(password string) []byte {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(password))
	return []byte(hex.EncodeToString(mac.Sum(nil)))
}

// Create registers a new user.
func (s *UserService) Create(email, password, name string, typ models.UserType) (*models.User, error) {
	if n := utf8.RuneCountInString(password); n < models.MinPasswordLength || n > models.MaxPasswordLength {
		return nil, fmt.Errorf("%w: password must be %d to %d characters", ErrInvalid, models.MinPasswordLength, models.MaxPasswordLength)
	}
	if typ == "" {
		typ = models.UserTypeSimple
	}
	hash, err := bcrypt.GenerateFromPassword(s.peppered(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now().UTC()
	row := &userRow{
		User: models.User{
			ID:         ksid.NewID(),
			Email:      NormalizeEmail(email),
			Name:       strings.TrimSpace(name),
			AvatarPath: models.DefaultAvatarPath,
			Type:       typ,
			Created:    now,
			Modified:   now,
		},
		PasswordHash: string(hash),
	}
	if err := row.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byEmail.Has(row.Email) {
		return nil, fmt.Errorf("%w: email %s", ErrConflict, row.Email)
	}
	if err := s.table.Append(row); err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	u := row.User
	return &u, nil
}

// Get retrieves a user by ID.
func (s *UserService) Get(id ksid.ID) (*models.User, error) {
	row := s.table.Get(id)
	if row == nil {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return &row.User, nil
}

// GetByEmail retrieves a user by email.
func (s *UserService) GetByEmail(email string) (*models.User, error) {
	row := s.byEmail.Get(NormalizeEmail(email))
	if row == nil {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return &row.User, nil
}

// Authenticate verifies user credentials.
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	row := s.byEmail.Get(NormalizeEmail(email))
	if row == nil {
		_ = s.compare(s.dummyHash(), s.peppered(password))
		return nil, ErrInvalidCredentials
	}
	if err := s.compare([]byte(row.PasswordHash), s.peppered(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &row.User, nil
}

// SetAvatar records the uploaded avatar file name.
func (s *UserService) SetAvatar(id ksid.ID, avatarPath string) (*models.User, error) {
	row, err := s.table.Update(id, func(r *userRow) error {
		r.AvatarPath = avatarPath
		r.Modified = time.Now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, jsonldb.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &row.User, nil
}

// List returns all users ordered by creation.
func (s *UserService) List() []*models.User {
	users := make([]*models.User, 0, s.table.Len())
	for row := range s.table.All() {
		users = append(users, &row.User)
	}
	return slices.Clip(users)
}

// Count returns the total number of users.
func (s *UserService) Count() int {
	return s.table.Len()
}
