// Package service implements identity resolution: mapping an external
// contact (email, phone) to an internal user, creating one when needed.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"vitigo_crm_backend/internal/identity/repository"
	"vitigo_crm_backend/platform/apperr"
	"vitigo_crm_backend/platform/logger"
	"vitigo_crm_backend/platform/phone"
)

// RolePatient is the default role for users created by ingestion.
const RolePatient = "PATIENT"

var (
	// ErrAmbiguous is returned when email and phone resolve to two
	// different existing users.
	ErrAmbiguous = apperr.Conflict("contact email and phone belong to different users")
	// ErrUnresolvable is returned when neither email nor phone is supplied.
	ErrUnresolvable = apperr.Validation("cannot resolve identity without email or phone")
)

// ResolveInput carries the contact details extracted by a channel adapter.
type ResolveInput struct {
	Email       string
	Phone       string
	CountryCode string
	FirstName   string
	LastName    string
}

type Service struct {
	pool *pgxpool.Pool
	repo *repository.Repository
	log  *logger.Logger
}

func New(pool *pgxpool.Pool, repo *repository.Repository, log *logger.Logger) *Service {
	return &Service{pool: pool, repo: repo, log: log}
}

// Resolve maps the input to a user inside its own transaction. The bool
// result reports whether a new user was created.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (*repository.User, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin identity tx: %w", err)
	}
	defer tx.Rollback(ctx)

	user, created, err := s.ResolveInTx(ctx, tx, in)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit identity tx: %w", err)
	}
	return user, created, nil
}

// ResolveInTx resolves within a caller-owned transaction so ingestion can
// create the user, the query and its tags in one unit of work.
//
// Lookup order: email first, then phone; creation is the fallback. Running
// the whole chain in one transaction keeps concurrent inbound events from
// minting duplicate users.
func (s *Service) ResolveInTx(ctx context.Context, tx pgx.Tx, in ResolveInput) (*repository.User, bool, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.CountryCode, in.Phone = normalizePhone(in.CountryCode, in.Phone)

	if in.Email == "" && in.Phone == "" {
		return nil, false, ErrUnresolvable
	}

	repo := s.repo.WithTx(tx)

	var byEmail, byPhone *repository.User
	var err error

	if in.Email != "" {
		byEmail, err = repo.FindByEmail(ctx, in.Email)
		if err != nil {
			return nil, false, err
		}
	}
	if in.Phone != "" {
		byPhone, err = repo.FindByPhone(ctx, in.CountryCode, in.Phone)
		if err != nil {
			return nil, false, err
		}
	}

	switch {
	case byEmail != nil && byPhone != nil && byEmail.ID != byPhone.ID:
		return nil, false, ErrAmbiguous
	case byEmail != nil:
		return byEmail, false, nil
	case byPhone != nil:
		return byPhone, false, nil
	}

	user, err := s.createUser(ctx, repo, in)
	if err != nil {
		return nil, false, err
	}

	s.log.Info("created user from inbound contact",
		"user_id", user.ID, "email", user.Email, "role", RolePatient)
	return user, true, nil
}

func (s *Service) createUser(ctx context.Context, repo *repository.Repository, in ResolveInput) (*repository.User, error) {
	firstName := in.FirstName
	if firstName == "" && in.Email != "" {
		firstName, _, _ = strings.Cut(in.Email, "@")
	}
	if firstName == "" {
		firstName = "Guest"
	}

	password, err := GeneratePassword(16)
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return repo.Create(ctx, repository.CreateUserParams{
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     in.LastName,
		CountryCode:  in.CountryCode,
		PhoneNumber:  in.Phone,
		RoleName:     RolePatient,
	})
}

func normalizePhone(countryCode, raw string) (string, string) {
	if raw == "" {
		return "", ""
	}
	if countryCode != "" {
		raw = countryCode + raw
	}
	return phone.Split(raw)
}

const (
	passwordLower = "abcdefghijklmnopqrstuvwxyz"
	passwordUpper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	passwordDigit = "0123456789"
	passwordPunct = "!@#$%^&*-_=+"
)

// GeneratePassword returns a cryptographically random password of at least
// 12 characters containing upper, lower, digit and punctuation classes.
func GeneratePassword(length int) (string, error) {
	if length < 12 {
		length = 12
	}
	classes := []string{passwordLower, passwordUpper, passwordDigit, passwordPunct}
	all := strings.Join(classes, "")

	buf := make([]byte, length)
	// One character from each class keeps the mix guaranteed.
	for i, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	for i := len(classes); i < length; i++ {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	if err := shuffle(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}

func shuffle(buf []byte) error {
	for i := len(buf) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		j := n.Int64()
		buf[i], buf[j] = buf[j], buf[i]
	}
	return nil
}
