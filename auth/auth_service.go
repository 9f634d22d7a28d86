package auth

import (
	"time"

	apperrors "github.com/jrsteele09/go-calendar-sync/internal/errors"
	"github.com/jrsteele09/go-calendar-sync/token"
	"github.com/jrsteele09/go-calendar-sync/users"
	"github.com/pkg/errors"
)

// Repos holds all repository dependencies for the Service
type Repos struct {
	Users users.UserRepo
}

// Session is a freshly issued credential and the user it belongs to.
type Session struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

// Service registers users and issues, renews and checks bearer tokens.
type Service struct {
	repos   Repos
	tokens  *token.Manager
	nowTime func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func NewService(repos Repos, tokens *token.Manager, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	s := &Service{
		repos:   repos,
		tokens:  tokens,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Register creates the account and signs it in.
func (s *Service) Register(reg users.Registration) (*Session, error) {
	reg.Normalize()
	if issues := reg.Validate(); len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	if _, err := s.repos.Users.GetByEmail(reg.Email); err == nil {
		return nil, apperrors.ErrEmailTaken
	}

	hash, err := users.HashPassword(reg.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Register] hash password")
	}
	user := &users.User{
		Name:         reg.Name,
		Email:        reg.Email,
		Color:        users.ColorFor(reg.Email),
		PasswordHash: hash,
		CreatedAt:    s.nowTime(),
	}
	if err := s.repos.Users.Insert(user); err != nil {
		return nil, errors.Wrap(err, "[Register] insert user")
	}
	return s.issue(user)
}

// Login checks the credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(email, password string) (*Session, error) {
	user, err := s.repos.Users.GetByEmail(users.NormalizeEmail(email))
	if err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err := s.repos.Users.SetLastLogin(user.ID); err != nil {
		return nil, errors.Wrap(err, "[Login] set last login")
	}
	return s.issue(user)
}

// Renew swaps a valid token for a new one and revokes the old one.
func (s *Service) Renew(claims *token.Claims) (*Session, error) {
	user, err := s.repos.Users.GetByID(claims.Subject)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Revoke(claims); err != nil {
		return nil, errors.Wrap(err, "[Renew] revoke previous token")
	}
	return session, nil
}

// Authenticate resolves a bearer token to its claims and user.
func (s *Service) Authenticate(raw string) (*token.Claims, *users.User, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.repos.Users.GetByID(claims.Subject)
	if err != nil {
		return nil, nil, apperrors.ErrInvalidToken
	}
	return claims, user, nil
}

func (s *Service) issue(user *users.User) (*Session, error) {
	signed, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "[issue] token")
	}
	return &Session{Token: signed, User: user}, nil
}
