package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quiz-eval-service/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore persists employees and administrators.
type AccountStore interface {
	// CreateUser returns domain.ErrUserExists when EmpID or CIN is taken.
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	FindUserByEmpID(ctx context.Context, empID string) (domain.User, bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	// CreateAdmin returns domain.ErrAdminExists when the username is taken.
	CreateAdmin(ctx context.Context, admin domain.Admin) (domain.Admin, error)
	FindAdminByUsername(ctx context.Context, username string) (domain.Admin, bool, error)
}

// SessionIssuer signs session tokens for authenticated principals.
type SessionIssuer interface {
	Issue(p domain.Principal) (string, error)
}

// AccountService implements registration, login and session language changes.
type AccountService struct {
	accounts AccountStore
	sessions SessionIssuer
	cost     int
	log      *slog.Logger
	// dummy is compared against when the login name is unknown so both paths cost a hash.
	dummy []byte
}

func NewAccountService(accounts AccountStore, sessions SessionIssuer, bcryptCost int, log *slog.Logger) *AccountService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = slog.Default()
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("quiz-eval-dummy"), bcryptCost)
	return &AccountService{accounts: accounts, sessions: sessions, cost: bcryptCost, log: log, dummy: dummy}
}

// RegisterRequest is an employee self-registration.
type RegisterRequest struct {
	EmpID     string `json:"empId" validate:"required"`
	CIN       string `json:"cin" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Service   string `json:"service" validate:"required"`
	Site      string `json:"site" validate:"required"`
	Password  string `json:"password" validate:"required,min=6"`
}

// LoginRequest authenticates an employee; Language is the optional session language.
type LoginRequest struct {
	EmpID    string `json:"empId" validate:"required"`
	Password string `json:"password" validate:"required"`
	Language string `json:"language" validate:"omitempty,oneof=fr ar es en"`
}

// AdminLoginRequest authenticates an administrator.
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is a signed token together with the principal it carries.
type Session struct {
	Token     string           `json:"token"`
	Principal domain.Principal `json:"-"`
}

// ValidationError reports a rejected request payload.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// RegisterUser creates an employee account.
func (s *AccountService) RegisterUser(ctx context.Context, req RegisterRequest) (domain.User, error) {
	if err := validate.Struct(req); err != nil {
		return domain.User{}, &ValidationError{Err: err}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.accounts.CreateUser(ctx, domain.User{
		EmpID:        req.EmpID,
		CIN:          req.CIN,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Service:      req.Service,
		Site:         req.Site,
		PasswordHash: string(hash),
	})
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("user registered", "user", user.ID, "emp_id", user.EmpID)
	return user, nil
}

// LoginUser checks employee credentials and opens a session.
func (s *AccountService) LoginUser(ctx context.Context, req LoginRequest) (Session, error) {
	if err := validate.Struct(req); err != nil {
		return Session{}, &ValidationError{Err: err}
	}
	user, found, err := s.accounts.FindUserByEmpID(ctx, req.EmpID)
	if err != nil {
		return Session{}, err
	}
	if !s.checkPassword(found, user.PasswordHash, req.Password) {
		s.log.Warn("user login failed", "emp_id", req.EmpID)
		return Session{}, domain.ErrInvalidCredentials
	}

	lang := domain.DefaultLanguage
	if l, ok := domain.ParseLanguage(req.Language); ok {
		lang = l
	}
	return s.open(domain.Principal{
		Kind:      domain.PrincipalUser,
		ID:        user.ID,
		SessionID: uuid.NewString(),
		Language:  lang,
	})
}

// LoginAdmin checks administrator credentials and opens a session.
func (s *AccountService) LoginAdmin(ctx context.Context, req AdminLoginRequest) (Session, error) {
	if err := validate.Struct(req); err != nil {
		return Session{}, &ValidationError{Err: err}
	}
	admin, found, err := s.accounts.FindAdminByUsername(ctx, req.Username)
	if err != nil {
		return Session{}, err
	}
	if !s.checkPassword(found, admin.PasswordHash, req.Password) {
		s.log.Warn("admin login failed", "username", req.Username)
		return Session{}, domain.ErrInvalidCredentials
	}
	return s.open(domain.Principal{
		Kind:      domain.PrincipalAdmin,
		ID:        admin.ID,
		SessionID: uuid.NewString(),
		Language:  domain.DefaultLanguage,
	})
}

// ChangeLanguage reissues the session token with a new language, keeping the session ID.
func (s *AccountService) ChangeLanguage(p domain.Principal, language string) (Session, error) {
	lang, ok := domain.ParseLanguage(language)
	if !ok {
		return Session{}, &ValidationError{Err: fmt.Errorf("unsupported language %q", language)}
	}
	p.Language = lang
	return s.open(p)
}

// CreateAdmin adds an administrator account.
func (s *AccountService) CreateAdmin(ctx context.Context, username, password string) (domain.Admin, error) {
	if username == "" || password == "" {
		return domain.Admin{}, &ValidationError{Err: errors.New("username and password are required")}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.Admin{}, fmt.Errorf("hash password: %w", err)
	}
	admin, err := s.accounts.CreateAdmin(ctx, domain.Admin{Username: username, PasswordHash: string(hash)})
	if err != nil {
		return domain.Admin{}, err
	}
	s.log.Info("admin created", "admin", admin.ID, "username", admin.Username)
	return admin, nil
}

// EnsureAdmin creates the administrator unless the username already exists.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.CreateAdmin(ctx, username, password)
	if errors.Is(err, domain.ErrAdminExists) {
		return nil
	}
	return err
}

// ListUsers returns all registered employees.
func (s *AccountService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.accounts.ListUsers(ctx)
}

func (s *AccountService) checkPassword(found bool, hash, password string) bool {
	if !found {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *AccountService) open(p domain.Principal) (Session, error) {
	token, err := s.sessions.Issue(p)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Principal: p}, nil
}
