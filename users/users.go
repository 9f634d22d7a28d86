package users

import (
	"crypto/sha256"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	MaxNameLength     = 100
)

// Palette is the set of accent colours handed out at registration.
var Palette = []string{
	"#3b82f6", "#ef4444", "#10b981", "#f59e0b",
	"#8b5cf6", "#ec4899", "#14b8a6", "#f97316",
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Color        string    `json:"color"`
	PasswordHash string    `json:"-"` // never serialize
	CreatedAt    time.Time `json:"createdAt"`
	LastLogin    time.Time `json:"lastLogin,omitempty"`
}

// Registration is the body of POST /api/auth/register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FieldError names the request field a validation message refers to.
type FieldError struct {
	Field   string `json:"path"`
	Message string `json:"msg"`
}

// Normalize trims the name and lower cases the email.
func (r *Registration) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

// Validate returns every problem with the registration, in field order.
func (r Registration) Validate() []FieldError {
	var issues []FieldError
	switch {
	case r.Name == "":
		issues = append(issues, FieldError{"name", "Name is required"})
	case utf8.RuneCountInString(r.Name) > MaxNameLength:
		issues = append(issues, FieldError{"name", "Name cannot exceed 100 characters"})
	}
	if _, err := mail.ParseAddress(r.Email); err != nil || !strings.Contains(r.Email, "@") {
		issues = append(issues, FieldError{"email", "Please provide a valid email"})
	}
	if err := ValidatePasswordStrength(r.Password); err != nil {
		issues = append(issues, FieldError{"password", err.Error()})
	}
	return issues
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks the password is long enough to register.
func ValidatePasswordStrength(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return errPasswordTooShort
	}
	return nil
}

type passwordError string

func (e passwordError) Error() string { return string(e) }

const errPasswordTooShort = passwordError("Password must be at least 6 characters")

// ColorFor picks a stable palette colour for an email address.
func ColorFor(email string) string {
	sum := sha256.Sum256([]byte(email))
	return Palette[int(sum[0])%len(Palette)]
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
