package auth

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Logger is the logging surface used across the package.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	// Hash produces a salted one-way hash of password.
	Hash(password string) (string, error)
	// Verify returns (true, nil) on match, (false, nil) on mismatch and an
	// error only when the stored hash is malformed.
	Verify(password, hash string) (bool, error)
}

// TokenIssuer mints bearer tokens for a principal
type TokenIssuer interface {
	Issue(principal Principal) (string, time.Time, error)
}

// UserFinder resolves a user by id. Implementations return ErrUserNotFound
// when no record exists.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*User, error)
}

// UserStore is the persistence collaborator used by AccountService.
type UserStore interface {
	UserFinder
	FindByEmail(ctx context.Context, email string) (*User, error)
	Insert(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User, columns ...string) error
}

type defLogger struct {
	w io.Writer
}

func (d defLogger) Debug(msg string, args ...any) {
	d.print("DBG", msg, args)
}

func (d defLogger) Info(msg string, args ...any) {
	d.print("INF", msg, args)
}

func (d defLogger) Warn(msg string, args ...any) {
	d.print("WRN", msg, args)
}

func (d defLogger) Error(msg string, args ...any) {
	d.print("ERR", msg, args)
}

func (d defLogger) print(level, msg string, args []any) {
	w := d.w
	if w == nil {
		w = os.Stdout
	}

	var b strings.Builder
	b.WriteString("[" + level + "] AUTH " + msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")

	_, _ = io.WriteString(w, b.String())
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
