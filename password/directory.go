package password

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	goThrottle "github.com/MrEthical07/goThrottle"
)

// ErrAccountExists is returned by [Directory.Create] for an email that is already stored.
var ErrAccountExists = errors.New("account already exists")

type account struct {
	hash   string
	active bool
}

// Directory is an in-memory credential store used by the demo sign-in endpoint.
//
// Directory is safe for concurrent use.
type Directory struct {
	hasher *Hasher

	mu    sync.RWMutex
	users map[string]account
}

// NewDirectory returns an empty directory hashing with hasher.
func NewDirectory(hasher *Hasher) *Directory {
	return &Directory{
		hasher: hasher,
		users:  make(map[string]account),
	}
}

// Add stores email with a hash of plain, replacing any existing entry.
// It is meant for seeding; self-service registration goes through [Directory.Create].
func (d *Directory) Add(email, plain string, active bool) error {
	return d.put(email, plain, active, true)
}

// Create stores a new active account and fails with [ErrAccountExists] when email,
// after normalization, is already present.
func (d *Directory) Create(email, plain string) error {
	return d.put(email, plain, true, false)
}

func (d *Directory) put(email, plain string, active, replace bool) error {
	email = NormalizeEmail(email)
	if email == "" {
		return errors.New("email required")
	}

	hash, err := d.hasher.Hash(plain)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[email]; ok && !replace {
		return fmt.Errorf("%w: %s", ErrAccountExists, email)
	}
	d.users[email] = account{hash: hash, active: active}
	return nil
}

// Len returns the number of stored accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate checks plain against the stored hash of email. Unknown emails, wrong passwords
// and inactive accounts all return an error wrapping goThrottle.ErrInvalidCredentials, so a
// caller cannot tell them apart. A stored hash that needs stronger parameters is upgraded after
// a successful check.
func (d *Directory) Authenticate(ctx context.Context, email, plain string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	email = NormalizeEmail(email)
	d.mu.RLock()
	acct, ok := d.users[email]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: unknown account", goThrottle.ErrInvalidCredentials)
	}

	match, err := d.hasher.Verify(plain, acct.hash)
	if err != nil {
		return err
	}
	if !match {
		return fmt.Errorf("%w: password mismatch", goThrottle.ErrInvalidCredentials)
	}
	if !acct.active {
		return fmt.Errorf("%w: account inactive", goThrottle.ErrInvalidCredentials)
	}

	if stale, err := d.hasher.NeedsRehash(acct.hash); err == nil && stale {
		if hash, err := d.hasher.Hash(plain); err == nil {
			d.mu.Lock()
			if cur, ok := d.users[email]; ok && cur.hash == acct.hash {
				d.users[email] = account{hash: hash, active: cur.active}
			}
			d.mu.Unlock()
		}
	}

	return nil
}

// NormalizeEmail returns the canonical form of email used as the account key. Callers
// that key throttling state by email must use the same form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
