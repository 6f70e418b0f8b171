// Package auth keeps signed-in Telegram users and the session tokens handed
// to realtime clients.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"time-tracker/internal/model"
	"time-tracker/internal/repository"
)

var (
	ErrUnknownUser       = errors.New("user is not registered")
	ErrAlreadyRegistered = errors.New("user is already registered")
)

// Users is the user store the provider signs people in against.
type Users interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	UpsertFromTelegram(ctx context.Context, id repository.Identity) (*model.User, error)
}

// Provisioner prepares a user's data on sign-in.
type Provisioner interface {
	Ensure(ctx context.Context, userID uint) (*model.Category, error)
}

// Session is one signed-in user.
type Session struct {
	Token     string
	User      model.User
	CreatedAt time.Time
}

// Provider is an in-memory session table keyed by Telegram id and token.
type Provider struct {
	users Users
	setup Provisioner
	now   func() time.Time

	mu         sync.RWMutex
	byTelegram map[int64]*Session
	byToken    map[string]*Session
}

func NewProvider(users Users, setup Provisioner) *Provider {
	return &Provider{
		users:      users,
		setup:      setup,
		now:        time.Now,
		byTelegram: make(map[int64]*Session),
		byToken:    make(map[string]*Session),
	}
}

// SignUp registers a new user and opens a session.
func (p *Provider) SignUp(ctx context.Context, id repository.Identity) (*Session, error) {
	_, err := p.users.FindByTelegramID(ctx, id.TelegramID)
	switch {
	case err == nil:
		return nil, ErrAlreadyRegistered
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("sign up: %w", err)
	}
	return p.open(ctx, id)
}

// SignIn opens a session for a registered user, refreshing the stored profile.
func (p *Provider) SignIn(ctx context.Context, id repository.Identity) (*Session, error) {
	_, err := p.users.FindByTelegramID(ctx, id.TelegramID)
	switch {
	case repository.IsNotFound(err):
		return nil, ErrUnknownUser
	case err != nil:
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return p.open(ctx, id)
}

// SignOut drops the session; it reports whether one existed.
func (p *Provider) SignOut(telegramID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byTelegram[telegramID]
	if !ok {
		return false
	}
	delete(p.byTelegram, telegramID)
	delete(p.byToken, s.Token)
	return true
}

func (p *Provider) CurrentUser(telegramID int64) (*model.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byTelegram[telegramID]
	if !ok {
		return nil, false
	}
	user := s.User
	return &user, true
}

// Lookup resolves a session token.
func (p *Provider) Lookup(token string) (Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byToken[token]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Token returns the session token of a signed-in user.
func (p *Provider) Token(telegramID int64) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byTelegram[telegramID]
	if !ok {
		return "", false
	}
	return s.Token, true
}

func (p *Provider) open(ctx context.Context, id repository.Identity) (*Session, error) {
	user, err := p.users.UpsertFromTelegram(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.setup != nil {
		if _, err := p.setup.Ensure(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	s := &Session{Token: uuid.NewString(), User: *user, CreatedAt: p.now()}

	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.byTelegram[id.TelegramID]; ok {
		delete(p.byToken, old.Token)
	}
	p.byTelegram[id.TelegramID] = s
	p.byToken[s.Token] = s
	copied := *s
	return &copied, nil
}
