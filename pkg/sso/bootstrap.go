package sso

import (
	"context"
	"errors"
	"html"

	"github.com/platinummonkey/doorman/pkg/account"
	"github.com/platinummonkey/doorman/pkg/observability"
)

// LoginResult tags the outcome of a session-establishment attempt
type LoginResult int

const (
	// Established means the identity resolved to an existing account
	Established LoginResult = iota
	// Provisioned means a new account was auto-created and logged in
	Provisioned
	// Rejected means no usable account: the caller must fall through to
	// manual login and stop the loop
	Rejected
)

func (r LoginResult) String() string {
	switch r {
	case Established:
		return "established"
	case Provisioned:
		return "provisioned"
	default:
		return "rejected"
	}
}

// LoginOutcome is the tagged result of Bootstrapper.Establish
type LoginOutcome struct {
	Result  LoginResult
	Account *account.Account
}

// Bootstrapper maps a validated identity to a local account, creating one
// when auto-provisioning is enabled
type Bootstrapper struct {
	store  account.Store
	logger *observability.Logger
}

// NewBootstrapper creates a new session bootstrapper
func NewBootstrapper(store account.Store, logger *observability.Logger) *Bootstrapper {
	return &Bootstrapper{store: store, logger: logger}
}

// Establish resolves a username to a local account. The username is
// HTML-escaped before lookup because the raw value comes from a spoofable
// header. A create racing another request falls back to one re-lookup, so
// provisioning is idempotent per identity.
func (b *Bootstrapper) Establish(ctx context.Context, username string, autoCreate bool) (LoginOutcome, error) {
	if username == "" {
		return LoginOutcome{Result: Rejected}, nil
	}

	username = html.EscapeString(username)
	log := b.logger.WithField("username", username)

	acct, err := b.store.LookupByName(ctx, username)
	if err == nil {
		log.WithField("account_id", acct.ID).Debug("identity matched existing account")
		return LoginOutcome{Result: Established, Account: acct}, nil
	}
	if !errors.Is(err, account.ErrNotFound) {
		return LoginOutcome{Result: Rejected}, err
	}

	if !autoCreate {
		log.Debug("no matching account and auto-create disabled")
		return LoginOutcome{Result: Rejected}, nil
	}

	log.Info("auto-creating account for first-seen identity")
	acct, err = b.store.Create(ctx, username)
	if err == nil {
		return LoginOutcome{Result: Provisioned, Account: acct}, nil
	}
	if !errors.Is(err, account.ErrAlreadyExists) {
		return LoginOutcome{Result: Rejected}, err
	}

	// Lost the creation race; the winner's account is ours to use.
	acct, err = b.store.LookupByName(ctx, username)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return LoginOutcome{Result: Rejected}, nil
		}
		return LoginOutcome{Result: Rejected}, err
	}
	return LoginOutcome{Result: Established, Account: acct}, nil
}
