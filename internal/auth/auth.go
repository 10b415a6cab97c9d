// Package auth verifies a user's secret through a pluggable conversation
// back end. Production builds use PAM.
package auth

import (
	"context"
	"fmt"

	"github.com/Dennisbonke/wayland-greeter/internal/logging"
	"github.com/Dennisbonke/wayland-greeter/internal/secmem"
)

var log = logging.L("auth")

// PromptKind is the kind of message a back end sends during the
// conversation.
type PromptKind int

const (
	// PromptSecret asks for input that must not be echoed.
	PromptSecret PromptKind = iota + 1
	// PromptVisible asks for echoed input.
	PromptVisible
	MessageInfo
	MessageError
)

func (k PromptKind) String() string {
	switch k {
	case PromptSecret:
		return "secret"
	case PromptVisible:
		return "visible"
	case MessageInfo:
		return "info"
	case MessageError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ConversationFunc answers one back-end message. A non-nil error aborts
// the conversation.
type ConversationFunc func(kind PromptKind, msg string) (string, error)

// Transaction is one started authentication exchange.
type Transaction interface {
	Authenticate() error
	// AcctMgmt checks account validity (expiry, lock, access rules).
	AcctMgmt() error
	// User returns the user name as the back end finally sees it.
	User() (string, error)
	End() error
}

// Backend starts transactions for a service.
type Backend interface {
	Start(service, username string, conv ConversationFunc) (Transaction, error)
}

// Verifier checks credentials against a Backend.
type Verifier struct {
	backend Backend
	service string
}

// NewVerifier returns a Verifier using backend under the given service
// name.
func NewVerifier(backend Backend, service string) *Verifier {
	return &Verifier{backend: backend, service: service}
}

// Authenticate runs the conversation for username and then checks account
// validity. On success it returns the back end's final user name. Every
// failure matches ErrAuthFailed; the stage that failed is only logged.
func (v *Verifier) Authenticate(ctx context.Context, username string, secret *secmem.SecureString) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var convErr error
	conv := func(kind PromptKind, msg string) (string, error) {
		switch kind {
		case PromptSecret:
			return secret.Reveal(), nil
		case PromptVisible:
			return "", nil
		case MessageInfo:
			log.Debug("conversation info", "message", msg)
			return "", nil
		case MessageError:
			log.Warn("conversation error message", "message", msg)
			return "", nil
		default:
			convErr = fmt.Errorf("%w: %s", ErrConversation, kind)
			return "", convErr
		}
	}

	tx, err := v.backend.Start(v.service, username, conv)
	if err != nil {
		log.Warn("starting authentication failed", "service", v.service, logging.KeyError, err.Error())
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	defer func() {
		if err := tx.End(); err != nil {
			log.Debug("ending transaction", logging.KeyError, err.Error())
		}
	}()

	if err := tx.Authenticate(); err != nil {
		if convErr != nil {
			err = convErr
		}
		log.Info("authentication rejected", logging.KeyUsername, username, logging.KeyError, err.Error())
		return "", ErrAuthFailed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := tx.AcctMgmt(); err != nil {
		log.Info("account check rejected", logging.KeyUsername, username, logging.KeyError, err.Error())
		return "", ErrAuthFailed
	}

	final, err := tx.User()
	if err != nil || final == "" {
		final = username
	}
	return final, nil
}
