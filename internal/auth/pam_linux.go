//go:build linux && cgo

package auth

import (
	"fmt"

	"github.com/msteinert/pam/v2"
)

// PAM is the libpam back end.
type PAM struct{}

func (PAM) Start(service, username string, conv ConversationFunc) (Transaction, error) {
	tx, err := pam.StartFunc(service, username, func(style pam.Style, msg string) (string, error) {
		return conv(promptKind(style), msg)
	})
	if err != nil {
		return nil, fmt.Errorf("auth: pam start %s: %w", service, err)
	}
	return pamTransaction{tx: tx}, nil
}

func promptKind(style pam.Style) PromptKind {
	switch style {
	case pam.PromptEchoOff:
		return PromptSecret
	case pam.PromptEchoOn:
		return PromptVisible
	case pam.TextInfo:
		return MessageInfo
	case pam.ErrorMsg:
		return MessageError
	default:
		return PromptKind(0)
	}
}

type pamTransaction struct {
	tx *pam.Transaction
}

func (p pamTransaction) Authenticate() error { return p.tx.Authenticate(0) }
func (p pamTransaction) AcctMgmt() error     { return p.tx.AcctMgmt(0) }
func (p pamTransaction) User() (string, error) {
	return p.tx.GetItem(pam.User)
}
func (p pamTransaction) End() error { return p.tx.End() }
