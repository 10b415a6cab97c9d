//go:build !linux || !cgo

package auth

// PAM is unavailable without cgo on Linux; every attempt fails.
type PAM struct{}

func (PAM) Start(service, username string, conv ConversationFunc) (Transaction, error) {
	return nil, ErrUnavailable
}
