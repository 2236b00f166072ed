package exec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest marks a submission rejected before any file or process
// work. This check is the only thing standing between client input and the
// spawn path, so it runs first and rejects anything off the allow-list.
var ErrInvalidRequest = errors.New("invalid request")

// Request is one code submission from a connection.
type Request struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	SocketID string `json:"socketId"`
}

// Validate checks required fields and resolves the language.
func (r Request) Validate() (Language, error) {
	if strings.TrimSpace(r.SocketID) == "" {
		return Language{}, fmt.Errorf("%w: socketId required", ErrInvalidRequest)
	}
	if r.Code == "" {
		return Language{}, fmt.Errorf("%w: code required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Language) == "" {
		return Language{}, fmt.Errorf("%w: language required", ErrInvalidRequest)
	}
	lang, ok := Lookup(r.Language)
	if !ok {
		return Language{}, fmt.Errorf("%w: unsupported language %q", ErrInvalidRequest, r.Language)
	}
	return lang, nil
}
