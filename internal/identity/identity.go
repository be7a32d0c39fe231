// Package identity supplies display identities (name plus portrait) for
// newly created teachers. The provider is pluggable so embedders can swap
// the public randomuser.me source for their own.
package identity

import "context"

// Identity is a generated persona face.
type Identity struct {
	Name    string
	LogoURL string
}

// Provider produces a random identity.
type Provider interface {
	Random(ctx context.Context) (Identity, error)
}

// Fallback tries primary and falls back to secondary on any error.
// A teacher is still created when the network source is down.
func Fallback(primary, secondary Provider) Provider {
	return &fallback{primary: primary, secondary: secondary}
}

type fallback struct {
	primary, secondary Provider
}

func (f *fallback) Random(ctx context.Context) (Identity, error) {
	id, err := f.primary.Random(ctx)
	if err == nil {
		return id, nil
	}
	return f.secondary.Random(ctx)
}
