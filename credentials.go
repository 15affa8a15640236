package rawgkit

import "context"

// CredentialSource supplies the API key attached to resource requests. The
// backing store (keychain, env, vault) is the caller's concern; the client
// only asks for the key string when building a URL.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticCredentials is a CredentialSource holding a fixed key.
type StaticCredentials string

func (s StaticCredentials) APIKey(context.Context) (string, error) {
	return string(s), nil
}
