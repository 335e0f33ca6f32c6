package auth

import "context"

// TestChecker maps fixed tokens to identities, for handler unit tests.
type TestChecker struct {
	Identities map[string]Identity
}

func NewTestChecker() *TestChecker {
	return &TestChecker{
		Identities: map[string]Identity{},
	}
}

func (c *TestChecker) ResolveIdentity(_ context.Context, token string) (Identity, error) {
	if identity, ok := c.Identities[token]; ok {
		return identity, nil
	}
	return Anonymous, nil
}
