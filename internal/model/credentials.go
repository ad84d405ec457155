package model

import (
	"fmt"
	"strings"
)

// Credentials identify one platform account.
type Credentials struct {
	IdentitySecret string `split_words:"true"`
	SharedSecret   string `split_words:"true"`
	Username       string
	Password       string
	Tradelink      string // receive address shown to the counterparty
}

// Validate fails with ErrIncompleteCredentials naming every empty field.
func (c Credentials) Validate(account string) error {
	var missing []string
	if c.IdentitySecret == "" {
		missing = append(missing, "identity secret")
	}
	if c.SharedSecret == "" {
		missing = append(missing, "shared secret")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if c.Tradelink == "" {
		missing = append(missing, "trade link")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w for %s: missing %s", ErrIncompleteCredentials, account, strings.Join(missing, ", "))
	}
	return nil
}
