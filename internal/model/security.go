package model

import (
	"math/rand"
	"strconv"
)

const maxSecurityCode = 99999

// SecurityCode is the shared secret both accounts put in their offer
// messages. It lives for one process and is never persisted.
type SecurityCode int

// NewSecurityCode draws a code in [1, 99999].
func NewSecurityCode() SecurityCode {
	return SecurityCode(rand.Intn(maxSecurityCode) + 1)
}

func (c SecurityCode) IsZero() bool { return c == 0 }

func (c SecurityCode) String() string {
	return strconv.Itoa(int(c))
}
