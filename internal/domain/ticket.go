package domain

import (
	"crypto/rand"
	"math/big"
)

// TicketLen is the number of digits in a session ticket. Short enough to
// read out loud, long enough that guessing an active one is unlikely at
// expected session counts.
const TicketLen = 4

// NewTicket returns a fixed-length numeric string for sharing by voice
// or on screen. Digits come from crypto/rand.
func NewTicket() string {
	buf := make([]byte, TicketLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand only fails when the platform source is broken
			panic(err)
		}
		buf[i] = '0' + byte(n.Int64())
	}
	return string(buf)
}
