package service

import (
	"crypto/rand"
	"fmt"
)

// TicketLength is deliberately short: some platforms cap join-request
// answers at 15 characters, and tickets are relayed by hand between a
// moderator and an applicant.  36^8 values is ample for that pace.
const TicketLength = 8

const ticketAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewTicket returns a random fixed-length lowercase alphanumeric ticket.
func NewTicket() (string, error) {
	buf := make([]byte, TicketLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ticket entropy: %w", err)
	}

	out := make([]byte, TicketLength)
	for i, b := range buf {
		out[i] = ticketAlphabet[int(b)%len(ticketAlphabet)]
	}
	return string(out), nil
}
