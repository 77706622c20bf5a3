package ratelimit

import "strings"

// Identity is the client a submission is counted against.
type Identity string

// UserIdentity identifies an authenticated user.
func UserIdentity(userID string) Identity {
	return Identity("user:" + strings.TrimSpace(userID))
}

// AddressIdentity identifies an anonymous client by network address.
func AddressIdentity(ip string) Identity {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return Identity("ip:" + ip)
}

func (i Identity) String() string { return string(i) }
