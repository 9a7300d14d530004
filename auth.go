// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
)

// ClientAuth defines the interface for security-type handlers. The handshake
// negotiates a type with the server, then hands the transport to the matching
// handler for the security sub-protocol. The set is closed at negotiation
// time: None and VNC Authentication.
type ClientAuth interface {
	// SecurityType returns the wire id of the security type.
	SecurityType() uint8

	// Handshake runs the security sub-protocol over the transport. It does
	// not read the SecurityResult word; the session does that afterwards
	// according to the negotiated protocol version.
	Handshake(ctx context.Context, t Transport) error

	// String returns a human-readable name for logging.
	String() string
}

// AuthNone implements the "None" security type (id 1). The sub-protocol is
// empty; the handshake completes immediately.
type AuthNone struct{}

// SecurityType returns the security type identifier for None authentication.
func (*AuthNone) SecurityType() uint8 {
	return secTypeNone
}

// Handshake performs the None security handshake, which exchanges no bytes.
func (*AuthNone) Handshake(ctx context.Context, t Transport) error {
	return ctx.Err()
}

// String returns a human-readable description of the authentication method.
func (*AuthNone) String() string {
	return "None"
}

// PasswordAuth implements VNC Authentication (id 2): the server sends a
// 16-byte random challenge and the client returns it encrypted with a
// password-derived DES key.
type PasswordAuth struct {
	Password string
}

// NewPasswordAuth creates a PasswordAuth for the given password. Only the
// first 8 bytes of the password participate in the DES key, per protocol.
func NewPasswordAuth(password string) *PasswordAuth {
	return &PasswordAuth{Password: password}
}

// SecurityType returns the security type identifier for VNC Authentication.
func (*PasswordAuth) SecurityType() uint8 {
	return secTypeVNCAuth
}

// Handshake reads the server challenge, encrypts it and writes the response.
func (p *PasswordAuth) Handshake(ctx context.Context, t Transport) error {
	challenge := make([]byte, vncChallengeSize)
	if err := t.ReadFull(ctx, challenge); err != nil {
		return transportError("PasswordAuth.Handshake", "failed to read authentication challenge", err)
	}

	response, err := encryptChallenge(p.Password, challenge)
	if err != nil {
		return authError("PasswordAuth.Handshake", "failed to encrypt challenge", err)
	}

	if err := t.Write(ctx, response); err != nil {
		return transportError("PasswordAuth.Handshake", "failed to send challenge response", err)
	}

	return nil
}

// String returns a human-readable description of the authentication method.
func (*PasswordAuth) String() string {
	return "VNC Authentication"
}

// selectAuth picks the strongest mutually supported security type from the
// server's offer. Preference order is fixed: VNC Authentication over None,
// since a server offering both expects credentialed clients to use them.
func selectAuth(offered []uint8, available []ClientAuth) (ClientAuth, bool) {
	byType := make(map[uint8]ClientAuth, len(available))
	for _, a := range available {
		byType[a.SecurityType()] = a
	}

	for _, want := range []uint8{secTypeVNCAuth, secTypeNone} {
		auth, ok := byType[want]
		if !ok {
			continue
		}
		for _, got := range offered {
			if got == want {
				return auth, true
			}
		}
	}
	return nil, false
}
