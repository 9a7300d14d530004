// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"crypto/des" // #nosec G502 - DES is required by the RFB protocol (RFC 6143)
	"fmt"
)

// The VNC Authentication security type encrypts a 16-byte server challenge
// with single DES under a password-derived key. The protocol's DES variant is
// non-standard in one respect: each key byte has its bits reversed before use
// (a quirk of the original AT&T implementation that every interoperable
// client must reproduce). DES is cryptographically obsolete; it survives here
// only because the wire protocol demands it.

// VNC authentication constants.
const (
	vncChallengeSize     = 16
	desKeySize           = 8
	vncMaxPasswordLength = 8
)

// reverseBits mirrors the bit order of a byte, least significant bit first.
func reverseBits(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		out <<= 1
		out |= b & 1
		b >>= 1
	}
	return out
}

// vncAuthKey derives the 8-byte DES key from a password: truncate or
// zero-pad to 8 bytes, then reverse the bits of each byte.
func vncAuthKey(password string) []byte {
	key := make([]byte, desKeySize)
	pw := []byte(password)
	if len(pw) > vncMaxPasswordLength {
		pw = pw[:vncMaxPasswordLength]
	}
	for i, b := range pw {
		key[i] = reverseBits(b)
	}
	return key
}

// encryptChallenge computes the 16-byte VNC authentication response for the
// given password and server challenge: two independent DES ECB blocks under
// the bit-reversed key.
func encryptChallenge(password string, challenge []byte) ([]byte, error) {
	if len(challenge) != vncChallengeSize {
		return nil, validationError("encryptChallenge",
			fmt.Sprintf("challenge must be exactly %d bytes, got %d", vncChallengeSize, len(challenge)), nil)
	}

	key := vncAuthKey(password)
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	block, err := des.NewCipher(key) // #nosec G405 - required by the RFB protocol
	if err != nil {
		return nil, authError("encryptChallenge", "failed to create DES cipher", err)
	}

	response := make([]byte, vncChallengeSize)
	block.Encrypt(response[:desKeySize], challenge[:desKeySize])
	block.Encrypt(response[desKeySize:], challenge[desKeySize:])
	return response, nil
}
