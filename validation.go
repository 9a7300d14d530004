// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"unicode"
)

// inputValidator validates untrusted network input before it reaches protocol
// state, and locally produced input before it reaches the wire.
type inputValidator struct{}

func newInputValidator() *inputValidator {
	return &inputValidator{}
}

// ValidateProtocolVersion checks the fixed 12-byte version string shape
// "RFB xxx.yyy\n".
func (iv *inputValidator) ValidateProtocolVersion(version string) error {
	if len(version) != protocolVersionLen {
		return validationError("inputValidator.ValidateProtocolVersion",
			fmt.Sprintf("version string must be exactly %d bytes, got %d", protocolVersionLen, len(version)), nil)
	}

	if version[:4] != "RFB " {
		return validationError("inputValidator.ValidateProtocolVersion",
			"version string must start with 'RFB '", nil)
	}

	if version[11] != '\n' {
		return validationError("inputValidator.ValidateProtocolVersion",
			"version string must end with newline", nil)
	}

	if version[7] != '.' {
		return validationError("inputValidator.ValidateProtocolVersion",
			"version format must be xxx.yyy", nil)
	}

	for i := 4; i < 11; i++ {
		if i == 7 {
			continue
		}
		if version[i] < '0' || version[i] > '9' {
			return validationError("inputValidator.ValidateProtocolVersion",
				"version numbers must contain only digits", nil)
		}
	}

	return nil
}

// ValidateFramebufferDimensions rejects degenerate or absurd geometries
// before allocating a pixel buffer for them.
func (iv *inputValidator) ValidateFramebufferDimensions(width, height uint16) error {
	if width == 0 || height == 0 {
		return validationError("inputValidator.ValidateFramebufferDimensions",
			"framebuffer dimensions cannot be zero", nil)
	}

	const maxDimension = 32768
	if width > maxDimension || height > maxDimension {
		return validationError("inputValidator.ValidateFramebufferDimensions",
			fmt.Sprintf("framebuffer dimensions too large: %dx%d", width, height), nil)
	}

	return nil
}

// ValidateRectangle checks that a rectangle lies fully within the given
// bounds. Arithmetic is widened so x+w cannot wrap.
func (iv *inputValidator) ValidateRectangle(x, y, width, height, boundW, boundH uint16) error {
	if uint32(x)+uint32(width) > uint32(boundW) || uint32(y)+uint32(height) > uint32(boundH) {
		return validationError("inputValidator.ValidateRectangle",
			fmt.Sprintf("rectangle %dx%d at (%d,%d) exceeds bounds %dx%d",
				width, height, x, y, boundW, boundH), nil)
	}
	return nil
}

// ValidateEncodingOrder rejects an unreasonable advertised encoding list.
func (iv *inputValidator) ValidateEncodingOrder(encs []int32) error {
	const maxEncodings = 100
	if len(encs) == 0 {
		return validationError("inputValidator.ValidateEncodingOrder",
			"encoding list cannot be empty", nil)
	}
	if len(encs) > maxEncodings {
		return validationError("inputValidator.ValidateEncodingOrder",
			fmt.Sprintf("too many encodings: %d (max %d)", len(encs), maxEncodings), nil)
	}
	return nil
}

// ValidateLatin1 checks that clipboard text is representable in the
// protocol's Latin-1 cut-text encoding.
func (iv *inputValidator) ValidateLatin1(text string, max int) error {
	if len(text) > max {
		return validationError("inputValidator.ValidateLatin1",
			fmt.Sprintf("text length %d exceeds limit %d", len(text), max), nil)
	}
	for _, r := range text {
		if r > Latin1MaxCodePoint {
			return validationError("inputValidator.ValidateLatin1",
				fmt.Sprintf("character %q is not valid Latin-1", r), nil)
		}
	}
	return nil
}

// SanitizeText strips control characters (other than tab and newline) from
// server-supplied text before surfacing it to the caller.
func (iv *inputValidator) SanitizeText(text string) string {
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if unicode.IsControl(r) && r != '\t' && r != '\n' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
