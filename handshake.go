// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"context"
	"fmt"
)

// ProtocolVersion identifies a negotiated RFB protocol version.
type ProtocolVersion struct {
	Major uint
	Minor uint
}

// Supported protocol versions, oldest to newest. Versions 3.4-3.6 were never
// published and are treated as 3.3; minors above 8 fall back to 3.8.
var (
	Version33 = ProtocolVersion{3, 3}
	Version37 = ProtocolVersion{3, 7}
	Version38 = ProtocolVersion{3, 8}
)

// protocolVersionLen is the fixed size of the version handshake message.
const protocolVersionLen = 12

// String renders the version in the wire format without the trailing newline.
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("RFB %03d.%03d", v.Major, v.Minor)
}

// wire renders the full 12-byte version handshake message.
func (v ProtocolVersion) wire() []byte {
	return []byte(fmt.Sprintf("RFB %03d.%03d\n", v.Major, v.Minor))
}

// AtLeast reports whether v is other or newer.
func (v ProtocolVersion) AtLeast(other ProtocolVersion) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

// parseProtocolVersion parses and validates the server's 12-byte version
// string "RFB xxx.yyy\n".
func parseProtocolVersion(pv []byte) (ProtocolVersion, error) {
	if err := newInputValidator().ValidateProtocolVersion(string(pv)); err != nil {
		return ProtocolVersion{}, protocolError("parseProtocolVersion",
			"malformed protocol version string", err)
	}

	var major, minor uint
	if n, err := fmt.Sscanf(string(pv), "RFB %d.%d\n", &major, &minor); n != 2 || err != nil {
		return ProtocolVersion{}, protocolError("parseProtocolVersion",
			"failed to parse protocol version", err)
	}

	return ProtocolVersion{Major: major, Minor: minor}, nil
}

// negotiateVersion reads the server's version string, selects the highest
// mutually supported protocol version and writes the choice back.
func (s *Session) negotiateVersion(ctx context.Context) (ProtocolVersion, error) {
	var pv [protocolVersionLen]byte
	if err := s.transport.ReadFull(ctx, pv[:]); err != nil {
		return ProtocolVersion{}, transportError("negotiateVersion",
			"failed to read server protocol version", err)
	}

	server, err := parseProtocolVersion(pv[:])
	if err != nil {
		return ProtocolVersion{}, err
	}

	s.logger.Info("Received server protocol version",
		Field{Key: "version", Value: server.String()})

	if server.Major < 3 || (server.Major == 3 && server.Minor < 3) {
		return ProtocolVersion{}, protocolError("negotiateVersion",
			fmt.Sprintf("unsupported protocol version %s", server), nil)
	}

	chosen := Version38
	if server.Major == 3 {
		switch {
		case server.Minor < 7:
			chosen = Version33
		case server.Minor == 7:
			chosen = Version37
		}
	}

	s.logger.Debug("Sending protocol version response",
		Field{Key: "version", Value: chosen.String()})
	if err := s.transport.Write(ctx, chosen.wire()); err != nil {
		return ProtocolVersion{}, transportError("negotiateVersion",
			"failed to send protocol version response", err)
	}

	return chosen, nil
}

// negotiateSecurity selects a security type according to the negotiated
// version. For 3.3 the server unilaterally dictates one type as a u32; for
// 3.7 and later the server offers a list and the client picks the strongest
// type it supports (VNC Authentication over None).
func (s *Session) negotiateSecurity(ctx context.Context, version ProtocolVersion) (ClientAuth, error) {
	if !version.AtLeast(Version37) {
		dictated, err := readUint32wrapped(ctx, s.transport, "negotiateSecurity", "failed to read security type")
		if err != nil {
			return nil, err
		}

		if dictated == uint32(secTypeInvalid) {
			reason := s.readReason(ctx)
			return nil, authError("negotiateSecurity",
				fmt.Sprintf("server refused connection: %s", reason), nil)
		}
		if dictated > 255 {
			return nil, protocolError("negotiateSecurity",
				fmt.Sprintf("server dictated invalid security type %d", dictated), nil)
		}

		auth, ok := selectAuth([]uint8{uint8(dictated)}, s.auths)
		if !ok {
			return nil, authError("negotiateSecurity",
				fmt.Sprintf("server dictated unsupported security type %d", dictated), nil)
		}

		s.logger.Info("Server dictated security type",
			Field{Key: "type", Value: dictated},
			Field{Key: "method", Value: auth.String()})
		return auth, nil
	}

	var count [1]byte
	if err := s.transport.ReadFull(ctx, count[:]); err != nil {
		return nil, transportError("negotiateSecurity", "failed to read security type count", err)
	}

	if count[0] == 0 {
		reason := s.readReason(ctx)
		return nil, authError("negotiateSecurity",
			fmt.Sprintf("server offered no security types: %s", reason), nil)
	}

	offered := make([]uint8, count[0])
	if err := s.transport.ReadFull(ctx, offered); err != nil {
		return nil, transportError("negotiateSecurity", "failed to read security type list", err)
	}

	s.logger.Info("Received security types",
		Field{Key: "count", Value: count[0]},
		Field{Key: "types", Value: offered})

	auth, ok := selectAuth(offered, s.auths)
	if !ok {
		return nil, authError("negotiateSecurity",
			fmt.Sprintf("no acceptable security type; server offered %v", offered), nil)
	}

	s.logger.Info("Selected security type",
		Field{Key: "type", Value: auth.SecurityType()},
		Field{Key: "method", Value: auth.String()})

	if err := s.transport.Write(ctx, []byte{auth.SecurityType()}); err != nil {
		return nil, transportError("negotiateSecurity", "failed to send chosen security type", err)
	}

	return auth, nil
}

// authenticate runs the chosen security sub-protocol and checks the
// SecurityResult word. Version 3.3 sends the result only after VNC
// Authentication; 3.7 and later always send it. A 3.8 server follows a
// non-zero result with a length-prefixed reason string.
func (s *Session) authenticate(ctx context.Context, version ProtocolVersion, auth ClientAuth) error {
	if err := auth.Handshake(ctx, s.transport); err != nil {
		return err
	}

	if !version.AtLeast(Version37) && auth.SecurityType() != secTypeVNCAuth {
		s.logger.Debug("Version 3.3 with no authentication, skipping security result")
		return nil
	}

	result, err := readUint32wrapped(ctx, s.transport, "authenticate", "failed to read security result")
	if err != nil {
		return err
	}

	if result != 0 {
		reason := "credentials rejected"
		if version.AtLeast(Version38) {
			reason = s.readReason(ctx)
		}
		s.logger.Error("Authentication rejected",
			Field{Key: "method", Value: auth.String()},
			Field{Key: "reason", Value: reason})
		return authError("authenticate", reason, nil)
	}

	s.logger.Info("Authentication successful",
		Field{Key: "method", Value: auth.String()})
	return nil
}

// serverInit holds the parameters the server declares at initialization.
type serverInit struct {
	Width       uint16
	Height      uint16
	PixelFormat PixelFormat
	Name        string
}

// initialize performs the ClientInit/ServerInit exchange.
func (s *Session) initialize(ctx context.Context) (*serverInit, error) {
	sharedFlag := byte(1)
	if s.exclusive {
		sharedFlag = 0
	}
	if err := s.transport.Write(ctx, []byte{sharedFlag}); err != nil {
		return nil, transportError("initialize", "failed to send client init", err)
	}

	var head [4]byte
	if err := s.transport.ReadFull(ctx, head[:]); err != nil {
		return nil, transportError("initialize", "failed to read framebuffer dimensions", err)
	}
	width := uint16(head[0])<<8 | uint16(head[1])
	height := uint16(head[2])<<8 | uint16(head[3])

	validator := newInputValidator()
	if err := validator.ValidateFramebufferDimensions(width, height); err != nil {
		return nil, protocolError("initialize", "server sent invalid framebuffer dimensions", err)
	}

	var pf [pixelFormatLen]byte
	if err := s.transport.ReadFull(ctx, pf[:]); err != nil {
		return nil, transportError("initialize", "failed to read server pixel format", err)
	}

	init := &serverInit{Width: width, Height: height}
	if err := readPixelFormat(bytes.NewReader(pf[:]), &init.PixelFormat); err != nil {
		return nil, err
	}
	if err := init.PixelFormat.Validate(); err != nil {
		return nil, protocolError("initialize", "server sent invalid pixel format", err)
	}

	nameLen, err := readUint32wrapped(ctx, s.transport, "initialize", "failed to read desktop name length")
	if err != nil {
		return nil, err
	}
	if nameLen > MaxDesktopNameLength {
		return nil, protocolError("initialize",
			fmt.Sprintf("desktop name length %d exceeds limit", nameLen), nil)
	}

	name := make([]byte, nameLen)
	if err := s.transport.ReadFull(ctx, name); err != nil {
		return nil, transportError("initialize", "failed to read desktop name", err)
	}
	init.Name = validator.SanitizeText(string(name))

	s.logger.Info("Server initialization complete",
		Field{Key: "desktop_name", Value: init.Name},
		Field{Key: "width", Value: width},
		Field{Key: "height", Value: height},
		Field{Key: "bpp", Value: init.PixelFormat.BPP})

	return init, nil
}

// readReason reads a u32 length-prefixed failure reason. Best effort: the
// connection is already doomed, so read errors degrade to a placeholder.
func (s *Session) readReason(ctx context.Context) string {
	length, err := readUint32wrapped(ctx, s.transport, "readReason", "")
	if err != nil || length > MaxReasonLength {
		return "<no reason available>"
	}

	reason := make([]byte, length)
	if err := s.transport.ReadFull(ctx, reason); err != nil {
		return "<no reason available>"
	}
	return newInputValidator().SanitizeText(string(reason))
}

// readUint32wrapped reads a big-endian u32 from the transport, wrapping
// failures as transport errors.
func readUint32wrapped(ctx context.Context, t Transport, op, msg string) (uint32, error) {
	var b [4]byte
	if err := t.ReadFull(ctx, b[:]); err != nil {
		return 0, transportError(op, msg, err)
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}
