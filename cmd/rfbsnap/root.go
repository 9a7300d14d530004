// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package main

import (
	"context"
	"fmt"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	rfb "github.com/framemirror/go-rfb"
)

type options struct {
	addr      string
	websocket bool
	password  string
	askPass   bool
	profile   string
	config    string
	output    string
	timeout   time.Duration
	exclusive bool
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "rfbsnap",
		Short: "Capture a screenshot from an RFB server",
		Long: `rfbsnap connects to an RFB (VNC) server, receives the first full
framebuffer update and writes it to a PNG file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "server address (host:port, or ws:// URL with --websocket)")
	cmd.Flags().BoolVar(&opts.websocket, "websocket", false, "connect over a WebSocket proxy")
	cmd.Flags().StringVar(&opts.password, "password", "", "VNC password (prefer --ask-pass)")
	cmd.Flags().BoolVar(&opts.askPass, "ask-pass", false, "prompt for the VNC password on the terminal")
	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "", "named connection profile from the config file")
	cmd.Flags().StringVar(&opts.config, "config", defaultConfigPath(), "path to the profiles config file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "screenshot.png", "output PNG path")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout for connect and capture")
	cmd.Flags().BoolVar(&opts.exclusive, "exclusive", false, "request exclusive access to the server")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable protocol tracing on stderr")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if opts.profile != "" {
		profile, err := loadProfile(opts.config, opts.profile)
		if err != nil {
			return err
		}
		profile.apply(opts)
	}
	if opts.addr == "" {
		return fmt.Errorf("no server address: pass --addr or a --profile that sets one")
	}

	if opts.askPass {
		password, err := promptPassword()
		if err != nil {
			return err
		}
		opts.password = password
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	sessOpts := []rfb.SessionOption{
		rfb.WithExclusive(opts.exclusive),
		rfb.WithViewOnly(true),
	}
	if opts.password != "" {
		sessOpts = append(sessOpts, rfb.WithPassword(opts.password))
	}
	if opts.verbose {
		sessOpts = append(sessOpts, rfb.WithLogger(&rfb.StandardLogger{
			Logger:   log.New(os.Stderr, "", log.LstdFlags),
			MinLevel: rfb.LevelDebug,
		}))
	}

	sess, err := connect(ctx, opts, sessOpts)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	width, height := sess.Framebuffer().Size()
	fmt.Fprintf(os.Stderr, "connected to %q (%dx%d, protocol %s)\n",
		sess.DesktopName(), width, height, sess.Version())

	if err := waitForUpdate(ctx, sess); err != nil {
		return err
	}

	return writePNG(sess, opts.output)
}

func connect(ctx context.Context, opts *options, sessOpts []rfb.SessionOption) (*rfb.Session, error) {
	if opts.websocket {
		transport, err := rfb.DialWebSocket(ctx, opts.addr)
		if err != nil {
			return nil, err
		}
		sess, err := rfb.NewSession(ctx, transport, sessOpts...)
		if err != nil {
			_ = transport.Close()
			return nil, err
		}
		return sess, nil
	}
	return rfb.Dial(ctx, opts.addr, sessOpts...)
}

// waitForUpdate consumes events until the first framebuffer update lands.
func waitForUpdate(ctx context.Context, sess *rfb.Session) error {
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return fmt.Errorf("session ended before the first update: %w", sess.Err())
			}
			switch ev := ev.(type) {
			case *rfb.UpdateEvent:
				return nil
			case *rfb.DisconnectEvent:
				if ev.Err != nil {
					return ev.Err
				}
				return fmt.Errorf("session closed before the first update")
			}
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for a framebuffer update: %w", ctx.Err())
		}
	}
}

func writePNG(sess *rfb.Session, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, sess.Framebuffer().RGBA()); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	return nil
}

func promptPassword() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("--ask-pass requires an interactive terminal")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
