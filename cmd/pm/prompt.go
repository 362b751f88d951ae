package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"golang.org/x/term"
)

// promptPassword reads a secret without echo when stdin is a terminal and
// falls back to reading one line from the shared input otherwise.
func (a *app) promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(a.errOut, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(a.errOut)
		if err != nil {
			return nil, err
		}
		return pw, nil
	}

	line, err := a.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

type clipboardWriter interface {
	WriteAll(text string) error
	ReadAll() (string, error)
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }
func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }

// copyToClipboard places value on the clipboard and clears it after ttl
// unless something else has been copied meanwhile.
func (a *app) copyToClipboard(value string, ttl time.Duration) (*time.Timer, error) {
	if clipboard.Unsupported {
		if _, ok := a.clip.(systemClipboard); ok {
			return nil, userError{msg: "clipboard is not available on this system"}
		}
	}
	if err := a.clip.WriteAll(value); err != nil {
		return nil, fmt.Errorf("write clipboard: %w", err)
	}
	return time.AfterFunc(ttl, func() {
		if cur, err := a.clip.ReadAll(); err == nil && cur == value {
			_ = a.clip.WriteAll("")
		}
	}), nil
}
