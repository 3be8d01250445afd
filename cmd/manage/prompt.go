package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type credentials struct {
	Username string
	Password string
	Confirm  string
}

// secretReader reads one line without echoing it.
type secretReader func(*bufio.Reader) (string, error)

// terminalSecret hides input when stdin is a terminal and falls back to
// plain line reads when it is piped.
func terminalSecret(f *os.File) secretReader {
	return func(in *bufio.Reader) (string, error) {
		fd := int(f.Fd())
		if !term.IsTerminal(fd) {
			return readLine(in)
		}
		raw, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

func promptCredentials(in *bufio.Reader, out io.Writer, secret secretReader) (credentials, error) {
	var creds credentials
	var err error

	fmt.Fprint(out, "Username: ")
	if creds.Username, err = readLine(in); err != nil {
		return creds, err
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" {
		return creds, errors.New("username cannot be empty")
	}

	fmt.Fprint(out, "Password: ")
	if creds.Password, err = secret(in); err != nil {
		return creds, err
	}
	fmt.Fprint(out, "\nConfirm password: ")
	if creds.Confirm, err = secret(in); err != nil {
		return creds, err
	}
	fmt.Fprintln(out)

	if creds.Password != creds.Confirm {
		return creds, errors.New("passwords do not match")
	}
	return creds, nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
