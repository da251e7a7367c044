package ssh

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

const DefaultTimeout = 10 * time.Second

// Options controls how a Client authenticates. Agent and default key files
// are always tried; Password is added when set.
type Options struct {
	User     string
	Password string
	KeyFiles []string
	Timeout  time.Duration
}

type Client struct {
	conn *ssh.Client
}

func authMethods(opts Options) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if sshAgent, err := net.Dial("unix", os.Getenv("SSH_AUTH_SOCK")); err == nil {
		methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(sshAgent).Signers))
	}

	keyPaths := append([]string(nil), opts.KeyFiles...)
	if homeDir, err := os.UserHomeDir(); err == nil {
		keyPaths = append(keyPaths,
			filepath.Join(homeDir, ".ssh", "id_rsa"),
			filepath.Join(homeDir, ".ssh", "id_ed25519"),
			filepath.Join(homeDir, ".ssh", "id_ecdsa"),
		)
	}

	for _, keyPath := range keyPaths {
		if key, err := os.ReadFile(keyPath); err == nil {
			if signer, err := ssh.ParsePrivateKey(key); err == nil {
				methods = append(methods, ssh.PublicKeys(signer))
			}
		}
	}

	if opts.Password != "" {
		methods = append(methods,
			ssh.Password(opts.Password),
			// Network devices often only offer keyboard-interactive.
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = opts.Password
				}
				return answers, nil
			}),
		)
	}

	return methods
}

// NewClient dials host:port. The dial and handshake are bounded by ctx and
// opts.Timeout.
func NewClient(ctx context.Context, host string, port int, opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	user := opts.User
	if user == "" {
		user = "root"
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods(opts),
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, fmt.Sprint(port))
	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SSH: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		netConn.SetDeadline(deadline)
	}

	c, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("failed SSH handshake with %s: %w", addr, err)
	}
	netConn.SetDeadline(time.Time{})

	return &Client{conn: ssh.NewClient(c, chans, reqs)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Run executes cmd and returns its combined output. The session is torn
// down when ctx is done.
func (c *Client) Run(ctx context.Context, cmd string) (string, error) {
	session, err := c.conn.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		output, err := session.CombinedOutput(cmd)
		done <- result{output, err}
	}()

	select {
	case <-ctx.Done():
		session.Close()
		return "", fmt.Errorf("command %q aborted: %w", cmd, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return string(res.output), fmt.Errorf("command failed: %w", res.err)
		}
		return string(res.output), nil
	}
}

// WriteFile streams content to path on the remote host, creating the parent
// directory first.
func (c *Client) WriteFile(ctx context.Context, filePath string, content []byte, mode os.FileMode) error {
	session, err := c.conn.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin: %w", err)
	}

	dir := path.Dir(filePath)
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s && chmod %o %s", quote(dir), quote(filePath), mode, quote(filePath))
	if err := session.Start(cmd); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		if _, err := io.Copy(stdin, strings.NewReader(string(content))); err != nil {
			done <- fmt.Errorf("failed to write content: %w", err)
			return
		}
		stdin.Close()
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		session.Close()
		return fmt.Errorf("write of %s aborted: %w", filePath, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to complete write: %w", err)
		}
		return nil
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
