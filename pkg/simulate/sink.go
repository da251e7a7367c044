package simulate

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/atvirokodosprendimai/netmodel/pkg/ssh"
	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

// DefaultConfigDir is where dynamips nodes look for startup configs inside
// their node directory.
const DefaultConfigDir = "configs"

// FileWriter writes files on the simulation host.
type FileWriter interface {
	WriteFile(ctx context.Context, filePath string, content []byte, mode os.FileMode) error
	Close() error
}

// SSHSink copies configs into the node directories on the simulation host
// over a single shared SSH connection.
type SSHSink struct {
	Dial      func(ctx context.Context) (FileWriter, error)
	ConfigDir string

	mu     sync.Mutex
	client FileWriter
}

// NewSSHSink returns a sink that connects to host:port with opts.
func NewSSHSink(host string, port int, opts ssh.Options) *SSHSink {
	return &SSHSink{
		Dial: func(ctx context.Context) (FileWriter, error) {
			return ssh.NewClient(ctx, host, port, opts)
		},
		ConfigDir: DefaultConfigDir,
	}
}

func (s *SSHSink) conn(ctx context.Context) (FileWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	c, err := s.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to simulation host: %w", err)
	}
	s.client = c
	return c, nil
}

func (s *SSHSink) Transfer(ctx context.Context, node topology.Node, file string, content []byte) error {
	if node.SimDir == "" {
		return fmt.Errorf("node %s has no simulator directory", node.Name)
	}

	c, err := s.conn(ctx)
	if err != nil {
		return err
	}

	dir := s.ConfigDir
	if dir == "" {
		dir = DefaultConfigDir
	}
	return c.WriteFile(ctx, path.Join(node.SimDir, dir, file), content, 0644)
}

func (s *SSHSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// DirSink writes configs to <Root>/<node name>/<file> on the local disk, for
// simulators that share a filesystem with this host or for later upload.
type DirSink struct {
	Root string
}

func (s *DirSink) Transfer(_ context.Context, node topology.Node, file string, content []byte) error {
	dir := filepath.Join(s.Root, node.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), content, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
