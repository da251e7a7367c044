// Package plan stores a built topology between discovery and deployment.
package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atvirokodosprendimai/netmodel/pkg/crypto"
	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

const Version = 1

// Project identifies the simulator project a plan was deployed into.
type Project struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// File is the on-disk plan.
type File struct {
	Version   int               `yaml:"version"`
	CreatedAt time.Time         `yaml:"created_at"`
	Project   *Project          `yaml:"project,omitempty"`
	Raw       map[string]string `yaml:"raw_configs,omitempty"`
	Plan      topology.Plan     `yaml:"plan"`
}

func New(p *topology.Plan, raw map[string]string) *File {
	return &File{
		Version:   Version,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Raw:       raw,
		Plan:      *p,
	}
}

// Load reads a plan file, decrypting it first when password is set.
func Load(path, password string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	if password != "" {
		decrypted, err := crypto.Decrypt(string(data), password)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt plan file: %w", err)
		}
		data = decrypted
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	if f.Version != Version {
		return nil, fmt.Errorf("unsupported plan version %d", f.Version)
	}

	return &f, nil
}

// Save writes the plan, encrypted when password is set. The file holds
// device configurations, so it is only readable by the owner.
func (f *File) Save(path, password string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	if password != "" {
		encrypted, err := crypto.Encrypt(data, password)
		if err != nil {
			return fmt.Errorf("failed to encrypt plan: %w", err)
		}
		data = []byte(encrypted)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create plan directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}

	return nil
}
