package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, "'/opt/gns3/projects/a b'", quote("/opt/gns3/projects/a b"))
	assert.Equal(t, `'it'\''s'`, quote("it's"))
}

func TestAuthMethodsWithPassword(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	without := authMethods(Options{})
	with := authMethods(Options{Password: "cisco"})

	assert.Len(t, with, len(without)+2)
}
