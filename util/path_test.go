package util

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandUser(t *testing.T) {
	home := os.Getenv("HOME")
	assert.Equal(t, home+"/abc", ExpandUser("~/abc"))
	assert.Equal(t, "/etc/abc", ExpandUser("/etc/abc"))
	assert.Equal(t, "~abc", ExpandUser("~abc"))
}
