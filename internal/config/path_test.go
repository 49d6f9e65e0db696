package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("SUBHOUND_TEST_DIR", "/tmp/subhound")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain path untouched", "/var/lib/subhound.db", "/var/lib/subhound.db"},
		{"tilde prefix", "~/data/subhound.db", filepath.Join(home, "data", "subhound.db")},
		{"bare tilde", "~", home},
		{"env var", "$SUBHOUND_TEST_DIR/subhound.db", "/tmp/subhound/subhound.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestDatabasePath_ExplicitSetting(t *testing.T) {
	viper.Set("database.path", "/tmp/explicit/subhound.db")
	defer viper.Reset()

	assert.Equal(t, "/tmp/explicit/subhound.db", DatabasePath())
}

func TestDatabasePath_Default(t *testing.T) {
	viper.Reset()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t,
		filepath.Join(home, ".local", "share", "subhound", "subhound.db"),
		DatabasePath())
}
