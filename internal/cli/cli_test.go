package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		languagesAll = false
		configPath = "/etc/iredadmin/iredadmin.yaml"
		RootCmd.SetArgs(nil)
		RootCmd.SetOut(nil)
	})

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	err := Execute()
	return out.String(), err
}

func TestExecute_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "languages", "check", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "iredadmin dev (commit none, built unknown)\n", out)
}

func TestLanguages_All(t *testing.T) {
	out, err := run(t, "languages", "--all")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 60)
	assert.True(t, strings.HasPrefix(lines[0], "ar_SA"), lines[0])
}

func TestLanguages_Installed(t *testing.T) {
	dir := t.TempDir()
	i18nDir := filepath.Join(dir, "i18n")
	for _, code := range []string{"de_DE", "en_US", "xx_XX"} {
		require.NoError(t, os.MkdirAll(filepath.Join(i18nDir, code), 0o755))
	}

	cfgFile := filepath.Join(dir, "iredadmin.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
ldap:
  base_dn: dc=example,dc=com
general:
  i18n_dir: `+i18nDir+`
log:
  level: off
`), 0o600))

	out, err := run(t, "languages", "--config", cfgFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "de_DE"))
	assert.True(t, strings.HasPrefix(lines[1], "en_US"))
}

func TestLoadConfig_Invalid(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("ldap:\n  urls: [http://x]\n"), 0o600))

	_, err := run(t, "languages", "--config", cfgFile)
	assert.ErrorContains(t, err, "invalid configuration")
}
