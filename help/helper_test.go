package help

import "testing"

func TestHomeDirPrefersEnv(t *testing.T) {
	t.Setenv("HOME", "/tmp/kmon-home")
	if got := HomeDir(); got != "/tmp/kmon-home" {
		t.Fatalf("HomeDir() = %q", got)
	}
}
