package help

import (
	"os"
	"os/user"
)

// HomeDir finds the user's home directory for default config and kubeconfig
// paths.
func HomeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	// Windows fallback
	if h := os.Getenv("USERPROFILE"); h != "" {
		return h
	}
	return "."
}
