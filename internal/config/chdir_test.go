package config

import (
	"os"
	"testing"
)

// chdir changes the working directory to dir for the duration of the test,
// restoring the previous directory on cleanup (equivalent to testing.T.Chdir,
// which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("chdir: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("chdir cleanup: %v", err)
		}
	})
}
