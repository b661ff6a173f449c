package model

import (
	"testing"

	"github.com/example/piper-export/internal/testutil"
)

func writeFakeLib(t *testing.T, dir, name string) string {
	t.Helper()

	return testutil.WriteFile(t, dir, name, []byte("fake"))
}

func identityModel() []byte {
	return testutil.IdentityModel()
}
