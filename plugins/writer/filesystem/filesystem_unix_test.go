//go:build !windows

package filesystem

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"stereogif/pkg/contract"
)

func TestMapPathAbsoluteUnix(t *testing.T) {
	flat := false
	w, _ := New(&Options{OutputDir: t.TempDir(), Flat: &flat})
	_, err := w.Path("/abs/out.gif")
	assert.ErrorIs(t, err, contract.ErrPathInvalid)
}

func TestCheckWritableReadOnlyDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 忽略目录权限")
	}
	dir := t.TempDir()
	assert.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
	assert.Error(t, CheckWritable(dir))
}
