package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canonicalTempDir resolves the test temp dir through any symlinks so that
// expectations line up with the validator's canonical output.
func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func violationCheck(t *testing.T, err error) Violation {
	t.Helper()
	var sv *SecurityViolation
	require.ErrorAs(t, err, &sv)
	return sv.Check
}

func TestValidateRejectsRelativePaths(t *testing.T) {
	v := NewValidator(canonicalTempDir(t), nil)
	_, err := v.Validate("relative/path", IntentDelete)
	assert.Equal(t, ViolationRelativePath, violationCheck(t, err))
}

func TestValidateRejectsTraversal(t *testing.T) {
	home := canonicalTempDir(t)
	v := NewValidator(home, nil)

	// Even a ".." that cleans away must be rejected.
	_, err := v.Validate(home+"/sub/../file", IntentDelete)
	assert.Equal(t, ViolationTraversal, violationCheck(t, err))
}

func TestValidateRejectsSystemRoots(t *testing.T) {
	v := NewValidator(canonicalTempDir(t), nil)
	for _, path := range []string{"/", "/etc/passwd", "/usr/bin/ls", "/proc/1"} {
		_, err := v.Validate(path, IntentDelete)
		assert.Equal(t, ViolationSystemCritical, violationCheck(t, err), path)
	}
}

func TestValidateRejectsOutsideHome(t *testing.T) {
	home := canonicalTempDir(t)
	other := canonicalTempDir(t)
	v := NewValidator(home, nil)

	target := filepath.Join(other, "victim.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	_, err := v.Validate(target, IntentDelete)
	assert.Equal(t, ViolationOutsideHome, violationCheck(t, err))
}

func TestValidateRejectsHomeItself(t *testing.T) {
	home := canonicalTempDir(t)
	v := NewValidator(home, nil)
	_, err := v.Validate(home, IntentDelete)
	assert.Equal(t, ViolationSystemCritical, violationCheck(t, err))
}

func TestValidateAcceptsFileUnderHome(t *testing.T) {
	home := canonicalTempDir(t)
	v := NewValidator(home, nil)

	target := filepath.Join(home, "cache", "blob")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	got, err := v.Validate(target, IntentDelete)
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestValidateFollowsSymlinkEscape(t *testing.T) {
	home := canonicalTempDir(t)
	outside := canonicalTempDir(t)
	v := NewValidator(home, nil)

	secret := filepath.Join(outside, "secret")
	require.NoError(t, os.WriteFile(secret, []byte("x"), 0o644))

	link := filepath.Join(home, "innocent")
	require.NoError(t, os.Symlink(secret, link))

	// The link lives under home, but its target does not.
	_, err := v.Validate(link, IntentDelete)
	assert.Equal(t, ViolationOutsideHome, violationCheck(t, err))
}

func TestValidateBrokenSymlinkUsesLexicalForm(t *testing.T) {
	home := canonicalTempDir(t)
	v := NewValidator(home, nil)

	link := filepath.Join(home, "dangling")
	require.NoError(t, os.Symlink(filepath.Join(home, "gone"), link))

	got, err := v.Validate(link, IntentDelete)
	require.NoError(t, err)
	assert.Equal(t, link, got)
}

func TestValidatePackageCacheAllowList(t *testing.T) {
	home := canonicalTempDir(t)
	cache := canonicalTempDir(t)
	v := NewValidator(home, []string{cache})

	target := filepath.Join(cache, "pkg_1.0.deb")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	// Allowed for package cleanup only.
	got, err := v.Validate(target, IntentPackageCleanup)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	_, err = v.Validate(target, IntentDelete)
	assert.Equal(t, ViolationOutsideHome, violationCheck(t, err))
}

func TestValidateExtraProtectedPath(t *testing.T) {
	home := canonicalTempDir(t)
	v := NewValidator(home, nil)

	keep := filepath.Join(home, "keep")
	require.NoError(t, os.MkdirAll(keep, 0o755))
	v.AddProtectedPath(keep)

	target := filepath.Join(keep, "file")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	_, err := v.Validate(target, IntentDelete)
	assert.Equal(t, ViolationSystemCritical, violationCheck(t, err))
}

func TestValidateParentWriteAccess(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root bypasses permission checks")
	}
	home := canonicalTempDir(t)
	v := NewValidator(home, nil)

	dir := filepath.Join(home, "locked")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	target := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	_, err := v.Validate(target, IntentDelete)
	assert.Equal(t, ViolationNoWriteAccess, violationCheck(t, err))

	// Inspection does not require a writable parent.
	_, err = v.Validate(target, IntentInspect)
	assert.NoError(t, err)
}

func TestIsProtectedPath(t *testing.T) {
	v := NewValidator("/home/alice", nil)
	assert.True(t, v.IsProtectedPath("/etc"))
	assert.True(t, v.IsProtectedPath("/usr/share/doc"))
	assert.False(t, v.IsProtectedPath("/home/alice/.cache"))
}

func TestSecurityViolationError(t *testing.T) {
	err := &SecurityViolation{Path: "/x", Check: ViolationTraversal, Detail: "dot-dot segment"}
	assert.Contains(t, err.Error(), "path_traversal")
	assert.Contains(t, err.Error(), "/x")

	var target *SecurityViolation
	assert.True(t, errors.As(error(err), &target))
}
