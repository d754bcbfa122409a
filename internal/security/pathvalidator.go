// Package security is the gatekeeper for every mutating filesystem
// operation. Nothing is deleted, moved or quarantined without passing
// through Validate first.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Intent describes what the caller wants to do with a path. Validation is
// stricter for deletion than for read-side checks, and package-cache
// cleanup is allowed a narrow set of roots outside the home directory.
type Intent int

const (
	IntentInspect Intent = iota
	IntentDelete
	IntentPackageCleanup
)

func (i Intent) String() string {
	switch i {
	case IntentInspect:
		return "inspect"
	case IntentDelete:
		return "delete"
	case IntentPackageCleanup:
		return "package-cleanup"
	default:
		return "unknown"
	}
}

// Violation identifies which validation check failed.
type Violation string

const (
	ViolationRelativePath   Violation = "relative_path"
	ViolationTraversal      Violation = "path_traversal"
	ViolationCanonicalize   Violation = "canonicalize_failed"
	ViolationSystemCritical Violation = "system_critical_path"
	ViolationOutsideHome    Violation = "outside_home"
	ViolationNoWriteAccess  Violation = "parent_not_writable"
)

// SecurityViolation is returned whenever a path fails validation. It names
// the exact check that failed; callers must treat it as fatal for the
// operation it guards.
type SecurityViolation struct {
	Path   string
	Check  Violation
	Detail string
}

func (e *SecurityViolation) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("security violation (%s) for %s: %s", e.Check, e.Path, e.Detail)
	}
	return fmt.Sprintf("security violation (%s) for %s", e.Check, e.Path)
}

// systemRoots are never valid targets for any mutating intent, nor is
// anything beneath them.
var systemRoots = []string{
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/lib",
	"/lib64",
	"/proc",
	"/root",
	"/run",
	"/sbin",
	"/srv",
	"/sys",
	"/usr",
	// macOS
	"/System",
	"/Applications",
	"/Library/System",
}

// Validator performs canonicalizing path validation against a home
// directory boundary and a package-cache allow list.
type Validator struct {
	homeDir        string
	packageCaches  []string
	extraProtected []string
}

// NewValidator creates a Validator rooted at the given home directory.
func NewValidator(homeDir string, packageCaches []string) *Validator {
	return &Validator{
		homeDir:       filepath.Clean(homeDir),
		packageCaches: packageCaches,
	}
}

// AddProtectedPath registers an additional path that validation must reject.
func (v *Validator) AddProtectedPath(path string) {
	v.extraProtected = append(v.extraProtected, filepath.Clean(path))
}

// Validate runs every check in order and returns the canonical path on
// success. All checks are mandatory; no partial result is ever returned.
func (v *Validator) Validate(path string, intent Intent) (string, error) {
	// Step 1: absolute paths only, and no parent segments before
	// resolution. A ".." that would cancel out after Clean is still
	// rejected: the caller handed us something suspicious.
	if !filepath.IsAbs(path) {
		return "", &SecurityViolation{Path: path, Check: ViolationRelativePath}
	}
	for _, seg := range strings.Split(path, string(filepath.Separator)) {
		if seg == ".." {
			return "", &SecurityViolation{Path: path, Check: ViolationTraversal}
		}
	}

	// Step 2: canonicalize. Resolve symlinks so that a link inside a
	// permitted tree cannot smuggle a deletion out of it.
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Broken symlinks and already-removed entries are still
			// validated on their lexical form.
			canonical = filepath.Clean(path)
		} else {
			return "", &SecurityViolation{Path: path, Check: ViolationCanonicalize, Detail: err.Error()}
		}
	} else {
		canonical = filepath.Clean(canonical)
	}

	// Step 3: deny-list of system-critical roots, checked on the
	// canonical form.
	if canonical == "/" {
		return "", &SecurityViolation{Path: path, Check: ViolationSystemCritical, Detail: "filesystem root"}
	}
	for _, root := range systemRoots {
		if canonical == root || strings.HasPrefix(canonical, root+"/") {
			return "", &SecurityViolation{Path: path, Check: ViolationSystemCritical, Detail: root}
		}
	}
	for _, p := range v.extraProtected {
		if canonical == p || strings.HasPrefix(canonical, p+"/") {
			return "", &SecurityViolation{Path: path, Check: ViolationSystemCritical, Detail: p}
		}
	}

	// Step 4: boundary check. Mutations stay inside the home directory,
	// except package cleanup which may touch the allow-listed caches.
	if !v.isUnderHome(canonical) {
		if intent != IntentPackageCleanup || !v.isPackageCache(canonical) {
			return "", &SecurityViolation{Path: path, Check: ViolationOutsideHome}
		}
	}
	if canonical == v.homeDir {
		return "", &SecurityViolation{Path: path, Check: ViolationSystemCritical, Detail: "home directory itself"}
	}

	// Step 5: deletion needs write permission on the parent directory.
	if intent == IntentDelete || intent == IntentPackageCleanup {
		parent := filepath.Dir(canonical)
		if err := unix.Access(parent, unix.W_OK); err != nil {
			return "", &SecurityViolation{Path: path, Check: ViolationNoWriteAccess, Detail: parent}
		}
	}

	return canonical, nil
}

// IsProtectedPath reports whether a path falls under the deny list. Used by
// the scanner as a cheap skip check; it is not a substitute for Validate.
func (v *Validator) IsProtectedPath(path string) bool {
	clean := filepath.Clean(path)
	if clean == "/" {
		return true
	}
	for _, root := range systemRoots {
		if clean == root || strings.HasPrefix(clean, root+"/") {
			return true
		}
	}
	for _, p := range v.extraProtected {
		if clean == p || strings.HasPrefix(clean, p+"/") {
			return true
		}
	}
	return false
}

func (v *Validator) isUnderHome(canonical string) bool {
	return canonical == v.homeDir || strings.HasPrefix(canonical, v.homeDir+"/")
}

func (v *Validator) isPackageCache(canonical string) bool {
	for _, cache := range v.packageCaches {
		clean := filepath.Clean(cache)
		if canonical == clean || strings.HasPrefix(canonical, clean+"/") {
			return true
		}
	}
	return false
}
