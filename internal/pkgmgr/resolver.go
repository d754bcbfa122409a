// Package pkgmgr inspects the system package manager for cleanable
// artifacts: cached package archives and orphaned packages that nothing
// depends on.
package pkgmgr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// packageNamePattern matches Debian-style package names. Every name that
// reaches a shell command must match it first.
var packageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9+._-]*$`)

// command timeouts, per class of operation
const (
	queryTimeout  = 10 * time.Second
	listTimeout   = 30 * time.Second
	removeTimeout = 5 * time.Minute
)

// PackageRecord describes one installed package.
type PackageRecord struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	InstalledSize int64  `json:"installed_size"` // bytes
	Description   string `json:"description"`
	Manual        bool   `json:"manual"` // explicitly requested by the user
}

// OrphanReport lists packages that nothing depends on and the user never
// asked for.
type OrphanReport struct {
	Orphans   []PackageRecord `json:"orphans"`
	TotalSize int64           `json:"total_size"`
}

// runner abstracts command execution so tests can stub the package
// manager.
type runner interface {
	run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out.Bytes(), nil
}

// Resolver answers dependency questions against dpkg and apt.
type Resolver struct {
	run runner
}

// NewResolver builds a Resolver that shells out to the system tools.
func NewResolver() *Resolver {
	return &Resolver{run: execRunner{}}
}

// Available reports whether the dpkg toolchain is present.
func (r *Resolver) Available() bool {
	_, err := exec.LookPath("dpkg-query")
	return err == nil
}

// ValidateName rejects anything that is not a well-formed package name.
func ValidateName(name string) error {
	if !packageNamePattern.MatchString(name) {
		return fmt.Errorf("invalid package name %q", name)
	}
	return nil
}

// InstalledPackages lists every installed package with its size.
func (r *Resolver) InstalledPackages(ctx context.Context) ([]PackageRecord, error) {
	out, err := r.run.run(ctx, listTimeout, "dpkg-query", "-W",
		"-f=${Package}\t${Version}\t${Installed-Size}\t${binary:Summary}\n")
	if err != nil {
		return nil, err
	}

	manual, err := r.manualSet(ctx)
	if err != nil {
		// A missing manual list degrades to treating everything as
		// manual, which can only under-report orphans.
		log.Warn().Err(err).Msg("could not read manually installed set")
	}

	var records []PackageRecord
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.SplitN(sc.Text(), "\t", 4)
		if len(fields) < 3 {
			continue
		}
		rec := PackageRecord{Name: fields[0], Version: fields[1]}
		if kb, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
			rec.InstalledSize = kb * 1024 // dpkg reports KiB
		}
		if len(fields) == 4 {
			rec.Description = fields[3]
		}
		if manual == nil {
			rec.Manual = true
		} else {
			_, rec.Manual = manual[rec.Name]
		}
		records = append(records, rec)
	}
	return records, sc.Err()
}

// ReverseDependencies returns the installed packages that depend on the
// named package.
func (r *Resolver) ReverseDependencies(ctx context.Context, name string) ([]string, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	out, err := r.run.run(ctx, queryTimeout, "apt-cache", "rdepends", "--installed", name)
	if err != nil {
		return nil, err
	}
	return parseRdepends(out, name), nil
}

// FindOrphans returns packages with no installed reverse dependencies
// that were not explicitly installed by the user.
func (r *Resolver) FindOrphans(ctx context.Context) (*OrphanReport, error) {
	packages, err := r.InstalledPackages(ctx)
	if err != nil {
		return nil, err
	}

	report := &OrphanReport{}
	for _, pkg := range packages {
		if pkg.Manual {
			continue
		}
		rdeps, err := r.ReverseDependencies(ctx, pkg.Name)
		if err != nil {
			log.Debug().Err(err).Str("package", pkg.Name).Msg("rdepends query failed, keeping package")
			continue
		}
		if len(rdeps) > 0 {
			continue
		}
		report.Orphans = append(report.Orphans, pkg)
		report.TotalSize += pkg.InstalledSize
	}
	return report, nil
}

// IsOrphan re-checks a single package. Removal paths call this right
// before acting so a package that gained a dependent since the scan is
// never removed.
func (r *Resolver) IsOrphan(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	out, err := r.run.run(ctx, queryTimeout, "apt-mark", "showmanual", name)
	if err == nil && strings.TrimSpace(string(out)) == name {
		return false, nil
	}
	rdeps, err := r.ReverseDependencies(ctx, name)
	if err != nil {
		return false, err
	}
	return len(rdeps) == 0, nil
}

// RemoveOrphan removes a package after re-validating that it is still an
// orphan. Names are validated before any command runs.
func (r *Resolver) RemoveOrphan(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	orphan, err := r.IsOrphan(ctx, name)
	if err != nil {
		return err
	}
	if !orphan {
		return fmt.Errorf("package %s is no longer an orphan", name)
	}
	_, err = r.run.run(ctx, removeTimeout, "apt-get", "remove", "-y", name)
	if err != nil {
		return err
	}
	log.Info().Str("package", name).Msg("removed orphaned package")
	return nil
}

// AutocleanCache drops superseded archives from the apt cache.
func (r *Resolver) AutocleanCache(ctx context.Context) error {
	_, err := r.run.run(ctx, removeTimeout, "apt-get", "autoclean", "-y")
	return err
}

// manualSet returns the names the user explicitly installed.
func (r *Resolver) manualSet(ctx context.Context) (map[string]struct{}, error) {
	out, err := r.run.run(ctx, listTimeout, "apt-mark", "showmanual")
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set, sc.Err()
}

// parseRdepends extracts dependent package names from apt-cache rdepends
// output, skipping the header lines and virtual-package markers.
func parseRdepends(out []byte, name string) []string {
	var deps []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == name || line == "Reverse Depends:" {
			continue
		}
		line = strings.TrimPrefix(line, "|")
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "<") { // virtual provider
			continue
		}
		if packageNamePattern.MatchString(line) {
			deps = append(deps, line)
		}
	}
	return deps
}
