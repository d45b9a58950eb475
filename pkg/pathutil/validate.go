// Package pathutil provides path and name validation for corpus files.
package pathutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/pubtracker/ackscan/pkg/errclass"
)

var dirNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateDirName checks a configured subdirectory name (logs, output bucket).
func ValidateDirName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("directory name must not be empty")
	}
	if name == "." || name == ".." {
		return errclass.ErrNameInvalid.WithMessagef("directory name must not be %q", name)
	}
	if !dirNameRegex.MatchString(name) {
		return errclass.ErrNameInvalid.WithMessagef("directory name must match [a-zA-Z0-9._-]+: %s", name)
	}
	return nil
}

// ValidateFileName checks a ledger file_name: a single path element with a
// non-empty stem. Any printable characters are allowed.
func ValidateFileName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("file name must not be empty")
	}

	name = norm.NFC.String(name)

	if name == "." || name == ".." {
		return errclass.ErrNameInvalid.WithMessagef("file name must not be %q", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return errclass.ErrNameInvalid.WithMessagef("file name must not contain separators: %s", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("file name must not contain control characters: %q", name)
		}
	}
	if Stem(name) == "" {
		return errclass.ErrNameInvalid.WithMessagef("file name has an empty stem: %s", name)
	}
	return nil
}

// Stem returns name without its final extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// SameName compares two file names after NFC normalization, so a ledger
// rewritten on a filesystem that decomposes names still matches.
func SameName(a, b string) bool {
	return norm.NFC.String(a) == norm.NFC.String(b)
}

// ValidatePathSafety verifies target path does not escape the corpus root.
func ValidatePathSafety(root, targetPath string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errclass.ErrPathEscape.WithMessagef("cannot resolve corpus root: %v", err)
	}

	// Try resolving target; if it doesn't exist, resolve closest ancestor
	resolvedTarget, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(targetPath)
		} else {
			return errclass.ErrPathEscape.WithMessagef("cannot resolve target: %v", err)
		}
	}

	if !strings.HasPrefix(resolvedTarget+string(filepath.Separator), resolvedRoot+string(filepath.Separator)) &&
		resolvedTarget != resolvedRoot {
		return errclass.ErrPathEscape.WithMessagef("path escapes corpus root: %s", targetPath)
	}

	return nil
}

// resolveClosestAncestor walks up from path to find the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) && dir != path {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
