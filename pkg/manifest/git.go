package manifest

import (
	"context"
	"io/fs"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5/helper/iofs"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// IsLocal reports whether a manifest location is a local path rather than a Git URL.
func IsLocal(location string) bool {
	return !strings.Contains(location, "//") && !strings.HasPrefix(location, "git@")
}

// SplitLocation splits a Git manifest location into its URL and the optional reference
// after "#", e.g. "https://github.com/example/udfs.git#v1".
func SplitLocation(location string) (gitURL, ref string) {
	gitURL, ref, _ = strings.Cut(location, "#")
	return gitURL, ref
}

// ReferenceName returns the full reference name for ref. A short name is a branch.
func ReferenceName(ref string) plumbing.ReferenceName {
	if ref == "" || strings.HasPrefix(ref, "refs/") {
		return plumbing.ReferenceName(ref)
	}
	return plumbing.NewBranchReferenceName(ref)
}

// Clone clones a Git repository into an in-memory filesystem, e.g. to load manifests
// with LoadDir. An empty refName clones the default branch, see ReferenceName for others.
func Clone(ctx context.Context, gitURL string, refName string) (fs.FS, error) {
	cloneOptions := &git.CloneOptions{
		URL:          gitURL,
		SingleBranch: true,
		Depth:        1,
	}
	if refName != "" {
		cloneOptions.ReferenceName = ReferenceName(refName)
	}
	// Use the GITHUB_TOKEN in the environment for HTTPS GitHub URLs.
	if ghToken := os.Getenv("GITHUB_TOKEN"); ghToken != "" && strings.HasPrefix(gitURL, "https://github.com") {
		cloneOptions.Auth = &http.BasicAuth{Username: ghToken}
	}

	gitMemFS := memfs.New()
	if _, err := git.CloneContext(ctx, memory.NewStorage(), gitMemFS, cloneOptions); err != nil {
		return nil, err
	}

	return iofs.New(gitMemFS), nil
}
