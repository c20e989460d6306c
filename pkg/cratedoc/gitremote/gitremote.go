// Package gitremote fetches a package's doc-index by shallow-cloning the
// git repository that hosts it, the same depth-1 clone-by-ref approach
// the teacher's dependency resolver uses to fetch a git-hosted component.
package gitremote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/architect-io/bpcompile/pkg/cratedoc"
	"github.com/architect-io/bpcompile/pkg/cratedoc/docindex"
	"github.com/architect-io/bpcompile/pkg/errs"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
)

// Location names the repository and ref a package's doc-index is
// published at, plus the path to the doc-index file within the clone.
type Location struct {
	URL      string
	Ref      string
	DocIndex string // path within the clone, e.g. "doc-index.json"
}

// LocationResolver maps a package id to the git location its doc-index
// lives at.
type LocationResolver func(pkg pkggraph.PackageID) (Location, error)

// Source is a cratedoc.Source backed by a git repository clone.
type Source struct {
	resolver LocationResolver
	// cloneDir is where shallow clones are checked out; a fresh temp
	// directory is used when empty.
	cloneDir string
}

// NewSource builds a git-backed crate-doc source.
func NewSource(resolver LocationResolver) *Source {
	return &Source{resolver: resolver}
}

// Fetch clones loc.URL at loc.Ref into a scratch directory and decodes
// the doc-index file it contains.
func (s *Source) Fetch(pkg pkggraph.PackageID) (cratedoc.DocIndex, error) {
	loc, err := s.resolver(pkg)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("resolving git location for %q", pkg), err)
	}

	dest := s.cloneDir
	if dest == "" {
		tmp, err := os.MkdirTemp("", "bpcompile-docindex-*")
		if err != nil {
			return nil, errs.Wrap(errs.CodeCrateDoc, "creating scratch clone directory", err)
		}
		defer os.RemoveAll(tmp)
		dest = tmp
	}

	if err := clone(loc.URL, loc.Ref, dest); err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("cloning %q at %q", loc.URL, loc.Ref), err)
	}

	docPath := filepath.Join(dest, loc.DocIndex)
	data, err := os.ReadFile(docPath)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("reading %s", docPath), err)
	}

	doc, err := docindex.Decode(data)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("decoding doc-index from %s", docPath), err)
	}
	return doc.Build()
}

// clone performs a depth-1 clone of url at ref into dest, trying ref as a
// branch first and falling back to a tag - the same fallback the
// teacher's resolver uses since a bare ref name does not say which it is.
func clone(url, ref, dest string) error {
	opts := &git.CloneOptions{
		URL:           url,
		Depth:         1,
		SingleBranch:  true,
		ReferenceName: plumbing.NewBranchReferenceName(ref),
	}

	_, err := git.PlainCloneContext(context.Background(), dest, false, opts)
	if err != nil {
		opts.ReferenceName = plumbing.NewTagReferenceName(ref)
		_, err = git.PlainCloneContext(context.Background(), dest, false, opts)
	}
	return err
}
