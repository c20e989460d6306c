// Package ociremote fetches a package's doc-index from an OCI registry:
// the artifact is pulled the same way the teacher's pkg/oci.Client pulls
// a component artifact, except the layer it extracts is a single
// doc-index.json blob rather than a component's build context.
package ociremote

import (
	"context"
	"fmt"
	"io"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/architect-io/bpcompile/pkg/cratedoc"
	"github.com/architect-io/bpcompile/pkg/cratedoc/docindex"
	"github.com/architect-io/bpcompile/pkg/errs"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
)

// ReferenceResolver maps a package id to the OCI reference its doc-index
// artifact was published under.
type ReferenceResolver func(pkg pkggraph.PackageID) (string, error)

// Source is a cratedoc.Source backed by an OCI registry.
type Source struct {
	auth     authn.Keychain
	resolver ReferenceResolver
}

// NewSource builds an OCI-backed crate-doc source. resolver decides which
// registry reference holds a given package's doc-index artifact.
func NewSource(resolver ReferenceResolver) *Source {
	return &Source{auth: authn.DefaultKeychain, resolver: resolver}
}

// Fetch pulls the single doc-index.json layer published for pkg and
// decodes it into a cratedoc.DocIndex.
func (s *Source) Fetch(pkg pkggraph.PackageID) (cratedoc.DocIndex, error) {
	reference, err := s.resolver(pkg)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("resolving OCI reference for %q", pkg), err)
	}

	ref, err := name.ParseReference(reference)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("invalid OCI reference %q", reference), err)
	}

	img, err := remote.Image(ref, remote.WithAuthFromKeychain(s.auth), remote.WithContext(context.Background()))
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("pulling doc-index artifact %q", reference), err)
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("reading layers of %q", reference), err)
	}
	if len(layers) == 0 {
		return nil, errs.New(errs.CodeCrateDoc, fmt.Sprintf("%q has no layers; expected a single doc-index.json blob", reference))
	}

	rc, err := layers[len(layers)-1].Uncompressed()
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("uncompressing doc-index layer of %q", reference), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("reading doc-index layer of %q", reference), err)
	}

	doc, err := docindex.Decode(data)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("decoding doc-index from %q", reference), err)
	}
	return doc.Build()
}
