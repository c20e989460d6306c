// Package dockerremote fetches a package's doc-index by running a
// short-lived container from the package's build image and copying the
// doc-index file back out, the same container-lifecycle shape the
// teacher's native Docker client uses for one-shot build containers.
package dockerremote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/sockets"
	archive "github.com/moby/go-archive"

	"github.com/architect-io/bpcompile/pkg/cratedoc"
	"github.com/architect-io/bpcompile/pkg/cratedoc/docindex"
	"github.com/architect-io/bpcompile/pkg/errs"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
)

// ImageResolver maps a package id to the build image whose filesystem
// contains its exported doc-index.
type ImageResolver func(pkg pkggraph.PackageID) (image string, docIndexPath string, err error)

// Source is a cratedoc.Source backed by a throwaway Docker container.
type Source struct {
	cli      *client.Client
	resolver ImageResolver
}

// NewSource builds a Docker-backed crate-doc source over an already
// configured Docker API client.
func NewSource(cli *client.Client, resolver ImageResolver) *Source {
	return &Source{cli: cli, resolver: resolver}
}

// NewClient dials host (a unix socket or tcp address, the same forms
// the `docker` CLI accepts in DOCKER_HOST) with an HTTP transport
// configured by go-connections/sockets, the same proto-aware dialer the
// Docker CLI itself uses to reach both local and remote daemons.
func NewClient(host string) (*client.Client, error) {
	hostURL, err := client.ParseHostURL(host)
	if err != nil {
		return nil, fmt.Errorf("parsing docker host %q: %w", host, err)
	}
	proto, addr := hostURL.Scheme, hostURL.Host

	transport := &http.Transport{}
	if err := sockets.ConfigureTransport(transport, proto, addr); err != nil {
		return nil, fmt.Errorf("configuring transport for %q: %w", host, err)
	}

	httpClient := &http.Client{Transport: transport, Timeout: 30 * time.Second}
	return client.NewClientWithOpts(client.WithHost(host), client.WithHTTPClient(httpClient), client.WithAPIVersionNegotiation())
}

// Fetch creates a container from the resolved image, without starting
// it, and extracts the doc-index file directly from its filesystem -
// the docker-cp equivalent, since no user code needs to run to read a
// file already baked into the image.
func (s *Source) Fetch(pkg pkggraph.PackageID) (cratedoc.DocIndex, error) {
	ctx := context.Background()

	image, docIndexPath, err := s.resolver(pkg)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("resolving Docker image for %q", pkg), err)
	}

	created, err := s.cli.ContainerCreate(ctx, &container.Config{Image: image}, nil, nil, nil, "")
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("creating container from %q", image), err)
	}
	defer func() {
		_ = s.cli.ContainerRemove(ctx, created.ID, container.RemoveOptions{Force: true})
	}()

	reader, _, err := s.cli.CopyFromContainer(ctx, created.ID, docIndexPath)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("copying %s from %q", docIndexPath, image), err)
	}
	defer reader.Close()

	data, err := extractSingleFile(reader, docIndexPath)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("extracting %s from %q", docIndexPath, image), err)
	}

	doc, err := docindex.Decode(data)
	if err != nil {
		return nil, errs.Wrap(errs.CodeCrateDoc, fmt.Sprintf("decoding doc-index from %q", image), err)
	}
	return doc.Build()
}

// extractSingleFile unpacks the tar stream CopyFromContainer returns
// into a scratch directory with go-archive's Untar - the same
// extraction path the `docker cp` CLI itself uses - then reads back the
// single file docIndexPath named.
func extractSingleFile(r io.Reader, docIndexPath string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "bpcompile-dockercp-*")
	if err != nil {
		return nil, fmt.Errorf("creating extraction directory: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := archive.Untar(r, dir, &archive.TarOptions{NoLchown: true}); err != nil {
		return nil, fmt.Errorf("untarring docker cp stream: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(docIndexPath)))
	if err != nil {
		return nil, fmt.Errorf("archive contained no regular file %s: %w", filepath.Base(docIndexPath), err)
	}
	return data, nil
}
