package grpcschema

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/jhump/protodynamic/protoschema"
)

// ErrNotFound indicates that the server does not know a requested symbol or
// file. It wraps protoschema.ErrInvalidInput.
var ErrNotFound = fmt.Errorf("%w: not found by server reflection", protoschema.ErrInvalidInput)

const defaultConcurrency = 4

// Options configures how schemas are fetched. The zero value is ready to use.
type Options struct {
	// The maximum number of reflection streams used at the same time. If zero
	// or negative, a default of 4 is used.
	Concurrency int
	// Options used to link the fetched files into a schema.
	Schema protoschema.Options
}

func (opts Options) concurrency() int {
	if opts.Concurrency <= 0 {
		return defaultConcurrency
	}
	return opts.Concurrency
}

// Fetch downloads the files that define the given symbols, and all of their
// dependencies, from the server reflection service available via cc. It is
// the same as calling Options{}.Fetch.
func Fetch(ctx context.Context, cc grpc.ClientConnInterface, symbols ...string) (*protoschema.Schema, error) {
	return Options{}.Fetch(ctx, cc, symbols...)
}

// Fetch downloads the files that define the given fully-qualified symbols,
// which can name any element (services, methods, messages, enums, and so on),
// and all of their dependencies. If no symbols are given, the files for all
// services that the server lists are fetched, in order of service name.
//
// The file that defines the last symbol is the primary file of the returned
// schema.
func (opts Options) Fetch(ctx context.Context, cc grpc.ClientConnInterface, symbols ...string) (*protoschema.Schema, error) {
	cache := newFileCache()
	if len(symbols) == 0 {
		c := newClient(ctx, cc, cache)
		services, err := c.listServices()
		c.reset()
		if err != nil {
			return nil, fmt.Errorf("failed to list services: %w", err)
		}
		if len(services) == 0 {
			return nil, fmt.Errorf("%w: server has no services", ErrNotFound)
		}
		slices.Sort(services)
		symbols = services
	}

	group, groupCtx := errgroup.WithContext(ctx)
	workers := min(opts.concurrency(), len(symbols))
	group.SetLimit(workers)
	clients := make(chan *client, workers)
	for i := 0; i < workers; i++ {
		clients <- newClient(groupCtx, cc, cache)
	}
	defer func() {
		close(clients)
		for c := range clients {
			c.reset()
		}
	}()

	fileNames := make([]string, len(symbols))
	for i, symbol := range symbols {
		i, symbol := i, symbol
		group.Go(func() error {
			c := <-clients
			defer func() { clients <- c }()
			fd, err := c.fileContainingSymbol(symbol)
			if err != nil {
				return err
			}
			if err := c.loadDependencies(fd); err != nil {
				return fmt.Errorf("symbol %q: %w", symbol, err)
			}
			fileNames[i] = fd.GetName()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return opts.Schema.FromFileDescriptorSet(cache.closure(fileNames))
}

// closure returns a set with the named files and their dependencies, all of
// which must be cached. The last named file is last in the set.
func (c *fileCache) closure(names []string) *descriptorpb.FileDescriptorSet {
	set := &descriptorpb.FileDescriptorSet{}
	seen := map[string]struct{}{}
	var addFile func(name string)
	addFile = func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		fd, _ := c.get(name)
		for _, dep := range fd.GetDependency() {
			addFile(dep)
		}
		set.File = append(set.File, fd)
	}
	for _, name := range names {
		addFile(name)
	}
	primary := names[len(names)-1]
	for i, fd := range set.File {
		if fd.GetName() == primary {
			set.File = append(append(set.File[:i:i], set.File[i+1:]...), fd)
			break
		}
	}
	return set
}
