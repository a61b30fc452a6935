package grpcschema

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	refv1alpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ProtocolError is an error returned when the server sends a response of the
// wrong type.
type ProtocolError struct {
	missingType reflect.Type
}

func (p ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: response was missing %v", p.missingType)
}

// fileCache holds every file received from the server, shared by all clients
// of one fetch. Responses may omit files that were sent in earlier responses
// on the same stream, so files are never evicted.
type fileCache struct {
	mu     sync.RWMutex
	protos map[string]*descriptorpb.FileDescriptorProto
}

func newFileCache() *fileCache {
	return &fileCache{protos: map[string]*descriptorpb.FileDescriptorProto{}}
}

func (c *fileCache) get(name string) (*descriptorpb.FileDescriptorProto, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fd, ok := c.protos[name]
	return fd, ok
}

// add stores fd, unless a file with the same name is already stored, and
// returns the stored file.
func (c *fileCache) add(fd *descriptorpb.FileDescriptorProto) *descriptorpb.FileDescriptorProto {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.protos[fd.GetName()]; ok {
		return existing
	}
	c.protos[fd.GetName()] = fd
	return fd
}

// reflectionStream is the part of the reflection stream that the client uses.
// Both API versions are adapted to the v1alpha message types, which have the
// same wire format.
type reflectionStream interface {
	Send(*refv1alpha.ServerReflectionRequest) error
	Recv() (*refv1alpha.ServerReflectionResponse, error)
	CloseSend() error
}

type v1Stream struct {
	stream refv1.ServerReflection_ServerReflectionInfoClient
}

func (s v1Stream) Send(req *refv1alpha.ServerReflectionRequest) error {
	var v1Req refv1.ServerReflectionRequest
	if err := convertMessage(req, &v1Req); err != nil {
		return err
	}
	return s.stream.Send(&v1Req)
}

func (s v1Stream) Recv() (*refv1alpha.ServerReflectionResponse, error) {
	v1Resp, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	var resp refv1alpha.ServerReflectionResponse
	if err := convertMessage(v1Resp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s v1Stream) CloseSend() error {
	return s.stream.CloseSend()
}

func convertMessage(src, dest proto.Message) error {
	data, err := proto.Marshal(src)
	if err != nil {
		return err
	}
	return proto.Unmarshal(data, dest)
}

// client performs reflection calls over a single stream. It is not safe for
// concurrent use: concurrent fetches use one client per goroutine, all sharing
// the same file cache.
type client struct {
	ctx         context.Context
	stubV1      refv1.ServerReflectionClient
	stubV1Alpha refv1alpha.ServerReflectionClient
	cache       *fileCache

	cancel     context.CancelFunc
	stream     reflectionStream
	useV1Alpha bool
}

// newClient creates a client that first tries the v1 version of the
// reflection service. If the server reports that it is unimplemented, the
// client falls back to v1alpha.
func newClient(ctx context.Context, cc grpc.ClientConnInterface, cache *fileCache) *client {
	return &client{
		ctx:         ctx,
		stubV1:      refv1.NewServerReflectionClient(cc),
		stubV1Alpha: refv1alpha.NewServerReflectionClient(cc),
		cache:       cache,
	}
}

// fileByFilename returns the file with the given name, asking the server only
// if it is not already cached.
func (c *client) fileByFilename(filename string) (*descriptorpb.FileDescriptorProto, error) {
	if fd, ok := c.cache.get(filename); ok {
		return fd, nil
	}
	req := &refv1alpha.ServerReflectionRequest{
		MessageRequest: &refv1alpha.ServerReflectionRequest_FileByFilename{
			FileByFilename: filename,
		},
	}
	fds, err := c.getAndCacheFiles(req)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: file %q", ErrNotFound, filename)
	} else if err != nil {
		return nil, err
	}
	for _, fd := range fds {
		if fd.GetName() == filename {
			return fd, nil
		}
	}
	return nil, fmt.Errorf("%w: response for file %q does not include it", ErrNotFound, filename)
}

// fileContainingSymbol asks the server for the file that declares the given
// fully-qualified symbol.
func (c *client) fileContainingSymbol(symbol string) (*descriptorpb.FileDescriptorProto, error) {
	req := &refv1alpha.ServerReflectionRequest{
		MessageRequest: &refv1alpha.ServerReflectionRequest_FileContainingSymbol{
			FileContainingSymbol: symbol,
		},
	}
	fds, err := c.getAndCacheFiles(req)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: symbol %q", ErrNotFound, symbol)
	} else if err != nil {
		return nil, err
	}
	// the requested file comes first, followed by (some of) its dependencies
	return fds[0], nil
}

// loadDependencies makes sure that all transitive dependencies of the given
// file are in the cache.
func (c *client) loadDependencies(fd *descriptorpb.FileDescriptorProto) error {
	for _, dep := range fd.GetDependency() {
		if _, ok := c.cache.get(dep); ok {
			continue
		}
		depFd, err := c.fileByFilename(dep)
		if err != nil {
			return fmt.Errorf("dependency of %q: %w", fd.GetName(), err)
		}
		if err := c.loadDependencies(depFd); err != nil {
			return err
		}
	}
	return nil
}

func (c *client) getAndCacheFiles(req *refv1alpha.ServerReflectionRequest) ([]*descriptorpb.FileDescriptorProto, error) {
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	fdResp := resp.GetFileDescriptorResponse()
	if fdResp == nil {
		return nil, &ProtocolError{reflect.TypeOf(fdResp).Elem()}
	}
	if len(fdResp.GetFileDescriptorProto()) == 0 {
		return nil, status.Errorf(codes.NotFound, "response does not include any files")
	}
	fds := make([]*descriptorpb.FileDescriptorProto, 0, len(fdResp.GetFileDescriptorProto()))
	for _, fdBytes := range fdResp.GetFileDescriptorProto() {
		fd := &descriptorpb.FileDescriptorProto{}
		if err := proto.Unmarshal(fdBytes, fd); err != nil {
			return nil, fmt.Errorf("server sent invalid file descriptor: %w", err)
		}
		fds = append(fds, c.cache.add(fd))
	}
	return fds, nil
}

// listServices asks the server for the fully-qualified names of all exposed
// services.
func (c *client) listServices() ([]string, error) {
	req := &refv1alpha.ServerReflectionRequest{
		MessageRequest: &refv1alpha.ServerReflectionRequest_ListServices{
			// the server ignores the value
			ListServices: "*",
		},
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	listResp := resp.GetListServicesResponse()
	if listResp == nil {
		return nil, &ProtocolError{reflect.TypeOf(listResp).Elem()}
	}
	names := make([]string, len(listResp.GetService()))
	for i, svc := range listResp.GetService() {
		names[i] = svc.GetName()
	}
	return names, nil
}

func (c *client) send(req *refv1alpha.ServerReflectionRequest) (*refv1alpha.ServerReflectionResponse, error) {
	resp, err := c.doSend(0, nil, req)
	if err != nil {
		return nil, err
	}
	if errResp := resp.GetErrorResponse(); errResp != nil {
		return nil, status.Errorf(codes.Code(errResp.GetErrorCode()), "%s", errResp.GetErrorMessage())
	}
	return resp, nil
}

func isNotFound(err error) bool {
	return err != nil && status.Code(err) == codes.NotFound
}

func (c *client) doSend(attemptCount int, prevErr error, req *refv1alpha.ServerReflectionRequest) (*refv1alpha.ServerReflectionResponse, error) {
	if attemptCount >= 3 && prevErr != nil {
		return nil, prevErr
	}
	if !c.useV1Alpha && (status.Code(prevErr) == codes.Unimplemented || status.Code(prevErr) == codes.Unavailable) {
		// Some servers close the stream without a status when the service is
		// unknown, which shows up as unavailable.
		c.useV1Alpha = true
	}
	attemptCount++

	if err := c.initStream(); err != nil {
		return nil, err
	}
	if err := c.stream.Send(req); err != nil {
		if err == io.EOF {
			// the real error is only available from Recv
			_, err = c.stream.Recv()
		}
		c.reset()
		return c.doSend(attemptCount, err, req)
	}
	resp, err := c.stream.Recv()
	if err != nil {
		c.reset()
		return c.doSend(attemptCount, err, req)
	}
	return resp, nil
}

func (c *client) initStream() error {
	if c.stream != nil {
		return nil
	}
	var ctx context.Context
	ctx, c.cancel = context.WithCancel(c.ctx)
	if !c.useV1Alpha {
		stream, err := c.stubV1.ServerReflectionInfo(ctx)
		if err == nil {
			c.stream = v1Stream{stream: stream}
			return nil
		}
		if status.Code(err) != codes.Unimplemented {
			return err
		}
		c.useV1Alpha = true
	}
	stream, err := c.stubV1Alpha.ServerReflectionInfo(ctx)
	if err != nil {
		return err
	}
	c.stream = stream
	return nil
}

// reset closes the active stream, if any, releasing its resources.
func (c *client) reset() {
	if c.stream != nil {
		_ = c.stream.CloseSend()
		for {
			// drain the stream, this covers io.EOF too
			if _, err := c.stream.Recv(); err != nil {
				break
			}
		}
		c.stream = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
