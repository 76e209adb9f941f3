package rpc

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"

	"github.com/mmm-workbench/stackexplorer/internal/monitoring"
)

// maxMsgSize allows multi-year daily payloads sent inline.
const maxMsgSize = 16 * 1024 * 1024

// Server runs a gRPC server hosting ChartService.
type Server struct {
	addr    string
	service ChartServiceServer

	server   *grpc.Server
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer returns a server that will listen on addr.
func NewServer(addr string, service ChartServiceServer) *Server {
	return &Server{addr: addr, service: service}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("grpc server already running")
	}
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis

	s.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	RegisterService(s.server, s.service)
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		monitoring.Logf("[gRPC] ChartService listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			monitoring.Logf("[gRPC] server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the server and waits for it to exit.
func (s *Server) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	s.server.GracefulStop()
	s.wg.Wait()
	monitoring.Logf("[gRPC] server stopped")
}
