package feed

import (
	"bufio"
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
)

// Server exposes the hub as a line-delimited JSON stream over plain TCP.
type Server struct {
	Addr string
	Hub  *Hub
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run accepts listeners until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := s.Hub.logger
	logger.Info("tcp feed listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("accept failed", zap.Error(err))
			continue
		}

		_, _ = conn.Write(s.Hub.welcomeLine("tcp"))
		s.Hub.Add(conn)
		logger.Debug("tcp listener connected", zap.String("remote", conn.RemoteAddr().String()))

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				logger.Debug("tcp listener disconnected", zap.String("remote", c.RemoteAddr().String()))
			}()
			// incoming lines are ignored; the loop ends when the peer hangs up
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}
