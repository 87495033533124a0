package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 20 * time.Second

	// gracefulEnvKey marks a child started by SIGUSR2; it inherits the listener on fd 3.
	gracefulEnvKey   = "HOMEDASH_GRACEFUL"
	gracefulEnvValue = gracefulEnvKey + "=1"
	gracefulFD       = 3
)

// Server wraps http.Server with signal driven shutdown and zero-downtime restart.
type Server struct {
	*http.Server

	listener        net.Listener
	inherited       bool
	shutdownTimeout time.Duration
	onShutdown      []func()
	signalChan      chan os.Signal
	done            chan struct{}
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       defaultReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      defaultWriteTimeout,
		},
		inherited:       os.Getenv(gracefulEnvKey) != "",
		shutdownTimeout: defaultShutdownTimeout,
		signalChan:      make(chan os.Signal, 1),
		done:            make(chan struct{}),
	}
}

// OnShutdown registers fn to run after in-flight requests drained, e.g. closing the database.
func (srv *Server) OnShutdown(fn func()) {
	srv.onShutdown = append(srv.onShutdown, fn)
}

// ListenAndServe serves until SIGINT/SIGTERM, or hands the socket to a new
// process on SIGUSR2.
func (srv *Server) ListenAndServe() error {
	ln, err := srv.listen()
	if err != nil {
		return err
	}
	srv.listener = ln

	go srv.handleSignals()
	err = srv.Server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-srv.done
		return nil
	}
	return err
}

func (srv *Server) listen() (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(gracefulFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	signal.Notify(srv.signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	for sig := range srv.signalChan {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			Sugar.Infof("received %s, shutting down HTTP server", sig)
			srv.shutdown()
			return
		case syscall.SIGUSR2:
			pid, err := srv.forkChild()
			if err != nil {
				Sugar.Errorf("graceful restart failed, continue serving: %v", err)
				continue
			}
			Sugar.Infof("graceful restart: child pid=%d took over the listener", pid)
			srv.shutdown()
			return
		}
	}
}

func (srv *Server) shutdown() {
	signal.Stop(srv.signalChan)
	ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		Sugar.Errorf("HTTP server shutdown error: %v", err)
	} else {
		Sugar.Info("HTTP server shutdown complete")
	}
	for _, fn := range srv.onShutdown {
		fn()
	}
	close(srv.done)
}

func (srv *Server) forkChild() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, errors.New("listener is not a TCP listener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != gracefulEnvValue {
			env = append(env, e)
		}
	}
	env = append(env, gracefulEnvValue)

	return syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
}

// GraceServer starts an HTTP server with graceful capabilities; cleanup runs after shutdown.
func GraceServer(addr string, handler http.Handler, cleanup ...func()) error {
	srv := NewServer(addr, handler)
	for _, fn := range cleanup {
		srv.OnShutdown(fn)
	}
	return srv.ListenAndServe()
}
