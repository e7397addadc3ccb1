// Package observe hosts the optional pprof/liveness HTTP endpoint.
package observe

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"sarabot/internal/runtime/supervisor"
	logx "sarabot/pkg/logx"
)

// Config controls the optional pprof HTTP server. Bind to loopback
// unless a token is set; profiling handlers leak internals.
type Config struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Token   string `json:"token"`
}

type Service struct {
	cfg Config
	log logx.Logger

	srv *http.Server
	sup *supervisor.Supervisor
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6060"
	}
	if s.cfg.Token == "" && !isLoopbackAddr(addr) {
		return errors.New("observe: non-loopback addr requires a token")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.withAuth(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	mux.HandleFunc("/debug/pprof/", s.withAuth(hpprof.Index))
	mux.HandleFunc("/debug/pprof/cmdline", s.withAuth(hpprof.Cmdline))
	mux.HandleFunc("/debug/pprof/profile", s.withAuth(hpprof.Profile))
	mux.HandleFunc("/debug/pprof/symbol", s.withAuth(hpprof.Symbol))
	mux.HandleFunc("/debug/pprof/trace", s.withAuth(hpprof.Trace))

	s.srv = &http.Server{Handler: mux, ReadTimeout: 10 * time.Second, IdleTimeout: time.Minute}

	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log), supervisor.WithCancelOnError(false))
	s.sup.Go("pprof.serve", func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = s.srv.Shutdown(cctx)
			cancel()
		}()
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	s.log.Info("pprof started", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.sup == nil {
		return nil
	}
	s.sup.Cancel()
	return s.sup.Wait(ctx)
}

func (s *Service) withAuth(h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(s.cfg.Token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		const p = "Bearer "
		ah := r.Header.Get("Authorization")
		if strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil || h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
