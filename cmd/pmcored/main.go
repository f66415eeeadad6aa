// Command pmcored is the request-port daemon: it binds the listening
// sockets described by §4.F, runs the §4.G secure handshake on every
// accepted connection, and optionally drives §4.H service discovery
// in the background. Grounded on the teacher's cmd/cc-backend/main.go
// startup sequence (flag parsing, config load, privilege drop,
// systemd readiness notification, signal-driven shutdown).
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/expr-lang/expr/vm"
	"github.com/nats-io/nats.go"

	"github.com/pmcore/pmcore/internal/config"
	"github.com/pmcore/pmcore/internal/discovery"
	"github.com/pmcore/pmcore/internal/handshake"
	"github.com/pmcore/pmcore/internal/option"
	"github.com/pmcore/pmcore/internal/reqport"
	"github.com/pmcore/pmcore/internal/runtimeenv"
	"github.com/pmcore/pmcore/pkg/log"
)

func main() {
	configPath := flag.String("config", "", "path to program config JSON")
	user := flag.String("user", "", "drop privileges to this user after binding")
	group := flag.String("group", "", "drop privileges to this group after binding")
	pidPath := flag.String("pidfile", "", "write the daemon's PID to this path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	runtimeenv.EnsureSIGPIPEIgnored()

	var pidFile *runtimeenv.PIDFile
	if *pidPath != "" {
		pidFile, err = runtimeenv.WritePIDFile(*pidPath)
		if err != nil {
			log.Fatal(err)
		}
		defer pidFile.Remove()
	}

	mechanisms, err := buildMechanisms(cfg)
	if err != nil {
		log.Fatal(err)
	}
	hsCfg := handshake.Config{Mechanisms: mechanisms}

	manager := reqport.NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ports, err := manager.OpenAll(ctx, cfg.PortSpec())
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("pmcored: listening on %d port(s)", len(ports))

	if *user != "" || *group != "" {
		if err := runtimeenv.DropPrivileges(*user, *group); err != nil {
			log.Fatal(err)
		}
	}

	diagSrv := reqport.NewDiagServer(reqport.DiagConfig{Addr: cfg.DiagAddr})
	go func() {
		if err := diagSrv.ListenAndServe(); err != nil {
			log.Warnf("pmcored: diagnostics server: %v", err)
		}
	}()

	var scheduler *discovery.Scheduler
	if cfg.Discovery.Enabled {
		scheduler, err = startDiscovery(cfg)
		if err != nil {
			log.Warnf("pmcored: discovery disabled: %v", err)
		}
	}

	for _, p := range ports {
		go acceptLoop(ctx, p, hsCfg)
	}

	runtimeenv.SystemdNotify(true, "pmcored ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("pmcored: shutting down")
	runtimeenv.SystemdNotify(false, "stopping")
	cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	diagSrv.Close()
	manager.Shutdown()
}

func buildMechanisms(cfg *config.ProgramConfig) ([]handshake.Mechanism, error) {
	var mechanisms []handshake.Mechanism
	for _, name := range cfg.AuthMechanisms {
		switch name {
		case "PLAIN":
			mechanisms = append(mechanisms, &handshake.PlainMechanism{Accounts: map[string][]byte{}})
		case "LDAP":
			if cfg.LDAP == nil {
				return nil, fmt.Errorf("auth mechanism LDAP configured without an ldap config block")
			}
			mechanisms = append(mechanisms, &handshake.LDAPMechanism{URL: cfg.LDAP.URL, BindDN: cfg.LDAP.BindDN})
		case "JWT":
			secret := os.Getenv("PMCORE_JWT_SECRET")
			mechanisms = append(mechanisms, &handshake.JWTMechanism{Keyfunc: handshake.HMACKeyfunc([]byte(secret))})
		default:
			return nil, fmt.Errorf("unknown auth mechanism %q", name)
		}
	}
	return mechanisms, nil
}

func acceptLoop(ctx context.Context, p *reqport.Port, hsCfg handshake.Config) {
	for {
		conn, err := p.Listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Warnf("pmcored: accept on %s: %v", p.Address, err)
				return
			}
		}
		go handleConn(conn, hsCfg)
	}
}

func handleConn(conn net.Conn, hsCfg handshake.Config) {
	defer conn.Close()
	sess, err := handshake.Run(conn, hsCfg)
	if err != nil {
		log.Warnf("pmcored: handshake from %s: %v", conn.RemoteAddr(), err)
		return
	}
	log.Debugf("pmcored: admitted %s as %q", conn.RemoteAddr(), sess.Creds.Name)
	// The PDU request/response loop proper (component B) runs over
	// sess.Conn from here; wiring a specific metric-serving backend is
	// outside this entrypoint's scope.
}

func startDiscovery(cfg *config.ProgramConfig) (*discovery.Scheduler, error) {
	var nc *nats.Conn
	if cfg.Discovery.NATSURL != "" {
		var err error
		nc, err = nats.Connect(cfg.Discovery.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}
	}

	sched, err := discovery.NewScheduler(nc, cfg.Discovery.NATSSubject)
	if err != nil {
		return nil, err
	}

	program, err := buildFilter(cfg.Discovery.CandidateFilter)
	if err != nil {
		return nil, err
	}

	var interrupted atomic.Bool
	ctrl := &discovery.Control{
		Interrupted: &interrupted,
		MaxThreads:  8,
		Timeout:     20 * time.Millisecond,
		Filter:      program,
	}

	interval := time.Duration(cfg.Discovery.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	for _, subnet := range cfg.Discovery.Subnets {
		if err := sched.ScheduleSubnetSweep(interval, ctrl, subnet, cfg.Discovery.Ports); err != nil {
			return nil, err
		}
	}
	if cfg.Discovery.ScriptDir != "" {
		if err := sched.ScheduleShellProbe(interval, ctrl, cfg.Discovery.ScriptDir, cfg.Discovery.Ports); err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}

func buildFilter(source string) (*vm.Program, error) {
	if source == "" {
		return nil, nil
	}
	prog, err := option.CompileCandidateFilter(source)
	if err != nil {
		return nil, fmt.Errorf("compiling discovery candidate filter: %w", err)
	}
	return prog, nil
}
