package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/sockshold/internal/conn"
	"github.com/die-net/sockshold/internal/dialer"
	"github.com/die-net/sockshold/internal/proxyspec"
	"github.com/die-net/sockshold/internal/session"
	"github.com/die-net/sockshold/internal/term"
)

const (
	exitFailure   = 1
	exitParse     = 2
	exitHandshake = 3
)

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var pe *proxyspec.ParseError
	if errors.As(err, &pe) {
		return exitParse
	}
	return exitFailure
}

func main() {
	log.SetOutput(os.Stdout)

	if err := run(); err != nil {
		fmt.Fprintln(os.Stdout, "error:", err)
		os.Exit(exitCode(err))
	}
}

func run() error {
	// A missing .env is normal.
	_ = godotenv.Load()

	var (
		file = pflag.StringP("file", "f", os.Getenv("SOCKSHOLD_FILE"), "Read the proxy spec (JSON or any text) from this file instead of arguments or stdin")

		dialTimeout        = pflag.Duration("dial-timeout", envDuration("SOCKSHOLD_DIAL_TIMEOUT", 10*time.Second), "Timeout for DNS lookup and TCP connect to the proxy")
		negotiationTimeout = pflag.Duration("negotiation-timeout", envDuration("SOCKSHOLD_NEGOTIATION_TIMEOUT", 10*time.Second), "Timeout for the SOCKS5 handshake")
		tcpKeepAlive       = pflag.String("tcp-keepalive", envString("SOCKSHOLD_TCP_KEEPALIVE", "45:45:3"), "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		tick               = pflag.Duration("tick", session.DefaultTick, "How often the held connection is checked for cancellation")
		probe              = pflag.Bool("probe", true, "Exit when the proxy closes the held connection")
		once               = pflag.Bool("once", false, "Close and exit successfully right after the handshake instead of holding")
		printSpec          = pflag.Bool("print", false, "Print the extracted proxy as a JSON record and exit without connecting")
		debugListen        = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
		verbose            = pflag.Bool("verbose", false, "Log handshake details")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [curl command | JSON | socks5:// URL | host:port]\n\nWith no arguments and no --file, the spec is read from stdin until EOF.\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	ka, err := conn.ParseKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	spec, err := extractSpec(*file, pflag.Args(), os.Stdin)
	if err != nil {
		return err
	}

	if *printSpec {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(proxyspec.NewRecord(spec))
	}

	cfg := tunnelConfig{
		Dialer:             dialer.NewDirectDialer(dialer.Config{DialTimeout: *dialTimeout}),
		NegotiationTimeout: *negotiationTimeout,
		Session: session.Config{
			KeepAlive: ka,
			Tick:      *tick,
			Probe:     *probe,
		},
		Once:    *once,
		Verbose: *verbose,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if *debugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Printf("debug listening on %s", *debugListen)
	}

	g.Go(func() error {
		// The debug server lives only as long as the tunnel.
		defer cancel()
		return openTunnel(ctx, cfg, spec)
	})

	return g.Wait()
}

// extractSpec finds the proxy in, in order of preference, the named file, the
// command-line arguments, or stdin.
func extractSpec(file string, args []string, stdin io.Reader) (proxyspec.Spec, error) {
	if file != "" {
		return proxyspec.ExtractFile(file)
	}

	text, err := readInput(args, stdin)
	if err != nil {
		return proxyspec.Spec{}, err
	}
	return proxyspec.Extract(text)
}

// readInput returns the command-line arguments joined by spaces, or all of
// stdin when there are none.
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(f.Fd()) {
		fmt.Println("Paste the curl command, JSON proxy spec, or proxy URL, then press Ctrl-D.")
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

func envString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("ignoring %s=%q: %v", name, v, err)
		return def
	}
	return d
}
