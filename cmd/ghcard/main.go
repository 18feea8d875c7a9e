package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/ghcard/internal/config"
	"github.com/hanpama/ghcard/internal/descriptor"
	"github.com/hanpama/ghcard/internal/environment"
	"github.com/hanpama/ghcard/internal/eventbus"
	"github.com/hanpama/ghcard/internal/events"
	"github.com/hanpama/ghcard/internal/otel"
	"github.com/hanpama/ghcard/internal/profile"
	"github.com/hanpama/ghcard/internal/server"
	"github.com/hanpama/ghcard/internal/transport"
	"github.com/hanpama/ghcard/internal/view"
)

const rootUsage = `ghcard: GitHub profile card over GraphQL

USAGE:
  ghcard <command> [flags]

COMMANDS:
  show             Fetch the profile and print the card
  serve            Serve the card over HTTP at / and /profile.json
  help             Show help for any command
`

const commonUsage = `  -config <file>                      YAML config file
  -github.token <token>               GitHub token (env: GITHUB_TOKEN, required)
  -github.endpoint <url>              GraphQL endpoint (default: https://api.github.com/graphql)
  -github.timeout <duration>          HTTP request timeout, e.g. 30s (default: 30s)
  -login <login>                      GitHub login to show (default: artem-tarasenko)
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: ghcard)
  -verbose                            Log fetch and transport events to stderr
`

const showUsage = `show FLAGS:
` + commonUsage + `  -html                               Print the card as an HTML page
`

const serveUsage = `serve FLAGS:
` + commonUsage + `  -server.addr <addr>                 HTTP listen address (default: :8080)
  -server.pretty                      Pretty-print JSON responses
  -server.suspend-timeout <duration>  Wait for pending data before the fallback page (default: 2s)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("ghcard", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "show":
		return cmdShow(ctx, cmdArgs, stdout, stderr)
	case "serve":
		return cmdServe(ctx, cmdArgs, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "show":
		fmt.Fprint(stdout, showUsage)
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// commonFlags are shared by show and serve. Only flags given on the command
// line override the file and environment layers.
type commonFlags struct {
	configPath string
	verbose    bool
	flagged    config.Config
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML config file")
	fs.BoolVar(&c.verbose, "verbose", false, "Log fetch and transport events")
	fs.StringVar(&c.flagged.Token, "github.token", "", "GitHub token")
	fs.StringVar(&c.flagged.Endpoint, "github.endpoint", "", "GraphQL endpoint")
	fs.DurationVar(&c.flagged.Timeout, "github.timeout", 0, "HTTP request timeout")
	fs.StringVar(&c.flagged.Login, "login", "", "GitHub login")
	fs.StringVar(&c.flagged.OTel.Endpoint, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&c.flagged.OTel.Service, "otel.service", "", "OpenTelemetry service name")
}

func (c *commonFlags) registerServer(fs *flag.FlagSet) {
	fs.StringVar(&c.flagged.Server.Addr, "server.addr", "", "HTTP listen address")
	fs.BoolVar(&c.flagged.Server.Pretty, "server.pretty", false, "Pretty-print JSON responses")
	fs.DurationVar(&c.flagged.Server.SuspendTimeout, "server.suspend-timeout", 0, "Suspend timeout")
}

// load layers the visited flags over the file and environment config.
func (c *commonFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	f := &c.flagged
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "github.token":
			cfg.Token = f.Token
		case "github.endpoint":
			cfg.Endpoint = f.Endpoint
		case "github.timeout":
			cfg.Timeout = f.Timeout
		case "login":
			cfg.Login = f.Login
		case "otel.endpoint":
			cfg.OTel.Endpoint = f.OTel.Endpoint
		case "otel.service":
			cfg.OTel.Service = f.OTel.Service
		case "server.addr":
			cfg.Server.Addr = f.Server.Addr
		case "server.pretty":
			cfg.Server.Pretty = f.Server.Pretty
		case "server.suspend-timeout":
			cfg.Server.SuspendTimeout = f.Server.SuspendTimeout
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup wires the event bus, tracing and the query environment for cfg.
func setup(cfg *config.Config, verbose bool, stderr io.Writer) (*environment.Environment, func(), error) {
	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(cfg.OTel.Endpoint, cfg.OTel.Service)
	if err != nil {
		return nil, nil, fmt.Errorf("otel setup: %w", err)
	}
	if verbose {
		logEvents(log.New(stderr, "ghcard: ", log.LstdFlags))
	}
	client, err := transport.New(cfg.Endpoint,
		transport.WithToken(cfg.Token),
		transport.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, nil, err
	}
	cleanup := func() {
		_ = shutdown(context.Background())
		eventbus.Use(nil)
	}
	return environment.New(client), cleanup, nil
}

// profileQuery picks the query for login: the built-in one for the default
// login and UserProfileByLoginQuery otherwise.
func profileQuery(login string) (*descriptor.Descriptor, map[string]any) {
	if login == "" || login == profile.DefaultLogin {
		return profile.Query(), nil
	}
	return profile.ByLoginQuery(), map[string]any{"login": login}
}

func logEvents(l *log.Logger) {
	eventbus.Subscribe(func(ctx context.Context, e events.FetchStart) {
		l.Printf("fetch %s started", e.Key)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.FetchFinish) {
		if e.Err != nil {
			l.Printf("fetch %s %s in %s: %v", e.Key, e.State, e.Duration, e.Err)
			return
		}
		l.Printf("fetch %s %s in %s (%d records)", e.Key, e.State, e.Duration, e.Records)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.TransportFinish) {
		l.Printf("POST %s %s -> %d in %s", e.Endpoint, e.OperationName, e.Status, e.Duration)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		l.Printf("%s %s -> %d %s in %s", e.Request.Method, e.Request.URL.RequestURI(), e.Status, e.HandleState, e.Duration)
	})
}

func cmdShow(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		common commonFlags
		html   bool
	)
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	common.register(fs)
	fs.BoolVar(&html, "html", false, "Print the card as an HTML page")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, showUsage)
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		fmt.Fprint(stderr, showUsage)
		return err
	}

	env, cleanup, err := setup(cfg, common.verbose, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	var r view.Renderer = view.Text{}
	if html {
		r = view.HTML{}
	}
	desc, vars := profileQuery(cfg.Login)
	h, err := env.Fetch(ctx, desc, vars)
	if err != nil {
		return err
	}
	if err := view.Render(ctx, stdout, env, h, r); err != nil {
		_ = r.Failure(stdout, err)
		return fmt.Errorf("show: %w", err)
	}
	return nil
}

func cmdServe(ctx context.Context, args []string, stderr io.Writer) error {
	var common commonFlags
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	common.register(fs)
	common.registerServer(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}

	env, cleanup, err := setup(cfg, common.verbose, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	desc, vars := profileQuery(cfg.Login)
	load := func() (*environment.Handle, error) {
		return env.Fetch(context.Background(), desc, vars)
	}
	// Start the fetch before the first request arrives.
	if _, err := load(); err != nil {
		return err
	}

	var sopts []server.Option
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	sopts = append(sopts, server.WithSuspendTimeout(cfg.Server.SuspendTimeout))
	h := server.New(env, load, sopts...)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	logger := log.New(stderr, "", log.LstdFlags)
	logger.Printf("profile server listening on %s", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
