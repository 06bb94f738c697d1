package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/wailsapp/wails/v2/pkg/logger"

	"quicknote/internal/api"
	"quicknote/internal/auth"
	"quicknote/internal/config"
	"quicknote/internal/domain"
	"quicknote/internal/session"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorRed    = "\033[31m"
)

func info(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[info] "+colorReset+msg+"\n", a...)
}

func warn(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[warn] "+colorReset+msg+"\n", a...)
}

func ok(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[ok] "+colorReset+msg+"\n", a...)
}

func fail(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[error] "+colorReset+msg+"\n", a...)
}

const usageText = `Usage: quicknote [--server URL] <command> [args]

Commands:
  login [--email E] [--password P]   sign in and remember the session
  register [--email E]               create an account
  logout                             end the session
  whoami                             show the signed-in user
  transcribe FILE                    upload an audio file and print the result
  history                            list past transcriptions
  show ID                            print one transcription as markdown
  delete ID [--yes]                  delete one transcription
  export ID --format pdf|docx        download the summary document
  doctor                             check settings and backend reachability
`

// cli holds the wiring shared by every command.
type cli struct {
	settings domain.Settings
	client   *api.Client
	cookies  *config.CookieStore
	session  *session.Store
	log      logger.Logger
}

func main() {
	serverFlag := flag.String("server", "", "Backend base URL (overrides "+config.EnvServerURL+" and saved settings)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c, err := newCLI(*serverFlag)
	if err != nil {
		log.Fatalf("bootstrap cli: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := c.run(ctx, args[0], args[1:])
	stop()
	os.Exit(code)
}

func newCLI(server string) (*cli, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	config.LoadEnvFiles(".env", filepath.Join(dir, ".env"))

	settings, err := config.NewJSONStore(filepath.Join(dir, "settings.json")).Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = config.ApplyEnv(settings)
	if strings.TrimSpace(server) != "" {
		settings.ServerURL = server
		settings = config.Normalize(settings)
	}

	logPath := strings.TrimSpace(os.Getenv(config.EnvLogFile))
	if logPath == "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		logPath = filepath.Join(dir, "cli.log")
	}
	appLog := logger.NewFileLogger(logPath)

	client, err := api.New(settings.ServerURL, api.WithLogger(appLog))
	if err != nil {
		return nil, err
	}

	cookies := config.NewCookieStore(filepath.Join(dir, "cookies.json"))
	if saved, err := cookies.Load(); err != nil {
		appLog.Warning(fmt.Sprintf("cli: ignoring saved cookies: %v", err))
	} else {
		client.SetCookies(saved)
	}

	return &cli{
		settings: settings,
		client:   client,
		cookies:  cookies,
		session:  session.NewStore(auth.NewGateway(client, appLog), appLog),
		log:      appLog,
	}, nil
}

func (c *cli) run(ctx context.Context, command string, args []string) int {
	var err error
	switch command {
	case "login":
		err = c.login(ctx, args)
	case "register":
		err = c.register(ctx, args)
	case "logout":
		err = c.logout(ctx)
	case "whoami":
		err = c.whoami(ctx)
	case "transcribe":
		err = c.transcribe(ctx, args)
	case "history":
		err = c.history(ctx)
	case "show":
		err = c.show(ctx, args)
	case "delete":
		err = c.delete(ctx, args)
	case "export":
		err = c.export(ctx, args)
	case "doctor":
		err = c.doctor()
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usageText)
		return 0
	default:
		fail("unknown command %q", command)
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	if err != nil {
		if domain.KindOf(err).Soft() {
			warn("%s", domain.MessageOf(err))
		} else {
			fail("%s", domain.MessageOf(err))
		}
		return 1
	}
	return 0
}
