package main

import (
	"fmt"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/nhle/bizdesk/internal/model"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type tuiCmd struct{}

type watchCmd struct{}

type loginCmd struct {
	Token    string `arg:"--token" help:"bearer token; prompts interactively when omitted"`
	User     string `arg:"--user" help:"name or email shown in the header"`
	UserType string `arg:"--user-type" default:"employee" help:"account type: company or employee"`
	APIURL   string `arg:"--api-url" help:"backend REST root, saved to the config file"`
}

type logoutCmd struct{}

type serveCmd struct {
	Addr     string `arg:"--addr" default:":5000" help:"listen address"`
	DB       string `arg:"--db" default:"bizdesk-dev.db" help:"sqlite database path"`
	Secret   string `arg:"--secret,env:BIZDESK_DEV_SECRET" default:"bizdesk-dev-secret" help:"JWT signing secret"`
	User     string `arg:"--user" default:"dev-user" help:"user id of the printed development token"`
	UserType string `arg:"--user-type" default:"employee" help:"user type of the printed development token"`
}

type cliArgs struct {
	Config string `arg:"-c,--config" help:"config file path (default ~/.config/bizdesk/config.yaml)"`

	TUI    *tuiCmd    `arg:"subcommand:tui" help:"open the notification center (default)"`
	Watch  *watchCmd  `arg:"subcommand:watch" help:"log notifications without a UI"`
	Login  *loginCmd  `arg:"subcommand:login" help:"store a session in the OS keyring"`
	Logout *logoutCmd `arg:"subcommand:logout" help:"remove the stored session"`
	Serve  *serveCmd  `arg:"subcommand:serve" help:"run the development backend"`
}

func (cliArgs) Description() string {
	return "bizdesk is a terminal notification center for the business backend."
}

func (cliArgs) Version() string {
	return "bizdesk " + version
}

func main() {
	var args cliArgs
	arg.MustParse(&args)

	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args cliArgs) error {
	if args.Config == "" {
		args.Config = model.DefaultConfigPath()
	}

	// The development backend needs no client configuration.
	if args.Serve != nil {
		return runServe(*args.Serve)
	}

	cfg, err := model.LoadConfig(args.Config)
	if err != nil {
		return err
	}

	switch {
	case args.Watch != nil:
		return runWatch(cfg)
	case args.Login != nil:
		return runLogin(args.Config, cfg, *args.Login)
	case args.Logout != nil:
		return runLogout()
	default:
		return runTUI(cfg)
	}
}
