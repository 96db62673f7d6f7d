// Command captchamodal shows a CAPTCHA dialog for an application and prints
// the completion token as JSON on standard output.
//
// It exits with status 1 when the user cancels the dialog.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/TecharoHQ/captchamodal"
	"github.com/TecharoHQ/captchamodal/internal"
	libcaptchamodal "github.com/TecharoHQ/captchamodal/lib"
	"github.com/TecharoHQ/captchamodal/lib/config"
	"github.com/TecharoHQ/captchamodal/lib/localization"
	"github.com/TecharoHQ/captchamodal/lib/terminal"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	configFname       = flag.String("config", "", "full path to a captchamodal config file (defaults to a sensible built-in config)")
	server            = flag.String("server", "", "if set, base URL of the server that hands out challenges, or unix:/path/to/socket")
	owner             = flag.String("owner", "", "if set, owner of the application")
	application       = flag.String("application", "", "if set, name of the application")
	currentProvider   = flag.Bool("current-provider", false, "ask for the provider currently being edited instead of the one bound to the application")
	rule              = flag.String("rule", "", "if set, overrides the captcha rule: Always, Never or Dynamic")
	user              = flag.String("user", "", "user the Dynamic rule counts failed attempts for")
	fetchTimeout      = flag.Duration("fetch-timeout", 0, "if set, bounds how long fetching a challenge may take")
	language          = flag.String("language", "", "if set, this language is used for dialog strings instead of the one from LANG")
	widgetBind        = flag.String("widget-bind", "127.0.0.1:0", "network address the browser page for third-party widgets binds to")
	widgetBindNetwork = flag.String("widget-bind-network", "tcp", "network family for the widget page to bind to, e.g. unix, tcp")
	metricsBind       = flag.String("metrics-bind", "", "if set, network address to bind metrics to")
	slogLevel         = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	reportFailure     = flag.Bool("report-failure", false, "record a failed login for -user and exit")
	reportSuccess     = flag.Bool("report-success", false, "clear the failed logins of -user and exit")
	dumpConfig        = flag.Bool("dump-config", false, "print the effective config as YAML and exit")
	versionFlag       = flag.Bool("version", false, "print captchamodal version")
)

// loadConfig loads the config file and applies the flags that were set.
func loadConfig() (*config.Config, error) {
	cfg, err := libcaptchamodal.LoadConfigOrDefault(*configFname)
	if err != nil {
		return nil, err
	}

	if *server != "" {
		cfg.Server = strings.TrimSuffix(*server, "/")
	}
	if *owner != "" {
		cfg.Owner = *owner
	}
	if *application != "" {
		cfg.Application = *application
	}
	if *currentProvider {
		cfg.CurrentProvider = true
	}
	if *rule != "" {
		cfg.Rule = config.Rule(*rule)
	}
	if *fetchTimeout != 0 {
		cfg.FetchTimeout = *fetchTimeout
	}
	if *language != "" {
		cfg.Language = *language
	}

	if cfg.Language == "" {
		cfg.Language = languageFromEnv()
	}

	return cfg, cfg.Valid()
}

// languageFromEnv turns LANG=fr_FR.UTF-8 into fr-FR.
func languageFromEnv() string {
	lang, _, _ := strings.Cut(os.Getenv("LANG"), ".")
	if lang == "C" || lang == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(lang, "_", "-")
}

func printJSON(v any) {
	if err := json.NewEncoder(os.Stdout).Encode(v); err != nil {
		log.Fatalf("can't write result: %v", err)
	}
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("captchamodal", captchamodal.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("can't load config: %v", err)
	}

	if *dumpConfig {
		out, err := cfg.YAML()
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(out)
		return
	}

	captchamodal.ForcedLanguage = *language

	wg := new(sync.WaitGroup)
	defer wg.Wait()

	// install signal handler
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, wg.Done)
	}

	app, err := libcaptchamodal.New(ctx, libcaptchamodal.Options{
		Config:   cfg,
		Terminal: terminal.New(localization.ForLanguage(cfg.Language)),
		Prompt:   os.Stderr,
	})
	if err != nil {
		log.Fatalf("can't set up captchamodal: %v", err)
	}
	defer app.Close()

	switch {
	case *reportFailure:
		n, err := app.RecordFailure(ctx, *user)
		if err != nil {
			log.Fatalf("can't record failure: %v", err)
		}
		printJSON(map[string]int{"failedAttempts": n})
		return
	case *reportSuccess:
		if err := app.RecordSuccess(ctx, *user); err != nil {
			log.Fatalf("can't record success: %v", err)
		}
		printJSON(map[string]int{"failedAttempts": 0})
		return
	}

	required, err := app.Required(ctx, *user)
	if err != nil {
		log.Fatalf("can't evaluate %s rule: %v", cfg.Rule, err)
	}

	if !required {
		printJSON(map[string]bool{"required": false})
		return
	}

	listener, widgetURL := setupListener(*widgetBindNetwork, *widgetBind)
	slog.Debug("widget page ready", "url", widgetURL)

	outcome, err := app.Challenge(ctx, listener)
	switch {
	case errors.Is(err, libcaptchamodal.ErrCancelled):
		slog.Info("challenge cancelled", "reason", err)
		stop()
		wg.Wait()
		app.Close()
		os.Exit(1)
	case err != nil:
		log.Fatal(err)
	}

	printJSON(outcome)
}

func metricsServer(ctx context.Context, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsUrl := setupListener("tcp", *metricsBind)
	slog.Debug("listening for metrics", "url", metricsUrl)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func setupListener(network string, address string) (net.Listener, string) {
	formattedAddress := ""

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") { // assume it's just a port e.g. :9090
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to bind to %s: %w", formattedAddress, err))
	}

	return listener, formattedAddress
}
