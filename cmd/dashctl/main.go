// Command dashctl is a terminal client for the dashboard. It signs in through
// the browser, keeping the session on disk between runs.
//
// Usage:
//
//	dashctl [flags] login
//	dashctl [flags] status
//	dashctl [flags] update key=value...
//	dashctl [flags] logout
package main

import (
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
	"strings"
	"time"

	"hawx.me/code/dashboard/internal/app"
	"hawx.me/code/dashboard/internal/backend"
	"hawx.me/code/dashboard/internal/callback"
	"hawx.me/code/dashboard/internal/config"
	"hawx.me/code/dashboard/internal/data"
	"hawx.me/code/dashboard/internal/handler"
	"hawx.me/code/dashboard/internal/random"
	"hawx.me/code/dashboard/internal/strategy"
	"hawx.me/code/dashboard/internal/web"
	"hawx.me/code/route"
)

func main() {
	var (
		configPath = flag.String("config", "./config.toml", "Path to config file")
		provider   = flag.String("provider", "", "Provider to sign in with, defaults to the first configured")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: dashctl [flags] login|status|update|logout")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, *provider, flag.Args()); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run(configPath, provider string, args []string) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	storage, err := data.Open(conf.Storage)
	if err != nil {
		return err
	}
	defer storage.Close()

	client, err := backend.Default(conf.Backend, backend.WithStorage(storage))
	if err != nil {
		return err
	}

	c := newCLI(client, conf)
	c.store.Mount(ctx)
	defer c.close()

	switch args[0] {
	case "login":
		return c.login(ctx, conf, provider)
	case "status":
		return c.render()
	case "update":
		return c.update(ctx, args[1:])
	case "logout":
		c.store.SignOut(ctx)
		return c.render()
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

type cli struct {
	client  *backend.Client
	history *app.History
	store   *app.Store
	guard   *app.Guard
	router  *app.Router
	out     io.Writer
}

func newCLI(client *backend.Client, conf config.Config) *cli {
	history := app.NewHistory("/dashboard")
	store := app.NewStore(client, history)
	guard := app.NewGuard(store, history,
		app.WithDebounce(conf.Guard.Debounce.Duration),
		app.WithBypass(conf.Guard.Bypass),
		app.WithLoading(app.ViewFunc(func(w io.Writer) error {
			_, err := fmt.Fprintln(w, "Loading...")
			return err
		})))

	router := app.NewRouter(history, app.ViewFunc(func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "Nothing here.")
		return err
	}))

	c := &cli{
		client:  client,
		history: history,
		store:   store,
		guard:   guard,
		router:  router,
		out:     os.Stdout,
	}

	router.Handle("/login", app.ViewFunc(c.loginView))
	router.Handle("/dashboard", guard.Wrap(app.ViewFunc(c.dashboardView)))

	return c
}

func (c *cli) close() {
	c.guard.Close()
	c.store.Unmount()
}

// render writes the current view. If the guard is waiting to redirect, it
// waits for the redirect and writes the view it lands on.
func (c *cli) render() error {
	for {
		if err := c.router.Render(c.out); err != nil {
			return err
		}

		for c.guard.Pending() {
			time.Sleep(10 * time.Millisecond)
		}

		if c.history.Location().String() == c.router.Rendered() {
			return nil
		}
	}
}

func (c *cli) dashboardView(w io.Writer) error {
	state := c.store.Snapshot()
	if !state.SignedIn() {
		_, err := fmt.Fprintln(w, "Signed in as nobody (guard bypassed)")
		return err
	}

	_, err := fmt.Fprintf(w, "Signed in as %s via %s\n", state.User.Email, state.User.Provider)
	return err
}

func (c *cli) loginView(w io.Writer) error {
	message := "Not signed in, run: dashctl login"
	if from := c.history.Location().Query().Get("redirectedFrom"); from != "" {
		message += fmt.Sprintf(" (wanted %s)", from)
	}

	_, err := fmt.Fprintln(w, message)
	return err
}

// login signs in through the browser. The auth API redirects back to a
// listener on the loopback interface, which exchanges the code and makes the
// session current.
func (c *cli) login(ctx context.Context, conf config.Config, provider string) error {
	if c.store.Snapshot().SignedIn() {
		return c.render()
	}

	strategies := strategy.FromConfig(c.client.Tokens(), conf.Providers)
	if len(strategies) == 0 {
		return errors.New("no providers are configured")
	}
	if provider == "" {
		provider = strategies[0].Name()
	}
	chosen, err := strategies.Find(provider)
	if err != nil {
		return err
	}

	templates, err := web.Parse()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	defer listener.Close()

	verifier := random.Verifier()
	results := make(chan callback.Result, 1)
	resolver := callback.NewResolver(c.client, conf.Callback.Timeout.Duration, conf.Callback.Remember.Duration)

	route.Handle("/auth/callback", handler.Loopback(resolver, verifier, templates, func(result callback.Result) {
		results <- result
	}))

	srv := &http.Server{Handler: route.Default}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Println("dashctl could not serve callback:", err)
		}
	}()
	defer srv.Shutdown(context.Background())

	redirectTo := "http://" + listener.Addr().String() + "/auth/callback"
	fmt.Fprintln(c.out, "Open this address to sign in:")
	fmt.Fprintln(c.out, " ", chosen.Redirect(redirectTo, verifier))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-results:
		if result.State != callback.Success {
			return fmt.Errorf("could not sign in: %s", result.Message())
		}
	}

	return c.render()
}

// update sets user metadata from key=value arguments.
func (c *cli) update(ctx context.Context, args []string) error {
	if !c.store.Snapshot().SignedIn() {
		return c.render()
	}
	if len(args) == 0 {
		return errors.New("update needs at least one key=value")
	}

	metadata := map[string]interface{}{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		metadata[key] = value
	}

	user, err := c.client.UpdateUser(ctx, metadata)
	if err != nil {
		return err
	}

	for key, value := range user.UserMetadata {
		fmt.Fprintf(c.out, "%s=%v\n", key, value)
	}
	return nil
}
