// Command dashboard serves the admin dashboard, signing users in through the
// hosted auth API.
package main

import (
	"flag"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"hawx.me/code/dashboard/internal/backend"
	"hawx.me/code/dashboard/internal/callback"
	"hawx.me/code/dashboard/internal/config"
	"hawx.me/code/dashboard/internal/metrics"
	"hawx.me/code/dashboard/internal/server"
	"hawx.me/code/dashboard/internal/strategy"
	"hawx.me/code/dashboard/internal/web"
	"hawx.me/code/serve"
)

func main() {
	var (
		port       = flag.String("port", "8080", "Port to run on")
		socket     = flag.String("socket", "", "Socket to run on")
		baseURL    = flag.String("base-url", "http://localhost:8080", "Address the dashboard is reached at")
		configPath = flag.String("config", "./config.toml", "Path to config file")
	)
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	client, err := backend.Default(conf.Backend)
	if err != nil {
		log.Fatal(err)
	}

	store, err := backend.NewCookieStore(conf.Cookie.Secret, conf.Cookie.Secure)
	if err != nil {
		log.Fatal(err)
	}
	cookies := backend.NewCookieHelper(store, conf.Cookie.Name)

	templates, err := web.Parse()
	if err != nil {
		log.Fatal(err)
	}

	tokens := client.Tokens()
	strategies := strategy.FromConfig(tokens, conf.Providers)
	if len(strategies) == 0 {
		log.Println("no providers are configured, add a [[provider]] to", *configPath)
	}

	resolver := callback.NewResolver(tokens, conf.Callback.Timeout.Duration, conf.Callback.Remember.Duration)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	serve.Serve(*port, *socket, server.New(
		*baseURL,
		tokens,
		resolver,
		strategies,
		cookies,
		store,
		templates,
		m,
		registry,
	))
}
