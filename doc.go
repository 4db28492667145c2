// Package console serves the AI Factory Console, the server-rendered
// dashboard operators and clients use to manage the AI Factory backend:
// client accounts and budgets, requests, content granulation, pipeline
// orchestration, templates, users and worker resources.
//
// The console holds no business data of its own. Every page reads and
// writes through the backend's JSON API (package api); the console keeps
// only browser sessions, in memory or in PostgreSQL.
//
// # Quick Start
//
//	cfg, err := console.LoadConfig("console.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := console.NewServer(ctx, cfg, slog.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Blocks until ctx is cancelled, then shuts down gracefully.
//	err = srv.Run(ctx)
//
// # Configuration
//
// LoadConfig merges, in increasing precedence, the optional config file,
// a .env file and AIFACTORY_* environment variables:
//
//	AIFACTORY_BACKEND_URL=https://kam.example.com
//	AIFACTORY_WORKER_URLS=granulator=https://gran.example.com,orchestrator=https://orch.example.com
//	AIFACTORY_SESSION_STORE=postgres
//	AIFACTORY_DATABASE_URL=postgres://console@db/console
//	AIFACTORY_REFRESH_INTERVAL=30s
//
// # Layout
//
//   - ui/page: the page component contract (lifecycle, state, refresh,
//     registry, tabular lists, CSV)
//   - ui/pages: the concrete pages
//   - ui/shell: route table, navigation and action routing per browser tab
//   - ui/frontend: HTTP surface, login and the live WebSocket container
//   - api: the backend gateway
//   - session: browser session stores
//   - maintenance: the expired session sweeper
package console
