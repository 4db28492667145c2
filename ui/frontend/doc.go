// Package frontend is the console's HTTP surface.
//
// A GET of any console route renders the AIFactoryLayout with a
// server-side snapshot of the page. The embedded browser runtime then
// opens a WebSocket on /ws, where a shell mounts the same page into a
// live container and keeps it updated: page markup, region patches,
// toasts, modals and downloads travel as JSON frames; browser actions
// travel back as page.Action values.
//
// # Routes
//
//   - GET /login, POST /login - sign in against the backend
//   - POST /logout - end the session
//   - GET /ws?path= - live page connection
//   - GET /export/clients.csv - clients export (staff only)
//   - GET /static/* - embedded JS and CSS
//   - GET /healthz - liveness
//   - GET /metrics - Prometheus metrics, when configured
//   - GET /* - layout with the route's snapshot
package frontend
