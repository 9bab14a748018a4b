// Package guardian talks to the Intelbras Guardian cloud: the REST
// API that lists an account's alarm panels, zones, and event history,
// and the identity server that issues the OAuth tokens the API
// expects.
//
// Client covers the panel-facing endpoints and resolves connection
// descriptors for the session pool. Auth runs the login flow and keeps
// stored tokens fresh, refreshing them shortly before expiry.
package guardian
