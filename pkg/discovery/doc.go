// Package discovery announces the gateway on the local network over
// mDNS/DNS-SD so automation platforms can find it without manual
// configuration.
//
// The gateway registers a single service instance of type _isecgw._tcp
// in the local domain. TXT records carry the gateway version and the
// event API flavor ("api=sse"); consumers resolve the instance to reach
// the HTTP layer fronting this module.
package discovery
