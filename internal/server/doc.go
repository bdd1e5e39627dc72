// Package server hosts the Fiber HTTP front end, the request middleware
// chain and the site registry that maps Host headers to sites.
//
// Every site owns a Cache Storage partition and a worker registration. The
// registry is built once at startup; Bootstrap runs the first install and
// activation for every site, and sites whose install failed are served in
// passthrough mode until a later update succeeds.
package server
