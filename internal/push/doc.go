// Package push holds the declarative push-messaging configuration of a site.
// The gateway only validates it and serves it to pages; delivery happens in
// the messaging provider's SDK.
package push
