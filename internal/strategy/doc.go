// Package strategy classifies intercepted requests and runs the per-class
// caching strategy against a site's Cache Storage and its origin.
//
// Classification order is API prefix, static pattern, navigation, other.
// Every strategy is a plain function of (Env, *http.Request) and always
// produces a response: network failures and cache misses are converted into a
// cached entry, the offline page, or a synthesized body, never into an error.
package strategy
