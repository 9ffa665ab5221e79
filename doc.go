// Package galactavista is the Go SDK for the Galactavista real-estate
// platform. The subpackages layer on each other: client speaks the HTTP
// envelope protocol, session owns authentication state and credential
// persistence, and properties keeps listing collection state for views.
package galactavista
