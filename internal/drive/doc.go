// Package drive wraps the Google Drive v3 API for one connection.
//
// A Client is bound to a single oauth2.TokenSource and is cheap to build, so
// callers create one per request. Errors returned by Client methods wrap the
// underlying *googleapi.Error; use IsNotFound to classify them.
//
// The Negotiator prepares direct browser-to-Google uploads. Small files get a
// multipart instruction the browser assembles itself; everything else gets a
// resumable session URL that the Negotiator provisions up front.
package drive
