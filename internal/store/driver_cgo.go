//go:build cgo

package store

// The mattn driver registers as "sqlite3" and needs cgo; the default
// modernc driver registers as "sqlite".
import _ "github.com/mattn/go-sqlite3"
