package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyPath       = "path"
	KeyCategory   = "category"
	KeyLayout     = "layout"
	KeyTemplate   = "template"
	KeyWorker     = "worker"
	KeyStage      = "stage"
	KeyEvent      = "event"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Category(c string) slog.Attr     { return slog.String(KeyCategory, c) }
func Layout(l string) slog.Attr       { return slog.String(KeyLayout, l) }
func Template(name string) slog.Attr  { return slog.String(KeyTemplate, name) }
func Worker(id int) slog.Attr         { return slog.Int(KeyWorker, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Event(op string) slog.Attr       { return slog.String(KeyEvent, op) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
