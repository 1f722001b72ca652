package log

// Package log is a small wrapper around the standard library logger that
// gives every component of the search core a named logger.
//
// Features:
//
//   - Per component loggers via ForService(name)
//   - Automatic message prefix: "[name>]"
//   - Info, Warn, Error and Debug helpers
//   - Debug can be enabled globally (SetGlobalDebug) or per component
//     (EnableDebugFor / DisableDebugFor)
//   - Central output writer (SetOutput) that updates existing loggers
//
// Usage:
//
//	l := log.ForService("registry")
//	l.Infof("loaded %d sources", n)
//	l.Warnf("skipping %s: %v", key, err)
//	l.Debugf("fts query: %s", q) // printed only when debug is enabled
//
// Tests can redirect output by calling SetOutput with a bytes.Buffer and
// assert on the captured content.
//
// All exported functions are safe for concurrent use.
