// Package store provides Config Store backends implementing
// engine.Store.
//
// The contract (defined as engine.Store so the engine package never
// depends on this one) is: putApiKey/listApiKeys/findApiKey,
// putConfig/listConfigs/latestConfigFor, and
// appendLog/recentLogs/countLogs/deleteAllLogs.
//
// Two implementations are provided: memory (the default, used by tests
// and single-process runs) and mongostore (backed by MongoDB, the
// "document store" the engine assumes as its persistence layer).
package store

import "errors"

// ErrClosed names the error for an operation attempted after Close.
// Neither backend returns it: memory.Store's Close only stops its trim
// loop, and its operations keep working afterwards.
var ErrClosed = errors.New("store: closed")

