package ir

// SchemaVersion is the on-disk encoding version for the IRObject wire
// format internal/store/serialize.go produces. It is stored as a SQLite
// PRAGMA user_version so a future incompatible encoding change can be
// detected on open rather than silently misread.
const SchemaVersion = 1
