// Package store provides SQLite-backed persistence for chats, messages,
// agent accounts, the debt-consultation domain and survey responses.
//
// All record types are explicit structs; callers never see raw rows.
// ErrNotFound is returned for missing entities so call sites can branch
// with errors.Is.
package store
