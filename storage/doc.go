// Package storage provides object storage abstractions with pluggable backends.
//
// It defines interfaces for common storage operations (upload, download, delete,
// list) and follows this codebase's component pattern with lifecycle management.
//
// # Backends
//
//   - storage/local: Local filesystem storage, used for the service's
//     OUTPUT_DIR artifact layout.
//
// # Configuration
//
// Backend selection and settings are provided via Config:
//
//	storage:
//	  provider: "local"
//	  base_path: "/var/lib/scribeflow/output"
package storage
