package builtin

import (
	"github.com/mbflow/automation-engine/internal/application/filestorage"
	"github.com/mbflow/automation-engine/pkg/executor"
)

// RegisterBuiltins registers all built-in executors with the given manager.
// This function should be called by applications that want to use built-in executors.
func RegisterBuiltins(manager executor.Manager) error {
	executors := map[string]executor.Executor{
		"http":            NewHTTPExecutor(),
		"transform":       NewTransformExecutor(),
		"conditional":     NewConditionalExecutor(),
		"merge":           NewMergeExecutor(),
		"rss_parser":      NewRSSParserExecutor(),
		"html_clean":      NewHTMLCleanExecutor(),
		"string_to_json":  NewStringToJsonExecutor(),
		"json_to_string":  NewJsonToStringExecutor(),
		"base64_to_bytes": NewBase64ToBytesExecutor(),
		"bytes_to_base64": NewBytesToBase64Executor(),
	}

	for name, exec := range executors {
		if err := manager.Register(name, exec); err != nil {
			return err
		}
	}

	return nil
}

// MustRegisterBuiltins registers all built-in executors and panics on error.
// This is a convenience function for initialization code.
func MustRegisterBuiltins(manager executor.Manager) {
	if err := RegisterBuiltins(manager); err != nil {
		panic("failed to register built-in executors: " + err.Error())
	}
}

// RegisterAdapters registers the data-conversion adapter executors. They are
// also part of RegisterBuiltins; this entry point exists so callers that
// build up their executor set incrementally (tests, custom servers) can pull
// in just the conversion adapters.
func RegisterAdapters(manager executor.Manager) error {
	adapters := map[string]executor.Executor{
		"string_to_json":  NewStringToJsonExecutor(),
		"json_to_string":  NewJsonToStringExecutor(),
		"base64_to_bytes": NewBase64ToBytesExecutor(),
		"bytes_to_base64": NewBytesToBase64Executor(),
	}

	for name, exec := range adapters {
		if err := manager.Register(name, exec); err != nil {
			return err
		}
	}

	return nil
}

// RegisterFileStorage registers the file_storage executor, which needs a
// file storage manager to read and write through.
func RegisterFileStorage(manager executor.Manager, fileManager filestorage.Manager) error {
	return manager.Register("file_storage", NewFileStorageExecutor(fileManager))
}

// RegisterFileAdapters registers the executors that move data between the
// file storage layer and in-workflow byte payloads.
func RegisterFileAdapters(manager executor.Manager, fileManager filestorage.Manager) error {
	if err := manager.Register("file_to_bytes", NewFileToBytesExecutor(fileManager)); err != nil {
		return err
	}
	return manager.Register("bytes_to_file", NewBytesToFileExecutor(fileManager))
}
