// Package onnx provides onnxruntime-backed implementations of the face
// detection and embedding model contracts.
package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// Init prepares the shared onnxruntime environment. Call once at process
// start before creating sessions. libPath may be empty to use the default
// library search path.
func Init(libPath string) error {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// Shutdown tears down the shared environment after all sessions are closed.
func Shutdown() {
	_ = ort.DestroyEnvironment()
}
