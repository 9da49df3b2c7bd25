// Package verify implements the verification backend collaborators:
// an HTTP client for a remote backend and a pgvector-backed local mode.
package verify

import (
	"context"

	"github.com/veriface/platform/internal/face"
)

// Match is a successful verification result.
type Match struct {
	EmployeeID   string
	EmployeeName string
	Confidence   float64
}

// Client verifies a claimed identity against an embedding. Failures carry
// typed codes (not-found, low-confidence, transport classes) so the caller
// can decide UI messaging; a generic error is never enough here.
//
// Implementations do not retry unless explicitly configured to: the
// pipeline re-attempts naturally on subsequent frames.
type Client interface {
	Verify(ctx context.Context, employeeID string, emb face.Embedding) (Match, error)
}
