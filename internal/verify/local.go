package verify

import (
	"context"

	"github.com/veriface/platform/internal/errors"
	"github.com/veriface/platform/internal/face"
	"github.com/veriface/platform/internal/store"
)

// DefaultMinConfidence is the cosine similarity below which a local
// comparison is rejected. Face embeddings of the same person typically
// score above 0.8.
const DefaultMinConfidence = 0.8

// EmployeeStore is the slice of the enrollment store the local verifier uses.
type EmployeeStore interface {
	Get(ctx context.Context, id string) (store.Employee, error)
}

// LocalVerifier verifies against the local enrollment store instead of a
// remote backend: fetch the claimed employee's reference embedding and
// compare by cosine similarity.
type LocalVerifier struct {
	employees     EmployeeStore
	minConfidence float64
}

// NewLocalVerifier creates a local verifier. minConfidence <= 0 selects
// the default threshold.
func NewLocalVerifier(employees EmployeeStore, minConfidence float64) *LocalVerifier {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &LocalVerifier{employees: employees, minConfidence: minConfidence}
}

// Verify compares the embedding against the claimed employee's enrollment.
func (v *LocalVerifier) Verify(ctx context.Context, employeeID string, emb face.Embedding) (Match, error) {
	emp, err := v.employees.Get(ctx, employeeID)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return Match{}, err
		}
		return Match{}, errors.Wrap(err, errors.CodeUnavailable, "enrollment store query failed")
	}

	confidence := face.Cosine(emb, emp.Embedding)
	if confidence < v.minConfidence {
		return Match{}, errors.Newf(errors.CodeLowConfidence,
			"confidence %.3f below threshold %.3f", confidence, v.minConfidence)
	}

	return Match{
		EmployeeID:   emp.ID,
		EmployeeName: emp.Name,
		Confidence:   confidence,
	}, nil
}
