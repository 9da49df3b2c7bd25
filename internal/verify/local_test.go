package verify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriface/platform/internal/errors"
	"github.com/veriface/platform/internal/face"
	"github.com/veriface/platform/internal/store"
)

type fakeEmployeeStore struct {
	employees map[string]store.Employee
	err       error
}

func (s *fakeEmployeeStore) Get(ctx context.Context, id string) (store.Employee, error) {
	if s.err != nil {
		return store.Employee{}, s.err
	}
	emp, ok := s.employees[id]
	if !ok {
		return store.Employee{}, errors.Newf(errors.CodeNotFound, "employee %s not enrolled", id)
	}
	return emp, nil
}

func TestLocalVerifierMatch(t *testing.T) {
	ref := face.NewEmbedding([]float32{1, 0, 0})
	v := NewLocalVerifier(&fakeEmployeeStore{employees: map[string]store.Employee{
		"e-42": {ID: "e-42", Name: "Dana Reyes", Embedding: ref},
	}}, 0.8)

	match, err := v.Verify(context.Background(), "e-42", face.NewEmbedding([]float32{0.99, 0.05, 0}))
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", match.EmployeeName)
	assert.Greater(t, match.Confidence, 0.9)
}

func TestLocalVerifierLowConfidence(t *testing.T) {
	v := NewLocalVerifier(&fakeEmployeeStore{employees: map[string]store.Employee{
		"e-42": {ID: "e-42", Name: "Dana Reyes", Embedding: face.NewEmbedding([]float32{1, 0, 0})},
	}}, 0.8)

	_, err := v.Verify(context.Background(), "e-42", face.NewEmbedding([]float32{0, 1, 0}))
	assert.True(t, errors.IsCode(err, errors.CodeLowConfidence))
}

func TestLocalVerifierNotEnrolled(t *testing.T) {
	v := NewLocalVerifier(&fakeEmployeeStore{employees: map[string]store.Employee{}}, 0.8)
	_, err := v.Verify(context.Background(), "ghost", face.NewEmbedding([]float32{1, 0, 0}))
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestLocalVerifierStoreFailure(t *testing.T) {
	v := NewLocalVerifier(&fakeEmployeeStore{err: fmt.Errorf("connection reset")}, 0.8)
	_, err := v.Verify(context.Background(), "e-42", face.NewEmbedding([]float32{1, 0, 0}))
	assert.True(t, errors.IsCode(err, errors.CodeUnavailable))
}
