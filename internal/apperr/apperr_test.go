package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	base := errors.New("disk full")

	storage := fmt.Errorf("saving: %w", Storage("save file", base))
	assert.True(t, IsStorage(storage))
	assert.ErrorIs(t, storage, base)
	assert.False(t, IsValidation(storage))

	assert.Nil(t, Storage("noop", nil))
	assert.True(t, IsValidation(Validation("page_size", "must be one of %v", []int{10, 20})))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", NotFound("record", 7))))
	assert.EqualError(t, NotFound("record", 7), "record 7 not found")
	assert.True(t, IsForbidden(Forbidden("backup")))
	assert.False(t, IsForbidden(NotFound("record", 7)))
}

func TestPartialAttachmentFailure(t *testing.T) {
	err := fmt.Errorf("append: %w", &PartialAttachmentFailure{Rejected: []RejectedFile{
		{Name: "a.exe", Reason: "extension not allowed"},
		{Name: "big.pdf", Reason: "exceeds 20 MB"},
	}})

	partial, ok := AsPartial(err)
	assert.True(t, ok)
	assert.Len(t, partial.Rejected, 2)
	assert.Contains(t, err.Error(), "a.exe (extension not allowed)")
}
