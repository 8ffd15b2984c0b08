package hold

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	for _, s := range []Status{StatusReleased, StatusCaptured, StatusCanceled} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	_, err := ParseStatus("refunded")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	s, err := ParseStatus("captured")
	assert.NoError(t, err)
	assert.Equal(t, StatusCaptured, s)
}

func TestReferencesAreDistinctPerTransition(t *testing.T) {
	id := uuid.New()
	refs := map[string]bool{}
	for _, ref := range []string{reference(id), releaseReference(id), cancelReference(id), captureReference(id), creditReference(id)} {
		assert.False(t, refs[ref], "duplicate reference %s", ref)
		refs[ref] = true
	}
}
