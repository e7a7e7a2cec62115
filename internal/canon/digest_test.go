package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectStateDigestDeterministic(t *testing.T) {
	d1 := ObjectStateDigest("Customer", "abc-123", "djE7")
	d2 := ObjectStateDigest("Customer", "abc-123", "djE7")

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64, "SHA-256 hex is 64 characters")
}

func TestObjectStateDigestChangesWithInput(t *testing.T) {
	base := ObjectStateDigest("Customer", "abc-123", "djE7")

	assert.NotEqual(t, base, ObjectStateDigest("Order", "abc-123", "djE7"))
	assert.NotEqual(t, base, ObjectStateDigest("Customer", "abc-124", "djE7"))
	assert.NotEqual(t, base, ObjectStateDigest("Customer", "abc-123", "djE8"))
}

func TestDigestDomainSeparation(t *testing.T) {
	v := Object{"k": String("v")}

	a, err := Digest(DomainObjectState, v)
	require.NoError(t, err)
	b, err := Digest(DomainTrace, v)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDigestRejectsInvalidInput(t *testing.T) {
	_, err := Digest(DomainTrace, 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), DomainTrace)
}
