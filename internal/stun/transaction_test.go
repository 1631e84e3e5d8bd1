package stun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionTableInsertLookupForget(t *testing.T) {
	tt := NewTransactionTable(2)
	id := NewTransactionID()

	assert.NoError(t, tt.Insert(id, MethodBinding, []byte("key"), false))
	assert.Equal(t, 1, tt.Len())

	method, key, longTerm, ok := tt.Lookup(id)
	assert.True(t, ok)
	assert.Equal(t, MethodBinding, method)
	assert.Equal(t, []byte("key"), key)
	assert.False(t, longTerm)

	tt.Forget(id)
	assert.Equal(t, 0, tt.Len())
	_, _, _, ok = tt.Lookup(id)
	assert.False(t, ok)
}

func TestTransactionTableFull(t *testing.T) {
	tt := NewTransactionTable(1)
	assert.NoError(t, tt.Insert(NewTransactionID(), MethodBinding, nil, false))
	assert.Equal(t, ErrTransactionTableFull, tt.Insert(NewTransactionID(), MethodBinding, nil, false))
}
