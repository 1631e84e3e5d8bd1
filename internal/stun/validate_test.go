package stun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSuccessNoIntegrity(t *testing.T) {
	m := New(Request, MethodBinding, TransactionID{})
	wire := m.Marshal()

	_, result := Validate(wire, nil, nil)
	assert.Equal(t, ValidateSuccess, result)
}

func TestValidateUnauthorized(t *testing.T) {
	m := New(Request, MethodBinding, TransactionID{})
	m.Add(AttrUsername, []byte("peer"))
	wire := m.Marshal()

	_, result := Validate(wire, nil, func(*Message) ([]byte, bool) { return nil, false })
	assert.Equal(t, ValidateUnauthorizedBadRequest, result)
}

func TestValidateUnauthorizedWrongKey(t *testing.T) {
	key := ShortTermKey("secret")
	m := New(Request, MethodBinding, TransactionID{})
	m.AddMessageIntegrity(key)
	wire := m.Marshal()

	_, result := Validate(wire, nil, func(*Message) ([]byte, bool) { return ShortTermKey("wrong"), true })
	assert.Equal(t, ValidateUnauthorized, result)
}

func TestValidateSuccessWithIntegrity(t *testing.T) {
	key := ShortTermKey("secret")
	m := New(Request, MethodBinding, TransactionID{})
	m.AddMessageIntegrity(key)
	wire := m.Marshal()

	_, result := Validate(wire, nil, func(*Message) ([]byte, bool) { return key, true })
	assert.Equal(t, ValidateSuccess, result)
}

func TestValidateUnmatchedResponse(t *testing.T) {
	m := New(SuccessResponse, MethodBinding, TransactionID{})
	wire := m.Marshal()

	table := NewTransactionTable(4)
	_, result := Validate(wire, table, nil)
	assert.Equal(t, ValidateUnmatchedResponse, result)
}

func TestValidateMatchedResponse(t *testing.T) {
	tid := NewTransactionID()
	m := New(SuccessResponse, MethodBinding, tid)
	wire := m.Marshal()

	table := NewTransactionTable(4)
	assert.NoError(t, table.Insert(tid, MethodBinding, nil, false))

	_, result := Validate(wire, table, nil)
	assert.Equal(t, ValidateSuccess, result)
}

func TestValidateUnknownMandatoryAttribute(t *testing.T) {
	m := New(Request, MethodBinding, TransactionID{})
	m.Add(AttrType(0x7ffe), []byte{0x01})
	wire := m.Marshal()

	_, result := Validate(wire, nil, nil)
	assert.Equal(t, ValidateUnknownRequestAttribute, result)
}

func TestValidateNotSTUN(t *testing.T) {
	_, result := Validate([]byte{0xff, 0xff, 0, 0, 0, 0, 0, 0}, nil, nil)
	assert.Equal(t, ValidateNotSTUN, result)
}

func TestValidateIncomplete(t *testing.T) {
	_, result := Validate([]byte{0x00, 0x01}, nil, nil)
	assert.Equal(t, ValidateIncomplete, result)
}
