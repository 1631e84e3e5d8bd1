package stun

// ValidateResult is the outcome of the full-validate stage of ?4.1's
// two-stage pipeline: PreCheck decides whether to keep reading off the
// wire, Validate decides whether the parsed message is usable.
type ValidateResult int

const (
	ValidateSuccess ValidateResult = iota
	ValidateNotSTUN
	ValidateIncomplete
	ValidateBadRequest
	ValidateUnauthorized
	ValidateUnauthorizedBadRequest
	ValidateUnmatchedResponse
	ValidateUnknownRequestAttribute
	ValidateUnknownAttribute
)

func (r ValidateResult) String() string {
	switch r {
	case ValidateSuccess:
		return "SUCCESS"
	case ValidateNotSTUN:
		return "NOT_STUN"
	case ValidateIncomplete:
		return "INCOMPLETE"
	case ValidateBadRequest:
		return "BAD_REQUEST"
	case ValidateUnauthorized:
		return "UNAUTHORIZED"
	case ValidateUnauthorizedBadRequest:
		return "UNAUTHORIZED_BAD_REQUEST"
	case ValidateUnmatchedResponse:
		return "UNMATCHED_RESPONSE"
	case ValidateUnknownRequestAttribute:
		return "UNKNOWN_REQUEST_ATTRIBUTE"
	case ValidateUnknownAttribute:
		return "UNKNOWN_ATTRIBUTE"
	default:
		return "unknown"
	}
}

// KeyLookup resolves the key to use for MESSAGE-INTEGRITY given a parsed
// (but not yet authenticated) message -- e.g. the username-prefix lookup
// ?4.4.5 describes for inbound connectivity checks, or a TURN server's
// realm/nonce-backed long-term credential. ok=false means "no usable key,
// reject as UNAUTHORIZED".
type KeyLookup func(m *Message) (key []byte, ok bool)

// Validate runs the full-validate stage: PreCheck must already have
// returned ParseOK for data (Validate re-derives it rather than trusting a
// caller-supplied *Message, since ordering/unknown-attribute checks need
// the raw attribute list). table is consulted for responses; pass nil for
// requests/indications, where no transaction lookup applies. keyFor may be
// nil to skip integrity checking entirely (e.g. Binding Indications, or a
// caller that checks integrity itself).
func Validate(data []byte, table *TransactionTable, keyFor KeyLookup) (*Message, ValidateResult) {
	result, _ := PreCheck(data)
	switch result {
	case ParseNotSTUN:
		return nil, ValidateNotSTUN
	case ParseIncomplete:
		return nil, ValidateIncomplete
	}

	m, err := parse(data, dialectAligned)
	if err != nil {
		return nil, ValidateBadRequest
	}

	if err := checkAttributeOrdering(m.Attributes); err != nil {
		return nil, ValidateBadRequest
	}

	if unknown := m.unknownMandatoryAttributes(); len(unknown) > 0 {
		if m.Class == Request {
			return m, ValidateUnknownRequestAttribute
		}
		return m, ValidateUnknownAttribute
	}

	if m.Class == SuccessResponse || m.Class == ErrorResponse {
		if table != nil {
			if _, _, _, ok := table.Lookup(m.TransactionID); !ok {
				return m, ValidateUnmatchedResponse
			}
		}
	}

	if keyFor == nil {
		return m, ValidateSuccess
	}

	key, ok := keyFor(m)
	if !ok {
		if m.Has(AttrUsername) || m.Has(AttrMessageIntegrity) {
			return m, ValidateUnauthorizedBadRequest
		}
		return m, ValidateUnauthorized
	}
	if !m.VerifyMessageIntegrity(key) {
		return m, ValidateUnauthorized
	}
	return m, ValidateSuccess
}

// unknownMandatoryAttributes returns the comprehension-required attribute
// types this package does not know how to interpret.
func (m *Message) unknownMandatoryAttributes() []AttrType {
	var unknown []AttrType
	for _, a := range m.Attributes {
		if !a.Type.isComprehensionRequired() {
			continue
		}
		if !knownAttributes[a.Type] {
			unknown = append(unknown, a.Type)
		}
	}
	return unknown
}

var knownAttributes = map[AttrType]bool{
	AttrMappedAddress:      true,
	AttrUsername:           true,
	AttrMessageIntegrity:   true,
	AttrErrorCode:          true,
	AttrUnknownAttributes:  true,
	AttrRealm:              true,
	AttrNonce:              true,
	AttrXorMappedAddress:   true,
	AttrPriority:           true,
	AttrUseCandidate:       true,
	AttrChannelNumber:      true,
	AttrLifetime:           true,
	AttrXorPeerAddress:     true,
	AttrData:               true,
	AttrXorRelayedAddress:  true,
	AttrRequestedTransport: true,
	AttrDontFragment:       true,
	AttrReservationToken:   true,
	AttrBandwidth:          true,
}
