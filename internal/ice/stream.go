package ice

import (
	"crypto/rand"
	"encoding/base64"
	"io"
)

// Stream is a media stream (?3): a named set of components sharing one
// short-term credential pair and one check list.
type Stream struct {
	ID   int
	Name string

	Components []*Component

	LocalUfrag, LocalPassword   string
	RemoteUfrag, RemotePassword string

	checklist *checklist

	initialBindingRequestReceived bool
}

func newStream(id int, name string, numComponents int, rng io.Reader) *Stream {
	s := &Stream{
		ID:            id,
		Name:          name,
		LocalUfrag:    randomIceString(rng, 4),
		LocalPassword: randomIceString(rng, 22),
	}
	for i := 1; i <= numComponents; i++ {
		s.Components = append(s.Components, newComponent(id, i))
	}
	s.checklist = newChecklist(s)
	return s
}

func (s *Stream) component(id int) *Component {
	for _, c := range s.Components {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// setRemoteCredentials stores the remote ufrag/password pair the embedder
// learned out of band (opaque candidate-line exchange, ?1).
func (s *Stream) setRemoteCredentials(ufrag, password string) {
	s.RemoteUfrag = ufrag
	s.RemotePassword = password
}

// regenerateCredentials is used by ICE restart (?4.4.10), full or
// per-stream: it replaces this stream's local ufrag and password.
func (s *Stream) regenerateCredentials(rng io.Reader) {
	s.LocalUfrag = randomIceString(rng, 4)
	s.LocalPassword = randomIceString(rng, 22)
}

// randomIceString mints an ICE-char-alphabet string (RFC 5245 ?15.4's
// ice-char set is letters, digits, '+' and '/', which is exactly base64's
// standard alphabet, unpadded) carrying n bytes of entropy.
func randomIceString(rng io.Reader, n int) string {
	if rng == nil {
		rng = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := rng.Read(buf); err != nil {
		panic("ice: failed to read random credential bytes: " + err.Error())
	}
	return base64.RawStdEncoding.EncodeToString(buf)
}
