package packp

import "fmt"

const hashSize = 40

const (
	head   = "HEAD"
	noHead = "capabilities^{}"
)

var (
	sp  = []byte(" ")
	eol = []byte("\n")

	null       = []byte("\x00")
	peeled     = []byte("^{}")
	noHeadMark = []byte(" capabilities^{}\x00")

	want            = []byte("want ")
	shallowPrefix   = []byte("shallow ")
	deepenCommits   = []byte("deepen ")
	deepenSince     = []byte("deepen-since ")
	deepenReference = []byte("deepen-not ")
)

// ErrUnexpectedData is returned by a Decode when the input doesn't match
// the expected grammar; Data carries the offending pkt-line payload.
type ErrUnexpectedData struct {
	Msg  string
	Data []byte
}

// NewErrUnexpectedData builds an ErrUnexpectedData, copying data so later
// mutation of the decoder's line buffer doesn't corrupt the error.
func NewErrUnexpectedData(msg string, data []byte) *ErrUnexpectedData {
	d := make([]byte, len(data))
	copy(d, data)
	return &ErrUnexpectedData{Msg: msg, Data: d}
}

func (e *ErrUnexpectedData) Error() string {
	if len(e.Data) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s (%q)", e.Msg, string(e.Data))
}

func isFlush(b []byte) bool { return len(b) == 0 }
