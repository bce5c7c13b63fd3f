package packp

import "github.com/hearthwood/gitcore/objectid"

// UploadPackRequest is the full client side of an upload-pack negotiation:
// the initial wants/shallows/depth/filter, plus the haves accumulated
// across negotiation rounds.
// Zero-value is not safe; use NewUploadPackRequest.
type UploadPackRequest struct {
	*UploadRequest
	*UploadHaves
}

// NewUploadPackRequest returns an UploadPackRequest ready to be populated.
func NewUploadPackRequest() *UploadPackRequest {
	return &UploadPackRequest{
		UploadRequest: NewUploadRequest(),
		UploadHaves:   &UploadHaves{},
	}
}

// IsEmpty reports whether every want is already covered by a have, making
// the round pointless to send.
func (r *UploadPackRequest) IsEmpty() bool {
	return isSubsetHex(r.Wants, r.Haves)
}

func isSubsetHex(needle, haystack []objectid.ObjectID) bool {
	for _, n := range needle {
		found := false
		for _, h := range haystack {
			if n.String() == h.String() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
