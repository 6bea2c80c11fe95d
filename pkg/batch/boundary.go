package batch

import "github.com/google/uuid"

// Boundary token prefixes. Request and response payloads use distinct
// prefixes so the two sides of a round trip never produce colliding tokens.
const (
	batchBoundaryPrefix             = "batch_"
	batchResponseBoundaryPrefix     = "batchresponse_"
	changesetBoundaryPrefix         = "changeset_"
	changesetResponseBoundaryPrefix = "changesetresponse_"
)

// boundaryAllocator produces unique delimiter tokens. The batch token is
// allocated once per writer; changeset tokens are allocated per changeset.
type boundaryAllocator struct {
	response bool
	newID    func() string
}

func newBoundaryAllocator(response bool) boundaryAllocator {
	return boundaryAllocator{response: response, newID: uuid.NewString}
}

// batch returns a fresh batch-scope token.
func (a boundaryAllocator) batch() string {
	if a.response {
		return batchResponseBoundaryPrefix + a.newID()
	}
	return batchBoundaryPrefix + a.newID()
}

// changeset returns a fresh changeset-scope token.
func (a boundaryAllocator) changeset() string {
	if a.response {
		return changesetResponseBoundaryPrefix + a.newID()
	}
	return changesetBoundaryPrefix + a.newID()
}
