package attendance

// NewMemStore exposes the in-memory store to the external scenario test.
func NewMemStore() Store { return newFakeStore() }
