package cache

// Status describes how a Resolve value was obtained.
type Status struct {
	// IsLoading is true only while a required fetch is outstanding.
	IsLoading bool
	// IsCached is true when the returned value came from the store
	// without waiting on a fetch.
	IsCached bool
	// Err carries the last fetch failure for this key, if any.
	Err error
}

// Resolve is the read path shared by every entity kind:
//
//  1. read the store synchronously for an immediate value;
//  2. decide via ShouldFetch whether that value may be served as is;
//  3. if a fetch is required and none is outstanding, run `fetch` in the
//     background and land its result (or failure) in the store, which
//     notifies subscribers;
//  4. return the best available value right away; a stale cached value
//     beats no value, and it keeps being served until the refetch swaps
//     it out.
//
// Two Resolve calls for the same key with no intervening Set trigger at
// most one fetch. A failed fetch is not retried automatically: the error
// is returned on subsequent reads until an explicit Set or Invalidate
// (e.g. a user-triggered refresh) clears it.
func Resolve(s *Store, p Policy, kind Kind, key string, fetch func() (interface{}, error)) (interface{}, Status) {
	v, ok := s.Get(kind, key)
	st := Status{IsCached: ok}

	fresh := s.IsFresh(kind, key, p.TTL(kind))
	if !ShouldFetch(ok, fresh) {
		return v, st
	}

	if err := s.Err(kind, key); err != nil {
		st.Err = err
		return v, st
	}

	if s.beginFetch(kind, key) {
		go func() {
			fv, err := fetch()
			if err != nil {
				s.failFetch(kind, key, err)
				return
			}
			s.finishFetch(kind, key, fv)
		}()
	}
	st.IsLoading = true
	return v, st
}
