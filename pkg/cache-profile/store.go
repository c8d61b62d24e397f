package cacheprofile

// Store is an ordered, read-only set of cache profiles.
// It is safe for concurrent use since nothing mutates it after NewStore.
type Store struct {
	keys     []string
	profiles map[string]CacheProfile
}

// NewStore validates the given profiles and returns a store holding them
// in the given order. Keys must be unique.
func NewStore(profiles ...CacheProfile) (*Store, error) {
	s := &Store{
		keys:     make([]string, 0, len(profiles)),
		profiles: make(map[string]CacheProfile, len(profiles)),
	}
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, ok := s.profiles[p.Key]; ok {
			return nil, invalid(p.Key, "duplicate key")
		}
		s.keys = append(s.keys, p.Key)
		s.profiles[p.Key] = p
	}
	return s, nil
}

// Lookup returns the profile stored under key.
// A missing key is a *ConfigurationError wrapping ErrUnknownProfile.
func (s *Store) Lookup(key string) (CacheProfile, error) {
	if s != nil {
		if p, ok := s.profiles[key]; ok {
			return p, nil
		}
	}
	return CacheProfile{}, &ConfigurationError{Profile: key, Err: ErrUnknownProfile}
}

// Keys returns the profile keys in configuration order.
func (s *Store) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}
