package model

// Outcome tells callers whether a lookup hit configured data or a fallback.
type Outcome int

const (
	// Resolved means the value came from a stored record.
	Resolved Outcome = iota
	// Defaulted means the record was missing or unusable and a documented default was used.
	Defaulted
	// NotFound means there is no record and no default applies.
	NotFound
	// Unchecked means the lookup was not performed on this path.
	Unchecked
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Defaulted:
		return "defaulted"
	case NotFound:
		return "not_found"
	case Unchecked:
		return "unchecked"
	}
	return "unknown"
}

// MarshalText renders the outcome name in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
