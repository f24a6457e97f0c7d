package trip

// Status is the trip lifecycle state. The zero value is Draft.
type Status int

const (
	StatusDraft Status = iota
	StatusQuoted
	StatusRequested
	StatusAccepted
	StatusArriving
	StatusInProgress
	StatusCompleted
	StatusCanceledByRider
	StatusCanceledByDriver
	StatusExpired
)

var statusNames = map[Status]string{
	StatusDraft:            "Draft",
	StatusQuoted:           "Quoted",
	StatusRequested:        "Requested",
	StatusAccepted:         "Accepted",
	StatusArriving:         "Arriving",
	StatusInProgress:       "InProgress",
	StatusCompleted:        "Completed",
	StatusCanceledByRider:  "CanceledByRider",
	StatusCanceledByDriver: "CanceledByDriver",
	StatusExpired:          "Expired",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Unknown"
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceledByRider, StatusCanceledByDriver, StatusExpired:
		return true
	}
	return false
}

// Mode is the requested transport mode.
type Mode int

const (
	ModeCar Mode = iota
	ModeScooter
	ModeVan
)

func (m Mode) Valid() bool { return m >= ModeCar && m <= ModeVan }

func (m Mode) String() string {
	switch m {
	case ModeCar:
		return "Car"
	case ModeScooter:
		return "Scooter"
	case ModeVan:
		return "Van"
	}
	return "Unknown"
}
