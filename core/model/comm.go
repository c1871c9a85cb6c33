package model

// CommStatus is the communication health of a vehicle.
type CommStatus int

const (
	CommDisconnected CommStatus = iota
	CommConnecting
	CommConnected
	CommDegraded
)

var commNames = [...]string{"disconnected", "connecting", "connected", "degraded"}

func (s CommStatus) String() string {
	if s < 0 || int(s) >= len(commNames) {
		return "unknown"
	}
	return commNames[s]
}

// ParseCommStatus is the inverse of String.
func ParseCommStatus(s string) (CommStatus, bool) {
	for i, n := range commNames {
		if n == s {
			return CommStatus(i), true
		}
	}
	return CommDisconnected, false
}
