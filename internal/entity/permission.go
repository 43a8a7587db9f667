package entity

type PermissionState uint8

const (
	PermissionUnknown PermissionState = 0
	PermissionGranted PermissionState = 1
	PermissionDenied  PermissionState = 2
)

var PermissionStateMap = map[PermissionState]string{
	PermissionUnknown: "unknown",
	PermissionGranted: "granted",
	PermissionDenied:  "denied",
}

func (p PermissionState) String() string {
	if s, ok := PermissionStateMap[p]; ok {
		return s
	}
	return "unknown"
}

func (p PermissionState) Value() uint8 {
	return uint8(p)
}

// RetryVisible reports whether the permission retry control should be offered.
func (p PermissionState) RetryVisible() bool {
	return p == PermissionDenied
}
