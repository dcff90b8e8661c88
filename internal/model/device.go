package model

// DeviceKind identifies the vendor family a device belongs to.
type DeviceKind string

const (
	DeviceTag            DeviceKind = "Tag"
	DeviceHub            DeviceKind = "HiveHome"
	DeviceWeatherStation DeviceKind = "WeatherStation"
)

// Device is the identity of a physical or logical sensor. Devices are not
// persisted on their own; they are embedded in the readings they produce.
type Device struct {
	UUID     string     `json:"uuid"`
	Name     string     `json:"name"`
	Kind     DeviceKind `json:"type"`
	Location string     `json:"location,omitempty"`
}
