package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// TopicPrefix is the root of every DEWHOME topic.
const TopicPrefix = "dewhome"

// Topics builds DEWHOME topic names.
//
//	dewhome/state/device/{id}     retained device state
//	dewhome/command/device/{id}   inbound device commands
//	dewhome/event/action/{id}     action execution records
//	dewhome/system/status         online/offline status and LWT
type Topics struct{}

// DeviceState returns the retained state topic of a device.
func (Topics) DeviceState(id int64) string {
	return fmt.Sprintf("%s/state/device/%d", TopicPrefix, id)
}

// DeviceCommand returns the command topic of a device.
func (Topics) DeviceCommand(id int64) string {
	return fmt.Sprintf("%s/command/device/%d", TopicPrefix, id)
}

// AllDeviceCommands returns a wildcard matching every device command topic.
func (Topics) AllDeviceCommands() string {
	return TopicPrefix + "/command/device/+"
}

// ActionEvent returns the execution event topic of an action.
func (Topics) ActionEvent(id int64) string {
	return fmt.Sprintf("%s/event/action/%d", TopicPrefix, id)
}

// SystemStatus returns the service status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ParseDeviceCommand extracts the device ID from a device command topic.
func ParseDeviceCommand(topic string) (int64, error) {
	rest, ok := strings.CutPrefix(topic, TopicPrefix+"/command/device/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return 0, fmt.Errorf("%w: %q is not a device command topic", ErrInvalidTopic, topic)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad device id %q", ErrInvalidTopic, rest)
	}
	return id, nil
}
