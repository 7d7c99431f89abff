package horizon

import (
	"strings"

	"github.com/google/uuid"
)

// Topic layout constants.
const (
	sysLevel    = "$SYS"
	statusLevel = "status"

	clientIDLength  = 30
	messageIDLength = 8
)

// householdTopic is the household broadcast topic.
func householdTopic(household string) string {
	return household
}

// sysTopic carries broker notices for the household.
func sysTopic(household string) string {
	return household + "/" + sysLevel
}

// householdWildcard matches every topic under the household.
func householdWildcard(household string) string {
	return household + "/#"
}

// deviceTopic is where commands for a box (or client) are published.
func deviceTopic(household, deviceID string) string {
	return household + "/" + deviceID
}

// deviceStatusTopic is where a box (or client) announces presence and status.
func deviceStatusTopic(household, deviceID string) string {
	return deviceTopic(household, deviceID) + "/" + statusLevel
}

// deviceWildcard matches every topic under a box.
func deviceWildcard(household, deviceID string) string {
	return deviceTopic(household, deviceID) + "/#"
}

// householdSubscriptions returns the topics the bridge subscribes to on
// every connect, in subscription order.
//
// The filters overlap. A broker may deliver one PUBLISH per matching
// subscription; reconciliation is idempotent so duplicates are harmless.
func householdSubscriptions(household, clientID string) []string {
	return []string{
		sysTopic(household),
		householdTopic(household),
		householdWildcard(household),
		deviceTopic(household, clientID),
	}
}

// deviceSubscriptions returns the per-box topics.
func deviceSubscriptions(household, deviceID string) []string {
	return []string{
		deviceTopic(household, deviceID),
		deviceStatusTopic(household, deviceID),
		deviceWildcard(household, deviceID),
	}
}

// NewClientID returns a random 30 character alphanumeric client ID.
func NewClientID() string {
	return randomID(clientIDLength)
}

// newMessageID returns a random 8 character alphanumeric command ID.
func newMessageID() string {
	return randomID(messageIDLength)
}

// randomID concatenates hyphen-free v4 UUIDs until n characters are available.
func randomID(n int) string {
	var sb strings.Builder
	for sb.Len() < n {
		sb.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return sb.String()[:n]
}
