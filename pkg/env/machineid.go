package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const machineIDApp = "aura"

// MachineID returns a stable id of this vehicle derived from the host
// machine id, or "unknown" when the host doesn't provide one.
func MachineID() string {
	id, err := machineid.ProtectedID(machineIDApp)
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return "unknown"
	}
	return id[:12]
}
