package network

import (
	"net"

	"go.uber.org/zap"
)

// HostRadio adapts the Radio interface to a Linux gateway host where the
// operating system (wifi-connect or NetworkManager on the device image) owns
// wireless association and access-point hosting. Association state is derived
// from the host's interfaces; mode changes are delegated to the platform and
// only logged here. The full state machine contract is exercised against fake
// radios in tests.
type HostRadio struct {
	logger *zap.Logger
}

// NewHostRadio creates a radio backed by the host's network stack.
func NewHostRadio(logger *zap.Logger) *HostRadio {
	return &HostRadio{logger: logger}
}

// Connect delegates association to the host platform.
func (r *HostRadio) Connect(ssid, _ string) {
	r.logger.Debug("station association delegated to host platform",
		zap.String("ssid", ssid))
}

// Connected reports whether any non-loopback interface carries a global
// unicast address.
func (r *HostRadio) Connected() bool {
	return r.globalUnicastAddr() != ""
}

// StartAccessPoint delegates access-point hosting to the host platform.
func (r *HostRadio) StartAccessPoint(ssid, _ string) {
	r.logger.Info("access-point hosting delegated to host platform",
		zap.String("ssid", ssid))
}

// StopAccessPoint delegates access-point teardown to the host platform.
func (r *HostRadio) StopAccessPoint() {
	r.logger.Info("access-point teardown delegated to host platform")
}

// SSID is unknown at the host level; the manager falls back to the configured
// credentials.
func (r *HostRadio) SSID() string { return "" }

// IP returns the host's first global unicast address.
func (r *HostRadio) IP() string {
	return r.globalUnicastAddr()
}

// AccessPointIP returns the host's first global unicast address while the
// platform hosts the fallback network.
func (r *HostRadio) AccessPointIP() string {
	return r.globalUnicastAddr()
}

func (r *HostRadio) globalUnicastAddr() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ipNet.IP.IsGlobalUnicast() {
			return ipNet.IP.String()
		}
	}
	return ""
}
