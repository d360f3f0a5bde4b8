package network

import (
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// staConnectTimeout bounds every station association attempt. A stuck
	// link layer is recovered purely by this timeout forcing a fallback.
	staConnectTimeout = 10 * time.Second
	// internetCheckInterval is how often the reachability probe re-runs
	// while online.
	internetCheckInterval = 10 * time.Second
	// staRetryInterval is how often a station reconnect is attempted from
	// access-point mode.
	staRetryInterval = 30 * time.Second
	// probeTimeout bounds the internet reachability probe.
	probeTimeout = time.Second

	// probeAddress is a well-known stable endpoint (Google public DNS);
	// a TCP connect proves the internet path without any payload exchange.
	probeAddress = "8.8.8.8:53"

	// APSSID and APPassword identify the fallback access point.
	APSSID     = "Greenhouse-Gateway"
	APPassword = "12345678"
)

// Radio is the link layer the state machine drives. Connect must only begin an
// association attempt and return immediately; the manager polls Connected and
// enforces its own timeout.
type Radio interface {
	Connect(ssid, password string)
	Connected() bool
	StartAccessPoint(ssid, password string)
	StopAccessPoint()
	SSID() string
	IP() string
	AccessPointIP() string
}

// Manager runs the connectivity failover state machine. It is driven by
// periodic Update calls from the scheduler loop; each call performs at most
// one state transition and never blocks beyond the probe timeout.
type Manager struct {
	radio  Radio
	logger *zap.Logger
	now    func() time.Time
	probe  func(timeout time.Duration) bool

	mu                sync.Mutex
	state             State
	internetAvailable bool
	ssid              string
	password          string
	connectedSSID     string
	staStart          time.Time
	lastInternetCheck time.Time
	lastStaRetry      time.Time
	lastTransition    time.Time
	staInProgress     bool
	apActive          bool
}

// NewManager creates a connectivity manager for the given radio.
func NewManager(radio Radio, logger *zap.Logger) *Manager {
	return &Manager{
		radio:  radio,
		logger: logger,
		now:    time.Now,
		probe:  dialProbe,
		state:  StateInit,
	}
}

// SetCredentials sets the station network to join. An empty SSID leaves the
// gateway in access-point mode.
func (m *Manager) SetCredentials(ssid, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ssid = ssid
	m.password = password
	m.logger.Info("station credentials set", zap.String("ssid", ssid))
}

// Begin starts the state machine: a station association attempt when
// credentials are configured, otherwise straight to access-point mode.
func (m *Manager) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transition(StateStaConnecting, "starting station connection")

	if m.ssid == "" {
		m.logger.Info("no station credentials configured, starting access point")
		m.startAccessPoint()
		return
	}

	m.staStart = m.now()
	m.staInProgress = true
	m.radio.Connect(m.ssid, m.password)
}

// Update advances the state machine by at most one transition. Non-reentrant;
// call it from a single scheduler loop.
func (m *Manager) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	switch m.state {
	case StateInit:
		// Nothing to do before Begin.

	case StateStaConnecting:
		if m.radio.Connected() {
			m.enterOnline("station connection successful")
			return
		}
		if now.Sub(m.staStart) > staConnectTimeout {
			m.logger.Warn("station connection timeout, falling back to access point",
				zap.Duration("elapsed", now.Sub(m.staStart)))
			m.staInProgress = false
			m.startAccessPoint()
		}

	case StateOnline:
		if !m.radio.Connected() {
			m.logger.Warn("station association lost while online")
			m.startAccessPoint()
			return
		}
		if now.Sub(m.lastInternetCheck) > internetCheckInterval {
			m.checkInternet()
		}

	case StateApMode:
		if m.ssid != "" && !m.staInProgress && now.Sub(m.lastStaRetry) > staRetryInterval {
			m.lastStaRetry = now
			m.staStart = now
			m.staInProgress = true
			m.logger.Info("retrying station connection from access-point mode",
				zap.String("ssid", m.ssid))
			// Dual mode: the access point stays up while the station
			// attempt runs.
			m.radio.Connect(m.ssid, m.password)
		}

		if m.staInProgress {
			if m.radio.Connected() {
				m.enterOnline("station reconnected from access-point mode")
				return
			}
			if now.Sub(m.staStart) > staConnectTimeout {
				m.logger.Info("station retry timed out, staying in access-point mode")
				m.staInProgress = false
			}
		}
	}
}

// enterOnline tears down any concurrent access point, records the associated
// network, and probes internet reachability immediately. Callers hold the lock.
func (m *Manager) enterOnline(reason string) {
	if m.apActive {
		m.radio.StopAccessPoint()
		m.apActive = false
	}
	m.connectedSSID = m.radio.SSID()
	if m.connectedSSID == "" {
		m.connectedSSID = m.ssid
	}
	m.staInProgress = false
	m.transition(StateOnline, reason)
	m.logger.Info("associated to station network",
		zap.String("ssid", m.connectedSSID),
		zap.String("ip", m.radio.IP()))
	m.checkInternet()
}

// startAccessPoint brings up the fallback access point and resets the cached
// internet flag. Callers hold the lock.
func (m *Manager) startAccessPoint() {
	m.radio.StartAccessPoint(APSSID, APPassword)
	m.apActive = true
	m.staInProgress = false
	m.connectedSSID = ""
	m.internetAvailable = false
	// The first station retry waits a full interval from fallback.
	m.lastStaRetry = m.now()
	m.transition(StateApMode, "station connection failed or lost")
	m.logger.Info("access point started",
		zap.String("ssid", APSSID),
		zap.String("ip", m.radio.AccessPointIP()))
}

// checkInternet runs one reachability probe and updates the cached flag. A
// flap is a reportable event, not a state transition. Callers hold the lock.
func (m *Manager) checkInternet() {
	m.lastInternetCheck = m.now()
	prev := m.internetAvailable
	m.internetAvailable = m.probe(probeTimeout)

	if m.internetAvailable != prev {
		m.logger.Info("internet reachability changed",
			zap.Bool("reachable", m.internetAvailable))
	}
	if !m.internetAvailable && m.state == StateOnline {
		m.logger.Warn("associated to network but internet unreachable")
	}
}

func (m *Manager) transition(to State, reason string) {
	if to == m.state {
		return
	}
	m.logger.Info("network state transition",
		zap.Stringer("from", m.state),
		zap.Stringer("to", to),
		zap.String("reason", reason))
	m.state = to
	m.lastTransition = m.now()
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsOnline reports whether the gateway is associated and the internet path was
// reachable on the last probe.
func (m *Manager) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateOnline && m.internetAvailable
}

// InternetAvailable returns the cached reachability flag. Meaningful only
// while associated.
func (m *Manager) InternetAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.internetAvailable
}

// SSID returns the associated network's identifier, or the access point's own.
func (m *Manager) SSID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateOnline, StateStaConnecting:
		if m.connectedSSID != "" {
			return m.connectedSSID
		}
		if s := m.radio.SSID(); s != "" {
			return s
		}
		return m.ssid
	case StateApMode:
		return APSSID
	default:
		return "N/A"
	}
}

// IP returns the gateway's current address for the active mode.
func (m *Manager) IP() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateOnline, StateStaConnecting:
		return m.radio.IP()
	case StateApMode:
		return m.radio.AccessPointIP()
	default:
		return ""
	}
}

// ModeString returns the display consumer's mode string: ONLINE, OFFLINE, AP,
// or CONNECTING. ONLINE requires internet reachability, not just association.
func (m *Manager) ModeString() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.state == StateApMode:
		return "AP"
	case m.state == StateOnline && m.internetAvailable:
		return "ONLINE"
	case m.state == StateStaConnecting:
		return "CONNECTING"
	default:
		return "OFFLINE"
	}
}

// dialProbe checks internet reachability with a bounded TCP connect to a
// well-known public endpoint.
func dialProbe(timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", probeAddress, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
