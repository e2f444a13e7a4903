// Package wifi implements the WiFi bring-up supervisor (spec.md §4.7):
// an external collaborator, kept fully isolated from the debug-transport
// core (FrameCodec/Arbiter/Registry/Dispatcher never import this
// package). Grounded on original_source/EspWifiConnecting.cpp's three-
// state process() (StStart/StConnectedWait/StMain), translated from its
// FreeRTOS event-group wait into a push-model connected/disconnected
// callback pair plus a plain state machine driven by Step(), matching
// this repository's cooperative step()-driven scheduling model (spec.md
// §5) instead of a blocking RTOS wait.
package wifi

import (
	"errors"
	"sync/atomic"
	"time"
)

// Driver is the hardware/OS-specific station interface this package
// drives. A real implementation wraps whatever WiFi stack the target
// provides; tests and simulation use a fake.
type Driver interface {
	Configure(hostname, ssid, password string) error
	Connect() error
	Disconnect() error
	Stop() error
	Deinit() error
	RSSI() (dBm int, err error)
}

// State is the supervisor's three-state machine, per spec.md §4.7.
type State int

const (
	Start State = iota
	ConnectedWait
	Main
)

func (s State) String() string {
	switch s {
	case Start:
		return "Start"
	case ConnectedWait:
		return "ConnectedWait"
	case Main:
		return "Main"
	default:
		return "Unknown"
	}
}

// rssiPollInterval mirrors EspWifiConnecting.cpp's cUpdateDelayMs.
const rssiPollInterval = 200 * time.Millisecond

// Supervisor drives Driver through Start → ConnectedWait → Main, with
// unconditional reconnect attempts on disconnect (design note §9 resolves
// the two historical retry policies in favor of "reconnect forever": the
// original's WIFI_FAIL_BIT give-up path is compiled out, #if 0, in the
// variant this spec was distilled from).
type Supervisor struct {
	Driver Driver

	Hostname string
	SSID     string
	Password string

	connected   atomic.Bool
	retryCount  atomic.Uint32
	state       State
	lastRSSIAt  time.Time
	lastRSSI    int
}

// New builds a Supervisor over driver.
func New(driver Driver, hostname, ssid, password string) *Supervisor {
	return &Supervisor{Driver: driver, Hostname: hostname, SSID: ssid, Password: password}
}

// NotifyConnected is the push-model equivalent of the original's
// IP_EVENT_STA_GOT_IP handler: call it when the driver reports a
// successful association plus address assignment.
func (s *Supervisor) NotifyConnected() {
	s.connected.Store(true)
	s.retryCount.Store(0)
}

// NotifyDisconnected is the push-model equivalent of WIFI_EVENT_STA_DISCONNECTED.
// It always re-issues Connect — "reconnect forever" (design note §9).
func (s *Supervisor) NotifyDisconnected() {
	s.connected.Store(false)
	s.retryCount.Add(1)
	_ = s.Driver.Connect()
}

// RetryCount reports how many reconnect attempts have been made since the
// last successful connect.
func (s *Supervisor) RetryCount() uint32 { return s.retryCount.Load() }

// State reports the supervisor's current state.
func (s *Supervisor) State() State { return s.state }

// LastRSSI reports the most recently polled RSSI, in dBm.
func (s *Supervisor) LastRSSI() int { return s.lastRSSI }

var errNotConfigured = errors.New("wifi: hostname, SSID and password must be set")

// Step runs one non-blocking transition, meant to be called from the same
// cooperative loop driving the transport core (but never importing it).
func (s *Supervisor) Step() error {
	switch s.state {
	case Start:
		if s.Hostname == "" || s.SSID == "" || s.Password == "" {
			return errNotConfigured
		}
		if err := s.Driver.Configure(s.Hostname, s.SSID, s.Password); err != nil {
			return err
		}
		if err := s.Driver.Connect(); err != nil {
			return err
		}
		s.state = ConnectedWait
	case ConnectedWait:
		if !s.connected.Load() {
			return nil
		}
		s.lastRSSIAt = time.Time{}
		s.state = Main
	case Main:
		if s.pollDue() {
			s.pollRSSI()
		}
		if !s.connected.Load() {
			s.state = ConnectedWait
		}
	}
	return nil
}

func (s *Supervisor) pollDue() bool {
	return time.Since(s.lastRSSIAt) >= rssiPollInterval
}

func (s *Supervisor) pollRSSI() {
	s.lastRSSIAt = time.Now()
	if rssi, err := s.Driver.RSSI(); err == nil {
		s.lastRSSI = rssi
	}
}

// Shutdown disconnects, stops, and deinitializes the link, per spec.md
// §4.7's shutdown description.
func (s *Supervisor) Shutdown() error {
	if s.connected.Load() {
		if err := s.Driver.Disconnect(); err != nil {
			return err
		}
	}
	if err := s.Driver.Stop(); err != nil {
		return err
	}
	return s.Driver.Deinit()
}
