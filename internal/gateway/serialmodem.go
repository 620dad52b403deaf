package gateway

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/toyfleet/fleet-tracker/internal/phone"
)

// ctrlZ terminates the SMS body in text mode.
const ctrlZ = "\x1a"

// gsmVendorHints are substrings seen in USB product descriptions of
// common GSM/3G/4G dongles.
var gsmVendorHints = []string{"huawei", "zte", "gsm", "modem", "3g", "4g"}

// SerialModem sends through a USB GSM modem speaking AT commands in
// text mode. The serial line is opened lazily on the first send and
// kept open across sends; all access is serialized.
type SerialModem struct {
	portName string
	baudRate int

	mu   sync.Mutex
	port io.ReadWriteCloser

	// openPort is swappable so tests can inject a scripted transport.
	openPort func() (io.ReadWriteCloser, error)
}

// NewSerialModem builds a modem backend on the named port, or on the
// first discoverable GSM-looking USB serial port when portName is
// empty.
func NewSerialModem(portName string, baudRate int) *SerialModem {
	if baudRate <= 0 {
		baudRate = 9600
	}
	if portName == "" {
		portName = detectModemPort()
	}

	m := &SerialModem{portName: portName, baudRate: baudRate}
	m.openPort = m.openSerial
	return m
}

// detectModemPort scans the USB serial ports for a known modem vendor
// string. Returns "" when nothing matches.
func detectModemPort() string {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return ""
	}
	for _, p := range ports {
		desc := strings.ToLower(p.Product)
		for _, hint := range gsmVendorHints {
			if strings.Contains(desc, hint) {
				return p.Name
			}
		}
	}
	return ""
}

func (m *SerialModem) Name() string { return "serial_modem" }

func (m *SerialModem) Available() bool { return m.portName != "" }

func (m *SerialModem) openSerial() (io.ReadWriteCloser, error) {
	port, err := serial.Open(m.portName, &serial.Mode{
		BaudRate: m.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(5 * time.Second); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

func (m *SerialModem) Send(ctx context.Context, to, body string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureOpen(); err != nil {
		return failure(m.Name(), to, ReasonModemError, "modem init failed: "+err.Error())
	}

	steps := []struct {
		cmd  string
		want string
	}{
		{"AT\r\n", "OK"},
		{"AT+CMGF=1\r\n", ""},
		{fmt.Sprintf("AT+CMGS=%q\r\n", phone.Digits(to)), ""},
	}
	for _, s := range steps {
		if ctx.Err() != nil {
			return failure(m.Name(), to, ReasonModemError, ctx.Err().Error())
		}
		resp, err := m.exchange(s.cmd)
		if err != nil {
			m.closePort()
			return failure(m.Name(), to, ReasonModemError, err.Error())
		}
		if s.want != "" && !strings.Contains(resp, s.want) {
			m.closePort()
			return failure(m.Name(), to, ReasonModemError, fmt.Sprintf("unexpected reply to %q: %q", strings.TrimSpace(s.cmd), resp))
		}
	}

	resp, err := m.exchange(body + ctrlZ)
	if err != nil {
		m.closePort()
		return failure(m.Name(), to, ReasonModemError, err.Error())
	}
	if !strings.Contains(resp, "OK") && !strings.Contains(resp, "+CMGS") {
		return failure(m.Name(), to, ReasonModemError, "modem rejected message: "+strings.TrimSpace(resp))
	}

	return success(m.Name(), to, "")
}

func (m *SerialModem) ensureOpen() error {
	if m.port != nil {
		return nil
	}
	port, err := m.openPort()
	if err != nil {
		return err
	}
	m.port = port
	return nil
}

func (m *SerialModem) closePort() {
	if m.port != nil {
		_ = m.port.Close()
		m.port = nil
	}
}

// exchange writes one command and reads whatever the modem answers
// within the port's read timeout.
func (m *SerialModem) exchange(cmd string) (string, error) {
	if _, err := m.port.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("write %q: %w", strings.TrimSpace(cmd), err)
	}

	buf := make([]byte, 512)
	n, err := m.port.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return string(buf[:n]), nil
}
