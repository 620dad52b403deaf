package gateway

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/toyfleet/fleet-tracker/internal/phone"
)

// DeviceBridge is the manual last resort: a phone tethered over adb.
// Send opens the phone's SMS composer pre-filled with the number and
// body; a human still has to tap send. Success means the intent was
// launched, not that the message left the phone.
type DeviceBridge struct {
	adbPath   string
	available bool

	// run executes one adb invocation; swappable for tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewDeviceBridge(adbPath string) *DeviceBridge {
	if adbPath == "" {
		adbPath = "adb"
	}
	b := &DeviceBridge{adbPath: adbPath, run: runCommand}
	b.available = b.detect()
	return b
}

// NewDeviceBridgeWithRunner is for tests that stub out adb.
func NewDeviceBridgeWithRunner(adbPath string, run func(ctx context.Context, name string, args ...string) ([]byte, error)) *DeviceBridge {
	if adbPath == "" {
		adbPath = "adb"
	}
	b := &DeviceBridge{adbPath: adbPath, run: run}
	b.available = b.detect()
	return b
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// detect asks adb for its device list; any line ending in "device"
// means a usable phone is attached.
func (b *DeviceBridge) detect() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := b.run(ctx, b.adbPath, "devices")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasSuffix(strings.TrimSpace(line), "\tdevice") ||
			strings.HasSuffix(strings.TrimSpace(line), " device") {
			return true
		}
	}
	return false
}

func (b *DeviceBridge) Name() string { return "device_bridge" }

func (b *DeviceBridge) Available() bool { return b.available }

func (b *DeviceBridge) Send(ctx context.Context, to, body string) Result {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	escaped := strings.NewReplacer(`"`, `\"`, `'`, `\'`).Replace(body)

	out, err := b.run(ctx, b.adbPath, "shell", "am", "start",
		"-a", "android.intent.action.SENDTO",
		"-d", "sms:"+phone.Digits(to),
		"--es", "sms_body", escaped,
	)
	if err != nil {
		return failure(b.Name(), to, ReasonConnError, "adb intent failed: "+err.Error()+" "+truncate(string(out), 200))
	}

	return success(b.Name(), to, "")
}
