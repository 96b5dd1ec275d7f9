package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// DeviceType represents the type of audio device
type DeviceType int

const (
	DeviceTypePlayback DeviceType = iota
	DeviceTypeCapture
)

func (t DeviceType) String() string {
	if t == DeviceTypePlayback {
		return "playback"
	}
	return "capture"
}

// DeviceInfo contains information about an audio device
type DeviceInfo struct {
	ID        string     // Unique device identifier
	Name      string     // Human-readable device name
	Type      DeviceType // Device type (playback or capture)
	IsDefault bool       // Whether this is the default device
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	defaultMarker := ""
	if d.IsDefault {
		defaultMarker = " [DEFAULT]"
	}
	return fmt.Sprintf("%s: %s%s", d.ID, d.Name, defaultMarker)
}

// ListDevices returns all capture and playback devices. Playback
// devices matter here because system-output capture taps them in
// loopback mode.
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	var devices []DeviceInfo

	captures, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	for i, info := range captures {
		devices = append(devices, DeviceInfo{
			ID:        fmt.Sprintf("capture-%d", i),
			Name:      info.Name(),
			Type:      DeviceTypeCapture,
			IsDefault: info.IsDefault > 0,
		})
	}

	playbacks, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	for i, info := range playbacks {
		devices = append(devices, DeviceInfo{
			ID:        fmt.Sprintf("playback-%d", i),
			Name:      info.Name(),
			Type:      DeviceTypePlayback,
			IsDefault: info.IsDefault > 0,
		})
	}

	return devices, nil
}

// DefaultDevice returns the default device of the given type.
func DefaultDevice(deviceType DeviceType) (*DeviceInfo, error) {
	devices, err := ListDevices()
	if err != nil {
		return nil, err
	}

	var candidates []DeviceInfo
	for _, device := range devices {
		if device.Type != deviceType {
			continue
		}
		if device.IsDefault {
			return &device, nil
		}
		candidates = append(candidates, device)
	}

	// If no default is found, return the first device
	if len(candidates) > 0 {
		return &candidates[0], nil
	}

	return nil, fmt.Errorf("no %s devices found", deviceType)
}

// FindDeviceByName finds a device by name (case-insensitive partial match)
func FindDeviceByName(name string) (*DeviceInfo, error) {
	devices, err := ListDevices()
	if err != nil {
		return nil, err
	}

	searchName := strings.ToLower(name)
	for _, device := range devices {
		deviceName := strings.ToLower(device.Name)
		if strings.Contains(deviceName, searchName) {
			return &device, nil
		}
	}

	return nil, fmt.Errorf("no device found matching name: %s", name)
}
