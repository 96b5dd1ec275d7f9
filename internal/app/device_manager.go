package app

import (
	"fmt"
	"os"

	"github.com/emmett/echotap/internal/audio"
)

// DeviceManager handles audio device listing and driver probing
type DeviceManager struct{}

// NewDeviceManager creates a new DeviceManager instance
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{}
}

// ListDevices lists capture and playback devices plus virtual driver
// availability
func (dm *DeviceManager) ListDevices(ringName string) error {
	fmt.Println("Detecting audio devices...")
	fmt.Println()

	devices, err := audio.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list devices: %v\n", err)
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No audio devices found.")
		return fmt.Errorf("no devices found")
	}

	var captures, playbacks []audio.DeviceInfo
	for _, device := range devices {
		if device.Type == audio.DeviceTypeCapture {
			captures = append(captures, device)
		} else {
			playbacks = append(playbacks, device)
		}
	}

	fmt.Printf("Found %d capture device(s):\n\n", len(captures))
	for i, device := range captures {
		marker := ""
		if device.IsDefault {
			marker = " [DEFAULT]"
		}
		fmt.Printf("%d. %s%s\n", i+1, device.Name, marker)
		fmt.Printf("   ID: %s\n", device.ID)
		fmt.Println()
	}

	fmt.Printf("Found %d playback device(s) (loopback candidates):\n\n", len(playbacks))
	for i, device := range playbacks {
		marker := ""
		if device.IsDefault {
			marker = " [DEFAULT]"
		}
		fmt.Printf("%d. %s%s\n", i+1, device.Name, marker)
		fmt.Printf("   ID: %s\n", device.ID)
		fmt.Println()
	}

	if audio.DriverAvailable(ringName) {
		fmt.Println("Virtual audio driver: available")
	} else {
		fmt.Println("Virtual audio driver: not found")
	}
	fmt.Println()
	fmt.Println("To pin capture to a specific device, run:")
	fmt.Println("  echotap --mic-device \"<device-name>\"")

	return nil
}

// ProbeDriver reports whether the virtual driver's shared-memory
// segment exists, for scripting and diagnostics
func (dm *DeviceManager) ProbeDriver(ringName string) error {
	if audio.DriverAvailable(ringName) {
		fmt.Println("Virtual audio driver: available")
		return nil
	}
	fmt.Println("Virtual audio driver: not found")
	return fmt.Errorf("driver segment not found")
}

// SelectDevice resolves a device by name (case-insensitive partial
// match), or returns the default capture device when name is empty
func (dm *DeviceManager) SelectDevice(deviceName string) (*audio.DeviceInfo, error) {
	if deviceName == "" {
		device, err := audio.DefaultDevice(audio.DeviceTypeCapture)
		if err != nil {
			return nil, fmt.Errorf("failed to get default device: %w", err)
		}
		return device, nil
	}

	device, err := audio.FindDeviceByName(deviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Device '%s' not found\n", deviceName)
		fmt.Println("Use --list-devices to see available devices")
		return nil, err
	}
	return device, nil
}
