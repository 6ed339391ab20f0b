package main

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"
)

// duplex is a full-duplex float32 device.
type duplex struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func openDuplex(cfg liveConfig, process func(out, in []float32), logger logrus.FieldLogger) (*duplex, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	d := &duplex{ctx: ctx}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.channels)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(cfg.channels)
	deviceConfig.SampleRate = uint32(cfg.sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.period)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.device != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err == nil {
			for _, info := range infos {
				if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(cfg.device)) {
					deviceConfig.Capture.DeviceID = info.ID.Pointer()
					logger.WithField("device", info.Name()).Info("capture device selected")

					break
				}
			}
		}
	}

	onFrames := func(pOutput, pInput []byte, frameCount uint32) {
		samples := int(frameCount) * cfg.channels
		if len(pOutput) == 0 {
			return
		}

		out := unsafe.Slice((*float32)(unsafe.Pointer(&pOutput[0])), samples)

		var in []float32
		if len(pInput) > 0 {
			in = unsafe.Slice((*float32)(unsafe.Pointer(&pInput[0])), samples)
		}

		process(out, in)
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onFrames})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to init device: %w", err)
	}

	d.device = device

	if rate := device.SampleRate(); int(rate) != cfg.sampleRate {
		d.Close()
		return nil, fmt.Errorf("device runs at %d Hz, requested %d Hz", rate, cfg.sampleRate)
	}

	return d, nil
}

// Start begins streaming.
func (d *duplex) Start() error {
	if d.device == nil {
		return fmt.Errorf("device not initialized")
	}

	return d.device.Start()
}

// Close stops the device and releases the context.
func (d *duplex) Close() {
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}

	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
}
