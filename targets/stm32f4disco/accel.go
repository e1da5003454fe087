//go:build stm32f4disco

package main

import (
	"machine"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers/adxl345"
)

// accelPeriod is the accelerometer sample period
const accelPeriod = 100 * time.Millisecond

type accel struct {
	sensor adxl345.Device
	due    atomic.Bool

	X, Y, Z int16
}

func newAccel() *accel {
	machine.I2C1.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz})

	a := &accel{sensor: adxl345.New(&machine.I2C1)}
	a.sensor.Configure()
	a.sensor.SetRate(adxl345.RATE_100HZ)
	a.sensor.SetRange(adxl345.RANGE_2G)
	return a
}

// markDue runs from the tick interrupt. The I2C transfer itself happens in
// the main loop.
func (a *accel) markDue(any) {
	a.due.Store(true)
}

// poll reads one sample if the timer asked for it
func (a *accel) poll() bool {
	if !a.due.Swap(false) {
		return false
	}
	a.X, a.Y, a.Z = a.sensor.ReadRawAcceleration()
	return true
}

func (a *accel) halt() {
	a.sensor.Halt()
}
