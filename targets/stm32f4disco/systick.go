//go:build stm32f4disco

package main

import (
	"errors"
	"machine"

	"device/arm"
)

var errRateTooHigh = errors.New("tick rate above core clock")

// sysTickISR is the clock's tick body, installed by Configure
var sysTickISR func()

// SysTickSource drives the clock from the Cortex-M SysTick timer
type SysTickSource struct{}

// Configure loads the SysTick reload value for rateHz and enables the
// interrupt. It fails when the reload does not fit the 24-bit counter.
func (SysTickSource) Configure(rateHz uint32, isr func()) error {
	cpu := machine.CPUFrequency()
	if rateHz > cpu {
		return errRateTooHigh
	}
	sysTickISR = isr
	return arm.SetupSystemTimer(cpu / rateHz)
}

func (SysTickSource) Enable() {
	arm.SYST.SYST_CSR.SetBits(arm.SYST_CSR_TICKINT)
}

func (SysTickSource) Disable() {
	arm.SYST.SYST_CSR.ClearBits(arm.SYST_CSR_TICKINT)
}

//export SysTick_Handler
func sysTickHandler() {
	if isr := sysTickISR; isr != nil {
		isr()
	}
}
