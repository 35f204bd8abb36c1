//go:build tinygo

package f103hw

import (
	"runtime/interrupt"

	"device/stm32"
)

// tickRate is the commutation frequency. At the 72 MHz core clock a
// 4000-count timer period gives 18 kHz.
const tickReload = 3999

var tickFunc func()

// StartTick arms TIM1 to call fn at the commutation rate. The handler
// runs in interrupt context, so fn must not allocate or block.
func StartTick(fn func()) {
	tickFunc = fn

	stm32.RCC.APB2ENR.SetBits(stm32.RCC_APB2ENR_TIM1EN)
	stm32.TIM1.PSC.Set(0)
	stm32.TIM1.ARR.Set(tickReload)
	stm32.TIM1.EGR.Set(stm32.TIM_EGR_UG)
	stm32.TIM1.SR.ClearBits(stm32.TIM_SR_UIF)
	stm32.TIM1.DIER.SetBits(stm32.TIM_DIER_UIE)

	intr := interrupt.New(stm32.IRQ_TIM1_UP, handleTick)
	intr.SetPriority(0x40)
	intr.Enable()

	stm32.TIM1.CR1.SetBits(stm32.TIM_CR1_CEN)
}

func handleTick(interrupt.Interrupt) {
	stm32.TIM1.SR.ClearBits(stm32.TIM_SR_UIF)
	if tickFunc != nil {
		tickFunc()
	}
}
