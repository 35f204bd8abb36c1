//go:build tinygo

package f103hw

import (
	"errors"
	"runtime/volatile"
	"unsafe"

	"device/stm32"
)

// applicationStart is the first word of the application image, used by
// the jump sequence. The full flash map lives with the core package.
const applicationStart = 0x0801F000

const (
	flashKey1 = 0x45670123
	flashKey2 = 0xCDEF89AB
)

var (
	errFlashProgram = errors.New("f103hw: program failed")
	errFlashErase   = errors.New("f103hw: erase failed")
)

// Flash drives the F103 embedded flash controller. Words are written
// as two halfword programs, which is all the FPEC supports.
type Flash struct{}

func (Flash) unlock() {
	if stm32.FLASH.CR.HasBits(stm32.FLASH_CR_LOCK) {
		stm32.FLASH.KEYR.Set(flashKey1)
		stm32.FLASH.KEYR.Set(flashKey2)
	}
}

func (Flash) lock() {
	stm32.FLASH.CR.SetBits(stm32.FLASH_CR_LOCK)
}

func (Flash) wait() error {
	for stm32.FLASH.SR.HasBits(stm32.FLASH_SR_BSY) {
	}
	if stm32.FLASH.SR.HasBits(stm32.FLASH_SR_PGERR | stm32.FLASH_SR_WRPRTERR) {
		stm32.FLASH.SR.SetBits(stm32.FLASH_SR_PGERR | stm32.FLASH_SR_WRPRTERR)
		return errFlashProgram
	}
	return nil
}

func (f Flash) ErasePage(addr uint32) error {
	f.unlock()
	defer f.lock()
	if err := f.wait(); err != nil {
		return err
	}
	stm32.FLASH.CR.SetBits(stm32.FLASH_CR_PER)
	stm32.FLASH.AR.Set(addr)
	stm32.FLASH.CR.SetBits(stm32.FLASH_CR_STRT)
	err := f.wait()
	stm32.FLASH.CR.ClearBits(stm32.FLASH_CR_PER)
	if err != nil {
		return errFlashErase
	}
	return nil
}

func (f Flash) ProgramWord(addr, value uint32) error {
	f.unlock()
	defer f.lock()
	if err := f.wait(); err != nil {
		return err
	}
	stm32.FLASH.CR.SetBits(stm32.FLASH_CR_PG)
	defer stm32.FLASH.CR.ClearBits(stm32.FLASH_CR_PG)

	lo := (*volatile.Register16)(unsafe.Pointer(uintptr(addr)))
	hi := (*volatile.Register16)(unsafe.Pointer(uintptr(addr + 2)))
	lo.Set(uint16(value))
	if err := f.wait(); err != nil {
		return err
	}
	hi.Set(uint16(value >> 16))
	return f.wait()
}

func (Flash) ReadWord(addr uint32) uint32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(addr))).Get()
}
