//go:build windows

package namedsem

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	modkernel32          = syscall.NewLazyDLL("kernel32.dll")
	procOpenSemaphoreW   = modkernel32.NewProc("OpenSemaphoreW")
	procWaitForSingleObj = modkernel32.NewProc("WaitForSingleObject")
	procReleaseSemaphore = modkernel32.NewProc("ReleaseSemaphore")
	procCloseHandle      = modkernel32.NewProc("CloseHandle")
)

const (
	semaphoreAllAccess = 0x1F0003
	infiniteWait       = 0xFFFFFFFF
	waitObject0        = 0x00000000
)

type winSemaphore struct {
	name   string
	handle syscall.Handle
}

func openPlatform(name string) (Semaphore, error) {
	namePtr, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return nil, wrapErr("namedsem.Open", err)
	}
	h, _, callErr := procOpenSemaphoreW.Call(
		uintptr(semaphoreAllAccess),
		0,
		uintptr(unsafe.Pointer(namePtr)),
	)
	if h == 0 {
		return nil, wrapErr("namedsem.Open", fmt.Errorf("OpenSemaphoreW(%q): %w", name, callErr))
	}
	return &winSemaphore{name: name, handle: syscall.Handle(h)}, nil
}

func (s *winSemaphore) Acquire() error {
	r, _, callErr := procWaitForSingleObj.Call(uintptr(s.handle), uintptr(infiniteWait))
	if r != waitObject0 {
		return wrapErr("namedsem.Acquire", fmt.Errorf("WaitForSingleObject(%q): %w", s.name, callErr))
	}
	return nil
}

func (s *winSemaphore) Release() error {
	ok, _, callErr := procReleaseSemaphore.Call(uintptr(s.handle), 1, 0)
	if ok == 0 {
		return wrapErr("namedsem.Release", fmt.Errorf("ReleaseSemaphore(%q): %w", s.name, callErr))
	}
	return nil
}

func (s *winSemaphore) Close() error {
	ok, _, callErr := procCloseHandle.Call(uintptr(s.handle))
	if ok == 0 {
		return wrapErr("namedsem.Close", fmt.Errorf("CloseHandle(%q): %w", s.name, callErr))
	}
	return nil
}
