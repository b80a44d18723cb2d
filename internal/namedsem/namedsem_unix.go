//go:build !windows

package namedsem

/*
#include <semaphore.h>
#include <fcntl.h>
#include <errno.h>
#include <stdlib.h>

static sem_t *jumpgo_sem_open(const char *name) {
	return sem_open(name, 0);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type posixSemaphore struct {
	name string
	sem  *C.sem_t
}

func openPlatform(name string) (Semaphore, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	sem, errno := C.jumpgo_sem_open(cname)
	if sem == nil {
		return nil, wrapErr("namedsem.Open", fmt.Errorf("sem_open(%q): %w", name, errno))
	}
	return &posixSemaphore{name: name, sem: sem}, nil
}

func (s *posixSemaphore) Acquire() error {
	if ret, errno := C.sem_wait(s.sem); ret != 0 {
		return wrapErr("namedsem.Acquire", fmt.Errorf("sem_wait(%q): %w", s.name, errno))
	}
	return nil
}

func (s *posixSemaphore) Release() error {
	if ret, errno := C.sem_post(s.sem); ret != 0 {
		return wrapErr("namedsem.Release", fmt.Errorf("sem_post(%q): %w", s.name, errno))
	}
	return nil
}

func (s *posixSemaphore) Close() error {
	if ret, errno := C.sem_close(s.sem); ret != 0 {
		return wrapErr("namedsem.Close", fmt.Errorf("sem_close(%q): %w", s.name, errno))
	}
	return nil
}
