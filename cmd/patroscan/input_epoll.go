//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// inputBatch is how many input_event records one read may return.
const inputBatch = 16

// readInputEventsEpoll watches every device with one epoll set and forwards
// decoded events until ctx is canceled (nil) or a device fails (error).
//
// An eventfd sits in the same set so cancellation wakes epoll_wait; the reader
// never outlives the call.
func readInputEventsEpoll(ctx context.Context, files []*os.File, events chan<- inputEvent, logger *slog.Logger) error {
	if len(files) == 0 {
		return errors.New("no input devices provided")
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return fmt.Errorf("eventfd: %w", err)
	}
	defer unix.Close(wakefd)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}); err != nil {
		return fmt.Errorf("epoll_ctl_add eventfd: %w", err)
	}

	woke := make(chan struct{})
	stopWake := context.AfterFunc(ctx, func() {
		defer close(woke)
		var one [8]byte
		binary.NativeEndian.PutUint64(one[:], 1)
		_, _ = unix.Write(wakefd, one[:])
	})
	defer func() {
		// The wake write must finish before wakefd is closed.
		if !stopWake() {
			<-woke
		}
	}()

	byFD := make(map[int]string, len(files))
	for _, f := range files {
		fd := int(f.Fd())
		byFD[fd] = f.Name()
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}); err != nil {
			return fmt.Errorf("epoll_ctl_add %s: %w", f.Name(), err)
		}
		logger.Debug("watching input device", "path", f.Name(), "fd", fd)
	}

	ready := make([]unix.EpollEvent, len(files)+1)
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize*inputBatch)
	reader := bytes.NewReader(nil)

	for {
		n, err := unix.EpollWait(epfd, ready, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for _, re := range ready[:n] {
			fd := int(re.Fd)
			if fd == wakefd {
				return nil
			}
			path := byFD[fd]

			if re.Events&unix.EPOLLIN == 0 {
				if re.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
					return fmt.Errorf("input device %s: hangup", path)
				}
				continue
			}

			got, err := unix.Read(fd, buf)
			switch {
			case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
				continue
			case err != nil:
				return fmt.Errorf("read %s: %w", path, err)
			case got == 0:
				return fmt.Errorf("input device %s: closed", path)
			}

			// The kernel only hands out whole records.
			for off := 0; off+evSize <= got; off += evSize {
				ev, err := decodeInputEvent(reader, buf[off:off+evSize])
				if err != nil {
					logger.Debug("skipping malformed input event", "path", path, "error", err)
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
